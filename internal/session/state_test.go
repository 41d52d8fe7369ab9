package session

import "testing"

func TestValidTransitions(t *testing.T) {
	cases := []struct {
		from, to phase
		ok       bool
	}{
		{phaseConnecting, phaseConnected, true},
		{phaseConnecting, phaseExpired, true},
		{phaseConnecting, phaseClosed, true},
		{phaseConnecting, phaseReconnecting, false},
		{phaseConnected, phaseReconnecting, true},
		{phaseConnected, phaseExpired, true},
		{phaseConnected, phaseClosed, true},
		{phaseConnected, phaseConnecting, false},
		{phaseReconnecting, phaseConnected, true},
		{phaseReconnecting, phaseExpired, true},
		{phaseExpired, phaseConnected, false},
		{phaseExpired, phaseClosed, false},
		{phaseClosed, phaseConnected, false},
	}
	for _, tc := range cases {
		if got := validTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("validTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestTerminalPhases(t *testing.T) {
	for _, p := range []phase{phaseConnecting, phaseConnected, phaseReconnecting} {
		if p.terminal() {
			t.Errorf("%s reported terminal", p)
		}
	}
	for _, p := range []phase{phaseExpired, phaseClosed} {
		if !p.terminal() {
			t.Errorf("%s not reported terminal", p)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("config without servers validated")
	}

	cfg.Servers = []string{"zk1"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Logger == nil || cfg.Dialer == nil {
		t.Fatal("Validate did not fill defaults")
	}

	cfg = DefaultConfig()
	cfg.Servers = []string{"zk1"}
	cfg.SessionID = 7
	if err := cfg.Validate(); err == nil {
		t.Fatal("resume without password validated")
	}
}
