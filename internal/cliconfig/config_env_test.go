package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("ZKCLI_SERVERS", "env1:2181,env2:2181")
	t.Setenv("ZKCLI_SESSION_TIMEOUT", "12s")
	t.Setenv("ZKCLI_NO_COLOR", "1")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err != nil {
		t.Fatalf("ApplyEnvConfig: %v", err)
	}

	if len(cfg.Servers) != 2 || cfg.Servers[1] != "env2:2181" {
		t.Errorf("servers = %v", cfg.Servers)
	}
	if cfg.SessionTimeout != 12*time.Second {
		t.Errorf("session timeout = %v", cfg.SessionTimeout)
	}
	if !cfg.NoColor {
		t.Error("no_color not applied")
	}
}

func TestEnvLosesToFlags(t *testing.T) {
	t.Setenv("ZKCLI_SESSION_TIMEOUT", "12s")

	cfg := DefaultConfig()
	cfg.SessionTimeout = 3 * time.Second
	if err := ApplyEnvConfig(&cfg, map[string]bool{"timeout": true}); err != nil {
		t.Fatalf("ApplyEnvConfig: %v", err)
	}
	if cfg.SessionTimeout != 3*time.Second {
		t.Errorf("flag value overridden by env: %v", cfg.SessionTimeout)
	}
}

func TestEnvBadDuration(t *testing.T) {
	t.Setenv("ZKCLI_SESSION_TIMEOUT", "soon")
	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err == nil {
		t.Fatal("expected parse error")
	}
}
