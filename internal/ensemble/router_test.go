package ensemble

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestNewNormalizesPorts(t *testing.T) {
	r, err := New([]string{"a", "b:2182", " c "})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := r.Addrs()
	want := []string{"a:2181", "b:2182", "c:2181"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Addrs[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNewRejectsEmptyList(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNoServers) {
		t.Fatalf("New(nil) = %v, want ErrNoServers", err)
	}
}

func TestNextVisitsEveryMemberPerCycle(t *testing.T) {
	r, err := New([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for cycle := 0; cycle < 3; cycle++ {
		seen := map[string]bool{}
		for i := 0; i < 3; i++ {
			addr, _ := r.Next()
			seen[addr] = true
		}
		if len(seen) != 3 {
			t.Fatalf("cycle %d visited %v, want all three members", cycle, seen)
		}
	}
}

func TestFailedMembersStaySelectable(t *testing.T) {
	// A and B keep failing; C must still be reached and neither A nor B
	// may ever be excluded.
	r, err := New([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sawC := false
	seen := map[string]int{}
	for i := 0; i < 9; i++ {
		addr, _ := r.Next()
		seen[addr]++
		switch addr {
		case "a:2181", "b:2181":
			r.Fail(addr)
		case "c:2181":
			sawC = true
		}
	}
	if !sawC {
		t.Error("router never selected c")
	}
	for _, addr := range []string{"a:2181", "b:2181", "c:2181"} {
		if seen[addr] != 3 {
			t.Errorf("%s selected %d times in 3 cycles, want 3", addr, seen[addr])
		}
	}
}

func TestUpdateReplacesMembers(t *testing.T) {
	r, err := New([]string{"a", "b"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Fail("a:2181")

	if err := r.Update([]string{"a", "c:2182"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got := r.Addrs()
	want := []string{"a:2181", "c:2182"}
	if len(got) != len(want) {
		t.Fatalf("Addrs after update = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Addrs[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// A retained member keeps its failure history, so selecting it still
	// carries a backoff wait; the new member starts clean.
	seen := map[string]time.Duration{}
	for i := 0; i < 2; i++ {
		addr, wait := r.Next()
		seen[addr] = wait
	}
	if seen["a:2181"] <= 0 {
		t.Errorf("retained failed member wait = %v, want > 0", seen["a:2181"])
	}
	if seen["c:2182"] != 0 {
		t.Errorf("new member wait = %v, want 0", seen["c:2182"])
	}
}

func TestUpdateRejectsEmptyList(t *testing.T) {
	r, err := New([]string{"a"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Update(nil); !errors.Is(err, ErrNoServers) {
		t.Fatalf("Update(nil) = %v, want ErrNoServers", err)
	}
	if got := r.Addrs(); len(got) != 1 || got[0] != "a:2181" {
		t.Fatalf("member list mutated by failed update: %v", got)
	}
}

func TestFailureBackoffGrowsAndResets(t *testing.T) {
	r, err := New([]string{"a"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, wait := r.Next(); wait != 0 {
		t.Errorf("fresh member wait = %v, want 0", wait)
	}

	r.Fail("a:2181")
	_, first := r.Next()
	if first <= 0 {
		t.Fatalf("wait after failure = %v, want > 0", first)
	}
	r.Fail("a:2181")
	_, second := r.Next()
	// Jitter is ±20%, doubling dominates it.
	if second <= first {
		t.Errorf("backoff did not grow: first %v, second %v", first, second)
	}

	r.Reset("a:2181")
	if _, wait := r.Next(); wait != 0 {
		t.Errorf("wait after reset = %v, want 0", wait)
	}
}

func TestBackoffCapsAtMax(t *testing.T) {
	b := newBackoff(time.Second, 4*time.Second, rand.New(rand.NewSource(1)))
	for i := 0; i < 10; i++ {
		b.Next()
	}
	if got := b.Next(); got > 4*time.Second+4*time.Second/5 {
		t.Errorf("capped delay = %v, want <= max plus jitter", got)
	}
}
