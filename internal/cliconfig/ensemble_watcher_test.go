package cliconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestEnsembleWatcherReportsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`servers = ["a:2181"]`), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	updates := make(chan []string, 1)
	w := NewEnsembleWatcher(path, []string{"a:2181"}, func(servers []string) {
		updates <- servers
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	// Give the watcher time to attach before rewriting the file.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`servers = ["a:2181", "b:2181"]`), 0o644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	select {
	case servers := <-updates:
		if len(servers) != 2 || servers[1] != "b:2181" {
			t.Fatalf("reported servers = %v", servers)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never reported the change")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on cancellation")
	}
}

func TestEnsembleWatcherIgnoresUnchangedList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`servers = ["a:2181"]`), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	updates := make(chan []string, 1)
	w := NewEnsembleWatcher(path, []string{"a:2181"}, func(servers []string) {
		updates <- servers
	}, zerolog.Nop())

	// Exercise reload directly; the list matches the current one.
	w.reload()

	select {
	case servers := <-updates:
		t.Fatalf("unchanged list reported: %v", servers)
	case <-time.After(300 * time.Millisecond):
	}
}
