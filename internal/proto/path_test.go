package proto

import "testing"

func TestValidatePathTable(t *testing.T) {
	cases := []struct {
		path       string
		sequential bool
		ok         bool
	}{
		{"/", false, true},
		{"/a/b", false, true},
		{"", false, false},
		{"a/b", false, false},
		{"/a/", false, false},
		{"/a/", true, true},
		{"/a//b", false, false},
		{"/a/./b", false, false},
		{"/a/../b", false, false},
		{"/a\x00b", false, false},
	}
	for _, c := range cases {
		err := ValidatePath(c.path, c.sequential)
		if (err == nil) != c.ok {
			t.Errorf("ValidatePath(%q, %v) = %v, want ok=%v", c.path, c.sequential, err, c.ok)
		}
	}
}

func TestChrootMapping(t *testing.T) {
	cases := []struct {
		chroot string
		client string
		server string
	}{
		{"", "/a", "/a"},
		{"/app", "/", "/app"},
		{"/app", "/a", "/app/a"},
		{"/app/v1", "/a/b", "/app/v1/a/b"},
	}
	for _, c := range cases {
		if got := JoinChroot(c.chroot, c.client); got != c.server {
			t.Errorf("JoinChroot(%q, %q) = %q, want %q", c.chroot, c.client, got, c.server)
		}
		if got := StripChroot(c.chroot, c.server); got != c.client {
			t.Errorf("StripChroot(%q, %q) = %q, want %q", c.chroot, c.server, got, c.client)
		}
	}

	// A path outside the chroot subtree passes through untouched rather
	// than being mangled; /apple is not under /app.
	if got := StripChroot("/app", "/apple"); got != "/apple" {
		t.Errorf("StripChroot(/app, /apple) = %q", got)
	}
}
