package proto

import "fmt"

// JoinChroot maps a client-visible path onto the server namespace. An
// empty chroot is the identity mapping; the client root maps onto the
// chroot node itself.
func JoinChroot(chroot, path string) string {
	if chroot == "" {
		return path
	}
	if path == "/" {
		return chroot
	}
	return chroot + path
}

// StripChroot maps a server-namespace path back into the client's view.
// The chroot node itself becomes the client root; paths outside the
// chroot subtree pass through unchanged.
func StripChroot(chroot, path string) string {
	if chroot == "" {
		return path
	}
	if path == chroot {
		return "/"
	}
	if len(path) > len(chroot) && path[:len(chroot)] == chroot && path[len(chroot)] == '/' {
		return path[len(chroot):]
	}
	return path
}

// ValidatePath checks the naming rules the server enforces, so obviously
// bad paths fail before a round trip. isSequential relaxes the trailing
// slash rule because the server appends the sequence suffix itself.
func ValidatePath(path string, isSequential bool) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if path[0] != '/' {
		return fmt.Errorf("%w: %q must start with /", ErrInvalidPath, path)
	}
	if path == "/" {
		return nil
	}
	if !isSequential && path[len(path)-1] == '/' {
		return fmt.Errorf("%w: %q must not end with /", ErrInvalidPath, path)
	}

	var last rune
	for i, r := range path {
		switch {
		case r == 0:
			return fmt.Errorf("%w: %q contains a null character", ErrInvalidPath, path)
		case r == '/' && last == '/':
			return fmt.Errorf("%w: %q contains an empty component", ErrInvalidPath, path)
		case r == '.' && last == '.':
			if path[i-2] == '/' && (i+1 == len(path) || path[i+1] == '/') {
				return fmt.Errorf("%w: %q contains a relative component", ErrInvalidPath, path)
			}
		case r == '.':
			if last == '/' && (i+1 == len(path) || path[i+1] == '/') {
				return fmt.Errorf("%w: %q contains a relative component", ErrInvalidPath, path)
			}
		case r >= 0x00 && r <= 0x1f,
			r >= 0x7f && r <= 0x9f,
			r >= 0xd800 && r <= 0xf8ff,
			r >= 0xfff0 && r <= 0xffff:
			return fmt.Errorf("%w: %q contains an unsupported character", ErrInvalidPath, path)
		}
		last = r
	}
	return nil
}
