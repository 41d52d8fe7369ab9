// Package proto defines the closed set of wire records exchanged with a
// ZooKeeper ensemble, together with the opcode, error-code and event
// constants they carry. The operation set is fixed by the protocol, so
// every record implements its own Encode/Decode against the codec rather
// than going through reflection or open-ended dispatch.
package proto

// Opcodes identify the operation in a request header.
const (
	OpCreate        int32 = 1
	OpDelete        int32 = 2
	OpExists        int32 = 3
	OpGetData       int32 = 4
	OpSetData       int32 = 5
	OpGetACL        int32 = 6
	OpSetACL        int32 = 7
	OpGetChildren   int32 = 8
	OpSync          int32 = 9
	OpPing          int32 = 11
	OpGetChildren2  int32 = 12
	OpCheck         int32 = 13
	OpMulti         int32 = 14
	OpMultiRead     int32 = 22
	OpAuth          int32 = 100
	OpSetWatches    int32 = 101
	OpRemoveWatches int32 = 103
	OpAddWatch      int32 = 106
	OpClose         int32 = -11
	opError         int32 = -1
)

// Reserved transaction ids. Frames carrying one of these never match an
// application request.
const (
	XidWatchEvent int32 = -1
	XidPing       int32 = -2
	XidAuth       int32 = -4
	XidSetWatches int32 = -8
)

// ProtocolVersion is the client protocol version sent in the connect
// handshake.
const ProtocolVersion int32 = 0

// Create flags.
const (
	FlagEphemeral int32 = 1
	FlagSequence  int32 = 2
)

// ACL permission bits.
const (
	PermRead   int32 = 1 << iota // 1
	PermWrite                    // 2
	PermCreate                   // 4
	PermDelete                   // 8
	PermAdmin                    // 16

	PermAll = PermRead | PermWrite | PermCreate | PermDelete | PermAdmin
)

// AddWatchMode selects the registration mode of an addWatch request.
type AddWatchMode int32

const (
	// AddWatchModePersistent registers a watch that survives firing and
	// matches the exact path.
	AddWatchModePersistent AddWatchMode = 0

	// AddWatchModePersistentRecursive registers a watch that survives
	// firing and matches the path and everything below it.
	AddWatchModePersistentRecursive AddWatchMode = 1
)

// Watcher types used by removeWatches.
const (
	WatcherTypeChildren int32 = 1
	WatcherTypeData     int32 = 2
	WatcherTypeAny      int32 = 3
)

// WorldACL returns an ACL list granting perms to everyone.
func WorldACL(perms int32) []ACL {
	return []ACL{{Perms: perms, Scheme: "world", ID: "anyone"}}
}

// AuthACL returns an ACL list granting perms to the authenticated user.
func AuthACL(perms int32) []ACL {
	return []ACL{{Perms: perms, Scheme: "auth", ID: ""}}
}
