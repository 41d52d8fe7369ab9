// Package zkwire is a client for ZooKeeper ensembles. It maintains one
// session across connection loss, multiplexes concurrent operations over
// a single ordered connection, and delivers watch notifications with
// at-most-once semantics for one-shot watches.
//
// Example usage:
//
//	cfg := zkwire.DefaultConfig()
//	cfg.Servers = []string{"zk1:2181", "zk2:2181", "zk3:2181"}
//	conn, err := zkwire.Dial(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	data, _, watch, err := conn.GetW(ctx, "/config/feature")
package zkwire

import (
	"github.com/bft-labs/zkwire/internal/proto"
	"github.com/bft-labs/zkwire/internal/session"
	"github.com/bft-labs/zkwire/internal/watch"
)

// Conn is one client session. See session.Conn for the operation set.
type Conn = session.Conn

// Config holds the configuration for one session.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = session.Config

// Dialer opens the raw byte stream to one ensemble member.
type Dialer = session.Dialer

// Event is a watch or session notification.
type Event = watch.Event

// EventType identifies what changed in an Event.
type EventType = proto.EventType

// State describes the session lifecycle as observed by the caller.
type State = proto.State

// Stat is the server-maintained metadata of a node.
type Stat = proto.Stat

// ACL is a single access-control entry on a node.
type ACL = proto.ACL

// MultiOps assembles an atomic write batch for Conn.Multi.
type MultiOps = proto.MultiOps

// MultiResult is the outcome of one sub-operation of a write batch.
type MultiResult = proto.MultiResult

// MultiError reports a failed batch, naming the first sub-operation
// whose error aborted it.
type MultiError = proto.MultiError

// MultiReadOps assembles a batched read for Conn.MultiRead.
type MultiReadOps = proto.MultiReadOps

// MultiReadResult is the outcome of one read sub-operation.
type MultiReadResult = proto.MultiReadResult

// Dial starts a session against the configured ensemble. It returns
// immediately; the first event on Conn.Events reports the handshake
// outcome.
func Dial(cfg Config) (*Conn, error) {
	return session.Dial(cfg)
}

// DefaultConfig returns a Config with sensible default values.
// At minimum, Servers must be set before calling Dial.
func DefaultConfig() Config {
	return session.DefaultConfig()
}

// Event types.
const (
	EventSession             = proto.EventSession
	EventNotWatching         = proto.EventNotWatching
	EventNodeCreated         = proto.EventNodeCreated
	EventNodeDeleted         = proto.EventNodeDeleted
	EventNodeDataChanged     = proto.EventNodeDataChanged
	EventNodeChildrenChanged = proto.EventNodeChildrenChanged
)

// Session states.
const (
	StateDisconnected   = proto.StateDisconnected
	StateConnecting     = proto.StateConnecting
	StateExpired        = proto.StateExpired
	StateHasSession     = proto.StateHasSession
	StateSessionResumed = proto.StateSessionResumed
	StateClosed         = proto.StateClosed
)

// Create flags.
const (
	FlagEphemeral = proto.FlagEphemeral
	FlagSequence  = proto.FlagSequence
)

// ACL permission bits.
const (
	PermRead   = proto.PermRead
	PermWrite  = proto.PermWrite
	PermCreate = proto.PermCreate
	PermDelete = proto.PermDelete
	PermAdmin  = proto.PermAdmin
	PermAll    = proto.PermAll
)

// Watcher types accepted by Conn.RemoveWatch.
const (
	WatcherTypeChildren = proto.WatcherTypeChildren
	WatcherTypeData     = proto.WatcherTypeData
	WatcherTypeAny      = proto.WatcherTypeAny
)

// Errors surfaced by session operations.
var (
	ErrNoNode           = proto.ErrNoNode
	ErrNodeExists       = proto.ErrNodeExists
	ErrBadVersion       = proto.ErrBadVersion
	ErrNotEmpty         = proto.ErrNotEmpty
	ErrInvalidACL       = proto.ErrInvalidACL
	ErrNoAuth           = proto.ErrNoAuth
	ErrAuthFailed       = proto.ErrAuthFailed
	ErrInvalidPath      = proto.ErrInvalidPath
	ErrNoWatcher        = proto.ErrNoWatcher
	ErrConnectionLost   = proto.ErrConnectionLost
	ErrSessionExpired   = proto.ErrSessionExpired
	ErrConnectionClosed = proto.ErrConnectionClosed
	ErrMultiOpAborted   = proto.ErrMultiOpAborted
)

// WorldACL returns an ACL list granting perms to everyone.
func WorldACL(perms int32) []ACL {
	return proto.WorldACL(perms)
}

// AuthACL returns an ACL list granting perms to the authenticated user.
func AuthACL(perms int32) []ACL {
	return proto.AuthACL(perms)
}
