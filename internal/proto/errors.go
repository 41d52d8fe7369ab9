package proto

import (
	"errors"
	"fmt"
)

// Server-reported application errors. These reflect data-model state on
// the ensemble and are returned to the caller whose operation produced
// them; they are never retried automatically and never affect the session.
var (
	ErrNoNode                  = errors.New("zkwire: node does not exist")
	ErrNodeExists              = errors.New("zkwire: node already exists")
	ErrBadVersion              = errors.New("zkwire: version conflict")
	ErrNotEmpty                = errors.New("zkwire: node has children")
	ErrNoChildrenForEphemerals = errors.New("zkwire: ephemeral nodes may not have children")
	ErrInvalidACL              = errors.New("zkwire: invalid ACL specified")
	ErrNoAuth                  = errors.New("zkwire: not authenticated")
	ErrAuthFailed              = errors.New("zkwire: authentication failed")
	ErrBadArguments            = errors.New("zkwire: invalid arguments")
	ErrUnimplemented           = errors.New("zkwire: operation unimplemented by server")
	ErrNoWatcher               = errors.New("zkwire: no such watcher")
	ErrAPIError                = errors.New("zkwire: server api error")
)

// Session and connection errors.
var (
	// ErrConnectionLost indicates the transport failed while the request
	// was in flight; the session may still recover on another member.
	ErrConnectionLost = errors.New("zkwire: connection lost")

	// ErrProtocolDesync indicates a response that cannot belong to the
	// oldest pending request. The wire can no longer be trusted.
	ErrProtocolDesync = errors.New("zkwire: protocol desync")

	// ErrSessionExpired indicates the ensemble declared the session dead.
	ErrSessionExpired = errors.New("zkwire: session expired")

	// ErrSessionMoved indicates the session was serviced by another member.
	ErrSessionMoved = errors.New("zkwire: session moved")

	// ErrConnectionClosed indicates the caller closed the session.
	ErrConnectionClosed = errors.New("zkwire: connection closed")

	// ErrInvalidPath indicates a path that violates the naming rules.
	ErrInvalidPath = errors.New("zkwire: invalid path")

	// ErrClosing indicates the server is shutting the session down.
	ErrClosing = errors.New("zkwire: server is closing session")

	// ErrNothing indicates a response frame for no pending operation.
	ErrNothing = errors.New("zkwire: no server response to process")
)

// Multi results use ErrMultiOpAborted for sub-operations that were rolled
// back because an earlier sub-operation failed. The offending operation
// itself carries its specific error instead.
var ErrMultiOpAborted = errors.New("zkwire: multi operation aborted")

// Wire error codes as sent by the server.
const (
	errOk                      int32 = 0
	errAPIError                int32 = -100
	errNoNode                  int32 = -101
	errNoAuth                  int32 = -102
	errBadVersion              int32 = -103
	errNoChildrenForEphemerals int32 = -108
	errNodeExists              int32 = -110
	errNotEmpty                int32 = -111
	errSessionExpired          int32 = -112
	errInvalidACL              int32 = -114
	errAuthFailed              int32 = -115
	errClosing                 int32 = -116
	errNothing                 int32 = -117
	errSessionMoved            int32 = -118
	errNoWatcher               int32 = -121
	errBadArguments            int32 = -8
	errUnimplemented           int32 = -6
	errRuntimeInconsistency    int32 = -2
)

// ErrCode maps a wire error code to a sentinel error, or nil for success.
func ErrCode(code int32) error {
	switch code {
	case errOk:
		return nil
	case errNoNode:
		return ErrNoNode
	case errNodeExists:
		return ErrNodeExists
	case errBadVersion:
		return ErrBadVersion
	case errNotEmpty:
		return ErrNotEmpty
	case errNoChildrenForEphemerals:
		return ErrNoChildrenForEphemerals
	case errInvalidACL:
		return ErrInvalidACL
	case errNoAuth:
		return ErrNoAuth
	case errAuthFailed:
		return ErrAuthFailed
	case errSessionExpired:
		return ErrSessionExpired
	case errSessionMoved:
		return ErrSessionMoved
	case errClosing:
		return ErrClosing
	case errNothing:
		return ErrNothing
	case errBadArguments:
		return ErrBadArguments
	case errUnimplemented:
		return ErrUnimplemented
	case errNoWatcher:
		return ErrNoWatcher
	case errRuntimeInconsistency:
		return ErrMultiOpAborted
	default:
		return fmt.Errorf("%w: code %d", ErrAPIError, code)
	}
}
