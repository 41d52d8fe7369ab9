package proto

// EventType identifies what changed in a watch event frame.
type EventType int32

const (
	EventSession             EventType = -1
	EventNotWatching         EventType = -2
	EventNodeCreated         EventType = 1
	EventNodeDeleted         EventType = 2
	EventNodeDataChanged     EventType = 3
	EventNodeChildrenChanged EventType = 4
)

// String returns a human-readable representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventSession:
		return "Session"
	case EventNotWatching:
		return "NotWatching"
	case EventNodeCreated:
		return "NodeCreated"
	case EventNodeDeleted:
		return "NodeDeleted"
	case EventNodeDataChanged:
		return "NodeDataChanged"
	case EventNodeChildrenChanged:
		return "NodeChildrenChanged"
	default:
		return "Unknown"
	}
}

// State describes the session lifecycle as observed by the caller.
// Negative values are terminal server-assigned states; values of 100 and
// above are client-side refinements of "connected".
type State int32

const (
	StateDisconnected State = 0
	StateConnecting   State = 1
	StateAuthFailed   State = 4
	StateExpired      State = -112

	// StateConnected means the transport is up and the handshake has not
	// completed yet.
	StateConnected State = 100

	// StateHasSession means the handshake established a fresh session.
	StateHasSession State = 101

	// StateSessionResumed means the handshake resumed the prior session;
	// outstanding watches were preserved and replayed.
	StateSessionResumed State = 102

	// StateClosed means the caller closed the session.
	StateClosed State = 103
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateAuthFailed:
		return "AuthFailed"
	case StateExpired:
		return "Expired"
	case StateConnected:
		return "Connected"
	case StateHasSession:
		return "HasSession"
	case StateSessionResumed:
		return "SessionResumed"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further session activity can follow s.
func (s State) Terminal() bool {
	return s == StateExpired || s == StateAuthFailed || s == StateClosed
}
