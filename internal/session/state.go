package session

import "fmt"

// phase is the lifecycle state of a session. Expired and Closed are
// terminal: the state machine never reconnects out of them and the
// caller must build a new session.
type phase int

const (
	phaseConnecting phase = iota
	phaseConnected
	phaseReconnecting
	phaseExpired
	phaseClosed
)

// String returns a human-readable representation of the phase.
func (p phase) String() string {
	switch p {
	case phaseConnecting:
		return "Connecting"
	case phaseConnected:
		return "Connected"
	case phaseReconnecting:
		return "Reconnecting"
	case phaseExpired:
		return "Expired"
	case phaseClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// terminal reports whether no further transitions may leave p.
func (p phase) terminal() bool {
	return p == phaseExpired || p == phaseClosed
}

// validTransition encodes the session state machine:
//
//	Connecting   -> Connected, Expired, Closed
//	Connected    -> Reconnecting, Expired, Closed
//	Reconnecting -> Connected, Expired, Closed
//	Expired      -> (terminal)
//	Closed       -> (terminal)
func validTransition(from, to phase) bool {
	if from.terminal() {
		return false
	}
	switch to {
	case phaseConnected:
		return from == phaseConnecting || from == phaseReconnecting
	case phaseReconnecting:
		return from == phaseConnected
	case phaseExpired, phaseClosed:
		return true
	default:
		return false
	}
}

// errInvalidTransition is only ever a programming error in this package;
// the run loop owns all transitions.
func errInvalidTransition(from, to phase) error {
	return fmt.Errorf("zkwire: invalid session transition %s -> %s", from, to)
}
