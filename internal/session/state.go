package session

// State tracks a session through its lifecycle:
// Idle -> Connecting -> Handshaking -> Steady -> (Closing | Faulted).
// Faulted is not terminal; Push and Pull sessions restart from Idle after a
// backoff, and a Poll target fault is local to that cycle.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateHandshaking
	StateSteady
	StateClosing
	StateFaulted
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateSteady:
		return "steady"
	case StateClosing:
		return "closing"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}
