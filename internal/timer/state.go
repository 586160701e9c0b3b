package timer

// State is the timer context's position in its lifecycle.
type State uint8

const (
	// StateIdle means there is no open session and the countdown is not running.
	StateIdle State = iota

	// StateRunning means the countdown is ticking.
	StateRunning

	// StatePaused means the countdown is frozen part-way or mirrors a paused session.
	StatePaused

	// StateExpired means the countdown reached zero.
	StateExpired
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the state name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
