package lecture

// StateType is the load state of a lecture session.
type StateType int

const (
	// StateIdle means the current chunk is displayed (or nothing is loaded yet).
	StateIdle StateType = iota
	// StateLoading means a summary request is in flight.
	StateLoading
	// StateError means the last load failed.
	StateError
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// stateMachine guards the session's load state transitions.
type stateMachine struct {
	current     StateType
	transitions map[StateType][]StateType
}

func newStateMachine() *stateMachine {
	return &stateMachine{
		current: StateIdle,
		transitions: map[StateType][]StateType{
			StateIdle:    {StateLoading},
			StateLoading: {StateIdle, StateError},
			StateError:   {StateLoading, StateIdle},
		},
	}
}

// transition moves to the given state if allowed.
func (sm *stateMachine) transition(to StateType) bool {
	for _, s := range sm.transitions[sm.current] {
		if s == to {
			sm.current = to
			return true
		}
	}
	return false
}

func (sm *stateMachine) reset() {
	sm.current = StateIdle
}
