package voice

// State is the phase of a voice conversation.
type State int

const (
	// StateIdle listens for a wake phrase.
	StateIdle State = iota
	// StateWakeDetected heard the wake phrase and is prompting the user.
	StateWakeDetected
	// StateListening waits for the user's question.
	StateListening
	// StateProcessing waits for the answer and speaks it.
	StateProcessing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWakeDetected:
		return "wake-detected"
	case StateListening:
		return "listening-for-answer"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

var transitions = map[State][]State{
	StateIdle:         {StateWakeDetected},
	StateWakeDetected: {StateListening, StateIdle},
	StateListening:    {StateProcessing, StateIdle},
	StateProcessing:   {StateIdle},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
