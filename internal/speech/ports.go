package speech

import (
	"context"
	"fmt"
)

// Voice defaults used for lecture and chat speech.
const (
	DefaultRate  = 1.05
	DefaultPitch = 0.95
)

// Utterance is one piece of text to synthesize.
type Utterance struct {
	Text  string
	Rate  float64
	Pitch float64
}

// EventType identifies an output event.
type EventType int

const (
	// EventStart is sent when audio begins.
	EventStart EventType = iota
	// EventBoundary marks the start of a word at CharIndex.
	EventBoundary
	// EventEnd is sent when the utterance finished normally.
	EventEnd
	// EventError is sent when synthesis or playback failed.
	EventError
	// EventCanceled is delivered by the Channel to an utterance that was
	// superseded or stopped. Ports never send it.
	EventCanceled
)

// String returns the name of the event type.
func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventBoundary:
		return "boundary"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	case EventCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Event is emitted by an OutputPort while an utterance plays.
type Event struct {
	Type      EventType
	CharIndex int // byte offset into Utterance.Text, for EventBoundary
	Err       error
}

func (e Event) terminal() bool {
	return e.Type == EventEnd || e.Type == EventError || e.Type == EventCanceled
}

// OutputPort is a speech synthesizer with exactly one playback slot.
type OutputPort interface {
	// Speak starts u. The returned stream carries the utterance's events,
	// ending with EventEnd or EventError, and is then closed.
	Speak(ctx context.Context, u Utterance) (<-chan Event, error)
	// Cancel stops playback. It's a no-op when idle.
	Cancel()
}

// Mode selects how a recognition session behaves.
type Mode int

const (
	// ModeContinuous keeps recognizing until stopped.
	ModeContinuous Mode = iota
	// ModeSingle stops after the first final transcript.
	ModeSingle
)

// Recognition error codes.
const (
	ErrNoSpeech     = "no-speech"
	ErrAborted      = "aborted"
	ErrNetwork      = "network"
	ErrAudioCapture = "audio-capture"
	ErrNotAllowed   = "not-allowed"
)

// RecognitionError is a failed recognition session.
type RecognitionError struct {
	Code  string
	Cause error
}

func (e *RecognitionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("recognition %s: %v", e.Code, e.Cause)
	}
	return "recognition " + e.Code
}

func (e *RecognitionError) Unwrap() error {
	return e.Cause
}

// Transient reports whether the error is routine (silence, an abort, a
// network hiccup) rather than something the user should see.
func (e *RecognitionError) Transient() bool {
	switch e.Code {
	case ErrNoSpeech, ErrAborted, ErrNetwork:
		return true
	default:
		return false
	}
}

// Recognition is one result from an InputPort session. Exactly one of
// Transcript or Err is meaningful.
type Recognition struct {
	Transcript string
	Final      bool
	Err        *RecognitionError
}

// InputPort is a speech recognizer.
type InputPort interface {
	// Listen starts a recognition session. The stream is closed when the
	// session ends, either on its own or because ctx was cancelled. A
	// session is never restarted; call Listen again for a new one.
	Listen(ctx context.Context, mode Mode) (<-chan Recognition, error)
}
