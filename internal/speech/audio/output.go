package audio

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ailearninghub/hub/internal/speech"
)

// Sink plays PCM audio.
type Sink interface {
	Play(pcm []byte) (Stream, error)
}

// Stream is one playing buffer.
type Stream interface {
	// Position is how much audio has been heard.
	Position() time.Duration
	// Done is closed when playback has finished.
	Done() <-chan struct{}
	// Close stops playback.
	Close()
}

// Output speaks utterances through a Synthesizer and a Sink. Word
// boundaries are estimated from the playback position.
type Output struct {
	synth Synthesizer
	sink  Sink
	tick  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

var _ speech.OutputPort = (*Output)(nil)

// NewOutput returns an Output.
func NewOutput(synth Synthesizer, sink Sink) *Output {
	return &Output{synth: synth, sink: sink, tick: 40 * time.Millisecond}
}

// Speak implements speech.OutputPort.
func (o *Output) Speak(ctx context.Context, u speech.Utterance) (<-chan speech.Event, error) {
	if strings.TrimSpace(u.Text) == "" {
		return nil, ErrEmptyText
	}

	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.cancel = cancel
	o.mu.Unlock()

	events := make(chan speech.Event, 16)
	go o.play(ctx, cancel, u, events)
	return events, nil
}

// Cancel implements speech.OutputPort.
func (o *Output) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *Output) play(ctx context.Context, cancel context.CancelFunc, u speech.Utterance, events chan<- speech.Event) {
	defer close(events)
	defer cancel()

	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	pcm, err := o.synth.Synthesize(ctx, u.Text, rate)
	if err != nil {
		if ctx.Err() != nil {
			events <- speech.Event{Type: speech.EventEnd}
			return
		}
		log.Error("speech synthesis failed", "engine", o.synth.Name(), "err", err)
		events <- speech.Event{Type: speech.EventError, Err: err}
		return
	}

	stream, err := o.sink.Play(pcm)
	if err != nil {
		log.Error("audio playback failed", "err", err)
		events <- speech.Event{Type: speech.EventError, Err: err}
		return
	}
	defer stream.Close()

	events <- speech.Event{Type: speech.EventStart}

	marks := Marks(u.Text, Duration(pcm))
	next := 0
	emit := func(pos time.Duration) {
		for next < len(marks) && marks[next].At <= pos {
			events <- speech.Event{Type: speech.EventBoundary, CharIndex: marks[next].CharIndex}
			next++
		}
	}

	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			events <- speech.Event{Type: speech.EventEnd}
			return
		case <-stream.Done():
			emit(Duration(pcm))
			events <- speech.Event{Type: speech.EventEnd}
			return
		case <-ticker.C:
			emit(stream.Position())
		}
	}
}
