package audio

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultWordsPerMinute is the reading pace of Silence at rate 1.
const DefaultWordsPerMinute = 160

// Silence is a Synthesizer that produces silent audio as long as the text
// would take to read aloud. Paired with Mute it keeps word highlighting
// working on machines without speech tools or an audio device.
type Silence struct {
	WordsPerMinute int
}

// Name implements Synthesizer.
func (Silence) Name() string { return "silence" }

// Synthesize implements Synthesizer.
func (s Silence) Synthesize(_ context.Context, text string, rate float64) ([]byte, error) {
	words := len(strings.Fields(text))
	if words == 0 {
		return nil, ErrEmptyText
	}
	wpm := float64(s.WordsPerMinute)
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	if rate > 0 {
		wpm *= rate
	}
	d := time.Duration(float64(words) / wpm * float64(time.Minute))
	n := int(d.Seconds() * bytesPerSecond)
	return make([]byte, n&^1), nil
}

// Mute is a Sink that plays nothing in real time.
type Mute struct{}

var _ Sink = Mute{}

// Play implements Sink.
func (Mute) Play(pcm []byte) (Stream, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyText
	}
	s := &muteStream{start: time.Now(), length: Duration(pcm), done: make(chan struct{})}
	time.AfterFunc(s.length, s.Close)
	return s, nil
}

type muteStream struct {
	start  time.Time
	length time.Duration
	once   sync.Once
	done   chan struct{}
}

func (s *muteStream) Position() time.Duration { return min(time.Since(s.start), s.length) }
func (s *muteStream) Done() <-chan struct{}   { return s.done }
func (s *muteStream) Close()                  { s.once.Do(func() { close(s.done) }) }
