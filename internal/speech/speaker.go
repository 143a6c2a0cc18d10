package speech

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// Playback is media that plays only while speech is audible, such as an
// instructor avatar.
type Playback interface {
	Play()
	Pause()
}

// Speaker speaks text on a shared Channel and tracks the word currently
// being spoken. Several Speakers may share one Channel; the most recent
// Speak wins.
type Speaker struct {
	ch       *Channel
	rate     float64
	pitch    float64
	markdown bool
	playback Playback
	onWord   func(int)

	// speakMu keeps token order and channel order the same.
	speakMu sync.Mutex

	mu       sync.Mutex
	token    uint64 // bumped on every Speak and Stop
	id       uint64 // channel utterance id of the current token
	text     string
	word     int
	speaking bool
}

// Option configures a Speaker.
type Option func(*Speaker)

// WithPlayback keeps p playing while this speaker is audible.
func WithPlayback(p Playback) Option {
	return func(s *Speaker) { s.playback = p }
}

// WithVoice overrides the default rate and pitch.
func WithVoice(rate, pitch float64) Option {
	return func(s *Speaker) {
		s.rate = rate
		s.pitch = pitch
	}
}

// WithMarkdown makes Speak convert its input from markdown to plain text
// first. Word indexes refer to the plain text, see Text.
func WithMarkdown() Option {
	return func(s *Speaker) { s.markdown = true }
}

// WithWordListener registers fn to be called whenever the word index
// changes, including the reset to -1.
func WithWordListener(fn func(int)) Option {
	return func(s *Speaker) { s.onWord = fn }
}

// NewSpeaker returns a Speaker on ch.
func NewSpeaker(ch *Channel, opts ...Option) *Speaker {
	s := &Speaker{
		ch:    ch,
		rate:  DefaultRate,
		pitch: DefaultPitch,
		word:  -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Speak cancels any current speech and speaks text. onDone, if not nil,
// runs when the utterance ends or fails. It does not run when the
// utterance is stopped or superseded. Failures are logged, never returned.
func (s *Speaker) Speak(ctx context.Context, text string, onDone func()) {
	s.speak(ctx, text, onDone, nil)
}

// SpeakInterruptible is Speak with a second callback, run when another
// speaker on the channel supersedes this utterance. Neither callback runs
// after Stop.
func (s *Speaker) SpeakInterruptible(ctx context.Context, text string, onDone, onInterrupted func()) {
	s.speak(ctx, text, onDone, onInterrupted)
}

func (s *Speaker) speak(ctx context.Context, text string, onDone, onInterrupted func()) {
	if s.markdown {
		text = PlainText(text)
	}

	s.speakMu.Lock()
	defer s.speakMu.Unlock()

	s.mu.Lock()
	s.token++
	tok := s.token
	s.text = text
	s.word = -1
	s.speaking = false
	s.mu.Unlock()

	u := Utterance{Text: text, Rate: s.rate, Pitch: s.pitch}
	id := s.ch.speakAs(ctx, s, u, func(ev Event) { s.handle(tok, ev, onDone, onInterrupted) })

	s.mu.Lock()
	stopped := s.token != tok
	if !stopped {
		s.id = id
	}
	s.mu.Unlock()

	if stopped {
		// Stop ran before the id was known
		s.ch.Stop(id)
	}
}

// Stop silences this speaker. Speech started by another Speaker on the
// same channel is left alone. Calling Stop when idle is a no-op.
func (s *Speaker) Stop() {
	s.mu.Lock()
	s.token++
	id := s.id
	s.id = 0
	wasSpeaking := s.speaking
	changed := s.word != -1
	s.speaking = false
	s.word = -1
	s.mu.Unlock()

	if id != 0 {
		s.ch.Stop(id)
	}
	if wasSpeaking && s.playback != nil {
		s.playback.Pause()
	}
	if changed {
		s.notify(-1)
	}
}

// Cancel stops whatever the channel is speaking, this speaker's or not.
func (s *Speaker) Cancel() {
	s.Stop()
	s.ch.Cancel()
}

// OnOtherSpeech registers fn to run when another speaker, or a direct
// Channel.Speak, starts an utterance on this speaker's channel. fn runs
// synchronously and must not speak.
func (s *Speaker) OnOtherSpeech(fn func()) {
	s.ch.watch(func(owner any) {
		if owner != any(s) {
			fn()
		}
	})
}

// Speaking reports whether this speaker's utterance is audible.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// WordIndex is the index of the word being spoken, or -1.
func (s *Speaker) WordIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.word
}

// Text returns the text of the latest utterance as it was spoken.
func (s *Speaker) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

func (s *Speaker) handle(tok uint64, ev Event, onDone, onInterrupted func()) {
	s.mu.Lock()
	if s.token != tok {
		// stale utterance of ours; Stop or a newer Speak already reset state
		s.mu.Unlock()
		return
	}

	var (
		word        = s.word
		play        bool
		pause       bool
		done        bool
		interrupted bool
		changed     bool
	)
	switch ev.Type {
	case EventStart:
		s.speaking = true
		word = 0
		play = true
	case EventBoundary:
		word = WordIndexAt(s.text, ev.CharIndex)
	case EventEnd, EventError:
		pause = s.speaking
		s.speaking = false
		s.id = 0
		word = -1
		done = true
		if ev.Type == EventError {
			log.Warn("speech failed", "error", ev.Err)
		}
	case EventCanceled:
		pause = s.speaking
		s.speaking = false
		s.id = 0
		word = -1
		interrupted = true
	}
	changed = word != s.word
	s.word = word
	s.mu.Unlock()

	if s.playback != nil {
		if play {
			s.playback.Play()
		}
		if pause {
			s.playback.Pause()
		}
	}
	if changed {
		s.notify(word)
	}
	if done && onDone != nil {
		onDone()
	}
	if interrupted && onInterrupted != nil {
		onInterrupted()
	}
}

func (s *Speaker) notify(word int) {
	if s.onWord != nil {
		s.onWord(word)
	}
}
