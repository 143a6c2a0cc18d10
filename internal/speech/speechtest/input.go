package speechtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ailearninghub/hub/internal/speech"
)

// Input is a fake speech.InputPort. Every Listen call opens a Session
// the test can feed with transcripts and errors.
type Input struct {
	// FailListen makes Listen return an error.
	FailListen bool

	mu       sync.Mutex
	sessions []*Session
}

var _ speech.InputPort = (*Input)(nil)

// Session is one fake recognition session.
type Session struct {
	Mode speech.Mode

	mu     sync.Mutex
	ch     chan speech.Recognition
	closed bool
}

// Listen implements speech.InputPort.
func (in *Input) Listen(ctx context.Context, mode speech.Mode) (<-chan speech.Recognition, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.FailListen {
		return nil, errors.New("microphone unavailable")
	}

	s := &Session{Mode: mode, ch: make(chan speech.Recognition, 16)}
	in.sessions = append(in.sessions, s)
	go func() {
		<-ctx.Done()
		s.End()
	}()
	return s.ch, nil
}

// Sessions returns every session opened so far.
func (in *Input) Sessions() []*Session {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]*Session(nil), in.sessions...)
}

// Open returns the sessions that have not ended.
func (in *Input) Open() []*Session {
	var out []*Session
	for _, s := range in.Sessions() {
		if !s.Closed() {
			out = append(out, s)
		}
	}
	return out
}

// WaitOpen waits until exactly one session with mode is open and
// returns it.
func (in *Input) WaitOpen(mode speech.Mode, timeout time.Duration) *Session {
	var found *Session
	waitFor(timeout, func() bool {
		found = nil
		for _, s := range in.Open() {
			if s.Mode == mode {
				found = s
			}
		}
		return found != nil
	})
	return found
}

// Say delivers a final transcript. In single mode the session ends
// afterwards.
func (s *Session) Say(transcript string) {
	s.send(speech.Recognition{Transcript: transcript, Final: true})
	if s.Mode == speech.ModeSingle {
		s.End()
	}
}

// Partial delivers an interim transcript.
func (s *Session) Partial(transcript string) {
	s.send(speech.Recognition{Transcript: transcript})
}

// Fail delivers a recognition error and ends the session.
func (s *Session) Fail(code string) {
	s.send(speech.Recognition{Err: &speech.RecognitionError{Code: code}})
	s.End()
}

// End closes the session.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Closed reports whether the session ended.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) send(r speech.Recognition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.ch <- r
	}
}
