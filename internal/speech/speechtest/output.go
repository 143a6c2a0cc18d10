// Package speechtest provides scriptable speech ports for tests.
package speechtest

import (
	"context"
	"sync"
	"time"

	"github.com/ailearninghub/hub/internal/speech"
)

// Output is a fake speech.OutputPort. With AutoFinish set every utterance
// starts and ends immediately; otherwise the test drives it with Start,
// Boundary, Finish and Fail.
type Output struct {
	AutoFinish bool

	mu      sync.Mutex
	spoken  []speech.Utterance
	cur     chan speech.Event
	cancels int
}

var _ speech.OutputPort = (*Output)(nil)

// Speak implements speech.OutputPort.
func (o *Output) Speak(_ context.Context, u speech.Utterance) (<-chan speech.Event, error) {
	ch := make(chan speech.Event, 64)

	o.mu.Lock()
	defer o.mu.Unlock()

	o.spoken = append(o.spoken, u)
	if o.AutoFinish {
		ch <- speech.Event{Type: speech.EventStart}
		ch <- speech.Event{Type: speech.EventEnd}
		close(ch)
		return ch, nil
	}
	o.cur = ch
	return ch, nil
}

// Cancel implements speech.OutputPort. Like a browser, the interrupted
// utterance still reports an end event.
func (o *Output) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cancels++
	o.finish(speech.Event{Type: speech.EventEnd})
}

// Start emits the start event of the current utterance.
func (o *Output) Start() { o.emit(speech.Event{Type: speech.EventStart}) }

// Boundary emits a word boundary at charIndex.
func (o *Output) Boundary(charIndex int) {
	o.emit(speech.Event{Type: speech.EventBoundary, CharIndex: charIndex})
}

// Finish ends the current utterance normally.
func (o *Output) Finish() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finish(speech.Event{Type: speech.EventEnd})
}

// Fail ends the current utterance with err.
func (o *Output) Fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finish(speech.Event{Type: speech.EventError, Err: err})
}

// Spoken returns the texts spoken so far.
func (o *Output) Spoken() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]string, len(o.spoken))
	for i, u := range o.spoken {
		out[i] = u.Text
	}
	return out
}

// LastUtterance returns the most recent utterance.
func (o *Output) LastUtterance() (speech.Utterance, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.spoken) == 0 {
		return speech.Utterance{}, false
	}
	return o.spoken[len(o.spoken)-1], true
}

// Cancels counts Cancel calls.
func (o *Output) Cancels() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancels
}

// WaitSpoken blocks until n utterances were requested or timeout passes.
func (o *Output) WaitSpoken(n int, timeout time.Duration) bool {
	return waitFor(timeout, func() bool { return len(o.Spoken()) >= n })
}

func (o *Output) emit(ev speech.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cur != nil {
		o.cur <- ev
	}
}

func (o *Output) finish(ev speech.Event) {
	if o.cur == nil {
		return
	}
	o.cur <- ev
	close(o.cur)
	o.cur = nil
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

// Eventually polls cond until it holds or timeout passes.
func Eventually(timeout time.Duration, cond func() bool) bool {
	return waitFor(timeout, cond)
}
