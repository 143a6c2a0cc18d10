package speech

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// Handler receives the events of one utterance. It is never called with
// the Channel's lock held, but it must not start a new utterance
// synchronously.
type Handler func(Event)

// Channel serializes access to an OutputPort. Only one utterance is
// active at a time; speaking again cancels the active one, whose handler
// then receives a single EventCanceled and nothing else.
type Channel struct {
	port OutputPort

	// speakMu orders Cancel+Speak pairs on the port.
	speakMu sync.Mutex

	mu       sync.Mutex
	seq      uint64
	active   *utterance
	watchers []func(owner any)
}

type utterance struct {
	id      uint64
	handler Handler
	cancel  context.CancelFunc
}

// NewChannel wraps port.
func NewChannel(port OutputPort) *Channel {
	return &Channel{port: port}
}

// Speak cancels the active utterance and starts u. It returns the id of
// the new utterance.
func (c *Channel) Speak(ctx context.Context, u Utterance, h Handler) uint64 {
	return c.speakAs(ctx, nil, u, h)
}

// watch registers fn to run whenever an utterance starts. owner is the
// Speaker that started it, or nil.
func (c *Channel) watch(fn func(owner any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

func (c *Channel) speakAs(ctx context.Context, owner any, u Utterance, h Handler) uint64 {
	c.speakMu.Lock()

	uctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	prev := c.active
	c.seq++
	cur := &utterance{id: c.seq, handler: h, cancel: cancel}
	c.active = cur
	watchers := c.watchers
	c.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	c.port.Cancel()

	events, err := c.port.Speak(uctx, u)
	c.speakMu.Unlock()

	if prev != nil {
		prev.handler(Event{Type: EventCanceled})
	}
	for _, fn := range watchers {
		fn(owner)
	}

	if err != nil {
		log.Warn("speech synthesis failed to start", "error", err)
		c.dispatch(cur.id, Event{Type: EventError, Err: err})
		return cur.id
	}

	go c.pump(cur.id, events)
	return cur.id
}

// Cancel stops the active utterance, if any.
func (c *Channel) Cancel() {
	c.stop(0)
}

// Stop cancels utterance id if it is still the active one. It reports
// whether anything was stopped.
func (c *Channel) Stop(id uint64) bool {
	return c.stop(id)
}

// Active returns the id of the active utterance, or 0.
func (c *Channel) Active() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return 0
	}
	return c.active.id
}

func (c *Channel) stop(id uint64) bool {
	c.speakMu.Lock()

	c.mu.Lock()
	cur := c.active
	if cur == nil || (id != 0 && cur.id != id) {
		c.mu.Unlock()
		c.speakMu.Unlock()
		return false
	}
	c.active = nil
	c.mu.Unlock()

	cur.cancel()
	c.port.Cancel()
	c.speakMu.Unlock()

	cur.handler(Event{Type: EventCanceled})
	return true
}

func (c *Channel) pump(id uint64, events <-chan Event) {
	finished := false
	for ev := range events {
		if !c.dispatch(id, ev) {
			// superseded; drain so the port never blocks
			continue
		}
		if ev.terminal() {
			finished = true
		}
	}
	if !finished {
		// stream closed without a terminal event
		c.dispatch(id, Event{Type: EventEnd})
	}
}

// dispatch delivers ev if id is still active and reports whether it did.
func (c *Channel) dispatch(id uint64, ev Event) bool {
	c.mu.Lock()
	cur := c.active
	if cur == nil || cur.id != id {
		c.mu.Unlock()
		return false
	}
	if ev.terminal() {
		c.active = nil
	}
	c.mu.Unlock()

	if ev.terminal() {
		cur.cancel()
	}
	cur.handler(ev)
	return true
}
