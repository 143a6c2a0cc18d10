// Package voice implements hands-free questions: a wake phrase opens a
// short conversation in which the assistant asks for the question, sends
// it to the doubt chat and speaks the answer.
package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ailearninghub/hub/internal/chat"
	"github.com/ailearninghub/hub/internal/speech"
	"github.com/charmbracelet/log"
)

// Assistant lines.
const (
	PromptText  = "Go ahead — what's your question about this section?"
	OfflineText = "VOICE COMMAND MODULE OFFLINE."
	BusyText    = "I'm still working on your previous question."
)

// Status lines.
const (
	StatusInitializing = "Initializing..."
	StatusWake         = "Listening for keyword..."
	StatusAnswer       = "Listening for your answer..."
	StatusProcessing   = "Processing..."
	StatusSpeaking     = "Speaking..."
)

// Chat is the part of the chat engine the commander writes to.
type Chat interface {
	Append(chat.Message)
	AppendAI(text string)
	AskVoice(ctx context.Context, transcript string) (string, error)
}

// Speaker speaks the commander's lines.
type Speaker interface {
	SpeakInterruptible(ctx context.Context, text string, onDone, onInterrupted func())
	// Cancel silences the shared channel, whoever is speaking.
	Cancel()
	// OnOtherSpeech registers fn to run when someone else starts speaking
	// on the shared channel.
	OnOtherSpeech(fn func())
}

// Config tunes the commander.
type Config struct {
	Triggers []string

	// PromptDelay separates the wake phrase from the spoken prompt.
	PromptDelay time.Duration
	// RestartDelay is the pause before a recognizer that ended is
	// restarted.
	RestartDelay time.Duration
	// ListenRetries bounds the attempts to open the microphone.
	ListenRetries uint64
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	return Config{
		Triggers:      DefaultTriggers,
		PromptDelay:   300 * time.Millisecond,
		RestartDelay:  300 * time.Millisecond,
		ListenRetries: 5,
	}
}

// Snapshot is the observable commander state.
type Snapshot struct {
	Enabled bool
	State   State
	Status  string
}

// InConversation reports whether a question is being prompted for,
// captured or answered. Other speech must wait while it is.
func (s Snapshot) InConversation() bool {
	return s.Enabled && s.State != StateIdle
}

// Commander is the voice command state machine. All recognizer restarts,
// delays and retries hang off one context, so Disable stops everything.
type Commander struct {
	cfg     Config
	input   speech.InputPort
	speaker Speaker
	chat    Chat
	retry   RetryPolicy

	mu        sync.Mutex
	enabled   bool
	state     State
	status    string
	ctx       context.Context
	cancel    context.CancelFunc
	epoch     uint64 // bumped by Enable and Disable
	recGen    uint64 // identifies the live recognizer
	recCancel context.CancelFunc
	listeners []func(Snapshot)
}

// NewCommander returns a disabled commander.
func NewCommander(cfg Config, input speech.InputPort, speaker Speaker, c Chat) *Commander {
	if len(cfg.Triggers) == 0 {
		cfg.Triggers = DefaultTriggers
	}
	cmd := &Commander{
		cfg:     cfg,
		input:   input,
		speaker: speaker,
		chat:    c,
		retry:   RetryPolicy{Delay: cfg.RestartDelay, MaxRetries: cfg.ListenRetries},
	}
	speaker.OnOtherSpeech(cmd.onOtherSpeech)
	return cmd
}

// OnChange registers fn to receive a snapshot after every change.
func (c *Commander) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Snapshot returns the current state.
func (c *Commander) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Enabled: c.enabled, State: c.state, Status: c.status}
}

// Enabled reports whether voice commands are on.
func (c *Commander) Enabled() bool {
	return c.Snapshot().Enabled
}

// OnlineText announces the triggers.
func (c *Commander) OnlineText() string {
	return fmt.Sprintf("VOICE MODULE ONLINE. Trigger: %q", strings.Join(c.cfg.Triggers, " / "))
}

// IntroText is spoken when voice commands are switched on.
func (c *Commander) IntroText() string {
	return fmt.Sprintf("Voice commands active. Say %s to ask a question.", c.cfg.Triggers[0])
}

// Toggle enables or disables voice commands.
func (c *Commander) Toggle(ctx context.Context) {
	if c.Enabled() {
		c.Disable()
		return
	}
	c.Enable(ctx)
}

// Enable announces voice mode and starts listening for the wake phrase
// once the announcement has been spoken.
func (c *Commander) Enable(ctx context.Context) {
	c.mu.Lock()
	if c.enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = true
	c.epoch++
	ep := c.epoch
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.state = StateIdle
	c.status = StatusInitializing
	runCtx := c.ctx
	c.mu.Unlock()
	c.notify()

	log.Debug("voice commands enabled")
	c.chat.AppendAI(c.OnlineText())
	c.speaker.SpeakInterruptible(runCtx, c.IntroText(),
		func() { c.resume(ep) },
		func() { c.resume(ep) },
	)
}

// Disable stops recognition, speech and every pending restart.
func (c *Commander) Disable() {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = false
	c.epoch++
	c.cancel()
	c.recGen++
	c.recCancel = nil
	c.state = StateIdle
	c.status = ""
	c.mu.Unlock()

	c.speaker.Cancel()
	c.chat.AppendAI(OfflineText)
	c.notify()
	log.Debug("voice commands disabled")
}

// resume returns to wake listening.
func (c *Commander) resume(ep uint64) {
	c.mu.Lock()
	if !c.activeLocked(ep) {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.status = StatusWake
	c.mu.Unlock()
	c.notify()

	c.listen(ep, speech.ModeContinuous)
}

// listen opens a recognizer for the current state. Wake listening runs
// in continuous mode, question capture in single mode.
func (c *Commander) listen(ep uint64, mode speech.Mode) {
	c.mu.Lock()
	if !c.activeLocked(ep) {
		c.mu.Unlock()
		return
	}
	if c.recCancel != nil {
		c.recCancel()
	}
	c.recGen++
	gen := c.recGen
	rctx, rcancel := context.WithCancel(c.ctx)
	c.recCancel = rcancel
	c.mu.Unlock()

	var stream <-chan speech.Recognition
	err := c.retry.Do(rctx, func(ctx context.Context) error {
		var err error
		stream, err = c.input.Listen(ctx, mode)
		return err
	})
	if err != nil {
		if rctx.Err() == nil {
			log.Error("could not open microphone", "error", err)
			c.setStatus(ep, "Mic error: "+err.Error())
		}
		return
	}

	go c.consume(ep, gen, mode, stream)
}

func (c *Commander) consume(ep, gen uint64, mode speech.Mode, stream <-chan speech.Recognition) {
	for r := range stream {
		if r.Err != nil {
			if !r.Err.Transient() {
				log.Warn("recognition error", "code", r.Err.Code)
				c.setStatus(ep, "Mic error: "+r.Err.Code)
			}
			continue
		}
		if !r.Final || strings.TrimSpace(r.Transcript) == "" {
			continue
		}

		log.Debug("heard", "transcript", r.Transcript, "mode", mode)
		if mode == speech.ModeContinuous {
			c.onWake(ep, gen, r.Transcript)
		} else {
			c.onAnswer(ep, gen, r.Transcript)
		}
	}
	c.onRecognizerEnd(ep, gen, mode)
}

func (c *Commander) onWake(ep, gen uint64, transcript string) {
	c.mu.Lock()
	if !c.activeLocked(ep) || gen != c.recGen || c.state != StateIdle {
		c.mu.Unlock()
		return
	}
	if !Matches(transcript, c.cfg.Triggers) {
		c.mu.Unlock()
		return
	}
	c.stopRecognizerLocked()
	c.transitionLocked(StateWakeDetected)
	c.status = StatusAnswer
	ctx := c.ctx
	c.mu.Unlock()
	c.notify()

	c.chat.Append(chat.VoiceMessage(transcript))

	go func() {
		if !sleep(ctx, c.cfg.PromptDelay) || !c.isActive(ep) {
			return
		}
		c.chat.AppendAI(PromptText)
		c.speaker.SpeakInterruptible(ctx, PromptText,
			func() { c.onPromptDone(ep) },
			func() { c.resume(ep) },
		)
	}()
}

func (c *Commander) onPromptDone(ep uint64) {
	c.mu.Lock()
	if !c.activeLocked(ep) || c.state != StateWakeDetected {
		c.mu.Unlock()
		return
	}
	c.transitionLocked(StateListening)
	c.mu.Unlock()
	c.notify()

	c.listen(ep, speech.ModeSingle)
}

func (c *Commander) onAnswer(ep, gen uint64, transcript string) {
	c.mu.Lock()
	if !c.activeLocked(ep) || gen != c.recGen || c.state != StateListening {
		c.mu.Unlock()
		return
	}
	c.stopRecognizerLocked()
	c.transitionLocked(StateProcessing)
	c.status = StatusProcessing
	ctx := c.ctx
	c.mu.Unlock()
	c.notify()

	reply, err := c.chat.AskVoice(ctx, transcript)
	if err != nil {
		log.Warn("voice question not sent", "error", err)
		reply = BusyText
	}

	if !c.isActive(ep) {
		return
	}
	c.setStatus(ep, StatusSpeaking)
	c.speaker.SpeakInterruptible(ctx, reply,
		func() { c.resume(ep) },
		func() { c.resume(ep) },
	)
}

// onOtherSpeech abandons question capture when other speech starts, so
// the microphone never records the lecture as the question.
func (c *Commander) onOtherSpeech() {
	c.mu.Lock()
	if !c.enabled || c.state != StateListening {
		c.mu.Unlock()
		return
	}
	c.stopRecognizerLocked()
	c.transitionLocked(StateIdle)
	c.status = StatusWake
	ep := c.epoch
	c.mu.Unlock()
	c.notify()

	log.Debug("question capture abandoned for other speech")
	go c.resume(ep)
}

// onRecognizerEnd restarts a recognizer that stopped on its own.
func (c *Commander) onRecognizerEnd(ep, gen uint64, mode speech.Mode) {
	c.mu.Lock()
	if !c.activeLocked(ep) || gen != c.recGen {
		c.mu.Unlock()
		return
	}
	c.recCancel = nil
	ctx := c.ctx
	c.mu.Unlock()

	go func() {
		if !sleep(ctx, c.cfg.RestartDelay) {
			return
		}
		c.mu.Lock()
		current := c.activeLocked(ep) && gen == c.recGen && c.recCancel == nil
		c.mu.Unlock()
		if current {
			c.listen(ep, mode)
		}
	}()
}

func (c *Commander) stopRecognizerLocked() {
	if c.recCancel != nil {
		c.recCancel()
		c.recCancel = nil
	}
	c.recGen++
}

func (c *Commander) transitionLocked(to State) {
	if !canTransition(c.state, to) {
		log.Warn("unexpected voice transition", "from", c.state, "to", to)
	}
	c.state = to
}

func (c *Commander) activeLocked(ep uint64) bool {
	return c.enabled && c.epoch == ep
}

func (c *Commander) isActive(ep uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked(ep)
}

func (c *Commander) setStatus(ep uint64, status string) {
	c.mu.Lock()
	if !c.activeLocked(ep) {
		c.mu.Unlock()
		return
	}
	c.status = status
	c.mu.Unlock()
	c.notify()
}

func (c *Commander) notify() {
	c.mu.Lock()
	snap := Snapshot{Enabled: c.enabled, State: c.state, Status: c.status}
	listeners := c.listeners
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
