// Package chat implements the per-chunk doubt chat: typed and spoken
// questions answered by the doubt service, and video recommendations for
// the current chunk.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ailearninghub/hub/internal/kv"
	"github.com/ailearninghub/hub/internal/remote"
	"github.com/charmbracelet/log"
)

// Fixed assistant texts.
const (
	ReadyText      = "SYSTEM READY. AWAITING QUERY."
	ServerDownText = "ERROR: Could not reach the server. Please try again."
	NoVideosText   = "No videos found for this section."
	VideoErrorText = "ERROR: Could not fetch video data."
)

var (
	// ErrBusy is returned when a request of the same kind is in flight.
	ErrBusy = errors.New("request already in progress")

	// ErrEmptyQuery is returned for blank questions.
	ErrEmptyQuery = errors.New("empty query")

	// ErrNoContext is returned when there is no chunk text to work with.
	ErrNoContext = errors.New("no lecture context")
)

// LoadedText is the greeting of a fresh chunk log.
func LoadedText(label string) string {
	return fmt.Sprintf("LOADED: %s. AWAITING QUERY.", label)
}

// ScanningText replaces the video button while recommendations load.
func ScanningText(label string) string {
	return fmt.Sprintf("SCANNING %s FOR VISUAL RESOURCES...", label)
}

// DoubtClient answers a question about a piece of lecture text.
type DoubtClient interface {
	ClearDoubt(ctx context.Context, query, contextText string) (string, error)
}

// VideoClient recommends videos for a piece of lecture text.
type VideoClient interface {
	RecommendVideos(ctx context.Context, text string) (remote.Recommendations, error)
}

// Engine owns the message log of the current chunk and persists one log
// per chunk label.
type Engine struct {
	doubt  DoubtClient
	videos VideoClient
	kv     kv.Store

	mu        sync.Mutex
	doc       string
	label     string
	context   string
	messages  []Message
	asking    string // key of the log waiting for a doubt reply
	fetching  string // key of the log waiting for videos
	listeners []func([]Message)
}

// NewEngine returns an engine with the initial greeting log.
func NewEngine(doubt DoubtClient, videos VideoClient, store kv.Store) *Engine {
	return &Engine{
		doubt:    doubt,
		videos:   videos,
		kv:       store,
		messages: []Message{AIMessage(ReadyText), ButtonMessage()},
	}
}

// OnChange registers fn to receive the log after every change.
func (e *Engine) OnChange(fn func([]Message)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Messages returns a copy of the current log.
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Message(nil), e.messages...)
}

// Label returns the label of the current chunk.
func (e *Engine) Label() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.label
}

// Context returns the text questions are answered against.
func (e *Engine) Context() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.context
}

// Busy reports whether a doubt request is in flight. Only one may be
// outstanding at a time, whichever chunk it was asked on.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.asking != ""
}

// FetchingVideos reports whether a video request is in flight.
func (e *Engine) FetchingVideos() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fetching != ""
}

// SetDocument namespaces the stored logs by document fingerprint.
func (e *Engine) SetDocument(fingerprint string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.doc = fingerprint
}

// SetChunk switches to the log of the chunk called label, loading it from
// storage or starting a fresh one.
func (e *Engine) SetChunk(label, contextText string) {
	e.mu.Lock()
	e.label = label
	e.context = contextText
	key := e.keyLocked()

	msgs, ok, err := kv.GetJSON[[]Message](e.kv, key)
	if err != nil {
		log.Warn("ignoring unreadable chat log", "key", key, "error", err)
	}
	if !ok || err != nil || len(msgs) == 0 {
		msgs = []Message{AIMessage(LoadedText(label)), ButtonMessage()}
	} else if e.asking != key {
		// a placeholder left behind by a request that never finished
		msgs = withoutLoading(msgs)
	}
	e.messages = msgs
	snap, listeners := e.snapshotLocked()
	e.mu.Unlock()

	emit(listeners, snap)
}

// Append adds m to the current log.
func (e *Engine) Append(m Message) {
	e.mu.Lock()
	e.messages = append(e.messages, m)
	e.persistLocked()
	snap, listeners := e.snapshotLocked()
	e.mu.Unlock()

	emit(listeners, snap)
}

// AppendAI adds an assistant text bubble.
func (e *Engine) AppendAI(text string) {
	e.Append(AIMessage(text))
}

// SendTyped asks a typed question. The reply (or the apology text when
// the service failed) is appended to the log and returned.
func (e *Engine) SendTyped(ctx context.Context, query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", ErrEmptyQuery
	}
	return e.ask(ctx, TextMessage(RoleUser, q), q)
}

// AskVoice asks a spoken question; the user bubble shows the transcript.
func (e *Engine) AskVoice(ctx context.Context, transcript string) (string, error) {
	t := strings.TrimSpace(transcript)
	if t == "" {
		return "", ErrEmptyQuery
	}
	return e.ask(ctx, VoiceMessage(t), t)
}

func (e *Engine) ask(ctx context.Context, userMsg Message, query string) (string, error) {
	e.mu.Lock()
	if e.asking != "" {
		e.mu.Unlock()
		return "", ErrBusy
	}
	key := e.keyLocked()
	contextText := e.context
	e.asking = key
	e.messages = append(e.messages, userMsg, LoadingMessage())
	e.persistLocked()
	snap, listeners := e.snapshotLocked()
	e.mu.Unlock()

	emit(listeners, snap)

	reply, err := e.doubt.ClearDoubt(ctx, query, contextText)
	if err != nil {
		log.Error("doubt request failed", "error", err)
		reply = ServerDownText
	}

	e.mu.Lock()
	e.asking = ""
	e.mu.Unlock()

	e.deliver(key, func(msgs []Message) []Message { return resolveLoading(msgs, reply) })
	return reply, nil
}

// FetchVideos replaces the video button with a scanning notice and
// appends the recommendations for the current chunk.
func (e *Engine) FetchVideos(ctx context.Context) error {
	e.mu.Lock()
	if e.fetching != "" {
		e.mu.Unlock()
		return ErrBusy
	}
	if strings.TrimSpace(e.context) == "" {
		e.mu.Unlock()
		return ErrNoContext
	}
	key := e.keyLocked()
	label := e.label
	contextText := e.context
	e.fetching = key
	for i, m := range e.messages {
		if m.Kind == KindButton {
			e.messages[i] = AIMessage(ScanningText(label))
		}
	}
	e.persistLocked()
	snap, listeners := e.snapshotLocked()
	e.mu.Unlock()

	emit(listeners, snap)

	recs, err := e.videos.RecommendVideos(ctx, contextText)

	var result Message
	switch {
	case err != nil:
		log.Error("video request failed", "error", err)
		result = AIMessage(VideoErrorText)
	case len(recs.Videos) == 0:
		result = AIMessage(NoVideosText)
	default:
		result = VideoMessage(recs.Videos, recs.Topics)
	}

	e.mu.Lock()
	e.fetching = ""
	e.mu.Unlock()

	e.deliver(key, func(msgs []Message) []Message { return append(msgs, result) })
	return nil
}

// deliver applies a late result to the log stored under key: the live
// log when the user is still (or again) on that chunk, the stored copy
// otherwise.
func (e *Engine) deliver(key string, apply func([]Message) []Message) {
	e.mu.Lock()
	if e.keyLocked() == key {
		e.messages = apply(e.messages)
		e.persistLocked()
		snap, listeners := e.snapshotLocked()
		e.mu.Unlock()
		emit(listeners, snap)
		return
	}
	e.mu.Unlock()

	stored, ok, err := kv.GetJSON[[]Message](e.kv, key)
	if err != nil || !ok {
		log.Warn("dropping late chat result", "key", key, "error", err)
		return
	}
	if err := kv.SetJSON(e.kv, key, apply(stored)); err != nil {
		log.Warn("chat log not persisted", "key", key, "error", err)
	}
}

func (e *Engine) keyLocked() string {
	if e.doc == "" {
		return "chat_" + e.label
	}
	return "chat_" + e.doc + "_" + e.label
}

// persistLocked saves the log unless it is still the untouched greeting.
func (e *Engine) persistLocked() {
	if len(e.messages) <= 2 {
		return
	}
	key := e.keyLocked()
	if err := kv.SetJSON(e.kv, key, e.messages); err != nil {
		log.Warn("chat log not persisted", "key", key, "error", err)
	}
}

func (e *Engine) snapshotLocked() ([]Message, []func([]Message)) {
	return append([]Message(nil), e.messages...), e.listeners
}

func emit(listeners []func([]Message), msgs []Message) {
	for _, fn := range listeners {
		fn(msgs)
	}
}
