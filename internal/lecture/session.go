// Package lecture turns a paged document into a navigable series of
// AI-summarized lecture segments.
package lecture

import (
	"context"
	"errors"
	"sync"

	"github.com/ailearninghub/hub/internal/pages"
	"github.com/charmbracelet/log"
)

// ErrBusy is returned when navigation is attempted while a chunk loads.
var ErrBusy = errors.New("a chunk is still loading")

// Stopper silences lecture speech before a new chunk is fetched.
type Stopper interface {
	Stop()
}

// ProgressTracker is told which pages the reader has reached.
type ProgressTracker interface {
	Track(fileName string, lastPage, totalPages int)
}

// Snapshot is the observable session state.
type Snapshot struct {
	Index  int
	Total  int
	Label  string
	Chunk  pages.Chunk
	Status StateType
	Err    error

	// Content is the summary of Chunk once Status is StateIdle.
	Content CachedChunk
	Loaded  bool
}

// Session is the lecture session controller: it owns the current chunk
// index and the load state, and drives the ChunkStore.
type Session struct {
	speaker  Stopper
	progress ProgressTracker

	mu        sync.Mutex
	store     *ChunkStore
	sm        *stateMachine
	index     int
	content   CachedChunk
	loaded    bool // content belongs to index
	err       error
	gen       uint64
	listeners []func(Snapshot)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithProgress reports every displayed chunk to t.
func WithProgress(t ProgressTracker) SessionOption {
	return func(s *Session) { s.progress = t }
}

// NewSession returns a session positioned on the first chunk. Nothing is
// fetched until Load is called.
func NewSession(store *ChunkStore, speaker Stopper, opts ...SessionOption) *Session {
	s := &Session{
		store:   store,
		speaker: speaker,
		sm:      newStateMachine(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers fn to receive a snapshot after every state change.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Load fetches the current chunk. It is used for the first visit.
func (s *Session) Load(ctx context.Context) error {
	return s.navigate(ctx, navReload, 0)
}

// GoNext moves to the following chunk. It does nothing on the last one.
func (s *Session) GoNext(ctx context.Context) error {
	return s.navigate(ctx, navStep, 1)
}

// GoPrev moves to the preceding chunk. It does nothing on the first one.
func (s *Session) GoPrev(ctx context.Context) error {
	return s.navigate(ctx, navStep, -1)
}

// JumpTo moves to chunk i, clamped to the valid range.
func (s *Session) JumpTo(ctx context.Context, i int) error {
	return s.navigate(ctx, navJump, i)
}

// Retry re-attempts the current chunk after a failed load.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	errored := s.sm.current == StateError
	s.mu.Unlock()
	if !errored {
		return nil
	}
	return s.navigate(ctx, navReload, 0)
}

// SetStore switches the session to another document, back on its first
// chunk. A load still in flight for the old document is discarded.
func (s *Session) SetStore(store *ChunkStore) {
	s.speaker.Stop()

	s.mu.Lock()
	s.store = store
	s.index = 0
	s.gen++
	s.loaded = false
	s.content = CachedChunk{}
	s.err = nil
	s.sm.reset()
	snap := s.snapshotLocked()
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, snap)
}

// Store returns the ChunkStore in use.
func (s *Session) Store() *ChunkStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

type navKind int

const (
	navReload navKind = iota // current chunk
	navStep                  // relative, no-op past either end
	navJump                  // absolute, clamped
)

func (s *Session) navigate(ctx context.Context, kind navKind, arg int) error {
	s.mu.Lock()
	if s.sm.current == StateLoading {
		s.mu.Unlock()
		return ErrBusy
	}

	total := s.store.Document().TotalChunks()
	next := s.index
	switch kind {
	case navStep:
		next = s.index + arg
		if next < 0 || next >= total {
			s.mu.Unlock()
			return nil
		}
	case navJump:
		next = max(0, min(arg, total-1))
		if next == s.index && s.loaded && s.sm.current == StateIdle {
			s.mu.Unlock()
			return nil
		}
	}

	s.index = next
	s.gen++
	gen := s.gen
	store := s.store
	s.sm.transition(StateLoading)
	s.err = nil
	s.loaded = false
	snap := s.snapshotLocked()
	listeners := s.listeners
	s.mu.Unlock()

	// nothing from the previous chunk may keep talking over the new one
	s.speaker.Stop()
	notify(listeners, snap)

	c, err := store.LoadOrFetch(ctx, next)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		log.Debug("discarding stale chunk result", "chunk", next)
		return nil
	}
	if err != nil {
		s.sm.transition(StateError)
		s.err = err
	} else {
		s.sm.transition(StateIdle)
		s.content = c
		s.loaded = true
	}
	snap = s.snapshotLocked()
	listeners = s.listeners
	s.mu.Unlock()

	notify(listeners, snap)

	if err == nil && s.progress != nil && !c.NoData {
		doc := store.Document()
		s.progress.Track(doc.FileName, snap.Chunk.LastPage(), len(doc.Pages))
	}
	return err
}

func (s *Session) snapshotLocked() Snapshot {
	doc := s.store.Document()
	chunk := pages.GetChunk(doc.Pages, s.index)
	return Snapshot{
		Index:   s.index,
		Total:   doc.TotalChunks(),
		Label:   chunk.Label(),
		Chunk:   chunk,
		Status:  s.sm.current,
		Err:     s.err,
		Content: s.content,
		Loaded:  s.loaded,
	}
}

func notify(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}
