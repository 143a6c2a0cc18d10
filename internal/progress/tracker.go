package progress

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// DefaultDebounce is how long the tracker waits for navigation to settle
// before writing.
const DefaultDebounce = 2 * time.Second

// Tracker coalesces rapid page changes into a single progress write.
type Tracker struct {
	rec     Recorder
	userID  string
	session uuid.UUID
	delay   time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending *Progress
	opened  map[string]bool
}

// NewTracker returns a tracker writing to rec for userID. A delay of zero
// selects DefaultDebounce.
func NewTracker(rec Recorder, userID string, delay time.Duration) *Tracker {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Tracker{
		rec:     rec,
		userID:  userID,
		session: uuid.New(),
		delay:   delay,
		opened:  make(map[string]bool),
	}
}

// Track schedules a progress write for fileName. Calls within the debounce
// window replace the pending write. The first call per file also logs a
// lecture activity.
func (t *Tracker) Track(fileName string, lastPage, totalPages int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.opened[fileName] {
		t.opened[fileName] = true
		go t.logActivity(fileName)
	}

	t.pending = &Progress{
		UserID:       t.userID,
		PDFName:      fileName,
		LastReadPage: lastPage,
		PagesRead:    lastPage,
		TotalPages:   totalPages,
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.delay, t.Flush)
}

// Flush writes any pending progress immediately.
func (t *Tracker) Flush() {
	t.mu.Lock()
	p := t.pending
	t.pending = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()

	if p == nil {
		return
	}
	p.LastReadAt = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.rec.SaveProgress(ctx, *p); err != nil {
		log.Warn("progress not saved", "file", p.PDFName, "err", err)
	}
}

// SessionID identifies the activity of this tracker.
func (t *Tracker) SessionID() uuid.UUID { return t.session }

func (t *Tracker) logActivity(fileName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := t.rec.LogActivity(ctx, Activity{
		UserID:       t.userID,
		SessionID:    t.session,
		ActivityType: ActivityLecture,
		FileName:     fileName,
	})
	if err != nil {
		log.Warn("activity not logged", "file", fileName, "err", err)
	}
}
