package progress

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeRecorder struct {
	mu         sync.Mutex
	saved      []Progress
	activities []Activity
}

func (f *fakeRecorder) SaveProgress(_ context.Context, p Progress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, p)
	return nil
}

func (f *fakeRecorder) LogActivity(_ context.Context, a Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = append(f.activities, a)
	return nil
}

func (f *fakeRecorder) snapshot() ([]Progress, []Activity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Progress(nil), f.saved...), append([]Activity(nil), f.activities...)
}

func day(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestStreak(t *testing.T) {
	now := day(2026, 3, 10, 15)

	tests := []struct {
		name string
		days []time.Time
		want int
	}{
		{"none", nil, 0},
		{"today only", []time.Time{day(2026, 3, 10, 9)}, 1},
		{"yesterday keeps streak", []time.Time{day(2026, 3, 9, 9), day(2026, 3, 8, 9)}, 2},
		{"broken", []time.Time{day(2026, 3, 7, 9), day(2026, 3, 6, 9)}, 0},
		{"gap", []time.Time{day(2026, 3, 10, 1), day(2026, 3, 9, 1), day(2026, 3, 7, 1)}, 2},
		{"duplicates", []time.Time{day(2026, 3, 10, 1), day(2026, 3, 10, 8), day(2026, 3, 9, 1)}, 2},
		{"month boundary", []time.Time{
			day(2026, 3, 2, 1), day(2026, 3, 1, 1), day(2026, 2, 28, 1), day(2026, 2, 27, 1),
		}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Streak(tc.days, now); got != tc.want {
				t.Errorf("Streak() = %d, want %d", got, tc.want)
			}
		})
	}

	across := day(2026, 3, 2, 12)
	days := []time.Time{day(2026, 3, 2, 1), day(2026, 3, 1, 1), day(2026, 2, 28, 1)}
	if got := Streak(days, across); got != 3 {
		t.Errorf("Streak across months = %d, want 3", got)
	}
}

func TestSummarize(t *testing.T) {
	rows := []Progress{
		{PDFName: "a.pdf", PagesRead: 4},
		{PDFName: "b.pdf", PagesRead: 9},
	}
	st := Summarize(rows, []time.Time{day(2026, 3, 10, 1)}, day(2026, 3, 10, 12))
	if st.Documents != 2 || st.PagesRead != 13 || st.Streak != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestTrackerDebounces(t *testing.T) {
	rec := &fakeRecorder{}
	tr := NewTracker(rec, "user-1", 30*time.Millisecond)

	tr.Track("notes.pdf", 3, 12)
	tr.Track("notes.pdf", 6, 12)
	tr.Track("notes.pdf", 9, 12)

	waitFor(t, func() bool {
		saved, acts := rec.snapshot()
		return len(saved) == 1 && len(acts) == 1
	})

	time.Sleep(60 * time.Millisecond)
	saved, acts := rec.snapshot()
	if len(saved) != 1 {
		t.Fatalf("expected a single write, got %d", len(saved))
	}
	p := saved[0]
	if p.UserID != "user-1" || p.PDFName != "notes.pdf" || p.LastReadPage != 9 || p.PagesRead != 9 || p.TotalPages != 12 {
		t.Errorf("unexpected progress: %+v", p)
	}
	if p.LastReadAt.IsZero() {
		t.Error("expected last read time to be set")
	}
	if acts[0].ActivityType != ActivityLecture || acts[0].FileName != "notes.pdf" || acts[0].SessionID != tr.SessionID() {
		t.Errorf("unexpected activity: %+v", acts[0])
	}
}

func TestTrackerFlush(t *testing.T) {
	rec := &fakeRecorder{}
	tr := NewTracker(rec, "u", time.Hour)

	tr.Flush()
	tr.Track("a.pdf", 3, 3)
	tr.Flush()

	saved, _ := rec.snapshot()
	if len(saved) != 1 || saved[0].PDFName != "a.pdf" {
		t.Fatalf("unexpected writes: %+v", saved)
	}

	tr.Flush()
	saved, _ = rec.snapshot()
	if len(saved) != 1 {
		t.Errorf("flush without pending progress wrote again")
	}
}
