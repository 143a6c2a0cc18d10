package audio

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ailearninghub/hub/internal/kv"
	"github.com/ailearninghub/hub/internal/speech"
)

func TestMarks(t *testing.T) {
	marks := Marks("ab  cd e", 9*time.Second)
	// weights: "ab"=3, "cd"=3, "e"=2; total 8
	want := []Mark{
		{At: 0, CharIndex: 0},
		{At: 9 * time.Second * 3 / 8, CharIndex: 4},
		{At: 9 * time.Second * 6 / 8, CharIndex: 7},
	}
	if !slices.Equal(marks, want) {
		t.Errorf("Marks() = %v, want %v", marks, want)
	}

	if got := Marks("   ", time.Second); got != nil {
		t.Errorf("expected no marks for blank text, got %v", got)
	}
}

func TestMarksMultibyte(t *testing.T) {
	marks := Marks("héllo wörld", time.Second)
	if len(marks) != 2 || marks[1].CharIndex != strings.Index("héllo wörld", "w") {
		t.Errorf("unexpected marks %v", marks)
	}
}

func TestUpsample2x(t *testing.T) {
	got := upsample2x([]byte{1, 2, 3, 4, 5})
	want := []byte{1, 2, 1, 2, 3, 4, 3, 4}
	if !slices.Equal(got, want) {
		t.Errorf("upsample2x() = %v, want %v", got, want)
	}
}

func TestDuration(t *testing.T) {
	if d := Duration(make([]byte, bytesPerSecond/2)); d != 500*time.Millisecond {
		t.Errorf("Duration() = %s", d)
	}
}

func TestFFmpegArgs(t *testing.T) {
	if args := strings.Join(ffmpegArgs(1), " "); strings.Contains(args, "atempo") {
		t.Errorf("unexpected tempo filter: %s", args)
	}
	if args := strings.Join(ffmpegArgs(4), " "); !strings.Contains(args, "atempo=2.00") {
		t.Errorf("expected clamped tempo: %s", args)
	}
}

type fakeSynth struct {
	calls atomic.Int32
	err   error
	block bool
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(ctx context.Context, text string, _ float64) ([]byte, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return make([]byte, len(text)*bytesPerSecond/100), nil
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("gtts-en", "hello", 1.05)
	if a != CacheKey("gtts-en", "hello", 1.05) {
		t.Error("cache key is not stable")
	}
	for _, other := range []string{
		CacheKey("gtts-fr", "hello", 1.05),
		CacheKey("gtts-en", "hello!", 1.05),
		CacheKey("gtts-en", "hello", 1.0),
	} {
		if other == a {
			t.Errorf("cache keys collide: %s", a)
		}
	}
	if !strings.HasPrefix(a, "tts:") {
		t.Errorf("unexpected key %q", a)
	}
}

func TestCached(t *testing.T) {
	synth := &fakeSynth{}
	c := NewCached(synth, kv.NewMemory(1<<20))

	for range 3 {
		pcm, err := c.Synthesize(context.Background(), "hello", 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(pcm) == 0 {
			t.Fatal("expected audio")
		}
	}
	if n := synth.calls.Load(); n != 1 {
		t.Errorf("synthesized %d times, want 1", n)
	}

	synth.err = errors.New("offline")
	if _, err := c.Synthesize(context.Background(), "new text", 1); err == nil {
		t.Error("expected the engine error")
	}
}

type fakeSink struct {
	mu      sync.Mutex
	streams []*fakeStream
	err     error
}

func (f *fakeSink) Play(pcm []byte) (Stream, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeStream{done: make(chan struct{})}
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeSink) last() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

type fakeStream struct {
	pos    atomic.Int64
	done   chan struct{}
	once   sync.Once
	closed atomic.Bool
}

func (s *fakeStream) Position() time.Duration { return time.Duration(s.pos.Load()) }
func (s *fakeStream) Done() <-chan struct{}   { return s.done }
func (s *fakeStream) Close()                  { s.closed.Store(true); s.finish() }
func (s *fakeStream) finish()                 { s.once.Do(func() { close(s.done) }) }

func collect(t *testing.T, events <-chan speech.Event) []speech.Event {
	t.Helper()
	var out []speech.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("stream not closed, got %v", out)
		}
	}
}

func waitStream(t *testing.T, sink *fakeSink) *fakeStream {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := sink.last(); s != nil {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("playback never started")
	return nil
}

func TestOutputPlaysWithBoundaries(t *testing.T) {
	sink := &fakeSink{}
	out := NewOutput(&fakeSynth{}, sink)
	out.tick = time.Millisecond

	events, err := out.Speak(context.Background(), speech.Utterance{Text: "one two three", Rate: 1})
	if err != nil {
		t.Fatal(err)
	}
	s := waitStream(t, sink)
	s.pos.Store(int64(time.Hour))
	time.Sleep(10 * time.Millisecond)
	s.finish()

	got := collect(t, events)
	var types []speech.EventType
	var idx []int
	for _, ev := range got {
		types = append(types, ev.Type)
		if ev.Type == speech.EventBoundary {
			idx = append(idx, ev.CharIndex)
		}
	}
	if types[0] != speech.EventStart || types[len(types)-1] != speech.EventEnd {
		t.Errorf("unexpected event order %v", types)
	}
	if !slices.Equal(idx, []int{0, 4, 8}) {
		t.Errorf("boundaries = %v", idx)
	}
}

func TestOutputCancel(t *testing.T) {
	sink := &fakeSink{}
	out := NewOutput(&fakeSynth{}, sink)

	events, err := out.Speak(context.Background(), speech.Utterance{Text: "a long lecture"})
	if err != nil {
		t.Fatal(err)
	}
	s := waitStream(t, sink)
	out.Cancel()

	got := collect(t, events)
	if got[len(got)-1].Type != speech.EventEnd {
		t.Errorf("expected end after cancel, got %v", got)
	}
	if !s.closed.Load() {
		t.Error("expected playback to be closed")
	}
}

func TestOutputCancelDuringSynthesis(t *testing.T) {
	out := NewOutput(&fakeSynth{block: true}, &fakeSink{})

	events, err := out.Speak(context.Background(), speech.Utterance{Text: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	out.Cancel()

	got := collect(t, events)
	if len(got) != 1 || got[0].Type != speech.EventEnd {
		t.Errorf("unexpected events %v", got)
	}
}

func TestOutputErrors(t *testing.T) {
	if _, err := NewOutput(&fakeSynth{}, &fakeSink{}).Speak(context.Background(), speech.Utterance{Text: " "}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}

	boom := errors.New("boom")
	for name, out := range map[string]*Output{
		"synth": NewOutput(&fakeSynth{err: boom}, &fakeSink{}),
		"sink":  NewOutput(&fakeSynth{}, &fakeSink{err: boom}),
	} {
		t.Run(name, func(t *testing.T) {
			events, err := out.Speak(context.Background(), speech.Utterance{Text: "hi"})
			if err != nil {
				t.Fatal(err)
			}
			got := collect(t, events)
			if len(got) != 1 || got[0].Type != speech.EventError || !errors.Is(got[0].Err, boom) {
				t.Errorf("unexpected events %v", got)
			}
		})
	}
}

func TestSilence(t *testing.T) {
	pcm, err := Silence{WordsPerMinute: 60}.Synthesize(context.Background(), "one two", 1)
	if err != nil {
		t.Fatal(err)
	}
	if d := Duration(pcm); d < 1990*time.Millisecond || d > 2*time.Second {
		t.Errorf("expected about two seconds of silence, got %s", d)
	}

	fast, _ := Silence{WordsPerMinute: 60}.Synthesize(context.Background(), "one two", 2)
	if Duration(fast) >= Duration(pcm) {
		t.Error("a higher rate should shorten the audio")
	}

	if _, err := (Silence{}).Synthesize(context.Background(), "  ", 1); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestMuteStream(t *testing.T) {
	pcm := make([]byte, bytesPerSecond/20) // 50ms
	s, err := Mute{}.Play(pcm)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("mute stream never finished")
	}
	if s.Position() != Duration(pcm) {
		t.Errorf("position %s, want %s", s.Position(), Duration(pcm))
	}
	s.Close() // idempotent

	if _, err := (Mute{}).Play(nil); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}
