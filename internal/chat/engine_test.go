package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ailearninghub/hub/internal/kv"
	"github.com/ailearninghub/hub/internal/remote"
)

type fakeDoubt struct {
	mu      sync.Mutex
	calls   []string
	reply   string
	err     error
	release chan struct{}
	started chan struct{}
}

func (f *fakeDoubt) ClearDoubt(_ context.Context, query, contextText string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query+"|"+contextText)
	release, started := f.release, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return f.reply, f.err
}

type fakeVideos struct {
	recs    remote.Recommendations
	err     error
	release chan struct{}
	started chan struct{}
}

func (f *fakeVideos) RecommendVideos(context.Context, string) (remote.Recommendations, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.recs, f.err
}

func kinds(msgs []Message) []Kind {
	out := make([]Kind, len(msgs))
	for i, m := range msgs {
		out[i] = m.Kind
	}
	return out
}

func equalKinds(t *testing.T, msgs []Message, want ...Kind) {
	t.Helper()
	got := kinds(msgs)
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", got, want)
		}
	}
}

func TestDefaultLogs(t *testing.T) {
	e := NewEngine(&fakeDoubt{}, &fakeVideos{}, kv.NewMemory(0))
	msgs := e.Messages()
	equalKinds(t, msgs, KindText, KindButton)
	if msgs[0].Text != ReadyText {
		t.Errorf("greeting = %q", msgs[0].Text)
	}

	e.SetChunk("Pages 1-3", "ctx")
	msgs = e.Messages()
	equalKinds(t, msgs, KindText, KindButton)
	if msgs[0].Text != "LOADED: Pages 1-3. AWAITING QUERY." {
		t.Errorf("greeting = %q", msgs[0].Text)
	}
}

func TestSendTypedWhileInFlight(t *testing.T) {
	doubt := &fakeDoubt{reply: "Because energy spreads.", release: make(chan struct{}), started: make(chan struct{}, 1)}
	store := kv.NewMemory(0)
	e := NewEngine(doubt, &fakeVideos{}, store)
	e.SetChunk("Pages 1-3", "entropy text")

	done := make(chan string, 1)
	go func() {
		reply, err := e.SendTyped(context.Background(), "  why?  ")
		if err != nil {
			t.Errorf("SendTyped failed: %v", err)
		}
		done <- reply
	}()
	<-doubt.started

	if !e.Busy() {
		t.Error("engine not busy during request")
	}
	equalKinds(t, e.Messages(), KindText, KindButton, KindText, KindLoading)

	if _, err := e.SendTyped(context.Background(), "another"); !errors.Is(err, ErrBusy) {
		t.Errorf("second send = %v, want ErrBusy", err)
	}
	equalKinds(t, e.Messages(), KindText, KindButton, KindText, KindLoading)

	close(doubt.release)
	if got := <-done; got != "Because energy spreads." {
		t.Errorf("reply = %q", got)
	}

	msgs := e.Messages()
	equalKinds(t, msgs, KindText, KindButton, KindText, KindText)
	if msgs[2].Role != RoleUser || msgs[2].Text != "why?" {
		t.Errorf("user message = %+v", msgs[2])
	}
	if msgs[3].Role != RoleAI || msgs[3].Text != "Because energy spreads." {
		t.Errorf("reply message = %+v", msgs[3])
	}
	if len(doubt.calls) != 1 || doubt.calls[0] != "why?|entropy text" {
		t.Errorf("calls = %v", doubt.calls)
	}
}

func TestSendTypedFailureAndEmpty(t *testing.T) {
	e := NewEngine(&fakeDoubt{err: errors.New("refused")}, &fakeVideos{}, kv.NewMemory(0))
	e.SetChunk("Page 1", "ctx")

	if _, err := e.SendTyped(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("blank query = %v", err)
	}
	if len(e.Messages()) != 2 {
		t.Fatal("blank query changed the log")
	}

	reply, err := e.SendTyped(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendTyped returned %v", err)
	}
	if reply != ServerDownText {
		t.Errorf("reply = %q", reply)
	}
	msgs := e.Messages()
	if last := msgs[len(msgs)-1]; last.Text != ServerDownText {
		t.Errorf("last message = %+v", last)
	}
	if e.Busy() {
		t.Error("engine still busy after failure")
	}
}

func TestLogsPersistPerChunk(t *testing.T) {
	store := kv.NewMemory(0)
	e := NewEngine(&fakeDoubt{reply: "A1"}, &fakeVideos{}, store)
	e.SetDocument("doc1")

	e.SetChunk("Pages 1-3", "ctx")
	if _, ok, _ := store.Get("chat_doc1_Pages 1-3"); ok {
		t.Error("untouched greeting log was persisted")
	}
	if _, err := e.SendTyped(context.Background(), "q1"); err != nil {
		t.Fatal(err)
	}

	e.SetChunk("Pages 4-6", "ctx2")
	equalKinds(t, e.Messages(), KindText, KindButton)

	e.SetChunk("Pages 1-3", "ctx")
	msgs := e.Messages()
	equalKinds(t, msgs, KindText, KindButton, KindText, KindText)
	if msgs[3].Text != "A1" {
		t.Errorf("restored reply = %q", msgs[3].Text)
	}

	// another engine over the same storage sees the same log
	other := NewEngine(&fakeDoubt{}, &fakeVideos{}, store)
	other.SetDocument("doc1")
	other.SetChunk("Pages 1-3", "ctx")
	if len(other.Messages()) != 4 {
		t.Errorf("log not shared through storage: %v", kinds(other.Messages()))
	}
}

func TestLateReplyGoesToOriginatingChunk(t *testing.T) {
	doubt := &fakeDoubt{reply: "late answer", release: make(chan struct{}), started: make(chan struct{}, 1)}
	store := kv.NewMemory(0)
	e := NewEngine(doubt, &fakeVideos{}, store)
	e.SetChunk("Pages 1-3", "ctx")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.SendTyped(context.Background(), "slow question")
	}()
	<-doubt.started

	e.SetChunk("Pages 4-6", "ctx2")
	close(doubt.release)
	<-done

	equalKinds(t, e.Messages(), KindText, KindButton)

	e.SetChunk("Pages 1-3", "ctx")
	msgs := e.Messages()
	equalKinds(t, msgs, KindText, KindButton, KindText, KindText)
	if msgs[3].Text != "late answer" {
		t.Errorf("reply = %q", msgs[3].Text)
	}
}

func TestOneDoubtCallAcrossChunks(t *testing.T) {
	doubt := &fakeDoubt{reply: "ok", release: make(chan struct{}), started: make(chan struct{}, 2)}
	e := NewEngine(doubt, &fakeVideos{}, kv.NewMemory(0))
	e.SetChunk("Pages 1-3", "ctx")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.SendTyped(context.Background(), "first")
	}()
	<-doubt.started

	e.SetChunk("Pages 4-6", "ctx2")
	if !e.Busy() {
		t.Fatal("engine should still be waiting for the first answer")
	}
	if _, err := e.SendTyped(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second question: err = %v, want ErrBusy", err)
	}
	equalKinds(t, e.Messages(), KindText, KindButton)

	close(doubt.release)
	<-done

	doubt.mu.Lock()
	calls := len(doubt.calls)
	doubt.mu.Unlock()
	if calls != 1 {
		t.Errorf("doubt calls = %d, want 1", calls)
	}
	if e.Busy() {
		t.Error("still busy after the reply")
	}
	if _, err := e.SendTyped(context.Background(), "third"); err != nil {
		t.Errorf("question after reply: %v", err)
	}
}

func TestFetchVideos(t *testing.T) {
	videos := &fakeVideos{
		recs: remote.Recommendations{
			Topics: []string{"entropy"},
			Videos: []remote.Video{{Title: "Entropy 101", URL: "https://youtu.be/x"}},
		},
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	e := NewEngine(&fakeDoubt{}, videos, kv.NewMemory(0))
	e.SetChunk("Pages 1-3", "thermo")

	done := make(chan error, 1)
	go func() { done <- e.FetchVideos(context.Background()) }()
	<-videos.started

	msgs := e.Messages()
	equalKinds(t, msgs, KindText, KindText)
	if msgs[1].Text != "SCANNING Pages 1-3 FOR VISUAL RESOURCES..." {
		t.Errorf("button replaced by %q", msgs[1].Text)
	}
	if err := e.FetchVideos(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second fetch = %v, want ErrBusy", err)
	}

	close(videos.release)
	if err := <-done; err != nil {
		t.Fatalf("FetchVideos failed: %v", err)
	}
	msgs = e.Messages()
	equalKinds(t, msgs, KindText, KindText, KindVideos)
	if msgs[2].Videos[0].URL != "https://youtu.be/x" || msgs[2].Topics[0] != "entropy" {
		t.Errorf("videos message = %+v", msgs[2])
	}
}

func TestFetchVideosOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		videos *fakeVideos
		want   string
	}{
		{"none", &fakeVideos{}, NoVideosText},
		{"error", &fakeVideos{err: errors.New("down")}, VideoErrorText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(&fakeDoubt{}, tt.videos, kv.NewMemory(0))
			e.SetChunk("Page 7", "text")
			if err := e.FetchVideos(context.Background()); err != nil {
				t.Fatal(err)
			}
			msgs := e.Messages()
			if last := msgs[len(msgs)-1]; last.Text != tt.want {
				t.Errorf("last = %q, want %q", last.Text, tt.want)
			}
		})
	}

	e := NewEngine(&fakeDoubt{}, &fakeVideos{}, kv.NewMemory(0))
	e.SetChunk("No Pages", "")
	if err := e.FetchVideos(context.Background()); !errors.Is(err, ErrNoContext) {
		t.Errorf("empty context = %v", err)
	}
}

func TestStoredLogValidation(t *testing.T) {
	store := kv.NewMemory(0)
	_ = store.Set("chat_Page 1", []byte(`[{"kind":"hologram","role":"ai"}]`))
	_ = store.Set("chat_Page 2", []byte(`[{"kind":"text","role":"ai","text":"hi"},{"kind":"video_button","role":"ai"},{"kind":"text","role":"user","text":"q"},{"kind":"loading","role":"ai"}]`))

	e := NewEngine(&fakeDoubt{}, &fakeVideos{}, store)

	e.SetChunk("Page 1", "")
	if msgs := e.Messages(); msgs[0].Text != LoadedText("Page 1") {
		t.Errorf("invalid stored log was used: %+v", msgs)
	}

	e.SetChunk("Page 2", "")
	equalKinds(t, e.Messages(), KindText, KindButton, KindText)
}

func TestOnChange(t *testing.T) {
	e := NewEngine(&fakeDoubt{reply: "ok"}, &fakeVideos{}, kv.NewMemory(0))
	var mu sync.Mutex
	var sizes []int
	e.OnChange(func(m []Message) {
		mu.Lock()
		sizes = append(sizes, len(m))
		mu.Unlock()
	})

	e.SetChunk("Page 1", "ctx")
	_, _ = e.SendTyped(context.Background(), "q")
	e.AppendAI("note")

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(sizes)
		mu.Unlock()
		if n >= 4 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []int{2, 4, 4, 5}
	if len(sizes) != len(want) {
		t.Fatalf("sizes = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("sizes = %v, want %v", sizes, want)
		}
	}
}
