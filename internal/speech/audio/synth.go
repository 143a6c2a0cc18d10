package audio

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ailearninghub/hub/internal/kv"
)

// PCM format shared by every engine and the player.
const (
	SampleRate     = 44100
	bytesPerSecond = SampleRate * 2
)

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = errors.New("text cannot be empty")

// Synthesizer turns text into PCM audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, rate float64) ([]byte, error)
	Name() string
}

// Duration returns the playing time of pcm.
func Duration(pcm []byte) time.Duration {
	return time.Duration(len(pcm)) * time.Second / bytesPerSecond
}

// Cached wraps a Synthesizer with a key-value store so repeated text is
// synthesized once.
type Cached struct {
	next  Synthesizer
	store kv.Store
}

// NewCached returns next backed by store.
func NewCached(next Synthesizer, store kv.Store) *Cached {
	return &Cached{next: next, store: store}
}

// Name implements Synthesizer.
func (c *Cached) Name() string { return c.next.Name() }

// Synthesize implements Synthesizer.
func (c *Cached) Synthesize(ctx context.Context, text string, rate float64) ([]byte, error) {
	key := CacheKey(c.next.Name(), text, rate)
	if pcm, ok, err := c.store.Get(key); err != nil {
		log.Warn("audio cache read failed", "err", err)
	} else if ok {
		log.Debug("audio cache hit", "engine", c.next.Name(), "bytes", len(pcm))
		return pcm, nil
	}

	pcm, err := c.next.Synthesize(ctx, text, rate)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(key, pcm); err != nil {
		log.Warn("audio cache write failed", "err", err)
	}
	return pcm, nil
}

// CacheKey identifies the audio of text spoken by engine at rate.
func CacheKey(engine, text string, rate float64) string {
	h := sha256.New()
	h.Write([]byte(engine))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(rate, 'f', 2, 64)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return "tts:" + hex.EncodeToString(h.Sum(nil))
}

// run executes name with stdin and returns its stdout. The process gets
// an interrupt when ctx ends and is killed shortly after.
func run(ctx context.Context, timeout time.Duration, stdin []byte, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 100 * time.Millisecond

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%s produced no output, stderr: %s", name, stderr.String())
	}
	return stdout.Bytes(), nil
}
