package audio

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Player is a Sink on the system audio device.
type Player struct {
	ctx *oto.Context
}

var _ Sink = (*Player)(nil)

// NewPlayer opens the audio device. Only one Player may exist per process.
func NewPlayer() (*Player, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready
	return &Player{ctx: ctx}, nil
}

// Play implements Sink.
func (p *Player) Play(pcm []byte) (Stream, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyText
	}

	// oto reads from the buffer during playback; keep our own copy alive.
	data := make([]byte, len(pcm))
	copy(data, pcm)

	src := &countingReader{r: bytes.NewReader(data)}
	s := &otoStream{
		player: p.ctx.NewPlayer(src),
		src:    src,
		done:   make(chan struct{}),
		data:   data,
	}
	s.player.Play()
	go s.watch()
	return s, nil
}

type countingReader struct {
	r    *bytes.Reader
	read atomic.Int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.read.Add(int64(n))
	return n, err
}

type otoStream struct {
	player *oto.Player
	src    *countingReader
	data   []byte

	done      chan struct{}
	closeOnce sync.Once
}

func (s *otoStream) Position() time.Duration {
	heard := s.src.read.Load() - int64(s.player.BufferedSize())
	if heard < 0 {
		heard = 0
	}
	return time.Duration(heard) * time.Second / bytesPerSecond
}

func (s *otoStream) Done() <-chan struct{} { return s.done }

func (s *otoStream) Close() {
	s.closeOnce.Do(func() {
		s.player.Pause()
		_ = s.player.Close()
		close(s.done)
	})
}

func (s *otoStream) watch() {
	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()
	for range t.C {
		select {
		case <-s.done:
			return
		default:
		}
		if !s.player.IsPlaying() {
			s.Close()
			return
		}
	}
}
