package audio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// GTTS synthesizes with gtts-cli (Google Translate TTS) and converts the
// MP3 to PCM with ffmpeg.
type GTTS struct {
	language string
	limiter  *rate.Limiter
}

// NewGTTS returns a gTTS engine for language, limited to requestsPerMinute
// (50 when zero) to avoid being blocked.
func NewGTTS(language string, requestsPerMinute int) *GTTS {
	if language == "" {
		language = "en"
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 50
	}
	return &GTTS{
		language: language,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
	}
}

// Name implements Synthesizer.
func (g *GTTS) Name() string { return "gtts-" + g.language }

// Synthesize implements Synthesizer.
func (g *GTTS) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	mp3, err := run(ctx, 30*time.Second, nil, "gtts-cli", "-l", g.language, "-o", "-", text)
	if err != nil {
		return nil, fmt.Errorf("mp3 generation failed: %w", err)
	}

	pcm, err := run(ctx, 15*time.Second, mp3, "ffmpeg", ffmpegArgs(speed)...)
	if err != nil {
		return nil, fmt.Errorf("mp3 to pcm conversion failed: %w", err)
	}
	return pcm, nil
}

func ffmpegArgs(speed float64) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", fmt.Sprint(SampleRate),
		"-ac", "1",
	}
	if speed != 1.0 && speed > 0 {
		// atempo accepts 0.5 to 2.0
		speed = min(max(speed, 0.5), 2.0)
		args = append(args, "-filter:a", fmt.Sprintf("atempo=%.2f", speed))
	}
	return append(args, "pipe:1")
}
