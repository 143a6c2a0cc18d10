package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Piper synthesizes offline with a Piper voice model. Medium voices emit
// 22050 Hz audio, which is upsampled to SampleRate.
type Piper struct {
	binary string
	model  string
	config string
}

// NewPiper returns a Piper engine. The model config defaults to the model
// path with a .json extension.
func NewPiper(binary, model string) (*Piper, error) {
	if model == "" {
		return nil, errors.New("model path is required")
	}
	if _, err := os.Stat(model); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	if binary == "" {
		binary = "piper"
	}
	config := model + ".json"
	if _, err := os.Stat(config); err != nil {
		config = strings.TrimSuffix(model, filepath.Ext(model)) + ".json"
	}
	return &Piper{binary: binary, model: model, config: config}, nil
}

// Name implements Synthesizer.
func (p *Piper) Name() string { return "piper-" + filepath.Base(p.model) }

// Synthesize implements Synthesizer.
func (p *Piper) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if speed <= 0 {
		speed = 1
	}

	raw, err := run(ctx, 60*time.Second, []byte(text), p.binary,
		"--model", p.model,
		"--config", p.config,
		"--output-raw",
		"--length-scale", fmt.Sprintf("%.2f", 1/speed),
	)
	if err != nil {
		return nil, fmt.Errorf("piper synthesis failed: %w", err)
	}
	return upsample2x(raw), nil
}

// upsample2x doubles the sample rate of 16-bit mono PCM by repeating
// every sample.
func upsample2x(pcm []byte) []byte {
	n := len(pcm) &^ 1
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i += 2 {
		out = append(out, pcm[i], pcm[i+1], pcm[i], pcm[i+1])
	}
	return out
}
