package cartesia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
)

// SampleRate is the capture rate sent to the recognizer.
const SampleRate = 16000

// Microphone captures 16-bit little-endian mono PCM at SampleRate.
type Microphone interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// CommandMic captures audio from an external command writing raw PCM to
// stdout, ffmpeg by default.
type CommandMic struct {
	Command string
}

// DefaultMicCommand returns the ffmpeg capture command for this platform.
func DefaultMicCommand() string {
	var input string
	switch runtime.GOOS {
	case "darwin":
		input = "-f avfoundation -i :0"
	case "windows":
		input = "-f dshow -i audio=default"
	default:
		input = "-f pulse -i default"
	}
	return fmt.Sprintf("ffmpeg -hide_banner -loglevel error %s -ac 1 -ar %d -f s16le pipe:1", input, SampleRate)
}

// Open implements Microphone.
func (m CommandMic) Open(ctx context.Context) (io.ReadCloser, error) {
	line := m.Command
	if line == "" {
		line = DefaultMicCommand()
	}
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil, errors.New("empty microphone command")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("microphone pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}
	return &capture{ReadCloser: stdout, cmd: cmd}, nil
}

type capture struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (c *capture) Close() error {
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	_ = c.cmd.Wait()
	return nil
}
