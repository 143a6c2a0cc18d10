// Package cartesia implements speech.InputPort with Cartesia's streaming
// speech-to-text websocket.
package cartesia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/ailearninghub/hub/internal/speech"
)

const (
	// DefaultURL is Cartesia's streaming STT endpoint.
	DefaultURL = "wss://api.cartesia.ai/stt/websocket"
	apiVersion = "2025-04-16"
	model      = "ink-whisper"
)

// Recognizer listens on a Microphone and streams it to Cartesia.
type Recognizer struct {
	APIKey   string
	URL      string
	Language string
	Mic      Microphone

	// NoSpeechTimeout ends a single-shot session that heard nothing.
	NoSpeechTimeout time.Duration
}

var _ speech.InputPort = (*Recognizer)(nil)

// New returns a Recognizer with the default endpoint and microphone.
func New(apiKey, language, micCommand string) *Recognizer {
	return &Recognizer{
		APIKey:          apiKey,
		URL:             DefaultURL,
		Language:        language,
		Mic:             CommandMic{Command: micCommand},
		NoSpeechTimeout: 8 * time.Second,
	}
}

// Listen implements speech.InputPort.
func (r *Recognizer) Listen(ctx context.Context, mode speech.Mode) (<-chan speech.Recognition, error) {
	conn, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	mic, err := r.Mic.Open(ctx)
	if err != nil {
		cancel()
		_ = conn.Close()
		return nil, &speech.RecognitionError{Code: speech.ErrAudioCapture, Cause: err}
	}

	s := &session{
		conn:     conn,
		mic:      mic,
		mode:     mode,
		out:      make(chan speech.Recognition, 8),
		noSpeech: r.NoSpeechTimeout,
	}
	go s.run(ctx, cancel)
	return s.out, nil
}

func (r *Recognizer) dial(ctx context.Context) (*websocket.Conn, error) {
	base := r.URL
	if base == "" {
		base = DefaultURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse websocket URL: %w", err)
	}
	lang := r.Language
	if lang == "" {
		lang = "en"
	}
	q := u.Query()
	q.Set("model", model)
	q.Set("language", lang)
	q.Set("encoding", "pcm_s16le")
	q.Set("sample_rate", strconv.Itoa(SampleRate))
	q.Set("min_volume", "0.01")
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("X-API-Key", r.APIKey)
	headers.Set("Cartesia-Version", apiVersion)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		code := speech.ErrNetwork
		if resp != nil {
			defer resp.Body.Close() //nolint:errcheck
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				code = speech.ErrNotAllowed
			}
			err = fmt.Errorf("status %d: %s: %w", resp.StatusCode, body, err)
		}
		return nil, &speech.RecognitionError{Code: code, Cause: err}
	}
	return conn, nil
}

type message struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
	Error   string `json:"error"`
}

type session struct {
	conn     *websocket.Conn
	mic      io.ReadCloser
	mode     speech.Mode
	out      chan speech.Recognition
	noSpeech time.Duration

	writeMu sync.Mutex
}

func (s *session) run(ctx context.Context, cancel context.CancelFunc) {
	defer close(s.out)
	defer cancel()
	defer s.mic.Close() //nolint:errcheck
	defer s.shutdown()

	msgs := make(chan message)
	readErr := make(chan error, 1)
	go s.read(ctx, msgs, readErr)

	captureErr := make(chan error, 1)
	go s.stream(captureErr)

	var timeout <-chan time.Time
	if s.mode == speech.ModeSingle && s.noSpeech > 0 {
		t := time.NewTimer(s.noSpeech)
		defer t.Stop()
		timeout = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-timeout:
			s.emit(ctx, speech.Recognition{Err: &speech.RecognitionError{Code: speech.ErrNoSpeech}})
			return

		case err := <-captureErr:
			s.emit(ctx, speech.Recognition{Err: &speech.RecognitionError{Code: speech.ErrAudioCapture, Cause: err}})
			return

		case err := <-readErr:
			if ctx.Err() == nil && err != nil {
				s.emit(ctx, speech.Recognition{Err: &speech.RecognitionError{Code: speech.ErrNetwork, Cause: err}})
			}
			return

		case m := <-msgs:
			switch m.Type {
			case "transcript":
				if m.Text == "" {
					continue
				}
				s.emit(ctx, speech.Recognition{Transcript: m.Text, Final: m.IsFinal})
				if m.IsFinal && s.mode == speech.ModeSingle {
					return
				}
			case "error":
				log.Error("speech recognition failed", "err", m.Error)
				s.emit(ctx, speech.Recognition{Err: &speech.RecognitionError{Code: speech.ErrNetwork, Cause: errors.New(m.Error)}})
				return
			case "done":
				return
			}
		}
	}
}

func (s *session) emit(ctx context.Context, r speech.Recognition) {
	select {
	case s.out <- r:
	case <-ctx.Done():
	}
}

// read forwards server messages until the connection fails. A nil error
// means the server closed normally.
func (s *session) read(ctx context.Context, msgs chan<- message, errc chan<- error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			errc <- err
			return
		}
		var m message
		if err := json.Unmarshal(data, &m); err != nil {
			log.Debug("ignoring recognizer message", "err", err)
			continue
		}
		select {
		case msgs <- m:
		case <-ctx.Done():
			return
		}
	}
}

// stream copies microphone audio to the socket. When the microphone ends
// it asks the server to finalize what it heard.
func (s *session) stream(errc chan<- error) {
	buf := make([]byte, 3200) // 100ms
	for {
		n, err := s.mic.Read(buf)
		if n > 0 {
			if werr := s.write(websocket.BinaryMessage, buf[:n]); werr != nil {
				return
			}
		}
		if errors.Is(err, io.EOF) {
			_ = s.write(websocket.TextMessage, []byte("finalize"))
			return
		}
		if err != nil {
			errc <- err
			return
		}
	}
}

func (s *session) write(kind int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(kind, data)
}

func (s *session) shutdown() {
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.TextMessage, []byte("done"))
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	_ = s.conn.Close()
}
