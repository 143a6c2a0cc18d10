package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ailearninghub/hub/internal/chat"
	"github.com/ailearninghub/hub/internal/lecture"
	"github.com/ailearninghub/hub/internal/speech"
	"github.com/ailearninghub/hub/internal/voice"
)

type (
	sessionMsg lecture.Snapshot
	chatMsg    []chat.Message
	voiceMsg   voice.Snapshot
	wordMsg    int
	avatarMsg  bool
)

// Events carries notifications from the lecture components, which run on
// their own goroutines, into the program. It also drives the instructor
// avatar: hand it to the lecture speaker as its Playback.
type Events struct {
	ch chan tea.Msg
}

var _ speech.Playback = (*Events)(nil)

// NewEvents returns an empty event queue.
func NewEvents() *Events {
	return &Events{ch: make(chan tea.Msg, 256)}
}

// Word reports the index of the word being spoken.
func (e *Events) Word(i int) { e.send(wordMsg(i)) }

// Play implements speech.Playback.
func (e *Events) Play() { e.send(avatarMsg(true)) }

// Pause implements speech.Playback.
func (e *Events) Pause() { e.send(avatarMsg(false)) }

func (e *Events) session(s lecture.Snapshot) { e.send(sessionMsg(s)) }
func (e *Events) chat(m []chat.Message)      { e.send(chatMsg(m)) }
func (e *Events) voice(s voice.Snapshot)     { e.send(voiceMsg(s)) }

// send never blocks the caller; notifications may come from inside
// Update.
func (e *Events) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	default:
		go func() { e.ch <- msg }()
	}
}

// wait delivers the next notification to the program.
func (e *Events) wait() tea.Cmd {
	return func() tea.Msg {
		return <-e.ch
	}
}
