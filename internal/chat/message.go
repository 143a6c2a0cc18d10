package chat

import (
	"encoding/json"
	"fmt"

	"github.com/ailearninghub/hub/internal/remote"
)

// Kind tags the variant of a Message.
type Kind string

// Message kinds, as stored.
const (
	KindText    Kind = "text"
	KindVideos  Kind = "videos"
	KindVoice   Kind = "voice_heard"
	KindButton  Kind = "video_button"
	KindLoading Kind = "loading"
)

// Role says who a message belongs to.
type Role string

// Roles.
const (
	RoleAI   Role = "ai"
	RoleUser Role = "user"
)

// Message is one entry of a chat log. Which fields are set depends on
// Kind: Text for text and voice messages, Videos and Topics for video
// results, nothing else for the button and loading placeholders.
type Message struct {
	Kind   Kind           `json:"kind"`
	Role   Role           `json:"role"`
	Text   string         `json:"text,omitempty"`
	Videos []remote.Video `json:"videos,omitempty"`
	Topics []string       `json:"topics,omitempty"`
}

// TextMessage is a plain text bubble.
func TextMessage(role Role, text string) Message {
	return Message{Kind: KindText, Role: role, Text: text}
}

// AIMessage is a text bubble from the assistant.
func AIMessage(text string) Message {
	return TextMessage(RoleAI, text)
}

// VoiceMessage is a transcript of something the user said.
func VoiceMessage(text string) Message {
	return Message{Kind: KindVoice, Role: RoleUser, Text: text}
}

// VideoMessage lists recommended videos.
func VideoMessage(videos []remote.Video, topics []string) Message {
	if topics == nil {
		topics = []string{}
	}
	return Message{Kind: KindVideos, Role: RoleAI, Videos: videos, Topics: topics}
}

// ButtonMessage offers video recommendations.
func ButtonMessage() Message {
	return Message{Kind: KindButton, Role: RoleAI}
}

// LoadingMessage stands in for a reply that is on its way.
func LoadingMessage() Message {
	return Message{Kind: KindLoading, Role: RoleAI}
}

// Validate checks that the fields match the kind.
func (m Message) Validate() error {
	switch m.Kind {
	case KindText:
		if m.Role != RoleAI && m.Role != RoleUser {
			return fmt.Errorf("text message with role %q", m.Role)
		}
	case KindVoice:
		if m.Role != RoleUser {
			return fmt.Errorf("voice message with role %q", m.Role)
		}
	case KindVideos, KindButton, KindLoading:
		if m.Role != RoleAI {
			return fmt.Errorf("%s message with role %q", m.Kind, m.Role)
		}
	default:
		return fmt.Errorf("unknown message kind %q", m.Kind)
	}
	return nil
}

// UnmarshalJSON decodes and validates a message.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := Message(p).Validate(); err != nil {
		return err
	}
	*m = Message(p)
	return nil
}

// resolveLoading removes the last loading message and appends reply.
func resolveLoading(msgs []Message, reply string) []Message {
	out := make([]Message, 0, len(msgs)+1)
	last := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == KindLoading {
			last = i
			break
		}
	}
	for i, m := range msgs {
		if i != last {
			out = append(out, m)
		}
	}
	return append(out, AIMessage(reply))
}

// withoutLoading drops every loading message.
func withoutLoading(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Kind != KindLoading {
			out = append(out, m)
		}
	}
	return out
}
