package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/muesli/reflow/wordwrap"

	"github.com/ailearninghub/hub/internal/chat"
)

type chatPanel struct {
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	messages []chat.Message
	width    int
}

func newChatPanel() chatPanel {
	ti := textinput.New()
	ti.Placeholder = "Ask about this section..."
	ti.Prompt = "› "
	ti.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = aiStyle

	return chatPanel{
		viewport: viewport.New(0, 0),
		input:    ti,
		spinner:  sp,
	}
}

func (c *chatPanel) setSize(w, h int) {
	c.width = w
	c.viewport.Width = w
	c.viewport.Height = max(h-2, 1)
	c.input.Width = max(w-4, 1)
	c.refresh()
}

func (c *chatPanel) setMessages(msgs []chat.Message) {
	c.messages = msgs
	c.refresh()
}

func (c *chatPanel) loading() bool {
	for _, m := range c.messages {
		if m.Kind == chat.KindLoading {
			return true
		}
	}
	return false
}

func (c *chatPanel) refresh() {
	c.viewport.SetContent(renderMessages(c.messages, c.spinner.View(), max(c.width, 10)))
	c.viewport.GotoBottom()
}

func (c chatPanel) View() string {
	return c.viewport.View() + "\n" + c.input.View()
}

// renderMessages lays out a chat log. spin is the loading indicator.
func renderMessages(msgs []chat.Message, spin string, width int) string {
	blocks := make([]string, 0, len(msgs))
	for _, m := range msgs {
		blocks = append(blocks, renderMessage(m, spin, width))
	}
	return strings.Join(blocks, "\n\n")
}

func renderMessage(m chat.Message, spin string, width int) string {
	wrap := func(s string) string { return wordwrap.String(s, width) }

	switch m.Kind {
	case chat.KindText:
		if m.Role == chat.RoleUser {
			return userStyle.Render("YOU ▸ ") + wrap(m.Text)
		}
		return aiStyle.Render("AI ▸ ") + wrap(m.Text)

	case chat.KindVoice:
		return voiceStyle.Render(wrap("🎙 heard: " + m.Text))

	case chat.KindButton:
		return subtleStyle.Render("[y] recommend videos for this section")

	case chat.KindLoading:
		return spin + " " + subtleStyle.Render("thinking...")

	case chat.KindVideos:
		var b strings.Builder
		if len(m.Topics) > 0 {
			b.WriteString(aiStyle.Render("TOPICS ▸ ") + wrap(strings.Join(m.Topics, ", ")) + "\n")
		}
		for i, v := range m.Videos {
			if i > 0 {
				b.WriteByte('\n')
			}
			title := v.Title
			if v.Channel != "" {
				title = fmt.Sprintf("%s — %s", v.Title, v.Channel)
			}
			b.WriteString("▶ " + wrap(title) + "\n  " + linkStyle.Render(v.URL))
		}
		return b.String()
	}
	return ""
}

// lastReply returns the text of the latest AI text message.
func lastReply(msgs []chat.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == chat.KindText && msgs[i].Role == chat.RoleAI {
			return msgs[i].Text, true
		}
	}
	return "", false
}

// firstVideoURL returns the URL of the first recommended video of the
// latest recommendation.
func firstVideoURL(msgs []chat.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == chat.KindVideos && len(msgs[i].Videos) > 0 {
			return msgs[i].Videos[0].URL, true
		}
	}
	return "", false
}
