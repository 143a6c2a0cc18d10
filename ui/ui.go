// Package ui provides the lecture hall: the summary board with its
// instructor, the doubt chat and the status bar.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"

	"github.com/ailearninghub/hub/internal/chat"
	"github.com/ailearninghub/hub/internal/lecture"
	"github.com/ailearninghub/hub/internal/speech"
	"github.com/ailearninghub/hub/internal/voice"
)

const (
	statusMessageTimeout = time.Second * 3
	statusBarHeight      = 1
	ellipsis             = "…"
)

// Deps are the lecture components the UI drives.
type Deps struct {
	Session *lecture.Session
	Chat    *chat.Engine

	// Lecture speaks the board. Typed replies are shown, not spoken.
	Lecture *speech.Speaker

	// Voice is nil when voice commands are not configured.
	Voice *voice.Commander

	// Reload re-ingests the lecture source. Optional.
	Reload func(ctx context.Context) (*lecture.ChunkStore, error)
}

// NewProgram returns a new Tea program. The components in deps report
// their changes through events.
func NewProgram(cfg Config, deps Deps, events *Events) *tea.Program {
	log.Debug("starting hub", "glamour", cfg.GlamourEnabled, "voice", deps.Voice != nil)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, deps, events), opts...)
}

type focus int

const (
	focusBoard focus = iota
	focusChat
	focusJump
)

type (
	navDoneMsg    struct{ err error }
	chatReplyMsg  struct {
		reply string
		err   error
	}
	videosDoneMsg struct{ err error }
	reloadedMsg   struct {
		store *lecture.ChunkStore
		err   error
	}
	statusMessageTimeoutMsg struct{}
)

type model struct {
	cfg    Config
	deps   Deps
	events *Events
	ctx    context.Context
	cancel context.CancelFunc

	width  int
	height int
	focus  focus

	session lecture.Snapshot
	voice   voice.Snapshot
	word    int
	chatKey string

	board  viewport.Model
	chat   chatPanel
	avatar avatar
	jump   textinput.Model

	showHelp           bool
	statusMessage      string
	statusIsError      bool
	statusMessageTimer *time.Timer

	watcher *fileWatcher
}

func newModel(cfg Config, deps Deps, events *Events) model {
	ctx, cancel := context.WithCancel(context.Background())

	deps.Session.OnChange(events.session)
	deps.Chat.OnChange(events.chat)
	if deps.Voice != nil {
		deps.Voice.OnChange(events.voice)
	}

	jump := textinput.New()
	jump.Prompt = "/"
	jump.Placeholder = "chunk number or text to find"
	jump.CharLimit = 120

	m := model{
		cfg:     cfg,
		deps:    deps,
		events:  events,
		ctx:     ctx,
		cancel:  cancel,
		session: deps.Session.Snapshot(),
		word:    -1,
		board:   viewport.New(0, 0),
		chat:    newChatPanel(),
		avatar:  newAvatar(),
		jump:    jump,
	}
	m.chat.setMessages(deps.Chat.Messages())
	if deps.Voice != nil {
		m.voice = deps.Voice.Snapshot()
	}
	if deps.Reload != nil {
		m.watcher = newFileWatcher(cfg.Path)
	}
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.events.wait(),
		m.avatar.spinner.Tick,
		m.chat.spinner.Tick,
		m.navigate(m.deps.Session.Load),
	}
	if m.watcher != nil {
		cmds = append(cmds, m.watcher.wait)
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sessionMsg:
		m.session = lecture.Snapshot(msg)
		m.syncChat()
		m.refreshBoard()
		m.board.GotoTop()
		return m, m.events.wait()

	case chatMsg:
		m.chat.setMessages(msg)
		return m, m.events.wait()

	case voiceMsg:
		m.voice = voice.Snapshot(msg)
		return m, m.events.wait()

	case wordMsg:
		m.word = int(msg)
		m.refreshBoard()
		return m, m.events.wait()

	case avatarMsg:
		m.avatar.playing = bool(msg)
		return m, m.events.wait()

	case navDoneMsg:
		if errors.Is(msg.err, lecture.ErrBusy) {
			cmds = append(cmds, m.showStatusMessage("Still preparing this section...", false))
		} else if msg.err != nil {
			log.Debug("navigation failed", "error", msg.err)
		}

	case chatReplyMsg:
		switch {
		case errors.Is(msg.err, chat.ErrBusy):
			cmds = append(cmds, m.showStatusMessage("Still answering your last question", false))
		case msg.err != nil:
			log.Debug("question not sent", "error", msg.err)
		}

	case videosDoneMsg:
		switch {
		case errors.Is(msg.err, chat.ErrBusy):
			cmds = append(cmds, m.showStatusMessage("Already looking for videos", false))
		case errors.Is(msg.err, chat.ErrNoContext):
			cmds = append(cmds, m.showStatusMessage("Nothing to recommend videos for yet", true))
		}

	case reloadMsg:
		cmds = append(cmds, m.reload(), m.watcher.wait)

	case reloadedMsg:
		if msg.err != nil {
			log.Error("error reloading lecture", "error", msg.err)
			cmds = append(cmds, m.showStatusMessage("Reload failed: "+msg.err.Error(), true))
			break
		}
		m.deps.Chat.SetDocument(msg.store.Document().Fingerprint())
		m.deps.Session.SetStore(msg.store)
		cmds = append(cmds,
			m.navigate(m.deps.Session.Load),
			m.showStatusMessage("Reloaded "+msg.store.Document().FileName, false),
		)

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		m.statusIsError = false

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.avatar.spinner, cmd = m.avatar.spinner.Update(msg)
		cmds = append(cmds, cmd)
		m.chat.spinner, cmd = m.chat.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.chat.loading() {
			m.chat.refresh()
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.board, cmd = m.board.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, m.quit()
	}

	switch m.focus {
	case focusChat:
		return m.handleChatKey(msg)
	case focusJump:
		return m.handleJumpKey(msg)
	}

	var cmds []tea.Cmd
	switch msg.String() {
	case "q":
		return m, m.quit()

	case "n", "right":
		cmds = append(cmds, m.navigate(m.deps.Session.GoNext))

	case "p", "left":
		cmds = append(cmds, m.navigate(m.deps.Session.GoPrev))

	case "r":
		cmds = append(cmds, m.navigate(m.deps.Session.Retry))

	case "/":
		m.focus = focusJump
		m.jump.SetValue("")
		cmds = append(cmds, m.jump.Focus())

	case "tab", "i":
		m.focus = focusChat
		cmds = append(cmds, m.chat.input.Focus())

	case " ", "space":
		if !m.toggleLecture() {
			cmds = append(cmds, m.showStatusMessage("Voice question in progress", false))
		}

	case "v":
		if m.deps.Voice == nil {
			cmds = append(cmds, m.showStatusMessage("Voice commands are not configured", true))
			break
		}
		m.deps.Voice.Toggle(m.ctx)

	case "y":
		cmds = append(cmds, m.fetchVideos())

	case "c":
		text, ok := lastReply(m.deps.Chat.Messages())
		if !ok {
			cmds = append(cmds, m.showStatusMessage("No reply to copy", true))
			break
		}
		copyText(text)
		cmds = append(cmds, m.showStatusMessage("Copied reply", false))

	case "C":
		url, ok := firstVideoURL(m.deps.Chat.Messages())
		if !ok {
			cmds = append(cmds, m.showStatusMessage("No video to copy", true))
			break
		}
		copyText(url)
		cmds = append(cmds, m.showStatusMessage("Copied video link", false))

	case "?":
		m.showHelp = !m.showHelp
		m.layout()

	default:
		var cmd tea.Cmd
		m.board, cmd = m.board.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyTab:
		m.focus = focusBoard
		m.chat.input.Blur()
		return m, nil

	case tea.KeyEnter:
		q := strings.TrimSpace(m.chat.input.Value())
		if q == "" {
			return m, nil
		}
		m.chat.input.SetValue("")
		return m, m.sendQuestion(q)
	}

	var cmd tea.Cmd
	m.chat.input, cmd = m.chat.input.Update(msg)
	return m, cmd
}

func (m model) handleJumpKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.focus = focusBoard
		m.jump.Blur()
		return m, nil

	case tea.KeyEnter:
		m.focus = focusBoard
		m.jump.Blur()
		i, ok := resolveJump(m.jump.Value(), m.deps.Session.Store().Document().Pages)
		if !ok {
			return m, m.showStatusMessage("No match for "+m.jump.Value(), true)
		}
		return m, m.navigate(func(ctx context.Context) error {
			return m.deps.Session.JumpTo(ctx, i)
		})
	}

	var cmd tea.Cmd
	m.jump, cmd = m.jump.Update(msg)
	return m, cmd
}

// toggleLecture speaks the board, or stops it if it is being spoken. It
// reports false when the lecture may not start because a voice question
// is under way.
func (m *model) toggleLecture() bool {
	if m.deps.Lecture.Speaking() {
		m.deps.Lecture.Stop()
		return true
	}
	if m.deps.Voice != nil && m.deps.Voice.Snapshot().InConversation() {
		return false
	}
	if m.session.Status != lecture.StateIdle || !m.session.Loaded || m.session.Content.NoData {
		return true
	}
	m.deps.Lecture.Speak(m.ctx, m.session.Content.Resp, nil)
	return true
}

// syncChat switches the chat to the log of the displayed chunk.
func (m *model) syncChat() {
	if m.session.Label == "" {
		return
	}
	key := m.deps.Session.Store().Document().Fingerprint() + "/" + m.session.Label
	if key == m.chatKey {
		return
	}
	m.chatKey = key
	m.deps.Chat.SetChunk(m.session.Label, m.session.Chunk.Text())
}

func (m *model) navigate(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return navDoneMsg{err: fn(ctx)}
	}
}

func (m *model) sendQuestion(q string) tea.Cmd {
	ctx, engine := m.ctx, m.deps.Chat
	return func() tea.Msg {
		reply, err := engine.SendTyped(ctx, q)
		return chatReplyMsg{reply: reply, err: err}
	}
}

func (m *model) fetchVideos() tea.Cmd {
	ctx, engine := m.ctx, m.deps.Chat
	return func() tea.Msg {
		return videosDoneMsg{err: engine.FetchVideos(ctx)}
	}
}

func (m *model) reload() tea.Cmd {
	ctx, reload := m.ctx, m.deps.Reload
	return func() tea.Msg {
		store, err := reload(ctx)
		return reloadedMsg{store: store, err: err}
	}
}

func (m *model) quit() tea.Cmd {
	if m.deps.Voice != nil {
		m.deps.Voice.Disable()
	}
	m.deps.Lecture.Stop()
	if m.watcher != nil {
		m.watcher.close()
	}
	m.cancel()
	return tea.Quit
}

func (m *model) showStatusMessage(text string, isError bool) tea.Cmd {
	m.statusMessage = text
	m.statusIsError = isError
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	t := m.statusMessageTimer
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

func copyText(s string) {
	// OSC 52 first, then the native clipboard
	termenv.Copy(s)
	_ = clipboard.WriteAll(s)
}

// Layout

func (m model) columns() (left, right int) {
	left = m.width * 3 / 5
	return left, m.width - left
}

func (m model) bodyHeight() int {
	h := m.height - statusBarHeight
	if m.showHelp {
		h -= lipgloss.Height(m.helpView())
	}
	return max(h, 6)
}

func (m *model) layout() {
	left, right := m.columns()
	body := m.bodyHeight()

	// border, avatar, title
	m.board.Width = max(left-4, 1)
	m.board.Height = max(body-2-2-2, 1)
	m.chat.setSize(max(right-4, 1), max(body-2-2, 3))
	m.jump.Width = max(left-6, 1)
	m.refreshBoard()
}

func (m *model) refreshBoard() {
	width := m.board.Width
	if m.word >= 0 && m.deps.Lecture.Speaking() {
		m.board.SetContent(highlightWord(m.deps.Lecture.Text(), m.word, width))
		return
	}
	m.board.SetContent(boardContent(m.cfg, m.session, width))
}

func (m model) View() string {
	if m.width == 0 {
		return ""
	}
	left, right := m.columns()
	body := m.bodyHeight()

	title := boardTitleStyle.Render(m.boardTitle())
	if m.focus == focusJump {
		title = m.jump.View()
	}
	board := boardStyle.
		Width(max(left-2, 1)).
		Height(max(body-2, 1)).
		Render(m.avatar.View() + "\n" + title + "\n" + m.board.View())

	header := boardTitleStyle.Render("DOUBT CHAT")
	if line := m.voiceLine(); line != "" {
		header += "  " + voiceStyle.Render(line)
	}
	chatView := panelStyle.
		Width(max(right-2, 1)).
		Height(max(body-2, 1)).
		Render(header + "\n" + m.chat.View())

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, board, chatView) + "\n")
	m.statusBarView(&b)
	if m.showHelp {
		b.WriteString("\n" + m.helpView())
	}
	return b.String()
}

func (m model) boardTitle() string {
	if m.session.Label == "" {
		return "LECTURE"
	}
	return fmt.Sprintf("LECTURE · %s", m.session.Label)
}

func (m model) voiceLine() string {
	if m.deps.Voice == nil || !m.voice.Enabled {
		return ""
	}
	return "🎙 " + m.voice.Status
}

func (m model) statusBarView(b *strings.Builder) {
	showStatusMessage := m.statusMessage != ""

	logo := logoStyle.Render(" HUB ")
	pos := statusBarPosStyle(fmt.Sprintf(" %d/%d ", m.session.Index+1, max(m.session.Total, 1)))
	helpNote := statusBarHelpStyle(" ? Help ")

	note := m.session.Chunk.Label()
	if doc := m.deps.Session.Store().Document().FileName; doc != "" {
		note = doc + " · " + note
	}
	if m.deps.Lecture.Speaking() {
		note += " | speaking"
	}
	if showStatusMessage {
		note = m.statusMessage
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(pos)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)

	style := statusBarNoteStyle
	switch {
	case showStatusMessage && m.statusIsError:
		style = statusBarErrorStyle
	case showStatusMessage:
		style = statusBarMessageStyle
	}
	note = style(note)

	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(pos)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := style(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s", logo, note, emptySpace, pos, helpNote)
}

func (m model) helpView() (s string) {
	col1 := []string{
		"c       copy last reply",
		"C       copy video link",
		"y       recommend videos",
		"v       voice commands",
		"r       retry section",
		"q       quit",
	}

	s += "\n"
	s += "n/→      next section        " + col1[0] + "\n"
	s += "p/←      previous section    " + col1[1] + "\n"
	s += "/        jump to section     " + col1[2] + "\n"
	s += "space    speak/stop lecture  " + col1[3] + "\n"
	s += "tab/i    ask a question      " + col1[4] + "\n"
	s += "k/↑ j/↓  scroll board        " + col1[5]

	if m.deps.Voice != nil && len(m.cfg.Triggers) > 0 {
		s += "\n\nwake phrase: " + strings.Join(m.cfg.Triggers, " / ")
	}

	s = indent(s, 2)

	// Fill up empty cells with spaces for background coloring
	if m.width > 0 {
		lines := strings.Split(s, "\n")
		for i := 0; i < len(lines); i++ {
			l := runewidth.StringWidth(lines[i])
			n := max(m.width-l, 0)
			lines[i] += strings.Repeat(" ", n)
		}
		s = strings.Join(lines, "\n")
	}

	return helpViewStyle(s)
}
