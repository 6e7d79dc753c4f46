package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/nanogenius/internal/chat"
	"github.com/diogo/nanogenius/internal/media"
	"github.com/diogo/nanogenius/internal/models"
	"github.com/diogo/nanogenius/internal/render"
	"github.com/diogo/nanogenius/internal/session"
	"github.com/diogo/nanogenius/internal/speech"
)

// Animation tick message
type animationTickMsg time.Time

// Message types for the TUI
type (
	chatEventMsg struct {
		event chat.Event
	}
	sendDoneMsg struct {
		err error
	}
	inputAcceptedMsg struct{}
	speechEventMsg struct {
		event speech.Event
	}
	eventsClosedMsg struct{}
)

// Deps wires the chat screen to the rest of the application
type Deps struct {
	Sessions    *session.Manager
	Coordinator *chat.Coordinator
	// Events carries coordinator events, see Observer
	Events <-chan chat.Event

	// Recognizer may be nil when Speech is unavailable
	Recognizer speech.Recognizer
	Speech     speech.Capability

	ModelName   string
	DownloadDir string
	Markdown    render.Options

	// Clipboard defaults to the system clipboard
	Clipboard func(string) error
}

// Observer returns a coordinator observer feeding ch. Chunk events are
// dropped when ch is full since the view re-reads the whole session on
// the next event anyway.
func Observer(ch chan<- chat.Event) chat.Observer {
	return func(ev chat.Event) {
		if ev.Kind == chat.EventChunk {
			select {
			case ch <- ev:
			default:
			}
			return
		}
		ch <- ev
	}
}

// Model represents the chat screen state
type Model struct {
	deps Deps
	ctx  context.Context

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// State
	current        models.ChatSession
	attachment     *media.Attachment
	sending        bool
	listening      bool
	picking        bool
	picker         sessionPicker
	notice         string
	err            error
	ready          bool
	animationFrame int

	// accepted is signalled once the coordinator commits the user message
	accepted chan struct{}

	// Dimensions
	width  int
	height int
}

// NewModel creates the chat screen
func NewModel(ctx context.Context, deps Deps) Model {
	if deps.Clipboard == nil {
		deps.Clipboard = clipboard.WriteAll
	}

	ta := textarea.New()
	ta.Placeholder = "Ask anything, or describe an image to generate..."
	ta.CharLimit = 8000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	m := Model{
		deps:     deps,
		ctx:      ctx,
		textarea: ta,
		spinner:  s,
		accepted: make(chan struct{}, 1),
	}
	m.current, _ = deps.Sessions.Current()
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.waitForEvent(),
		m.waitForSpeech(),
		m.waitForAccepted(),
	)
}

// animationTick returns a command that sends animation tick messages
func animationTick() tea.Cmd {
	return tea.Tick(time.Millisecond*80, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// waitForEvent blocks on the next coordinator event
func (m Model) waitForEvent() tea.Cmd {
	if m.deps.Events == nil {
		return nil
	}
	events := m.deps.Events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return chatEventMsg{event: ev}
	}
}

// waitForAccepted clears the input once a send is committed
func (m Model) waitForAccepted() tea.Cmd {
	accepted := m.accepted
	return func() tea.Msg {
		<-accepted
		return inputAcceptedMsg{}
	}
}

func (m Model) waitForSpeech() tea.Cmd {
	if m.deps.Recognizer == nil {
		return nil
	}
	events := m.deps.Recognizer.Events()
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return speechEventMsg{event: ev}
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if m.picking {
			return m.updatePicker(msg)
		}
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}

	case chatEventMsg:
		m.refresh()
		if msg.event.Kind == chat.EventDone {
			m.sending = false
		}
		if m.picking {
			m.picker.refresh(m.deps.Sessions.Sessions(), m.deps.Sessions.CurrentID())
		}
		cmds = append(cmds, m.waitForEvent())

	case inputAcceptedMsg:
		m.textarea.Reset()
		m.attachment = nil
		cmds = append(cmds, m.waitForAccepted())

	case sendDoneMsg:
		// a rejected send never reached inputAcceptedMsg, so the input is intact
		m.sending = false
		m.err = msg.err
		m.refresh()

	case speechEventMsg:
		m.handleSpeech(msg.event)
		cmds = append(cmds, m.waitForSpeech())

	case spinner.TickMsg:
		if m.sending {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case animationTickMsg:
		if m.sending {
			m.animationFrame++
			cmds = append(cmds, animationTick())
		}
	}

	// Only KeyMsg reaches the textarea so escape sequences don't leak into it
	if !m.sending {
		if _, ok := msg.(tea.KeyMsg); ok {
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey processes keys that are not plain text input
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		m.stopListening()
		return m, tea.Quit, true

	case "esc":
		if m.notice != "" || m.err != nil {
			m.notice = ""
			m.err = nil
			return m, nil, true
		}
		m.stopListening()
		return m, tea.Quit, true

	case "ctrl+n":
		m.newSession()
		return m, nil, true

	case "ctrl+o":
		m.openPicker()
		return m, nil, true

	case "ctrl+r":
		return m, m.toggleVoice(), true

	case "1", "2", "3", "4":
		// starter prompts fill the input on an empty conversation
		if len(m.current.Messages) == 0 && m.textarea.Value() == "" {
			idx := int(msg.Runes[0] - '1')
			if idx < len(models.StarterPrompts) {
				m.textarea.SetValue(models.StarterPrompts[idx].Prompt)
				return m, nil, true
			}
		}

	case "enter":
		input := strings.TrimSpace(m.textarea.Value())
		if strings.HasPrefix(input, "/") {
			return m.runCommand(input)
		}
		if input == "exit" || input == "quit" {
			return m, tea.Quit, true
		}
		if m.sending || m.deps.Coordinator.Busy() {
			return m, nil, true
		}
		if input == "" && m.attachment == nil {
			return m, nil, true
		}

		att := m.attachment
		m.err = nil
		m.notice = ""
		m.sending = true
		m.animationFrame = 0

		return m, tea.Batch(
			m.send(input, att),
			m.spinner.Tick,
			animationTick(),
		), true
	}
	return m, nil, false
}

// send runs one coordinator operation off the UI goroutine
func (m Model) send(text string, att *media.Attachment) tea.Cmd {
	coord := m.deps.Coordinator
	ctx := m.ctx
	accepted := m.accepted
	return func() tea.Msg {
		err := coord.Send(ctx, chat.Input{
			Text:       text,
			Attachment: att,
			OnAccepted: func() {
				select {
				case accepted <- struct{}{}:
				default:
				}
			},
		})
		return sendDoneMsg{err: err}
	}
}

// runCommand handles slash commands typed in the input
func (m Model) runCommand(input string) (Model, tea.Cmd, bool) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	m.textarea.Reset()
	m.err = nil
	m.notice = ""

	switch name {
	case "/exit", "/quit":
		m.stopListening()
		return m, tea.Quit, true

	case "/new":
		m.newSession()

	case "/sessions", "/history":
		m.openPicker()

	case "/attach", "/image":
		if arg == "" {
			m.notice = "Usage: /attach <path to image>"
			break
		}
		att, err := media.LoadAttachment(arg)
		if err != nil {
			m.err = err
			break
		}
		m.attachment = att

	case "/detach":
		m.attachment = nil

	case "/voice", "/mic":
		return m, m.toggleVoice(), true

	case "/save":
		m.saveLastImage(arg)

	case "/copy":
		m.copyLastReply()

	case "/help":
		m.notice = "/new  /sessions  /attach <path>  /detach  /voice  /save [name]  /copy  /exit"

	default:
		m.notice = fmt.Sprintf("Unknown command %s, try /help", name)
	}

	m.updateViewport()
	return m, nil, true
}

func (m *Model) newSession() {
	m.deps.Sessions.Create()
	m.textarea.Reset()
	m.attachment = nil
	m.err = nil
	m.notice = ""
	m.refresh()
}

func (m *Model) openPicker() {
	m.picking = true
	m.picker = newSessionPicker(m.deps.Sessions.Sessions(), m.deps.Sessions.CurrentID())
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.stopListening()
		return m, tea.Quit
	}

	var action pickerAction
	m.picker, action = m.picker.update(msg)

	switch action {
	case pickerClose:
		m.picking = false
	case pickerNew:
		m.picking = false
		m.newSession()
	case pickerSelect:
		if s, ok := m.picker.selected(); ok {
			m.deps.Sessions.Select(s.ID)
		}
		m.picking = false
		m.refresh()
	case pickerDelete:
		if s, ok := m.picker.selected(); ok {
			m.deps.Sessions.Delete(s.ID)
		}
		m.picker.refresh(m.deps.Sessions.Sessions(), m.deps.Sessions.CurrentID())
		m.refresh()
	}
	return m, nil
}

// toggleVoice starts or stops a recognition
func (m *Model) toggleVoice() tea.Cmd {
	if !m.deps.Speech.Available() || m.deps.Recognizer == nil {
		m.notice = speech.UnsupportedNotice
		return nil
	}
	if m.listening {
		m.deps.Recognizer.Stop()
		return nil
	}
	if err := m.deps.Recognizer.Start(m.ctx); err != nil {
		m.err = err
		return nil
	}
	m.listening = true
	m.notice = "Listening... press Ctrl+R to stop"
	return nil
}

func (m *Model) stopListening() {
	if m.listening && m.deps.Recognizer != nil {
		m.deps.Recognizer.Stop()
	}
}

func (m *Model) handleSpeech(ev speech.Event) {
	switch ev.Kind {
	case speech.EventStarted:
		m.listening = true
	case speech.EventResult:
		// the transcript replaces whatever was typed
		m.textarea.SetValue(ev.Transcript)
	case speech.EventFailed:
		m.notice = "Voice input failed: " + ev.Err.Error()
	case speech.EventEnded:
		m.listening = false
		if strings.HasPrefix(m.notice, "Listening") {
			m.notice = ""
		}
	}
}

// saveLastImage writes the newest model image to the download directory
func (m *Model) saveLastImage(name string) {
	for i := len(m.current.Messages) - 1; i >= 0; i-- {
		msg := m.current.Messages[i]
		if msg.Role != models.RoleModel || msg.ImageURL == "" {
			continue
		}
		path, err := media.SaveDataURL(msg.ImageURL, m.deps.DownloadDir, name)
		if err != nil {
			m.err = err
			return
		}
		m.notice = "Image saved to " + path
		return
	}
	m.notice = "No generated image in this conversation"
}

// copyLastReply copies the newest successful model text
func (m *Model) copyLastReply() {
	for i := len(m.current.Messages) - 1; i >= 0; i-- {
		msg := m.current.Messages[i]
		if msg.Role != models.RoleModel || msg.IsError || msg.Text == "" {
			continue
		}
		if err := m.deps.Clipboard(msg.Text); err != nil {
			m.err = fmt.Errorf("failed to copy to clipboard: %w", err)
			return
		}
		m.notice = "Reply copied to clipboard"
		return
	}
	m.notice = "Nothing to copy yet"
}

// refresh reloads the current session from the manager
func (m *Model) refresh() {
	m.current, _ = m.deps.Sessions.Current()
	m.updateViewport()
	m.viewport.GotoBottom()
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	headerHeight := 4
	inputHeight := 6
	statusHeight := 1
	padding := 3

	vpHeight := max(5, m.height-headerHeight-inputHeight-statusHeight-padding)
	contentWidth := m.width - 4

	if !m.ready {
		m.viewport = viewport.New(contentWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(contentWidth - 4)
	m.updateViewport()
	m.viewport.GotoBottom()
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}
	if m.picking {
		return m.picker.view(m.width-4, m.height)
	}

	var sections []string
	contentWidth := m.width - 4

	// header
	title := m.current.Title
	if title == "" {
		title = models.DefaultSessionTitle
	}
	headerContent := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render("✦ NanoGenius"),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(title),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(m.deps.ModelName),
	)
	sections = append(sections, headerStyle.Width(contentWidth).Render(headerContent))

	// messages
	var messagesContent string
	if len(m.current.Messages) == 0 {
		messagesContent = m.renderWelcome()
	} else {
		messagesContent = m.viewport.View()
	}
	sections = append(sections, messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(messagesContent))

	// input
	var inputContent string
	if m.sending {
		inputContent = m.renderLoadingAnimation()
	} else {
		parts := []string{inputLabelStyle.Render("You")}
		if m.attachment != nil {
			parts = append(parts, attachmentStyle.Render(fmt.Sprintf("📎 %s (%s)", m.attachment.Name, m.attachment.MIMEType)))
		}
		parts = append(parts, m.textarea.View())
		inputContent = lipgloss.JoinVertical(lipgloss.Left, parts...)
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(inputContent))

	if m.notice != "" {
		sections = append(sections, noticeStyle.Render(m.notice))
	}
	sections = append(sections, m.renderStatusBar(contentWidth))
	if m.err != nil {
		sections = append(sections, FormatError(m.err))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderWelcome renders the empty conversation screen with starter prompts
func (m Model) renderWelcome() string {
	width := m.viewport.Width - 4
	height := m.viewport.Height

	lines := []string{
		"",
		welcomeIconStyle.Width(width).Render("✦"),
		"",
		welcomeTitleStyle.Width(width).Render("What can I create for you?"),
		"",
	}
	for i, p := range models.StarterPrompts {
		lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Center,
			starterKeyStyle.Render(fmt.Sprintf("[%d] ", i+1))+starterTextStyle.Render(p.Label)))
	}
	lines = append(lines, "", hintStyle.Width(width).Align(lipgloss.Center).Render("Press a number to use a prompt, or type your own"))

	content := lipgloss.JoinVertical(lipgloss.Center, lines...)
	topPadding := max(0, (height-lipgloss.Height(content))/2)
	return strings.Repeat("\n", topPadding) + content
}

// renderLoadingAnimation renders the animated indicator shown while sending
func (m Model) renderLoadingAnimation() string {
	barChars := []string{"█", "█", "█", "█", "▓", "▒", "░"}
	frame := m.animationFrame

	var bar strings.Builder
	for i := 0; i < 16; i++ {
		style := lipgloss.NewStyle().Foreground(gradientColors[(i+frame)%len(gradientColors)])
		bar.WriteString(style.Render(barChars[(i+frame/2)%len(barChars)]))
	}

	label := " Thinking "
	if n := len(m.current.Messages); n > 0 {
		if last := m.current.Messages[n-1]; last.Role == models.RoleModel && last.Text != "" {
			label = " Writing "
		}
	}

	dots := ""
	numDots := (frame / 3) % 4
	for i := 0; i < 3; i++ {
		if i < numDots {
			dots += lipgloss.NewStyle().Foreground(gradientColors[(frame+i)%len(gradientColors)]).Render("●")
		} else {
			dots += lipgloss.NewStyle().Foreground(colorTextMute).Render("○")
		}
	}

	return fmt.Sprintf("%s %s %s%s", m.spinner.View(), bar.String(), lipgloss.NewStyle().Foreground(colorText).Render(label), dots)
}

// renderStatusBar renders the bottom status bar with shortcuts
func (m Model) renderStatusBar(width int) string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"^N", "New"},
		{"^O", "Chats"},
		{"^R", "Voice"},
		{"Esc", "Quit"},
	}
	if m.listening {
		shortcuts[3].desc = "Stop"
	}

	items := make([]string, 0, len(shortcuts))
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusDescStyle.Render(" "+s.desc))
	}
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(strings.Join(items, "  │  "))
}

// updateViewport refreshes the viewport content from the current session
func (m *Model) updateViewport() {
	if !m.ready {
		return
	}
	var content strings.Builder
	bubbleWidth := max(20, m.viewport.Width-6)
	md := m.deps.Markdown.WithWidth(bubbleWidth - 4)

	for i, msg := range m.current.Messages {
		if i > 0 {
			content.WriteString("\n")
		}

		if msg.Role == models.RoleUser {
			body := msg.Text
			if msg.ImageURL != "" {
				body = strings.TrimSpace(body + "\n" + imageLinkStyle.Render("🖼 image attached"))
			}
			content.WriteString(userLabelStyle.Render("● You") + "\n")
			content.WriteString(userBubbleStyle.Width(bubbleWidth).Render(body))
		} else {
			content.WriteString(modelLabelStyle.Render("✦ NanoGenius") + "\n")
			switch {
			case msg.IsError:
				content.WriteString(errorBubbleStyle.Width(bubbleWidth).Render(msg.Text))
			case msg.Text == "" && msg.ImageURL == "":
				content.WriteString(modelBubbleStyle.Width(bubbleWidth).Render(m.spinner.View()))
			default:
				body := ""
				if msg.Text != "" {
					body = render.MarkdownOrPlain(msg.Text, md)
				}
				if msg.ImageURL != "" {
					link := imageLinkStyle.Render("🖼 generated image, /save to download")
					body = strings.TrimSpace(body + "\n" + link)
				}
				content.WriteString(modelBubbleStyle.Width(bubbleWidth).Render(body))
			}
		}
		content.WriteString("\n")
	}

	m.viewport.SetContent(content.String())
}

// Run starts the chat TUI and blocks until the user quits
func Run(ctx context.Context, deps Deps) error {
	p := tea.NewProgram(
		NewModel(ctx, deps),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
