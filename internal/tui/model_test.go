package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/diogo/nanogenius/internal/api"
	"github.com/diogo/nanogenius/internal/chat"
	"github.com/diogo/nanogenius/internal/models"
	"github.com/diogo/nanogenius/internal/render"
	"github.com/diogo/nanogenius/internal/session"
	"github.com/diogo/nanogenius/internal/speech"
)

type memStore struct {
	loaded []models.ChatSession
}

func (s *memStore) Load() []models.ChatSession { return s.loaded }
func (s *memStore) Save(_ []models.ChatSession) {}

type fakeRecognizer struct {
	events  chan speech.Event
	started int
	stopped int
}

func (r *fakeRecognizer) Start(context.Context) error {
	r.started++
	return nil
}
func (r *fakeRecognizer) Stop()                       { r.stopped++ }
func (r *fakeRecognizer) Events() <-chan speech.Event { return r.events }

func newTestModel(t *testing.T, mock *api.MockClient, preload ...models.ChatSession) (Model, *session.Manager, chan chat.Event) {
	t.Helper()
	mgr := session.New(&memStore{loaded: preload})
	events := make(chan chat.Event, 64)
	coord := chat.NewCoordinator(mgr, mock, chat.WithObserver(Observer(events)))

	m := NewModel(context.Background(), Deps{
		Sessions:    mgr,
		Coordinator: coord,
		Events:      events,
		ModelName:   models.ModelTextDefault,
		DownloadDir: t.TempDir(),
		Markdown:    render.DefaultOptions().WithStyle(render.StylePlain),
		Clipboard:   func(string) error { return nil },
	})
	m = update(m, tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, mgr, events
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+n":
		return tea.KeyMsg{Type: tea.KeyCtrlN}
	case "ctrl+o":
		return tea.KeyMsg{Type: tea.KeyCtrlO}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drain feeds every queued coordinator event back into the model
func drain(m Model, events chan chat.Event) Model {
	for {
		select {
		case ev := <-events:
			m = update(m, chatEventMsg{event: ev})
		default:
			return m
		}
	}
}

func TestNewModelShowsCurrentSession(t *testing.T) {
	m, mgr, _ := newTestModel(t, &api.MockClient{})

	if m.current.ID != mgr.CurrentID() {
		t.Errorf("current = %q, want %q", m.current.ID, mgr.CurrentID())
	}
	view := m.View()
	if !strings.Contains(view, models.DefaultSessionTitle) {
		t.Error("header should show the session title")
	}
	if !strings.Contains(view, models.StarterPrompts[0].Label) {
		t.Error("empty conversation should list starter prompts")
	}
}

func TestViewBeforeResize(t *testing.T) {
	mgr := session.New(&memStore{})
	m := NewModel(context.Background(), Deps{Sessions: mgr})
	if !strings.Contains(m.View(), "Initializing") {
		t.Error("expected initializing placeholder")
	}
}

func TestStarterPromptFillsInput(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"1", models.StarterPrompts[0].Prompt},
		{"2", models.StarterPrompts[1].Prompt},
		{"3", models.StarterPrompts[2].Prompt},
		{"4", models.StarterPrompts[3].Prompt},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m, _, _ := newTestModel(t, &api.MockClient{})
			m = update(m, key(tt.key))
			if got := m.textarea.Value(); got != tt.want {
				t.Errorf("input = %q, want %q", got, tt.want)
			}
			if m.sending {
				t.Error("starter prompt must not send")
			}
		})
	}
}

func TestStarterKeysTypeWhenConversationHasMessages(t *testing.T) {
	preload := models.ChatSession{
		ID:       "s1",
		Title:    "Existing",
		Messages: []models.Message{models.NewUserMessage("hello", "", time.Now())},
	}
	m, _, _ := newTestModel(t, &api.MockClient{}, preload)

	m = update(m, key("1"))
	if got := m.textarea.Value(); got != "1" {
		t.Errorf("input = %q, want the typed digit", got)
	}
}

func TestEnterSendsAndStreams(t *testing.T) {
	mock := &api.MockClient{Chunks: []string{"Hel", "lo"}}
	m, mgr, events := newTestModel(t, mock)
	m.textarea.SetValue("Say hello")

	next, cmd := m.Update(key("enter"))
	m = next.(Model)
	if cmd == nil {
		t.Fatal("enter should return a command")
	}
	if !m.sending {
		t.Error("model should be sending")
	}
	if !strings.Contains(m.View(), "Thinking") {
		t.Error("loading animation should replace the input")
	}

	done := m.send("Say hello", nil)().(sendDoneMsg)
	if done.err != nil {
		t.Fatalf("send: %v", done.err)
	}

	// the input is cleared once the user message is committed
	m = update(m, m.waitForAccepted()())
	if m.textarea.Value() != "" {
		t.Error("input should be cleared after the send is accepted")
	}

	m = drain(m, events)
	m = update(m, done)

	if m.sending {
		t.Error("sending should be cleared after Done")
	}
	cur, _ := mgr.Current()
	if len(cur.Messages) != 2 || cur.Messages[1].Text != "Hello" {
		t.Fatalf("messages = %+v", cur.Messages)
	}
	if !strings.Contains(m.viewport.View(), "Hello") {
		t.Error("viewport should show the reply")
	}
}

func TestEnterIgnoresEmptyInput(t *testing.T) {
	mock := &api.MockClient{}
	m, _, _ := newTestModel(t, mock)

	next, cmd := m.Update(key("enter"))
	m = next.(Model)
	if cmd != nil || m.sending {
		t.Error("empty input must not start a send")
	}
}

func TestRejectedSendKeepsInput(t *testing.T) {
	m, _, _ := newTestModel(t, &api.MockClient{})
	m.textarea.SetValue("try again")
	m.sending = true

	done := m.send("   ", nil)().(sendDoneMsg)
	if !errors.Is(done.err, chat.ErrEmptyInput) {
		t.Fatalf("send err = %v, want ErrEmptyInput", done.err)
	}
	select {
	case <-m.accepted:
		t.Fatal("a rejected send must not clear the input")
	default:
	}

	m = update(m, done)
	if got := m.textarea.Value(); got != "try again" {
		t.Errorf("input = %q, want it untouched", got)
	}
	if m.sending {
		t.Error("sending should be cleared")
	}
	if !errors.Is(m.err, chat.ErrEmptyInput) {
		t.Errorf("err = %v", m.err)
	}
}

func TestNewSessionClearsDraft(t *testing.T) {
	tests := []struct {
		name string
		keys []string
	}{
		{"ctrl+n", []string{"ctrl+n"}},
		{"picker new", []string{"ctrl+o", "n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, mgr, _ := newTestModel(t, &api.MockClient{})
			first := mgr.CurrentID()
			m.textarea.SetValue("draft text for old chat")

			for _, k := range tt.keys {
				m = update(m, key(k))
			}

			if mgr.CurrentID() == first {
				t.Fatal("a new session should be current")
			}
			if m.current.ID != mgr.CurrentID() {
				t.Errorf("view shows %q, want %q", m.current.ID, mgr.CurrentID())
			}
			if got := m.textarea.Value(); got != "" {
				t.Errorf("input = %q, want empty", got)
			}
		})
	}
}

func TestServiceFailureShowsErrorBubble(t *testing.T) {
	mock := &api.MockClient{Chunks: []string{"partial"}, StreamErr: errors.New("boom")}
	m, _, events := newTestModel(t, mock)

	done := m.send("hi", nil)().(sendDoneMsg)
	m = drain(m, events)
	m = update(m, done)

	if !strings.Contains(m.viewport.View(), "Sorry") {
		t.Error("error reply should be rendered")
	}
	if strings.Contains(m.viewport.View(), "partial") {
		t.Error("partial text should be discarded")
	}
	if m.err == nil {
		t.Error("error should be surfaced below the input")
	}
}

func TestSlashCommands(t *testing.T) {
	t.Run("new", func(t *testing.T) {
		m, mgr, _ := newTestModel(t, &api.MockClient{})
		before := mgr.CurrentID()
		m.textarea.SetValue("/new")
		m = update(m, key("enter"))
		if mgr.Len() != 2 || mgr.CurrentID() == before {
			t.Error("/new should create and select a session")
		}
		if m.current.ID != mgr.CurrentID() {
			t.Error("view should follow the new session")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		m, _, _ := newTestModel(t, &api.MockClient{})
		m.textarea.SetValue("/frobnicate")
		m = update(m, key("enter"))
		if !strings.Contains(m.notice, "Unknown command") {
			t.Errorf("notice = %q", m.notice)
		}
	})

	t.Run("attach missing file", func(t *testing.T) {
		m, _, _ := newTestModel(t, &api.MockClient{})
		m.textarea.SetValue("/attach /does/not/exist.png")
		m = update(m, key("enter"))
		if m.err == nil || m.attachment != nil {
			t.Error("attach of a missing file should fail")
		}
	})

	t.Run("exit", func(t *testing.T) {
		m, _, _ := newTestModel(t, &api.MockClient{})
		m.textarea.SetValue("/exit")
		_, cmd := m.Update(key("enter"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}

func TestCopyLastReply(t *testing.T) {
	preload := models.ChatSession{
		ID:    "s1",
		Title: "Existing",
		Messages: []models.Message{
			models.NewUserMessage("hi", "", time.Now()),
			models.NewModelMessage("first reply", "", time.Now()),
			models.NewErrorMessage(time.Now()),
		},
	}
	m, _, _ := newTestModel(t, &api.MockClient{}, preload)

	var copied string
	m.deps.Clipboard = func(s string) error {
		copied = s
		return nil
	}
	m.textarea.SetValue("/copy")
	m = update(m, key("enter"))

	if copied != "first reply" {
		t.Errorf("copied = %q, want the last successful reply", copied)
	}
}

func TestSaveLastImage(t *testing.T) {
	url := models.DataURL("image/png", []byte("\x89PNG\r\n\x1a\nfake"))
	preload := models.ChatSession{
		ID:       "s1",
		Title:    "Existing",
		Messages: []models.Message{models.NewModelMessage("", url, time.Now())},
	}
	m, _, _ := newTestModel(t, &api.MockClient{}, preload)

	m.textarea.SetValue("/save sunset")
	m = update(m, key("enter"))

	path := filepath.Join(m.deps.DownloadDir, "sunset.png")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s: %v (notice %q, err %v)", path, err, m.notice, m.err)
	}
}

func TestPickerSelectAndDelete(t *testing.T) {
	sessions := []models.ChatSession{
		{ID: "a", Title: "Alpha", Messages: []models.Message{}},
		{ID: "b", Title: "Beta", Messages: []models.Message{}},
	}
	m, mgr, _ := newTestModel(t, &api.MockClient{}, sessions...)

	m = update(m, key("ctrl+o"))
	if !m.picking {
		t.Fatal("ctrl+o should open the picker")
	}
	if !strings.Contains(m.View(), "Beta") {
		t.Error("picker should list sessions")
	}

	// cursor starts on the current session (row 1); move to Beta
	m = update(m, key("down"))
	m = update(m, key("enter"))
	if m.picking {
		t.Error("enter should close the picker")
	}
	if mgr.CurrentID() != "b" || m.current.ID != "b" {
		t.Errorf("current = %q, want b", mgr.CurrentID())
	}

	m = update(m, key("ctrl+o"))
	m = update(m, key("d"))
	if _, ok := mgr.Get("b"); ok {
		t.Error("d should delete the highlighted session")
	}
	if !m.picking {
		t.Error("picker stays open after delete")
	}
	m = update(m, key("esc"))
	if m.picking {
		t.Error("esc should close the picker")
	}
}

func TestVoiceUnavailable(t *testing.T) {
	m, _, _ := newTestModel(t, &api.MockClient{})
	m = update(m, key("ctrl+r"))
	if m.notice != speech.UnsupportedNotice {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestVoiceTranscriptReplacesInput(t *testing.T) {
	m, _, _ := newTestModel(t, &api.MockClient{})
	rec := &fakeRecognizer{events: make(chan speech.Event, 4)}
	m.deps.Recognizer = rec
	m.deps.Speech = speech.Capability{Status: speech.Available}
	m.textarea.SetValue("typed")

	m = update(m, key("ctrl+r"))
	if rec.started != 1 || !m.listening {
		t.Fatal("ctrl+r should start listening")
	}
	m = update(m, key("ctrl+r"))
	if rec.stopped != 1 {
		t.Error("second ctrl+r should stop listening")
	}

	m = update(m, speechEventMsg{event: speech.Event{Kind: speech.EventResult, Transcript: "spoken words"}})
	m = update(m, speechEventMsg{event: speech.Event{Kind: speech.EventEnded}})
	if got := m.textarea.Value(); got != "spoken words" {
		t.Errorf("input = %q", got)
	}
	if m.listening {
		t.Error("listening should end")
	}
}

func TestObserverDropsChunksWhenFull(t *testing.T) {
	ch := make(chan chat.Event, 1)
	obs := Observer(ch)

	obs(chat.Event{Kind: chat.EventChunk, Text: "a"})
	obs(chat.Event{Kind: chat.EventChunk, Text: "ab"})

	if len(ch) != 1 {
		t.Fatalf("len = %d, want 1", len(ch))
	}
	if ev := <-ch; ev.Text != "a" {
		t.Errorf("text = %q", ev.Text)
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, "never"},
		{"seconds", now.Add(-10 * time.Second), "just now"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-3 * time.Hour), "3h ago"},
		{"days", now.Add(-2 * 24 * time.Hour), "2d ago"},
		{"old", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), "Jan 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relativeTime(now, tt.t); got != tt.want {
				t.Errorf("relativeTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatError(t *testing.T) {
	if FormatError(nil) != "" {
		t.Error("nil error should render empty")
	}
	if !strings.Contains(FormatError(errors.New("boom")), "boom") {
		t.Error("message should be included")
	}
}
