package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/nanogenius/internal/models"
)

// pickerAction is what the user chose in the session picker
type pickerAction int

const (
	pickerNone pickerAction = iota
	pickerClose
	pickerSelect
	pickerDelete
	pickerNew
)

// sessionPicker is the session list overlay. Row 0 is "New chat".
type sessionPicker struct {
	sessions  []models.ChatSession
	currentID string
	cursor    int
	now       func() time.Time
}

func newSessionPicker(sessions []models.ChatSession, currentID string) sessionPicker {
	p := sessionPicker{sessions: sessions, currentID: currentID, now: time.Now}
	for i, s := range sessions {
		if s.ID == currentID {
			p.cursor = i + 1
		}
	}
	return p
}

// selected returns the session under the cursor, if any
func (p sessionPicker) selected() (models.ChatSession, bool) {
	if p.cursor == 0 || p.cursor > len(p.sessions) {
		return models.ChatSession{}, false
	}
	return p.sessions[p.cursor-1], true
}

// refresh replaces the list, keeping the cursor in range
func (p *sessionPicker) refresh(sessions []models.ChatSession, currentID string) {
	p.sessions = sessions
	p.currentID = currentID
	if p.cursor > len(sessions) {
		p.cursor = len(sessions)
	}
}

func (p sessionPicker) update(msg tea.KeyMsg) (sessionPicker, pickerAction) {
	rows := len(p.sessions) + 1

	switch msg.String() {
	case "esc", "q", "ctrl+o":
		return p, pickerClose
	case "up", "k":
		p.cursor--
		if p.cursor < 0 {
			p.cursor = rows - 1
		}
	case "down", "j", "tab":
		p.cursor++
		if p.cursor >= rows {
			p.cursor = 0
		}
	case "home", "g":
		p.cursor = 0
	case "end", "G":
		p.cursor = rows - 1
	case "n":
		return p, pickerNew
	case "d", "delete", "x":
		if _, ok := p.selected(); ok {
			return p, pickerDelete
		}
	case "enter":
		if p.cursor == 0 {
			return p, pickerNew
		}
		return p, pickerSelect
	}
	return p, pickerNone
}

func (p sessionPicker) view(width, height int) string {
	if width < 40 {
		width = 40
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("Conversations"))
	content.WriteString("\n\n")

	maxItems := max(5, (height-10)/2)
	offset := 0
	if p.cursor >= maxItems {
		offset = p.cursor - maxItems + 1
	}
	end := min(offset+maxItems, len(p.sessions)+1)

	if offset > 0 {
		content.WriteString(hintStyle.Render("  ↑ more above") + "\n")
	}
	for row := offset; row < end; row++ {
		content.WriteString(p.renderRow(row, width-8))
		content.WriteString("\n")
	}
	if end < len(p.sessions)+1 {
		content.WriteString(hintStyle.Render("  ↓ more below") + "\n")
	}

	content.WriteString("\n")
	shortcuts := []string{
		statusKeyStyle.Render("↑↓") + statusDescStyle.Render(" Navigate"),
		statusKeyStyle.Render("Enter") + statusDescStyle.Render(" Open"),
		statusKeyStyle.Render("n") + statusDescStyle.Render(" New"),
		statusKeyStyle.Render("d") + statusDescStyle.Render(" Delete"),
		statusKeyStyle.Render("Esc") + statusDescStyle.Render(" Close"),
	}
	content.WriteString(strings.Join(shortcuts, "  │  "))

	return pickerBoxStyle.Width(width).Render(content.String())
}

func (p sessionPicker) renderRow(row, width int) string {
	cursor := "  "
	style := pickerItemStyle
	if row == p.cursor {
		cursor = pickerCursorStyle.Render("▸ ")
		style = pickerSelectedStyle
	}

	if row == 0 {
		return cursor + style.Render("+ New chat")
	}

	s := p.sessions[row-1]
	title := s.Title
	if title == "" {
		title = models.DefaultSessionTitle
	}
	marker := ""
	if s.ID == p.currentID {
		marker = pickerMetaStyle.Render(" •")
	}

	meta := fmt.Sprintf(" %d msgs · %s", len(s.Messages), relativeTime(p.now(), time.UnixMilli(s.UpdatedAt)))
	line := cursor + style.Render(title) + marker + pickerMetaStyle.Render(meta)

	if preview := lastPreview(s); preview != "" {
		room := width - lipgloss.Width(line) - 3
		if room > 10 {
			line += hintStyle.Render("  " + models.Preview(preview, room))
		}
	}
	return line
}

// lastPreview returns the text of the newest message that has any
func lastPreview(s models.ChatSession) string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Text != "" {
			return s.Messages[i].Text
		}
	}
	return ""
}

func relativeTime(now, t time.Time) string {
	if t.IsZero() || t.UnixMilli() == 0 {
		return "never"
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}
