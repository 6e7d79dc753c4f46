// Package tui provides the terminal user interface for nanogenius.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	apierrors "github.com/diogo/nanogenius/internal/errors"
	"github.com/diogo/nanogenius/internal/render"
)

// Color variables (updated from the palette)
var (
	colorBorder lipgloss.Color

	colorUser    lipgloss.Color
	colorModel   lipgloss.Color
	colorAccent  lipgloss.Color
	colorWarning lipgloss.Color
	colorError   lipgloss.Color

	colorText     lipgloss.Color
	colorTextDim  lipgloss.Color
	colorTextMute lipgloss.Color
)

// Style variables (rebuilt when the palette changes)
var (
	headerStyle   lipgloss.Style
	titleStyle    lipgloss.Style
	subtitleStyle lipgloss.Style
	hintStyle     lipgloss.Style

	messagesAreaStyle lipgloss.Style

	userLabelStyle   lipgloss.Style
	userBubbleStyle  lipgloss.Style
	modelLabelStyle  lipgloss.Style
	modelBubbleStyle lipgloss.Style
	errorBubbleStyle lipgloss.Style
	imageLinkStyle   lipgloss.Style

	attachmentStyle lipgloss.Style
	inputPanelStyle lipgloss.Style
	inputLabelStyle lipgloss.Style
	loadingStyle    lipgloss.Style
	noticeStyle     lipgloss.Style
	errorStyle      lipgloss.Style

	statusBarStyle  lipgloss.Style
	statusKeyStyle  lipgloss.Style
	statusDescStyle lipgloss.Style

	welcomeTitleStyle lipgloss.Style
	welcomeIconStyle  lipgloss.Style
	starterKeyStyle   lipgloss.Style
	starterTextStyle  lipgloss.Style

	pickerBoxStyle      lipgloss.Style
	pickerItemStyle     lipgloss.Style
	pickerSelectedStyle lipgloss.Style
	pickerCursorStyle   lipgloss.Style
	pickerMetaStyle     lipgloss.Style
)

// Gradient colors for the loading animation
var gradientColors = []lipgloss.Color{
	lipgloss.Color("#ff6b6b"),
	lipgloss.Color("#feca57"),
	lipgloss.Color("#48dbfb"),
	lipgloss.Color("#ff9ff3"),
	lipgloss.Color("#54a0ff"),
	lipgloss.Color("#5f27cd"),
	lipgloss.Color("#00d2d3"),
	lipgloss.Color("#1dd1a1"),
}

func init() {
	UpdateTheme()
}

// ApplyPalette activates a named palette and rebuilds the styles
func ApplyPalette(name string) bool {
	if !render.SetPalette(name) {
		return false
	}
	UpdateTheme()
	return true
}

// UpdateTheme refreshes all styles from the current palette
func UpdateTheme() {
	p := render.CurrentPalette()

	colorBorder = p.Border
	colorUser = p.User
	colorModel = p.Model
	colorAccent = p.Accent
	colorWarning = p.Warning
	colorError = p.Error
	colorText = p.Text
	colorTextDim = p.TextDim
	colorTextMute = p.TextMute

	rebuildStyles()
}

func rebuildStyles() {
	headerStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 2)

	titleStyle = lipgloss.NewStyle().
		Foreground(colorModel).
		Bold(true)

	subtitleStyle = lipgloss.NewStyle().
		Foreground(colorTextDim)

	hintStyle = lipgloss.NewStyle().
		Foreground(colorTextMute).
		Italic(true)

	messagesAreaStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)

	userLabelStyle = lipgloss.NewStyle().
		Foreground(colorUser).
		Bold(true).
		MarginLeft(4)

	userBubbleStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorUser).
		Padding(0, 1).
		MarginLeft(4)

	modelLabelStyle = lipgloss.NewStyle().
		Foreground(colorModel).
		Bold(true)

	modelBubbleStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorModel).
		Foreground(colorText).
		Padding(0, 1).
		MarginRight(4)

	errorBubbleStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorError).
		Foreground(colorError).
		Padding(0, 1).
		MarginRight(4)

	imageLinkStyle = lipgloss.NewStyle().
		Foreground(colorAccent).
		Underline(true)

	attachmentStyle = lipgloss.NewStyle().
		Foreground(colorAccent).
		PaddingLeft(1)

	inputPanelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)

	inputLabelStyle = lipgloss.NewStyle().
		Foreground(colorModel).
		Bold(true)

	loadingStyle = lipgloss.NewStyle().
		Foreground(colorAccent).
		Bold(true)

	noticeStyle = lipgloss.NewStyle().
		Foreground(colorWarning).
		PaddingLeft(1)

	errorStyle = lipgloss.NewStyle().
		Foreground(colorError).
		Bold(true)

	statusBarStyle = lipgloss.NewStyle().
		Foreground(colorTextMute)

	statusKeyStyle = lipgloss.NewStyle().
		Foreground(colorTextDim).
		Bold(true)

	statusDescStyle = lipgloss.NewStyle().
		Foreground(colorTextMute)

	welcomeTitleStyle = lipgloss.NewStyle().
		Foreground(colorModel).
		Bold(true).
		Align(lipgloss.Center)

	welcomeIconStyle = lipgloss.NewStyle().
		Foreground(colorAccent).
		Align(lipgloss.Center)

	starterKeyStyle = lipgloss.NewStyle().
		Foreground(colorAccent).
		Bold(true)

	starterTextStyle = lipgloss.NewStyle().
		Foreground(colorText)

	pickerBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorModel).
		Padding(1, 2)

	pickerItemStyle = lipgloss.NewStyle().
		Foreground(colorText)

	pickerSelectedStyle = lipgloss.NewStyle().
		Foreground(colorAccent).
		Bold(true)

	pickerCursorStyle = lipgloss.NewStyle().
		Foreground(colorAccent)

	pickerMetaStyle = lipgloss.NewStyle().
		Foreground(colorTextDim)
}

// FormatError returns a styled error line with a hint when one applies
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(errorStyle.Render(fmt.Sprintf("✗ %v", err)))

	dim := lipgloss.NewStyle().Foreground(colorTextDim)
	if status := apierrors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(dim.Render(fmt.Sprintf("\n  HTTP Status: %d", status)))
	}
	if hint := apierrors.Hint(err); hint != "" {
		sb.WriteString(dim.Render("\n  Hint: " + hint))
	}
	return sb.String()
}
