package render

import (
	"sort"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Palette is the color scheme of the terminal chat view
type Palette struct {
	Name string

	Surface lipgloss.Color
	Border  lipgloss.Color

	// User and Model color the speaker labels
	User    lipgloss.Color
	Model   lipgloss.Color
	Accent  lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color

	Text     lipgloss.Color
	TextDim  lipgloss.Color
	TextMute lipgloss.Color
}

var palettes = map[string]Palette{
	"tokyonight": {
		Name:     "tokyonight",
		Surface:  lipgloss.Color("#24283b"),
		Border:   lipgloss.Color("#414868"),
		User:     lipgloss.Color("#9ece6a"),
		Model:    lipgloss.Color("#7aa2f7"),
		Accent:   lipgloss.Color("#bb9af7"),
		Warning:  lipgloss.Color("#e0af68"),
		Error:    lipgloss.Color("#f7768e"),
		Text:     lipgloss.Color("#c0caf5"),
		TextDim:  lipgloss.Color("#565f89"),
		TextMute: lipgloss.Color("#3b4261"),
	},
	"catppuccin": {
		Name:     "catppuccin",
		Surface:  lipgloss.Color("#313244"),
		Border:   lipgloss.Color("#45475a"),
		User:     lipgloss.Color("#a6e3a1"),
		Model:    lipgloss.Color("#89b4fa"),
		Accent:   lipgloss.Color("#cba6f7"),
		Warning:  lipgloss.Color("#f9e2af"),
		Error:    lipgloss.Color("#f38ba8"),
		Text:     lipgloss.Color("#cdd6f4"),
		TextDim:  lipgloss.Color("#6c7086"),
		TextMute: lipgloss.Color("#45475a"),
	},
	"nord": {
		Name:     "nord",
		Surface:  lipgloss.Color("#3b4252"),
		Border:   lipgloss.Color("#4c566a"),
		User:     lipgloss.Color("#a3be8c"),
		Model:    lipgloss.Color("#88c0d0"),
		Accent:   lipgloss.Color("#b48ead"),
		Warning:  lipgloss.Color("#ebcb8b"),
		Error:    lipgloss.Color("#bf616a"),
		Text:     lipgloss.Color("#eceff4"),
		TextDim:  lipgloss.Color("#7b88a1"),
		TextMute: lipgloss.Color("#4c566a"),
	},
	"dracula": {
		Name:     "dracula",
		Surface:  lipgloss.Color("#44475a"),
		Border:   lipgloss.Color("#6272a4"),
		User:     lipgloss.Color("#50fa7b"),
		Model:    lipgloss.Color("#8be9fd"),
		Accent:   lipgloss.Color("#ff79c6"),
		Warning:  lipgloss.Color("#f1fa8c"),
		Error:    lipgloss.Color("#ff5555"),
		Text:     lipgloss.Color("#f8f8f2"),
		TextDim:  lipgloss.Color("#6272a4"),
		TextMute: lipgloss.Color("#44475a"),
	},
}

// DefaultPalette is used when no palette is configured
const DefaultPalette = "tokyonight"

var (
	paletteMu     sync.RWMutex
	activePalette = palettes[DefaultPalette]
)

// CurrentPalette returns the active palette
func CurrentPalette() Palette {
	paletteMu.RLock()
	defer paletteMu.RUnlock()
	return activePalette
}

// SetPalette activates the named palette. Unknown names are ignored.
func SetPalette(name string) bool {
	p, ok := palettes[name]
	if !ok {
		return false
	}
	paletteMu.Lock()
	activePalette = p
	paletteMu.Unlock()
	return true
}

// PaletteNames lists the available palettes
func PaletteNames() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
