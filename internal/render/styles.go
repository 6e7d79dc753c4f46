package render

import (
	"sort"

	"github.com/charmbracelet/glamour/styles"
)

// Common style names
const (
	StyleDark  = "dark"
	StyleLight = "light"
	StylePlain = "notty"
)

// styleAliases maps names users tend to type onto glamour's standard styles
var styleAliases = map[string]string{
	"tokyonight": "tokyo-night",
	"plain":      StylePlain,
	"none":       StylePlain,
}

// resolveStyle returns the glamour style to use and whether it is one of
// the standard styles. Anything else is treated as a JSON style path.
func resolveStyle(name string) (string, bool) {
	if name == "" {
		name = StyleDark
	}
	if alias, ok := styleAliases[name]; ok {
		name = alias
	}
	_, ok := styles.DefaultStyles[name]
	return name, ok
}

// StyleNames lists the standard markdown styles
func StyleNames() []string {
	names := make([]string, 0, len(styles.DefaultStyles))
	for name := range styles.DefaultStyles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
