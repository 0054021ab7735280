package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Semantic colors for status indication. ANSI codes so they follow the
// terminal's palette.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
	ColorAccent    lipgloss.Color = "5" // Magenta
)

// GradientColors are cycled by the spinner.
var GradientColors = []lipgloss.Color{ColorAccent, ColorSecondary, ColorInfo, ColorSuccess}

// Color modes accepted by ApplyColorMode.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// ApplyColorMode sets the lipgloss color profile for output written to f and
// returns it. "auto" drops color when f isn't a terminal or NO_COLOR is set.
func ApplyColorMode(mode string, f *os.File) termenv.Profile {
	var profile termenv.Profile
	switch mode {
	case ColorNever:
		profile = termenv.Ascii
	case ColorAlways:
		profile = termenv.NewOutput(f, termenv.WithUnsafe()).ColorProfile()
		if profile == termenv.Ascii {
			profile = termenv.ANSI
		}
	default:
		if !IsTerminal(f) {
			profile = termenv.Ascii
		} else {
			profile = termenv.NewOutput(f).EnvColorProfile()
		}
	}
	lipgloss.SetColorProfile(profile)
	return profile
}

// DisableColors switches every style to plain text (--no-color).
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
