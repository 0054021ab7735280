package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// SessionSummary is what the summary line reports about a finished session.
type SessionSummary struct {
	Host     string
	Commands int
	TimedOut int
	Duration time.Duration
	Err      error
}

// RenderSessionSummary renders the one-line result of a session.
//
//	● 4 commands on deploy@box 2.1s
//	✗ deploy@box failed after 2 commands 5.0s
func RenderSessionSummary(s SessionSummary) string {
	noun := "command"
	if s.Commands != 1 {
		noun = "commands"
	}

	var line string
	if s.Err != nil {
		line = FormatPhase(SymbolFail, ColorError,
			fmt.Sprintf("%s failed after %d %s", s.Host, s.Commands, noun),
			formatDuration(s.Duration))
	} else {
		line = FormatPhase(SymbolComplete, ColorSuccess,
			fmt.Sprintf("%d %s on %s", s.Commands, noun, s.Host),
			formatDuration(s.Duration))
	}

	if s.TimedOut > 0 {
		warn := lipgloss.NewStyle().Foreground(ColorWarning)
		line += " " + warn.Render(fmt.Sprintf("(%d timed out)", s.TimedOut))
	}
	return line
}

// RenderError renders an error block for the CLI's final failure output.
// Structured errors already carry their own layout, so this only adds color.
func RenderError(err error) string {
	if err == nil {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(ColorError)
	lines := strings.Split(strings.TrimRight(err.Error(), "\n"), "\n")
	lines[0] = style.Render(SymbolFail + " " + lines[0])
	return strings.Join(lines, "\n")
}
