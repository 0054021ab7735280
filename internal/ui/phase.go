package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// DividerWidth is the default width for divider lines.
const DividerWidth = 64

// Markers around the transcript printed when a session completes.
const (
	TranscriptStart = "-----Callback session text:"
	TranscriptEnd   = "-----Callback end"
)

// PhaseDisplay renders session status lines to a writer, normally stderr.
type PhaseDisplay struct {
	w io.Writer
}

// NewPhaseDisplay creates a display writing to w.
func NewPhaseDisplay(w io.Writer) *PhaseDisplay {
	return &PhaseDisplay{w: w}
}

// RenderSuccess renders a completed phase.
// Shows: ● Connected deploy@box 0.3s
func (pd *PhaseDisplay) RenderSuccess(name string, duration time.Duration) {
	fmt.Fprintln(pd.w, FormatPhase(SymbolComplete, ColorSuccess, name, formatDuration(duration)))
}

// RenderFailed renders a failed phase followed by the error, indented.
func (pd *PhaseDisplay) RenderFailed(name string, duration time.Duration, err error) {
	fmt.Fprintln(pd.w, FormatPhase(SymbolFail, ColorError, name, formatDuration(duration)))
	if err != nil {
		muted := lipgloss.NewStyle().Foreground(ColorMuted)
		for _, line := range strings.Split(strings.TrimRight(err.Error(), "\n"), "\n") {
			fmt.Fprintf(pd.w, "  %s\n", muted.Render(line))
		}
	}
}

// RenderSkipped renders a skipped phase with an optional reason.
func (pd *PhaseDisplay) RenderSkipped(name, reason string) {
	if reason != "" {
		reason = "(" + reason + ")"
	}
	fmt.Fprintln(pd.w, FormatPhase(SymbolSkipped, ColorWarning, name, reason))
}

// RenderTimeout renders a command that stopped producing output.
// Shows: ⧗ sleep 60 went quiet
func (pd *PhaseDisplay) RenderTimeout(command string, after time.Duration) {
	fmt.Fprintln(pd.w, FormatPhase(SymbolTimeout, ColorWarning, command,
		"no prompt after "+after.String()))
}

// Message renders a local notice from a msg: command.
func (pd *PhaseDisplay) Message(text string) {
	style := lipgloss.NewStyle().Foreground(ColorInfo)
	fmt.Fprintf(pd.w, "%s %s\n", style.Render(SymbolMessage), text)
}

// Divider renders a horizontal line to separate status from session output.
func (pd *PhaseDisplay) Divider() {
	fmt.Fprintf(pd.w, "\n%s\n\n", FormatDivider(DividerWidth))
}

// Transcript prints the completed transcript between the callback markers.
func (pd *PhaseDisplay) Transcript(text string) {
	marker := lipgloss.NewStyle().Foreground(ColorMuted)
	fmt.Fprintln(pd.w, marker.Render(TranscriptStart))
	fmt.Fprint(pd.w, text)
	if text != "" && !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(pd.w)
	}
	fmt.Fprintln(pd.w, marker.Render(TranscriptEnd))
}

// FormatPhase returns a formatted phase line.
func FormatPhase(symbol string, symbolColor lipgloss.Color, name string, timing string) string {
	symbolStyle := lipgloss.NewStyle().Foreground(symbolColor)
	if timing == "" {
		return fmt.Sprintf("%s %s", symbolStyle.Render(symbol), name)
	}
	timingStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	return fmt.Sprintf("%s %s %s", symbolStyle.Render(symbol), name, timingStyle.Render(timing))
}

// FormatDivider returns a divider line of the given width.
func FormatDivider(width int) string {
	style := lipgloss.NewStyle().Foreground(ColorMuted)
	return style.Render(strings.Repeat("━", width))
}
