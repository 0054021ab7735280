package output

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/ssh2shell/internal/ui"
)

// Formatter processes session output lines for display.
type Formatter interface {
	// Name returns the formatter identifier.
	Name() string

	// ProcessLine transforms a single line of output.
	ProcessLine(line string) string
}

// GenericFormatter highlights lines that look like shell errors.
type GenericFormatter struct {
	errorStyle lipgloss.Style
}

// NewGenericFormatter creates a formatter with default error styling.
func NewGenericFormatter() *GenericFormatter {
	return &GenericFormatter{
		errorStyle: lipgloss.NewStyle().Foreground(ui.ColorError),
	}
}

// Name returns "generic".
func (f *GenericFormatter) Name() string {
	return "generic"
}

// ProcessLine renders error lines in red.
func (f *GenericFormatter) ProcessLine(line string) string {
	if isErrorLine(line) {
		return f.errorStyle.Render(line)
	}
	return line
}

var errorPrefixes = []string{
	"error:",
	"error ",
	"fatal:",
	"panic:",
	"sudo:",
	"failed:",
}

var errorFragments = []string{
	": command not found",
	": permission denied",
	": no such file or directory",
	"sorry, try again.",
}

// isErrorLine checks if a line looks like an error from the remote shell.
func isErrorLine(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))

	for _, prefix := range errorPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	for _, frag := range errorFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return strings.Contains(line, "ERROR")
}

// PassthroughFormatter passes all lines through unchanged.
type PassthroughFormatter struct{}

// NewPassthroughFormatter creates a no-op formatter.
func NewPassthroughFormatter() *PassthroughFormatter {
	return &PassthroughFormatter{}
}

// Name returns "passthrough".
func (f *PassthroughFormatter) Name() string {
	return "passthrough"
}

// ProcessLine returns the line unchanged.
func (f *PassthroughFormatter) ProcessLine(line string) string {
	return line
}
