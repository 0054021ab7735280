package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// HeaderInfo is shown by the version command.
type HeaderInfo struct {
	Version string
	Tagline string
}

// HeaderWidth is the width of the header divider.
const HeaderWidth = 50

// RenderHeader renders the name, version and tagline above a divider.
func RenderHeader(info HeaderInfo) string {
	title := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	version := lipgloss.NewStyle().Foreground(ColorInfo)

	var out strings.Builder
	out.WriteString(title.Render("ssh2shell"))
	out.WriteString(" ")
	out.WriteString(version.Render(info.Version))
	out.WriteString("\n")
	if info.Tagline != "" {
		out.WriteString(lipgloss.NewStyle().Foreground(ColorSecondary).Render(info.Tagline))
		out.WriteString("\n")
	}
	out.WriteString(FormatDivider(HeaderWidth))
	out.WriteString("\n")
	return out.String()
}
