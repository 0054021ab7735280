package shell

import (
	"regexp"
	"strings"
)

// ansiPattern matches CSI sequences, OSC sequences (window titles), and
// charset selection escapes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)|\x1b[()][A-Z0-9]`)

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	return ansiPattern.ReplaceAllString(s, "")
}

// endsWithAny compiles a pattern matching any of chars at the end of the
// input, followed only by spaces or tabs. Newlines are excluded so that the
// echo of an answer does not look like the prompt again.
func endsWithAny(chars string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteByte('[')
	for _, r := range chars {
		switch r {
		case '\\', ']', '[', '^', '-':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteString(`][ \t]*$`)
	return regexp.MustCompile(sb.String())
}

// prompts holds the compiled matchers for one host.
type prompts struct {
	standard   *regexp.Regexp
	password   *regexp.Regexp
	passphrase *regexp.Regexp
}

func compilePrompts(h Host) prompts {
	p := prompts{
		standard:   h.PromptPattern,
		password:   endsWithAny(h.PasswordPrompt),
		passphrase: endsWithAny(h.PassphrasePrompt),
	}
	if p.standard == nil {
		p.standard = endsWithAny(h.StandardPrompt)
	}
	return p
}
