package shell

import "strings"

type commandKind int

const (
	kindShell   commandKind = iota // sent to the remote shell
	kindMessage                    // msg:text, emitted as a msg event
	kindText                       // `text`, appended to the transcript
)

const messagePrefix = "msg:"

type command struct {
	raw  string
	kind commandKind
	text string // what to send, emit, or append
}

func parseCommand(raw string) command {
	switch {
	case strings.HasPrefix(raw, messagePrefix):
		return command{raw: raw, kind: kindMessage, text: strings.TrimPrefix(raw, messagePrefix)}
	case len(raw) >= 2 && strings.HasPrefix(raw, "`") && strings.HasSuffix(raw, "`"):
		return command{raw: raw, kind: kindText, text: raw[1 : len(raw)-1]}
	default:
		return command{raw: raw, kind: kindShell, text: raw}
	}
}

func (c command) usesSudo() bool {
	for _, f := range strings.Fields(c.text) {
		if f == "sudo" {
			return true
		}
	}
	return false
}

func (c command) isSSH() bool {
	f := strings.Fields(c.text)
	return len(f) > 0 && f[0] == "ssh"
}

// endsShell reports whether the command closes the login shell on its own.
func (c command) endsShell() bool {
	f := strings.Fields(c.text)
	return len(f) > 0 && (f[0] == "exit" || f[0] == "logout")
}
