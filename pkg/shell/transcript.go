package shell

import (
	"strings"
	"sync"
)

// transcript accumulates the session text. Reads may happen concurrently
// with the session goroutine appending.
type transcript struct {
	mu sync.Mutex
	sb strings.Builder
}

func (t *transcript) append(s string) {
	t.mu.Lock()
	t.sb.WriteString(s)
	t.mu.Unlock()
}

func (t *transcript) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sb.String()
}

// CommandResult is the captured output of one command sent to a shell.
type CommandResult struct {
	Host     string
	Command  string
	Response string
	TimedOut bool
}
