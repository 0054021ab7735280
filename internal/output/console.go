package output

import (
	"bytes"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/ssh2shell/internal/ui"
	"github.com/rileyhilliard/ssh2shell/pkg/shell"
)

// Console prints session output line by line. Chunks from several hosts
// (a session and its hops) are buffered per host so lines never interleave.
type Console struct {
	out io.Writer
	mu  sync.Mutex

	prefix    bool
	strip     bool
	formatter Formatter

	pending map[string][]byte
	order   []string
	lines   int
}

// NewConsole creates a console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{
		out:     out,
		pending: make(map[string][]byte),
	}
}

// SetPrefix puts "[host] " in front of every line.
func (c *Console) SetPrefix(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefix = on
}

// SetStripANSI removes terminal escape sequences before printing.
func (c *Console) SetStripANSI(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strip = on
}

// SetFormatter sets the line formatter. nil passes lines through.
func (c *Console) SetFormatter(f Formatter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.formatter = f
}

// Lines returns the number of lines printed so far.
func (c *Console) Lines() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines
}

// Write buffers p for host and prints every complete line.
func (c *Console) Write(host string, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[host]; !ok {
		c.order = append(c.order, host)
	}
	buf := append(c.pending[host], p...)

	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}
		if err := c.printLocked(host, buf[:idx]); err != nil {
			c.pending[host] = buf[idx+1:]
			return err
		}
		buf = buf[idx+1:]
	}
	c.pending[host] = buf
	return nil
}

// Flush prints buffered partial lines, such as a prompt waiting for input.
func (c *Console) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, host := range c.order {
		buf := c.pending[host]
		if len(buf) == 0 {
			continue
		}
		c.pending[host] = nil
		if err := c.printLocked(host, buf); err != nil {
			return err
		}
	}
	return nil
}

// Writer returns an io.Writer feeding Write for host, for use as a pipe sink.
func (c *Console) Writer(host string) io.Writer {
	return hostWriter{c: c, host: host}
}

func (c *Console) printLocked(host string, raw []byte) error {
	line := string(bytes.TrimSuffix(raw, []byte("\r")))
	if c.strip {
		line = shell.StripANSI(line)
	}
	if c.formatter != nil {
		line = c.formatter.ProcessLine(line)
	}
	if c.prefix && host != "" {
		line = lipgloss.NewStyle().Foreground(ui.ColorMuted).Render("["+host+"]") + " " + line
	}

	c.lines++
	_, err := io.WriteString(c.out, line+"\n")
	return err
}

type hostWriter struct {
	c    *Console
	host string
}

func (w hostWriter) Write(p []byte) (int, error) {
	if err := w.c.Write(w.host, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
