package shell

import (
	"bufio"
	"context"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/ssh2shell/internal/errors"
	"github.com/rileyhilliard/ssh2shell/pkg/sshutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedShell plays the remote side of a shell over io.Pipe. reply maps
// each typed line to output; returning closeNow ends the stream.
type scriptedShell struct {
	outR *io.PipeReader
	inW  *io.PipeWriter

	mu    sync.Mutex
	typed []string
}

// chunkBreak splits a reply into separate writes, so the client reads them
// as separate chunks.
const chunkBreak = "\x00"

func newScriptedShell(greeting string, reply func(line string) (out string, closeNow bool)) *scriptedShell {
	outR, outW := io.Pipe()
	inR, inW := io.Pipe()
	sh := &scriptedShell{outR: outR, inW: inW}

	go func() {
		defer outW.Close()
		if _, err := io.WriteString(outW, greeting); err != nil {
			return
		}
		scanner := bufio.NewScanner(inR)
		for scanner.Scan() {
			line := scanner.Text()
			sh.mu.Lock()
			sh.typed = append(sh.typed, line)
			sh.mu.Unlock()

			out, closeNow := reply(line)
			for _, part := range strings.Split(out, chunkBreak) {
				if _, err := io.WriteString(outW, part); err != nil {
					return
				}
			}
			if closeNow {
				return
			}
		}
	}()
	return sh
}

func (s *scriptedShell) Read(p []byte) (int, error)  { return s.outR.Read(p) }
func (s *scriptedShell) Write(p []byte) (int, error) { return s.inW.Write(p) }

func (s *scriptedShell) Close() error {
	_ = s.inW.Close()
	return s.outR.Close()
}

func (s *scriptedShell) lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.typed...)
}

type fakeConn struct {
	shell  *scriptedShell
	closed bool
}

func (c *fakeConn) OpenShell(sshutil.PTY) (Stream, error) { return c.shell, nil }
func (c *fakeConn) Close() error                          { c.closed = true; return nil }

type fakeDialer struct {
	conn *fakeConn
	err  error
}

func (d *fakeDialer) Dial(context.Context, sshutil.Settings) (Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

func (d *fakeDialer) DialVia(context.Context, Conn, sshutil.Settings) (Conn, error) {
	return nil, errors.New(errors.ErrSSH, "no hops in fake", "")
}

const colourPrompt = "\x1b[32mdeploy@box\x1b[0m:~$ "

func TestSession_ResponsesAndStripANSI(t *testing.T) {
	sh := newScriptedShell("\x1b]0;box\x07"+colourPrompt, func(line string) (string, bool) {
		switch line {
		case "apt-get install htop":
			return line + "\r\nDo you want to continue? [Y/n] ", false
		case "Y":
			return "Y\r\n\x1b[1mdone\x1b[0m\r\n" + colourPrompt, false
		case "exit":
			return "logout\r\n", true
		}
		return line + "\r\n" + colourPrompt, false
	})
	conn := &fakeConn{shell: sh}

	host := Host{
		Server:    sshutil.Settings{Host: "box", UserName: "deploy"},
		Commands:  []string{"apt-get install htop"},
		Responses: []Response{{Match: regexp.MustCompile(`\[Y/n\]\s*$`), Send: "Y"}},
		StripANSI: true,
	}
	s := New(host, WithDialer(&fakeDialer{conn: conn}))
	rec := record(s)

	text, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"apt-get install htop", "Y", "exit"}, sh.lines())
	assert.Equal(t, "apt-get install htop\r\nDo you want to continue? [Y/n] Y\r\ndone\r\ndeploy@box:~$ logout\r\n", text)
	assert.NotContains(t, text, "\x1b")
	assert.Contains(t, rec.data(), "\x1b[1mdone", "data events carry raw bytes")
	assert.True(t, conn.closed)
}

func TestSession_ExplicitExit(t *testing.T) {
	sh := newScriptedShell("$ ", func(line string) (string, bool) {
		if line == "exit" {
			return "exit\r\nlogout\r\n", true
		}
		return line + "\r\n$ ", false
	})

	s := New(Host{Server: sshutil.Settings{Host: "box"}, Commands: []string{"exit"}},
		WithDialer(&fakeDialer{conn: &fakeConn{shell: sh}}))
	text, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "exit\r\nlogout\r\n", text)
	assert.Equal(t, []string{"exit"}, sh.lines(), "no second exit is sent")
}

func TestSession_ExitBeforeRemainingCommands(t *testing.T) {
	sh := newScriptedShell("$ ", func(line string) (string, bool) {
		return "bye\r\n", line == "exit"
	})

	s := New(Host{Server: sshutil.Settings{Host: "box"}, Commands: []string{"exit", "ls"}},
		WithDialer(&fakeDialer{conn: &fakeConn{shell: sh}}))
	_, err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrShell))
}

func TestSession_UnexpectedClose(t *testing.T) {
	sh := newScriptedShell("$ ", func(line string) (string, bool) {
		return "Connection to box closed.\r\n", true
	})

	s := New(Host{Server: sshutil.Settings{Host: "box"}, Commands: []string{"reboot", "uptime"}},
		WithDialer(&fakeDialer{conn: &fakeConn{shell: sh}}))
	text, err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrShell))
	assert.Contains(t, err.Error(), "closed unexpectedly")
	assert.Contains(t, text, "Connection to box closed.")
}

func TestSession_NoPromptAtLogin(t *testing.T) {
	sh := newScriptedShell("Last login: never\r\n", func(line string) (string, bool) {
		return "", line == "exit"
	})

	host := Host{
		Server:      sshutil.Settings{Host: "box"},
		Commands:    []string{"ls"},
		IdleTimeout: 200 * time.Millisecond,
	}
	_, err := New(host, WithDialer(&fakeDialer{conn: &fakeConn{shell: sh}})).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTimeout))
	assert.Contains(t, err.Error(), "No shell prompt")
}

func TestSession_PromptPattern(t *testing.T) {
	sh := newScriptedShell("(router) ", func(line string) (string, bool) {
		if line == "exit" {
			return "", true
		}
		return strings.ToUpper(line) + "\r\n(router) ", false
	})

	host := Host{
		Server:        sshutil.Settings{Host: "router"},
		Commands:      []string{"show version"},
		PromptPattern: regexp.MustCompile(`\(router\) $`),
	}
	text, err := New(host, WithDialer(&fakeDialer{conn: &fakeConn{shell: sh}})).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SHOW VERSION\r\n(router) ", text)
}

func TestSession_DialError(t *testing.T) {
	dialErr := errors.New(errors.ErrSSH, "Can't reach box", "")
	var calls int
	s := New(Host{Server: sshutil.Settings{Host: "box"}}, WithDialer(&fakeDialer{err: dialErr}))
	require.NoError(t, s.Connect(context.Background(), func(string) { calls++ }))

	_, err := s.Wait()
	assert.Equal(t, dialErr, err)
	assert.Equal(t, 1, calls)
}

func TestSSHDialer_HopNeedsSSHConn(t *testing.T) {
	_, err := SSHDialer{}.DialVia(context.Background(), &fakeConn{}, sshutil.Settings{Host: "inner"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
}

func TestSession_CancelKeepsPartialOutput(t *testing.T) {
	sh := newScriptedShell("$ ", func(line string) (string, bool) {
		if line == "tail -f log" {
			return line + "\r\nline one\r\nline two\r\n", false
		}
		return "", line == "exit"
	})

	host := Host{
		Server:      sshutil.Settings{Host: "box"},
		Commands:    []string{"tail -f log"},
		IdleTimeout: time.Minute,
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(host, WithDialer(&fakeDialer{conn: &fakeConn{shell: sh}}))
	s.On(EventCommandProcessing, func(e Event) {
		if strings.Contains(e.Response, "line two") {
			cancel()
		}
	})

	text, err := s.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "tail -f log\r\nline one\r\nline two\r\n", text)
}

func TestSession_CancelBeforeReadyKeepsLogin(t *testing.T) {
	sh := newScriptedShell("Last login: never\r\n", func(line string) (string, bool) {
		return "", line == "exit"
	})

	host := Host{
		Server:      sshutil.Settings{Host: "box"},
		Commands:    []string{"ls"},
		IdleTimeout: time.Minute,
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(host, WithDialer(&fakeDialer{conn: &fakeConn{shell: sh}}))
	s.On(EventData, func(Event) { cancel() })

	text, err := s.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "Last login: never\r\n", text)
}

func TestSession_SudoOutputEndingInColon(t *testing.T) {
	sh := newScriptedShell("$ ", func(line string) (string, bool) {
		switch line {
		case "sudo ls -R /etc/app":
			return line + "\r\n[sudo] password for deploy: ", false
		case "hunter2":
			return "\r\n/etc/app:" + chunkBreak + "\r\nconfig.yaml\r\n$ ", false
		case "exit":
			return "logout\r\n", true
		}
		return line + "\r\n$ ", false
	})

	host := Host{
		Server:   sshutil.Settings{Host: "box", UserName: "deploy", Password: "hunter2"},
		Commands: []string{"sudo ls -R /etc/app"},
	}
	text, err := New(host, WithDialer(&fakeDialer{conn: &fakeConn{shell: sh}})).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "/etc/app:\r\nconfig.yaml\r\n")
	assert.Equal(t, []string{"sudo ls -R /etc/app", "hunter2", "exit"}, sh.lines())
}

func TestSession_SudoRetryPromptIsRejection(t *testing.T) {
	sh := newScriptedShell("$ ", func(line string) (string, bool) {
		switch line {
		case "sudo whoami":
			return line + "\r\n[sudo] password for deploy: ", false
		case "exit":
			return "", true
		}
		return "\r\n" + chunkBreak + "Sorry, try again.\r\n[sudo] password for deploy: ", false
	})

	host := Host{
		Server:   sshutil.Settings{Host: "box", UserName: "deploy", Password: "wrong"},
		Commands: []string{"sudo whoami"},
	}
	_, err := New(host, WithDialer(&fakeDialer{conn: &fakeConn{shell: sh}})).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrAuth))
	assert.Equal(t, []string{"sudo whoami", "wrong"}, sh.lines())
}

func TestSession_AutoExitOutputInTranscript(t *testing.T) {
	sh := newScriptedShell("$ ", func(line string) (string, bool) {
		if line == "exit" {
			return "exit\r\n" + chunkBreak + "logout\r\n", true
		}
		return line + "\r\n$ ", false
	})

	host := Host{Server: sshutil.Settings{Host: "box"}, Commands: []string{"pwd"}}
	text, err := New(host, WithDialer(&fakeDialer{conn: &fakeConn{shell: sh}})).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pwd\r\n$ exit\r\nlogout\r\n", text)
}
