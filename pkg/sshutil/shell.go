package sshutil

import (
	"io"
	"sync"

	"github.com/rileyhilliard/ssh2shell/internal/errors"
	"golang.org/x/crypto/ssh"
)

// PTY describes the pseudo-terminal requested for an interactive shell.
type PTY struct {
	Term  string // defaults to "xterm"
	Cols  int    // defaults to 80
	Rows  int    // defaults to 24
	Modes ssh.TerminalModes
}

func (p PTY) withDefaults() PTY {
	if p.Term == "" {
		p.Term = "xterm"
	}
	if p.Cols <= 0 {
		p.Cols = 80
	}
	if p.Rows <= 0 {
		p.Rows = 24
	}
	if p.Modes == nil {
		p.Modes = ssh.TerminalModes{
			ssh.ECHO:          1,
			ssh.TTY_OP_ISPEED: 14400,
			ssh.TTY_OP_OSPEED: 14400,
		}
	}
	return p
}

// Shell is an interactive login shell running on a PTY. Reads return stdout and
// stderr interleaved as the remote produced them; writes go to stdin.
type Shell struct {
	session *ssh.Session
	stdin   io.WriteCloser
	out     *io.PipeReader

	waitDone chan struct{}
	waitErr  error

	closeOnce sync.Once
}

// OpenShell requests a PTY and starts the user's login shell on a new session.
func (c *Client) OpenShell(pty PTY) (*Shell, error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}

	// Single stream for stdout+stderr. io.Pipe serialises the two copy goroutines.
	pr, pw := io.Pipe()
	session.Stdout = pw
	session.Stderr = pw

	stdin, err := session.StdinPipe()
	if err != nil {
		_ = pw.Close()
		_ = session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to attach to shell stdin",
			"Connection may have been closed. Try reconnecting.")
	}

	pty = pty.withDefaults()
	if err := session.RequestPty(pty.Term, pty.Rows, pty.Cols, pty.Modes); err != nil {
		_ = pw.Close()
		_ = session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to allocate PTY for shell",
			"The remote host may not support pseudo-terminals.")
	}

	if err := session.Shell(); err != nil {
		_ = pw.Close()
		_ = session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to start shell",
			"Check if your user has shell access on the remote host.")
	}

	sh := &Shell{
		session:  session,
		stdin:    stdin,
		out:      pr,
		waitDone: make(chan struct{}),
	}

	go func() {
		sh.waitErr = session.Wait()
		// EOF for readers once the remote side is gone and output is drained.
		_ = pw.Close()
		close(sh.waitDone)
	}()

	return sh, nil
}

// Read reads combined shell output.
func (s *Shell) Read(p []byte) (int, error) {
	return s.out.Read(p)
}

// Write sends input to the shell.
func (s *Shell) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

// Resize tells the remote PTY about a new window size.
func (s *Shell) Resize(cols, rows int) error {
	return s.session.WindowChange(rows, cols)
}

// Wait blocks until the remote shell exits and returns its exit status error,
// an *ssh.ExitError for a non-zero status.
func (s *Shell) Wait() error {
	<-s.waitDone
	return s.waitErr
}

// Close tears the session down. Safe to call more than once.
func (s *Shell) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.stdin.Close()
		err = s.session.Close()
		if err == io.EOF {
			err = nil
		}
	})
	return err
}
