package shell

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rileyhilliard/ssh2shell/internal/errors"
)

type state int

const (
	stateLogin   state = iota // waiting for the first prompt
	stateCommand              // a command is running
	stateExit                 // exit sent, waiting for the shell to close
)

const readBufferSize = 32 * 1024

// runner drives one host's shell. Hops get their own runner sharing the
// parent's Session.
type runner struct {
	s       *Session
	host    Host
	name    string
	via     Conn
	prompts prompts

	conn    Conn
	stream  Stream
	chunks  chan []byte
	quit    chan struct{}
	readErr error
	timer   *time.Timer

	state   state
	queue   []string
	current command
	buf     strings.Builder

	sudoFrom       int    // stripped buffer offset where the sudo password was sent, -1 before
	sudoPrompt     string // the prompt line that was answered
	passphraseSent bool
	responded      map[int]bool
}

func newRunner(s *Session, host Host, via Conn) *runner {
	return &runner{
		s:        s,
		host:     host,
		name:     host.Name(),
		via:      via,
		prompts:  compilePrompts(host),
		chunks:   make(chan []byte),
		quit:     make(chan struct{}),
		queue:    append([]string(nil), host.Commands...),
		sudoFrom: -1,
	}
}

func (r *runner) run(ctx context.Context) error {
	conn, err := r.dial(ctx)
	if err != nil {
		return err
	}
	r.conn = conn
	defer func() {
		_ = conn.Close()
		r.s.emit(Event{Type: EventClose, Host: r.name, Message: r.host.ClosedMessage})
	}()

	r.s.log.Debug("connected to %s", r.name)
	r.s.emit(Event{Type: EventConnect, Host: r.name, Message: r.host.ConnectedMessage})
	r.s.bindSinks(r.name, true)

	stream, err := conn.OpenShell(r.host.PTY)
	if err != nil {
		return err
	}
	r.stream = stream
	defer stream.Close()

	go r.read()
	defer close(r.quit)

	r.timer = time.NewTimer(r.host.IdleTimeout)
	defer r.timer.Stop()

	for {
		var (
			done bool
			err  error
		)
		select {
		case <-ctx.Done():
			r.flush()
			return cancelled(ctx.Err(), r.name)
		case chunk, ok := <-r.chunks:
			if !ok {
				return r.closed()
			}
			done, err = r.handle(ctx, chunk)
		case <-r.timer.C:
			done, err = r.idle(ctx)
		}
		if err != nil || done {
			return err
		}
		r.resetTimer()
	}
}

func (r *runner) dial(ctx context.Context) (Conn, error) {
	if r.via != nil {
		r.s.log.Debug("hopping to %s", r.name)
		return r.s.dialer.DialVia(ctx, r.via, r.host.Server)
	}
	r.s.log.Debug("dialing %s", r.name)
	return r.s.dialer.Dial(ctx, r.host.Server)
}

// read forwards shell output until EOF or until run returns.
func (r *runner) read() {
	defer close(r.chunks)
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case r.chunks <- chunk:
			case <-r.quit:
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				r.readErr = err
			}
			return
		}
	}
}

func (r *runner) resetTimer() {
	if !r.timer.Stop() {
		select {
		case <-r.timer.C:
		default:
		}
	}
	r.timer.Reset(r.host.IdleTimeout)
}

func (r *runner) handle(ctx context.Context, chunk []byte) (bool, error) {
	r.s.emit(Event{Type: EventData, Host: r.name, Data: chunk})
	r.s.writeSinks(r.name, chunk)
	r.buf.Write(chunk)

	switch r.state {
	case stateLogin:
		if r.prompts.standard.MatchString(StripANSI(r.buf.String())) {
			return r.ready(ctx)
		}
	case stateCommand:
		r.s.emit(Event{
			Type:     EventCommandProcessing,
			Host:     r.name,
			Command:  r.current.text,
			Data:     chunk,
			Response: r.buf.String(),
		})
		return r.progress(ctx)
	}
	return false, nil
}

func (r *runner) ready(ctx context.Context) (bool, error) {
	banner := r.buf.String()
	r.buf.Reset()
	if r.host.ShowBanner {
		r.appendTranscript(banner)
	}
	r.s.emit(Event{Type: EventReady, Host: r.name, Message: r.host.ReadyMessage, Response: banner})
	return r.next(ctx)
}

// progress answers prompts for the running command, or completes it once the
// shell prompt is back.
func (r *runner) progress(ctx context.Context) (bool, error) {
	text := StripANSI(r.buf.String())
	cmd := r.current

	if cmd.usesSudo() && r.prompts.password.MatchString(text) {
		switch {
		case r.sudoFrom < 0:
			if r.host.Server.Password == "" {
				return false, errors.New(errors.ErrAuth,
					fmt.Sprintf("sudo on %s asked for a password but none is configured", r.name),
					"Set PASSWORD or server.password, or allow passwordless sudo for this command.")
			}
			r.s.log.Debug("answering sudo password prompt on %s", r.name)
			r.sudoFrom = len(text)
			r.sudoPrompt = strings.TrimSpace(lastLine(text))
			return false, r.send(r.host.Server.Password)
		case r.sudoRejected(text):
			return false, errors.New(errors.ErrAuth,
				fmt.Sprintf("sudo password rejected on %s", r.name),
				"Check that PASSWORD is the account password on the remote host.")
		}
	}

	if cmd.isSSH() && !r.passphraseSent && r.host.Server.Passphrase != "" && r.prompts.passphrase.MatchString(text) {
		r.s.log.Debug("answering passphrase prompt on %s", r.name)
		r.passphraseSent = true
		return false, r.send(r.host.Server.Passphrase)
	}

	if len(r.host.Responses) > 0 {
		last := lastLine(text)
		for i, resp := range r.host.Responses {
			if r.responded[i] || !resp.Match.MatchString(last) {
				continue
			}
			r.responded[i] = true
			return false, r.send(resp.Send)
		}
	}

	if r.prompts.standard.MatchString(text) {
		return r.complete(ctx, false)
	}
	return false, nil
}

// sudoRejected reports whether sudo asked again after the password was sent:
// the answered prompt line came back, or sudo said to try again. Output that
// merely ends in the prompt character, like "/etc/app:", does not count.
func (r *runner) sudoRejected(text string) bool {
	if r.sudoFrom < 0 || r.sudoFrom > len(text) {
		return false
	}
	after := text[r.sudoFrom:]
	if !strings.Contains(after, "\n") {
		return false
	}
	last := strings.TrimSpace(lastLine(after))
	return last == r.sudoPrompt || strings.Contains(after, "try again")
}

func (r *runner) complete(ctx context.Context, timedOut bool) (bool, error) {
	response := r.buf.String()
	r.buf.Reset()
	r.appendTranscript(response)
	r.s.addResult(CommandResult{Host: r.name, Command: r.current.text, Response: response, TimedOut: timedOut})
	if !timedOut {
		r.s.emit(Event{Type: EventCommandComplete, Host: r.name, Command: r.current.text, Response: response})
	}
	return r.next(ctx)
}

// next sends the next shell command. Text and msg entries are handled inline.
// With the queue empty, hops run and the shell is told to exit.
func (r *runner) next(ctx context.Context) (bool, error) {
	for len(r.queue) > 0 {
		cmd := parseCommand(r.queue[0])
		r.queue = r.queue[1:]

		switch cmd.kind {
		case kindText:
			r.appendTranscript(cmd.text + "\n")
		case kindMessage:
			r.s.emit(Event{Type: EventMsg, Host: r.name, Message: cmd.text})
		default:
			r.current = cmd
			r.state = stateCommand
			r.sudoFrom = -1
			r.sudoPrompt = ""
			r.passphraseSent = false
			r.responded = make(map[int]bool)
			r.s.log.Debug("%s: running %q", r.name, cmd.text)
			return false, r.send(cmd.text)
		}
	}

	for _, hop := range r.host.Hops {
		if err := newRunner(r.s, hop, r.conn).run(ctx); err != nil {
			return false, err
		}
	}

	r.state = stateExit
	r.current = command{}
	return false, r.send("exit")
}

func (r *runner) idle(ctx context.Context) (bool, error) {
	switch r.state {
	case stateExit:
		r.s.log.Debug("%s did not close after exit, closing", r.name)
		r.flush()
		return true, nil
	case stateLogin:
		r.s.emit(Event{Type: EventCommandTimeout, Host: r.name, Response: r.buf.String()})
		if r.host.ContinueOnTimeout {
			return r.ready(ctx)
		}
		r.flush()
		return false, errors.New(errors.ErrTimeout,
			fmt.Sprintf("No shell prompt from %s after %s", r.name, r.host.IdleTimeout),
			"Set standard_prompt to the last character of the remote prompt, or raise idle_timeout.")
	default:
		r.s.emit(Event{Type: EventCommandTimeout, Host: r.name, Command: r.current.text, Response: r.buf.String()})
		if r.host.ContinueOnTimeout {
			return r.complete(ctx, true)
		}
		r.flush()
		return false, errors.New(errors.ErrTimeout,
			fmt.Sprintf("%q on %s went %s without output or a prompt", r.current.text, r.name, r.host.IdleTimeout),
			"Raise idle_timeout for slow commands, or set continue_on_timeout to move on anyway.")
	}
}

// closed handles the end of shell output.
func (r *runner) closed() error {
	if r.state == stateExit {
		r.flush()
		return nil
	}

	if r.state == stateCommand && r.current.endsShell() {
		response := r.buf.String()
		r.buf.Reset()
		r.appendTranscript(response)
		r.s.addResult(CommandResult{Host: r.name, Command: r.current.text, Response: response})
		r.s.emit(Event{Type: EventCommandComplete, Host: r.name, Command: r.current.text, Response: response})
		if len(r.queue) == 0 && len(r.host.Hops) == 0 {
			return nil
		}
		return errors.New(errors.ErrShell,
			fmt.Sprintf("%q closed the shell on %s before the remaining commands ran", r.current.text, r.name),
			"Move exit to the end of the command list.")
	}

	r.flush()
	msg := fmt.Sprintf("Shell on %s closed unexpectedly", r.name)
	suggestion := "The remote shell exited before all commands ran. The transcript shows the last output."
	if r.readErr != nil {
		return errors.WrapWithCode(r.readErr, errors.ErrShell, msg, suggestion)
	}
	return errors.New(errors.ErrShell, msg, suggestion)
}

// flush moves a partial buffer into the transcript.
func (r *runner) flush() {
	if r.buf.Len() == 0 {
		return
	}
	r.appendTranscript(r.buf.String())
	r.buf.Reset()
}

func lastLine(text string) string {
	return text[strings.LastIndexByte(text, '\n')+1:]
}

func (r *runner) appendTranscript(text string) {
	if r.host.StripANSI {
		text = StripANSI(text)
	}
	r.s.transcript.append(text)
}

func (r *runner) send(text string) error {
	if _, err := io.WriteString(r.stream, text+r.host.Enter); err != nil {
		return errors.WrapWithCode(err, errors.ErrShell,
			fmt.Sprintf("Failed to write to the shell on %s", r.name),
			"Connection may have been closed. Try reconnecting.")
	}
	return nil
}

func cancelled(err error, name string) error {
	code := errors.ErrShell
	if err == context.DeadlineExceeded {
		code = errors.ErrTimeout
	}
	return errors.WrapWithCode(err, code,
		fmt.Sprintf("Session on %s was cancelled", name),
		"The session was stopped before the shell finished.")
}
