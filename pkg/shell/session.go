// Package shell drives interactive SSH shell sessions: it logs in, types a
// list of commands one after another, waits for the prompt between them, and
// hands back the whole session transcript when the shell closes.
//
//	s := shell.New(host)
//	s.Pipe(logFile).Pipe(os.Stdout)
//	s.On(shell.EventMsg, func(e shell.Event) { fmt.Println(e.Message) })
//	err := s.Connect(ctx, func(transcript string) { ... })
package shell

import (
	"context"
	"io"
	"sync"

	"github.com/rileyhilliard/ssh2shell/internal/errors"
	"github.com/rileyhilliard/ssh2shell/internal/logger"
)

// Option configures a Session.
type Option func(*Session)

// WithDialer replaces the SSH dialer, mostly for tests.
func WithDialer(d Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

// WithLogger sets the debug logger. Sessions are silent by default.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Session runs one host definition. Configure it with Pipe and On, then call
// Connect once.
type Session struct {
	host   Host
	dialer Dialer
	log    logger.Logger

	mu       sync.Mutex
	handlers map[EventType][]Handler
	results  []CommandResult
	started  bool
	cancel   context.CancelFunc
	err      error

	sinks      sinkSet
	transcript transcript
	done       chan struct{}
}

// New creates a session for host. It never fails; the host is validated when
// the session connects.
func New(host Host, opts ...Option) *Session {
	s := &Session{
		host:     host.withDefaults(),
		dialer:   SSHDialer{},
		log:      logger.Noop(),
		handlers: make(map[EventType][]Handler),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Host returns the session's host with defaults applied.
func (s *Session) Host() Host {
	return s.host
}

// Pipe adds w as a sink for raw shell output. Sinks receive nothing until the
// connection is established; each chunk is written to sinks in the order they
// were piped.
func (s *Session) Pipe(w io.Writer) *Session {
	if w != nil {
		s.sinks.add(w)
	}
	return s
}

// Unpipe removes a sink added with Pipe.
func (s *Session) Unpipe(w io.Writer) *Session {
	if w != nil && s.sinks.remove(w) {
		s.emit(Event{Type: EventUnpipe, Host: s.host.Name()})
	}
	return s
}

// On registers h for events of type t. Handlers for the same type run in
// registration order.
func (s *Session) On(t EventType, h Handler) *Session {
	if h == nil {
		return s
	}
	s.mu.Lock()
	s.handlers[t] = append(s.handlers[t], h)
	s.mu.Unlock()
	return s
}

// Connect starts the session in the background and returns immediately.
// onComplete, if non-nil, is called exactly once with the final transcript
// when the session ends, whether or not it succeeded. The only error returned
// directly is for connecting the same Session twice; session failures are
// reported through Wait, Err and the error event.
func (s *Session) Connect(ctx context.Context, onComplete func(transcript string)) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New(errors.ErrShell,
			"Session already connected",
			"Create a new Session for each connection.")
	}
	s.started = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.execute(ctx, onComplete)
	return nil
}

// Run connects and blocks until the session ends.
func (s *Session) Run(ctx context.Context) (string, error) {
	if err := s.Connect(ctx, nil); err != nil {
		return "", err
	}
	return s.Wait()
}

// Wait blocks until the session ends and returns its transcript and error.
// The completion callback has returned by the time Wait does.
func (s *Session) Wait() (string, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return "", errors.New(errors.ErrShell,
			"Session was never connected",
			"Call Connect before Wait.")
	}
	<-s.done
	return s.transcript.String(), s.Err()
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the session error, nil while running or after a clean end.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Transcript returns the transcript collected so far.
func (s *Session) Transcript() string {
	return s.transcript.String()
}

// Results returns the commands sent so far with their captured output,
// including those of hops.
func (s *Session) Results() []CommandResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CommandResult, len(s.results))
	copy(out, s.results)
	return out
}

// Close aborts a running session. The completion callback still fires.
func (s *Session) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (s *Session) execute(ctx context.Context, onComplete func(string)) {
	defer s.cancel()

	err := s.host.validate()
	if err == nil {
		err = newRunner(s, s.host, nil).run(ctx)
	}
	if err != nil {
		s.log.Debug("session %s ended: %v", s.host.Name(), err)
		s.emit(Event{Type: EventError, Host: s.host.Name(), Err: err, Message: err.Error()})
	}

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	text := s.transcript.String()
	s.emit(Event{Type: EventEnd, Host: s.host.Name(), Response: text})
	if onComplete != nil {
		onComplete(text)
	}
	close(s.done)
}

func (s *Session) addResult(r CommandResult) {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
}

// bindSinks binds sinks waiting to be bound and announces each one.
func (s *Session) bindSinks(host string, activate bool) {
	var bound []io.Writer
	if activate {
		bound = s.sinks.activate()
	} else {
		bound = s.sinks.bindPending()
	}
	for range bound {
		s.emit(Event{Type: EventPipe, Host: host})
	}
}

// writeSinks copies chunk to every bound sink. A failing sink is dropped.
func (s *Session) writeSinks(host string, chunk []byte) {
	s.bindSinks(host, false)
	for _, w := range s.sinks.snapshot() {
		if _, err := w.Write(chunk); err != nil {
			s.sinks.remove(w)
			werr := errors.WrapWithCode(err, errors.ErrShell,
				"Pipe sink write failed, sink removed",
				"Check that the log file or writer is still open.")
			s.emit(Event{Type: EventError, Host: host, Err: werr, Message: werr.Error()})
		}
	}
}
