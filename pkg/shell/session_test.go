package shell

import (
	"bytes"
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/ssh2shell/internal/errors"
	"github.com/rileyhilliard/ssh2shell/internal/logger"
	"github.com/rileyhilliard/ssh2shell/pkg/sshutil"
	sshtesting "github.com/rileyhilliard/ssh2shell/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

var allEvents = []EventType{
	EventConnect, EventReady, EventData, EventPipe, EventUnpipe,
	EventCommandProcessing, EventCommandComplete, EventCommandTimeout,
	EventMsg, EventError, EventEnd, EventClose,
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func record(s *Session) *recorder {
	r := &recorder{}
	for _, t := range allEvents {
		s.On(t, r.add)
	}
	return r
}

func (r *recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) of(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// lifecycle drops the chatty per-chunk events.
func (r *recorder) lifecycle() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventType
	for _, e := range r.events {
		if e.Type != EventData && e.Type != EventCommandProcessing {
			out = append(out, e.Type)
		}
	}
	return out
}

func (r *recorder) data() string {
	var buf bytes.Buffer
	for _, e := range r.of(EventData) {
		buf.Write(e.Data)
	}
	return buf.String()
}

func startServer(t *testing.T, srv *sshtesting.Server) *sshtesting.Server {
	t.Helper()
	if srv.User == "" {
		srv.User = "deploy"
	}
	if srv.Password == "" {
		srv.Password = "hunter2"
	}
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Close() })
	return srv
}

func hostFor(srv *sshtesting.Server, commands ...string) Host {
	return Host{
		Server: sshutil.Settings{
			Host:            srv.Host(),
			Port:            srv.Port(),
			UserName:        "deploy",
			Password:        "hunter2",
			HostKeyCallback: ssh.FixedHostKey(srv.HostKey()),
			Timeout:         5 * time.Second,
			SSHConfigPath:   "-",
		},
		Commands: commands,
	}
}

// completion counts callback invocations.
type completion struct {
	mu    sync.Mutex
	calls int
	text  string
}

func (c *completion) done(text string) {
	c.mu.Lock()
	c.calls++
	c.text = text
	c.mu.Unlock()
}

func connectAndWait(t *testing.T, s *Session) (*completion, string, error) {
	t.Helper()
	c := &completion{}
	require.NoError(t, s.Connect(context.Background(), c.done))

	select {
	case <-s.Done():
	case <-time.After(20 * time.Second):
		t.Fatal("session did not finish")
	}
	text, err := s.Wait()
	return c, text, err
}

func TestSession_PipeAndCallback(t *testing.T) {
	srv := startServer(t, &sshtesting.Server{
		Banner:   "Welcome to test\r\n",
		Commands: map[string]string{"ls -la": "total 0\n"},
	})

	var first, second bytes.Buffer
	s := New(hostFor(srv,
		"`Test session text message: passed`",
		"msg:console test notification: passed",
		"ls -la",
	))
	s.Pipe(&first).Pipe(&second)

	var boundAtConnect int
	s.On(EventConnect, func(Event) { boundAtConnect = first.Len() + second.Len() })
	rec := record(s)

	c, text, err := connectAndWait(t, s)
	require.NoError(t, err)

	assert.Equal(t, 1, c.calls)
	assert.Equal(t, text, c.text)
	assert.Equal(t,
		"Test session text message: passed\n"+"ls -la\r\ntotal 0\r\ndeploy@test:~$ ",
		text)
	assert.NotContains(t, text, "Welcome", "banner stays out unless ShowBanner")

	assert.Zero(t, boundAtConnect)
	assert.Equal(t, rec.data(), first.String(), "sinks see every chunk")
	assert.Equal(t, first.String(), second.String())
	assert.Contains(t, first.String(), "Welcome to test")

	msgs := rec.of(EventMsg)
	require.Len(t, msgs, 1)
	assert.Equal(t, "console test notification: passed", msgs[0].Message)

	assert.Equal(t, []string{"ls -la", "exit"}, srv.Received(), "text and msg entries are never sent")

	assert.Equal(t, []EventType{
		EventConnect, EventPipe, EventPipe, EventReady, EventMsg,
		EventCommandComplete, EventClose, EventEnd,
	}, rec.lifecycle())

	results := s.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "ls -la", results[0].Command)
	assert.False(t, results[0].TimedOut)
}

func TestSession_CommandsRunInOrder(t *testing.T) {
	srv := startServer(t, &sshtesting.Server{
		Commands: map[string]string{"one": "1\n", "two": "2\n", "three": "3\n"},
	})

	s := New(hostFor(srv, "one", "two", "three"))
	rec := record(s)
	_, text, err := connectAndWait(t, s)
	require.NoError(t, err)

	var got []string
	for _, e := range rec.of(EventCommandComplete) {
		got = append(got, e.Command)
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
	assert.Equal(t, []string{"one", "two", "three", "exit"}, srv.Received())
	assert.Regexp(t, `(?s)1\r\n.*2\r\n.*3\r\n`, text)
}

func TestSession_ShowBanner(t *testing.T) {
	srv := startServer(t, &sshtesting.Server{Banner: "Welcome\r\n"})

	host := hostFor(srv)
	host.ShowBanner = true
	s := New(host)
	rec := record(s)

	_, text, err := connectAndWait(t, s)
	require.NoError(t, err)
	assert.Equal(t, "Welcome\r\ndeploy@test:~$ exit\r\nlogout\r\n", text)

	ready := rec.of(EventReady)
	require.Len(t, ready, 1)
	assert.Equal(t, "Ready", ready[0].Message)
	assert.Equal(t, "Welcome\r\ndeploy@test:~$ ", ready[0].Response)
}

func TestSession_Sudo(t *testing.T) {
	t.Run("password accepted", func(t *testing.T) {
		srv := startServer(t, &sshtesting.Server{
			SudoPassword: "hunter2",
			Commands:     map[string]string{"whoami": "root\n"},
		})

		s := New(hostFor(srv, "sudo whoami"))
		_, text, err := connectAndWait(t, s)
		require.NoError(t, err)
		assert.Contains(t, text, "root\r\n")
		assert.Equal(t, []string{"sudo whoami", "hunter2", "exit"}, srv.Received())
	})

	t.Run("password rejected", func(t *testing.T) {
		srv := startServer(t, &sshtesting.Server{SudoPassword: "something-else"})

		s := New(hostFor(srv, "sudo whoami", "ls"))
		rec := record(s)
		c, _, err := connectAndWait(t, s)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrAuth), "got %v", err)
		assert.Contains(t, err.Error(), "sudo password rejected")
		assert.Equal(t, 1, c.calls)
		assert.Len(t, rec.of(EventError), 1)
		assert.Equal(t, []string{"sudo whoami", "hunter2"}, srv.Received(), "password is sent once")
	})

	t.Run("no password configured", func(t *testing.T) {
		pemBytes, pub, err := sshtesting.GenerateClientKey("")
		require.NoError(t, err)
		srv := startServer(t, &sshtesting.Server{AuthorizedKey: pub, SudoPassword: "x"})

		host := hostFor(srv, "sudo whoami")
		host.Server.Password = ""
		host.Server.PrivateKey = pemBytes

		_, _, err = connectAndWait(t, New(host))
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrAuth))
	})
}

func TestSession_IdleTimeout(t *testing.T) {
	srv := startServer(t, &sshtesting.Server{
		Hang:     map[string]bool{"sleep 100": true},
		Commands: map[string]string{"whoami": "deploy\n"},
	})

	t.Run("fails by default", func(t *testing.T) {
		host := hostFor(srv, "sleep 100", "whoami")
		host.IdleTimeout = 300 * time.Millisecond
		s := New(host)
		rec := record(s)

		c, text, err := connectAndWait(t, s)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrTimeout), "got %v", err)
		assert.Equal(t, 1, c.calls)
		assert.Contains(t, text, "sleep 100", "partial output is kept")

		timeouts := rec.of(EventCommandTimeout)
		require.Len(t, timeouts, 1)
		assert.Equal(t, "sleep 100", timeouts[0].Command)
	})

	t.Run("continues when asked", func(t *testing.T) {
		host := hostFor(srv, "sleep 100", "whoami")
		host.IdleTimeout = 300 * time.Millisecond
		host.ContinueOnTimeout = true
		s := New(host)

		_, text, err := connectAndWait(t, s)
		require.NoError(t, err)
		assert.Contains(t, text, "deploy\r\n")

		results := s.Results()
		require.Len(t, results, 2)
		assert.True(t, results[0].TimedOut)
		assert.False(t, results[1].TimedOut)
	})
}

func TestSession_Hops(t *testing.T) {
	jump := startServer(t, &sshtesting.Server{Name: "jump", Commands: map[string]string{"hostname": "jump\n"}})
	inner := startServer(t, &sshtesting.Server{Name: "inner", Commands: map[string]string{"hostname": "inner\n"}})

	host := hostFor(jump, "hostname")
	hop := hostFor(inner, "`on inner`", "hostname")
	host.Hops = []Host{hop}

	s := New(host)
	rec := record(s)
	_, text, err := connectAndWait(t, s)
	require.NoError(t, err)

	assert.Regexp(t, `(?s)jump\r\n.*on inner\n.*inner\r\n`, text)
	assert.Equal(t, []string{inner.Addr()}, jump.Tunnels())
	assert.Equal(t, []string{"hostname", "exit"}, jump.Received())
	assert.Equal(t, []string{"hostname", "exit"}, inner.Received())

	assert.Len(t, rec.of(EventConnect), 2)
	assert.Len(t, rec.of(EventClose), 2)
	assert.Len(t, rec.of(EventEnd), 1)
	require.Len(t, s.Results(), 2)
	assert.Contains(t, s.Results()[1].Response, "inner")
}

func TestSession_CloseStillCompletes(t *testing.T) {
	srv := startServer(t, &sshtesting.Server{Hang: map[string]bool{"tail -f log": true}})

	host := hostFor(srv, "tail -f log")
	host.IdleTimeout = time.Minute
	s := New(host)
	s.On(EventCommandProcessing, func(Event) { s.Close() })

	c, _, err := connectAndWait(t, s)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, context.Canceled), "got %v", err)
	assert.Equal(t, 1, c.calls)
}

func TestSession_ContextDeadline(t *testing.T) {
	srv := startServer(t, &sshtesting.Server{Hang: map[string]bool{"tail -f log": true}})

	host := hostFor(srv, "tail -f log")
	host.IdleTimeout = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(host).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTimeout))
	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
}

func TestSession_AuthFailureStillCompletes(t *testing.T) {
	srv := startServer(t, &sshtesting.Server{})

	host := hostFor(srv, "ls")
	host.Server.Password = "wrong"
	s := New(host)
	rec := record(s)

	c, text, err := connectAndWait(t, s)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrAuth))
	assert.Equal(t, 1, c.calls)
	assert.Empty(t, text)
	assert.Empty(t, rec.of(EventConnect))
	assert.Equal(t, []EventType{EventError, EventEnd}, rec.lifecycle())
}

func TestSession_InvalidHost(t *testing.T) {
	s := New(Host{Commands: []string{"ls"}})
	c, _, err := connectAndWait(t, s)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Equal(t, 1, c.calls)
}

func TestSession_ConnectTwice(t *testing.T) {
	srv := startServer(t, &sshtesting.Server{})
	s := New(hostFor(srv))

	require.NoError(t, s.Connect(context.Background(), nil))
	err := s.Connect(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrShell))

	_, err = s.Wait()
	assert.NoError(t, err)
}

func TestSession_WaitBeforeConnect(t *testing.T) {
	_, err := New(Host{}).Wait()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrShell))
}

type failingWriter struct{ err error }

func (w *failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestSession_FailingSinkIsDropped(t *testing.T) {
	srv := startServer(t, &sshtesting.Server{Commands: map[string]string{"ls": "a b\n"}})

	bad := &failingWriter{err: stderrors.New("disk full")}
	var good bytes.Buffer
	s := New(hostFor(srv, "ls")).Pipe(bad).Pipe(&good)
	rec := record(s)

	_, _, err := connectAndWait(t, s)
	require.NoError(t, err, "sink failures don't fail the session")

	errs := rec.of(EventError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "disk full")
	assert.Equal(t, rec.data(), good.String())
}

func TestSession_LatePipeAndUnpipe(t *testing.T) {
	srv := startServer(t, &sshtesting.Server{
		Banner:   "Welcome\r\n",
		Commands: map[string]string{"ls": "a b\n"},
	})

	var early, late bytes.Buffer
	s := New(hostFor(srv, "ls"))
	s.Pipe(&early)
	s.On(EventReady, func(Event) { s.Pipe(&late) })
	s.On(EventCommandComplete, func(Event) { s.Unpipe(&early) })
	rec := record(s)

	_, _, err := connectAndWait(t, s)
	require.NoError(t, err)

	assert.Contains(t, early.String(), "Welcome")
	assert.NotContains(t, early.String(), "logout", "unpiped before exit")
	assert.NotContains(t, late.String(), "Welcome")
	assert.Contains(t, late.String(), "a b\r\n")
	assert.Contains(t, late.String(), "logout")

	assert.Len(t, rec.of(EventPipe), 2)
	assert.Len(t, rec.of(EventUnpipe), 1)
}

func TestSession_WithLogger(t *testing.T) {
	srv := startServer(t, &sshtesting.Server{Commands: map[string]string{"ls": ""}})

	log := logger.NewBufferLogger()
	_, _, err := connectAndWait(t, New(hostFor(srv, "ls"), WithLogger(log)))
	require.NoError(t, err)
	assert.True(t, log.HasLevel("debug"))
}
