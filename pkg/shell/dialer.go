package shell

import (
	"context"
	"io"

	"github.com/rileyhilliard/ssh2shell/internal/errors"
	"github.com/rileyhilliard/ssh2shell/pkg/sshutil"
)

// Stream is an interactive shell: reads return remote output, writes are typed.
type Stream interface {
	io.ReadWriteCloser
}

// Conn is an established connection that can start shells.
type Conn interface {
	OpenShell(pty sshutil.PTY) (Stream, error)
	Close() error
}

// Dialer opens connections. DialVia reaches a host through an existing Conn.
type Dialer interface {
	Dial(ctx context.Context, settings sshutil.Settings) (Conn, error)
	DialVia(ctx context.Context, via Conn, settings sshutil.Settings) (Conn, error)
}

// SSHDialer connects over SSH with sshutil. It is the default Dialer.
type SSHDialer struct{}

func (SSHDialer) Dial(ctx context.Context, settings sshutil.Settings) (Conn, error) {
	client, err := sshutil.Dial(ctx, settings)
	if err != nil {
		return nil, err
	}
	return &sshConn{client: client}, nil
}

func (SSHDialer) DialVia(ctx context.Context, via Conn, settings sshutil.Settings) (Conn, error) {
	parent, ok := via.(*sshConn)
	if !ok {
		return nil, errors.New(errors.ErrSSH,
			"Can't hop to "+settings.Host+" through a non-SSH connection",
			"Hops need the parent host to be dialed with SSHDialer.")
	}
	client, err := sshutil.DialVia(ctx, parent.client, settings)
	if err != nil {
		return nil, err
	}
	return &sshConn{client: client}, nil
}

type sshConn struct {
	client *sshutil.Client
}

func (c *sshConn) OpenShell(pty sshutil.PTY) (Stream, error) {
	sh, err := c.client.OpenShell(pty)
	if err != nil {
		return nil, err
	}
	return sh, nil
}

func (c *sshConn) Close() error {
	return c.client.Close()
}
