// Package testing provides an in-process SSH server that emulates a prompting
// login shell, for exercising SSH session code without a real host.
package testing

import (
	"bufio"
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
)

// Server emulates an SSH host with a line-oriented shell. Configure the exported
// fields, then call Start. Fields must not change after Start.
type Server struct {
	Name     string // hostname shown in the prompt, default "test"
	User     string // accepted user; empty accepts any
	Password string // accepted password; empty disables password auth

	// AuthorizedKey enables public key auth for this key.
	AuthorizedKey ssh.PublicKey

	// KeyboardInteractive enables keyboard-interactive auth against Password.
	KeyboardInteractive bool

	// Banner is written once before the first prompt.
	Banner string

	// Prompt overrides the default "<user>@<name>:~$ " prompt.
	Prompt string

	// SudoPassword is what "sudo <cmd>" expects. Empty means sudo needs no password.
	SudoPassword string

	// Commands maps a command line to its output. Lines not listed answer
	// "sh: <cmd>: command not found".
	Commands map[string]string

	// Hang lists commands that never print a prompt afterwards.
	Hang map[string]bool

	// NoEcho disables echoing input lines back, like stty -echo.
	NoEcho bool

	hostKey ssh.Signer
	ln      net.Listener
	config  *ssh.ServerConfig

	mu       sync.Mutex
	received []string
	tunnels  []string
	ptyTerms []string

	wg        sync.WaitGroup
	closed    chan struct{}
	closeOnce sync.Once
}

// Start generates a host key and listens on a random loopback port.
func (s *Server) Start() error {
	if s.Name == "" {
		s.Name = "test"
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return err
	}
	s.hostKey = signer

	s.config = &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if s.Password != "" && s.userOK(c.User()) && string(pass) == s.Password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
		PublicKeyCallback: func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if s.AuthorizedKey != nil && s.userOK(c.User()) && bytes.Equal(key.Marshal(), s.AuthorizedKey.Marshal()) {
				return nil, nil
			}
			return nil, fmt.Errorf("key rejected for %q", c.User())
		},
	}
	if s.KeyboardInteractive {
		s.config.KeyboardInteractiveCallback = func(c ssh.ConnMetadata, challenge ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
			answers, err := challenge(c.User(), "", []string{"Password: "}, []bool{false})
			if err != nil {
				return nil, err
			}
			if len(answers) == 1 && s.userOK(c.User()) && answers[0] == s.Password {
				return nil, nil
			}
			return nil, fmt.Errorf("keyboard-interactive rejected for %q", c.User())
		}
		// Only keyboard-interactive should succeed for password holders.
		s.config.PasswordCallback = nil
	}
	s.config.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	s.ln = ln
	s.closed = make(chan struct{})

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Close stops the listener and waits for the accept loop to exit. Safe to call twice.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.ln.Close()
		s.wg.Wait()
	})
	return err
}

// Addr returns the listen address as host:port.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Host returns the listen IP.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listen port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	p, _ := strconv.Atoi(port)
	return p
}

// HostKey returns the server's public host key.
func (s *Server) HostKey() ssh.PublicKey {
	return s.hostKey.PublicKey()
}

// Received returns every line the shell read, in order.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.received))
	copy(out, s.received)
	return out
}

// Tunnels returns the host:port targets of direct-tcpip channels opened through the server.
func (s *Server) Tunnels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.tunnels))
	copy(out, s.tunnels)
	sort.Strings(out)
	return out
}

// PTYTerms returns the terminal types requested by clients.
func (s *Server) PTYTerms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ptyTerms))
	copy(out, s.ptyTerms)
	return out
}

func (s *Server) userOK(user string) bool {
	return s.User == "" || user == s.User
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(raw net.Conn) {
	sc, chans, reqs, err := ssh.NewServerConn(raw, s.config)
	if err != nil {
		_ = raw.Close()
		return
	}
	defer sc.Close()
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		switch newCh.ChannelType() {
		case "session":
			ch, chReqs, err := newCh.Accept()
			if err != nil {
				continue
			}
			go s.handleSession(ch, chReqs, sc.User())
		case "direct-tcpip":
			s.handleTunnel(newCh)
		default:
			_ = newCh.Reject(ssh.UnknownChannelType, "unsupported channel type")
		}
	}
}

func (s *Server) handleSession(ch ssh.Channel, in <-chan *ssh.Request, user string) {
	for req := range in {
		switch req.Type {
		case "pty-req":
			var pty struct {
				Term     string
				Cols     uint32
				Rows     uint32
				Width    uint32
				Height   uint32
				Modelist string
			}
			if err := ssh.Unmarshal(req.Payload, &pty); err == nil {
				s.mu.Lock()
				s.ptyTerms = append(s.ptyTerms, pty.Term)
				s.mu.Unlock()
			}
			_ = req.Reply(true, nil)
		case "env", "window-change":
			_ = req.Reply(true, nil)
		case "shell":
			_ = req.Reply(true, nil)
			go func() {
				go ssh.DiscardRequests(in)
				s.runShell(ch, user)
			}()
			return
		default:
			_ = req.Reply(false, nil)
		}
	}
	_ = ch.Close()
}

func (s *Server) handleTunnel(newCh ssh.NewChannel) {
	var payload struct {
		Host     string
		Port     uint32
		OrigHost string
		OrigPort uint32
	}
	if err := ssh.Unmarshal(newCh.ExtraData(), &payload); err != nil {
		_ = newCh.Reject(ssh.ConnectionFailed, "bad direct-tcpip payload")
		return
	}
	target := net.JoinHostPort(payload.Host, strconv.Itoa(int(payload.Port)))
	conn, err := net.Dial("tcp", target)
	if err != nil {
		_ = newCh.Reject(ssh.ConnectionFailed, err.Error())
		return
	}
	ch, reqs, err := newCh.Accept()
	if err != nil {
		_ = conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	s.mu.Lock()
	s.tunnels = append(s.tunnels, target)
	s.mu.Unlock()

	go func() {
		_, _ = io.Copy(ch, conn)
		_ = ch.CloseWrite()
		_ = ch.Close()
	}()
	go func() {
		_, _ = io.Copy(conn, ch)
		_ = conn.Close()
	}()
}

func (s *Server) prompt(user string) string {
	if s.Prompt != "" {
		return s.Prompt
	}
	return fmt.Sprintf("%s@%s:~$ ", user, s.Name)
}

func (s *Server) record(line string) {
	s.mu.Lock()
	s.received = append(s.received, line)
	s.mu.Unlock()
}

func (s *Server) runShell(ch ssh.Channel, user string) {
	defer ch.Close()

	if s.Banner != "" {
		_, _ = io.WriteString(ch, s.Banner)
	}
	_, _ = io.WriteString(ch, s.prompt(user))

	r := bufio.NewReader(ch)
	for {
		line, err := readLine(r)
		if err != nil {
			return
		}
		s.record(line)
		if !s.NoEcho {
			_, _ = io.WriteString(ch, line+"\r\n")
		}

		if line == "exit" || line == "logout" {
			_, _ = io.WriteString(ch, "logout\r\n")
			sendExitStatus(ch, 0)
			return
		}

		if strings.HasPrefix(line, "sudo ") {
			if !s.sudo(ch, r, user) {
				_, _ = io.WriteString(ch, "sudo: 3 incorrect password attempts\r\n"+s.prompt(user))
				continue
			}
			line = strings.TrimPrefix(line, "sudo ")
		}

		if s.Hang[line] {
			continue
		}

		out, ok := s.Commands[line]
		if !ok {
			out = fmt.Sprintf("sh: %s: command not found\n", line)
		}
		if out != "" {
			_, _ = io.WriteString(ch, strings.ReplaceAll(out, "\n", "\r\n"))
		}
		_, _ = io.WriteString(ch, s.prompt(user))
	}
}

// sudo asks for the password up to three times, like sudo does.
func (s *Server) sudo(ch ssh.Channel, r *bufio.Reader, user string) bool {
	if s.SudoPassword == "" {
		return true
	}
	ask := fmt.Sprintf("[sudo] password for %s: ", user)
	_, _ = io.WriteString(ch, ask)
	for attempt := 0; attempt < 3; attempt++ {
		pass, err := readLine(r)
		if err != nil {
			return false
		}
		s.record(pass)
		_, _ = io.WriteString(ch, "\r\n")
		if pass == s.SudoPassword {
			return true
		}
		if attempt < 2 {
			_, _ = io.WriteString(ch, "Sorry, try again.\r\n"+ask)
		}
	}
	return false
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func sendExitStatus(ch ssh.Channel, status uint32) {
	_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
}

// GenerateClientKey returns an OpenSSH PEM private key and its public key.
// A non-empty passphrase encrypts the PEM.
func GenerateClientKey(passphrase string) ([]byte, ssh.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	}
	if err != nil {
		return nil, nil, err
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, nil, err
	}
	return pem.EncodeToMemory(block), sshPub, nil
}
