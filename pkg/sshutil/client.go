package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/ssh2shell/internal/errors"
	"github.com/rileyhilliard/ssh2shell/internal/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Client wraps an SSH connection with additional metadata.
type Client struct {
	*ssh.Client
	Host    string // The original host/alias used to connect
	Address string // The resolved address (host:port)
}

var (
	loggerMu  sync.RWMutex
	pkgLogger = logger.NewEnvLogger("[ssh]")
)

// SetLogger replaces the package logger.
func SetLogger(l logger.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	pkgLogger = l
}

func sshLog() logger.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return pkgLogger
}

// Dial establishes an SSH connection described by settings.
// Host may be an SSH config alias, a hostname, user@hostname or hostname:port;
// missing values are resolved from ~/.ssh/config when available.
func Dial(ctx context.Context, settings Settings) (*Client, error) {
	resolved := ResolveSettings(settings)

	config, err := buildClientConfig(resolved)
	if err != nil {
		return nil, err
	}

	address := net.JoinHostPort(resolved.Host, fmt.Sprint(resolved.Port))
	sshLog().Debug("dialing %s (%s) as %s", settings.Host, address, resolved.UserName)

	dialer := net.Dialer{Timeout: resolved.timeout()}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", settings.Host, address),
			suggestionForDialError(err))
	}

	return handshake(conn, settings.Host, address, resolved, config)
}

// DialVia opens a connection to settings through an established client, the
// way ProxyJump does. The returned Client owns the tunnelled connection; closing
// it leaves via open.
func DialVia(ctx context.Context, via *Client, settings Settings) (*Client, error) {
	if via == nil || via.Client == nil {
		return nil, errors.New(errors.ErrSSH,
			fmt.Sprintf("No connection to tunnel through for '%s'", settings.Host),
			"Dial the first host before its hops.")
	}

	resolved := ResolveSettings(settings)

	config, err := buildClientConfig(resolved)
	if err != nil {
		return nil, err
	}

	address := net.JoinHostPort(resolved.Host, fmt.Sprint(resolved.Port))
	sshLog().Debug("dialing %s through %s", address, via.Address)

	conn, err := via.Client.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s from %s", settings.Host, address, via.Host),
			"Check that the hop is reachable from the first host.")
	}

	return handshake(conn, settings.Host, address, resolved, config)
}

func handshake(conn net.Conn, host, address string, settings Settings, config *ssh.ClientConfig) (*Client, error) {
	// x/crypto only applies ClientConfig.Timeout in ssh.Dial, so bound the
	// handshake with a deadline on the raw connection.
	_ = conn.SetDeadline(time.Now().Add(settings.timeout()))

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrSSH,
				hostKeyErr.Error(),
				hostKeyErr.Suggestion())
		}

		code := errors.ErrSSH
		if isAuthError(err) {
			code = errors.ErrAuth
		}
		return nil, errors.WrapWithCode(err, code,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", host),
			suggestionForHandshakeError(err))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    host,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// buildClientConfig creates an SSH client config with authentication methods.
// Explicit credentials come first. The agent and default key files are only
// consulted when asked for or when no credential was given at all.
func buildClientConfig(settings Settings) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if len(settings.PrivateKey) > 0 {
		signer, err := parseKey(settings.PrivateKey, settings.Passphrase, "<inline key>")
		if err != nil {
			return nil, explicitKeyError(err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	} else if settings.PrivateKeyPath != "" {
		keyAuth, err := keyFileAuth(settings.PrivateKeyPath, settings.Passphrase)
		if err != nil {
			return nil, explicitKeyError(err)
		}
		authMethods = append(authMethods, keyAuth)
	}

	if settings.Password != "" {
		password := settings.Password
		authMethods = append(authMethods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	if settings.UseAgent || !settings.hasExplicitAuth() {
		if agentAuth := sshAgentAuth(); agentAuth != nil {
			authMethods = append(authMethods, agentAuth)
		}
	}

	var encryptedKeys []string
	if !settings.hasExplicitAuth() {
		for _, keyPath := range defaultKeyFiles() {
			keyAuth, err := keyFileAuth(keyPath, "")
			if err != nil {
				var encErr *EncryptedKeyError
				if stderrors.As(err, &encErr) {
					encryptedKeys = append(encryptedKeys, keyPath)
				}
				continue
			}
			authMethods = append(authMethods, keyAuth)
		}
	}

	if len(authMethods) == 0 {
		msg := "No SSH auth methods available"
		suggestion := "Set PASSWORD or PRIVATE_KEY, or load a key into the agent: ssh-add"
		if len(encryptedKeys) > 0 {
			msg = fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(encryptedKeys, ", "))
			suggestion = addKeySuggestion(encryptedKeys)
		}
		return nil, errors.New(errors.ErrAuth, msg, suggestion)
	}

	hostKeyCallback, err := hostKeyCallbackFor(settings)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            settings.UserName,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         settings.timeout(),
	}, nil
}

func hostKeyCallbackFor(settings Settings) (ssh.HostKeyCallback, error) {
	if settings.HostKeyCallback != nil {
		return settings.HostKeyCallback, nil
	}
	if settings.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // User explicitly disabled host key checking
	}

	knownHostsPath := settings.KnownHostsPath
	if knownHostsPath == "" {
		knownHostsPath = filepath.Join(homeDir(), ".ssh", "known_hosts")
	}
	callback, err := createHostKeyCallback(expandPath(knownHostsPath))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to load known_hosts",
			"Check "+knownHostsPath+" exists and is readable, or disable strict host key checking.")
	}
	return callback, nil
}

var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method using the SSH agent if available.
// The agent connection is reused across connections.
// Returns nil if the agent has no keys loaded.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	// An empty agent causes auth failures when placed before other methods.
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the SSH agent connection if one is open.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// keyFileAuth returns an auth method using a private key file.
// Returns EncryptedKeyError if the key requires a passphrase that wasn't given.
func keyFileAuth(keyPath, passphrase string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(expandPath(keyPath))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			"Can't read private key "+keyPath,
			"Check the path in PRIVATE_KEY or server.private_key.")
	}

	signer, err := parseKey(key, passphrase, keyPath)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

func parseKey(key []byte, passphrase, name string) (ssh.Signer, error) {
	if passphrase != "" {
		signer, err := ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrAuth,
				"Can't decrypt private key "+name,
				"Check the passphrase.")
		}
		return signer, nil
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: name}
		}
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			"Can't parse private key "+name,
			"Use a PEM or OpenSSH formatted private key.")
	}
	return signer, nil
}

// explicitKeyError turns an EncryptedKeyError for a key the caller asked for
// into a structured error; other errors are already structured.
func explicitKeyError(err error) error {
	var encErr *EncryptedKeyError
	if stderrors.As(err, &encErr) {
		return errors.WrapWithCode(err, errors.ErrAuth,
			"Private key "+encErr.Path+" needs a passphrase",
			"Set PASSPHRASE or server.passphrase.")
	}
	return err
}

func defaultKeyFiles() []string {
	return []string{
		filepath.Join(homeDir(), ".ssh", "id_ed25519"),
		filepath.Join(homeDir(), ".ssh", "id_rsa"),
		filepath.Join(homeDir(), ".ssh", "id_ecdsa"),
	}
}

func addKeySuggestion(keys []string) string {
	var sb strings.Builder
	sb.WriteString("Add your key(s) to the agent, or set PASSPHRASE:\n")
	for _, key := range keys {
		if runtime.GOOS == "darwin" {
			sb.WriteString(fmt.Sprintf("  ssh-add --apple-use-keychain %s\n", key))
		} else {
			sb.WriteString(fmt.Sprintf("  ssh-add %s\n", key))
		}
	}
	return sb.String()
}

func isAuthError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods")
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? Check HOST and PORT."
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "i/o timeout") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error) string {
	if isAuthError(err) {
		return "Auth failed. Check USER_NAME and PASSWORD, or the private key."
	}
	if strings.Contains(err.Error(), "host key") || strings.Contains(err.Error(), "key is unknown") {
		return "Host key issue. Add it with: ssh-keyscan <host> >> ~/.ssh/known_hosts"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the change is expected, remove the old entry:\n"+
			"    ssh-keygen -R %s -f %s",
		wantStr, e.ReceivedType, host, e.KnownHosts)
}

func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}

// createHostKeyCallback wraps the knownhosts callback to provide better error messages.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err != nil {
			var keyErr *knownhosts.KeyError
			if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
				return &HostKeyMismatchError{
					Hostname:     hostname,
					ReceivedType: key.Type(),
					KnownHosts:   knownHostsPath,
					Want:         keyErr.Want,
				}
			}
		}
		return err
	}, nil
}
