package sshutil

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"golang.org/x/crypto/ssh"
)

// DefaultTimeout bounds the TCP connect and the SSH handshake.
const DefaultTimeout = 10 * time.Second

// Settings describes how to reach and authenticate against one SSH server.
type Settings struct {
	Host     string // hostname, IP, or ~/.ssh/config alias
	Port     int    // 0 means "from ssh config, else 22"
	UserName string

	Password       string
	PrivateKey     []byte // PEM/OpenSSH encoded key; wins over PrivateKeyPath
	PrivateKeyPath string
	Passphrase     string // for encrypted keys
	UseAgent       bool   // offer keys from SSH_AUTH_SOCK

	KnownHostsPath        string // default ~/.ssh/known_hosts
	InsecureIgnoreHostKey bool
	HostKeyCallback       ssh.HostKeyCallback // takes precedence over the two above

	Timeout time.Duration

	// SSHConfigPath overrides ~/.ssh/config. "-" disables alias resolution.
	SSHConfigPath string
}

// Address returns the host:port string for dialing, before alias resolution.
func (s Settings) Address() string {
	port := s.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(port))
}

func (s Settings) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

// hasExplicitAuth reports whether the caller supplied credentials directly.
func (s Settings) hasExplicitAuth() bool {
	return s.Password != "" || len(s.PrivateKey) > 0 || s.PrivateKeyPath != ""
}

// matchWarningOnce ensures the SSH config Match directive warning is only shown once per process.
var matchWarningOnce sync.Once

// WarningHandler is a function that handles warning messages.
// If nil, warnings go to the package logger.
var WarningHandler func(message string)

func emitWarning(message string) {
	if WarningHandler != nil {
		WarningHandler(message)
		return
	}
	sshLog().Warn("%s", message)
}

// ResolveSettings fills gaps in s from ~/.ssh/config. Explicit values always win:
// the alias lookup only supplies HostName, Port, User and IdentityFile when the
// caller left them empty.
func ResolveSettings(s Settings) Settings {
	resolved := s

	// user@host:port shorthand in Host
	if atIdx := strings.Index(resolved.Host, "@"); atIdx != -1 {
		if resolved.UserName == "" {
			resolved.UserName = resolved.Host[:atIdx]
		}
		resolved.Host = resolved.Host[atIdx+1:]
	}
	if h, p, err := net.SplitHostPort(resolved.Host); err == nil {
		if port, perr := strconv.Atoi(p); perr == nil {
			resolved.Host = h
			if resolved.Port == 0 {
				resolved.Port = port
			}
		}
	}

	alias := resolved.Host
	if resolved.SSHConfigPath != "-" {
		configPath := resolved.SSHConfigPath
		if configPath == "" {
			configPath = filepath.Join(homeDir(), ".ssh", "config")
		}
		applySSHConfig(&resolved, alias, configPath)
	}

	if resolved.Port == 0 {
		resolved.Port = 22
	}
	if resolved.UserName == "" {
		resolved.UserName = currentUser()
	}
	return resolved
}

func applySSHConfig(s *Settings, alias, configPath string) {
	// kevinburke/ssh_config doesn't support Match, so only the content
	// before the first Match block is parsed.
	content, matchLine, err := preprocessSSHConfig(configPath)
	if err != nil {
		return
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return
	}

	hostFound := false

	if hostname, _ := cfg.Get(alias, "HostName"); hostname != "" {
		s.Host = hostname
		hostFound = true
	}

	if port, _ := cfg.Get(alias, "Port"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && s.Port == 0 {
			s.Port = p
		}
		hostFound = true
	}

	if user, _ := cfg.Get(alias, "User"); user != "" {
		if s.UserName == "" {
			s.UserName = user
		}
		hostFound = true
	}

	if identity, _ := cfg.Get(alias, "IdentityFile"); identity != "" {
		if len(s.PrivateKey) == 0 && s.PrivateKeyPath == "" {
			s.PrivateKeyPath = expandPath(identity)
		}
		hostFound = true
	}

	if matchLine > 0 && !hostFound {
		matchWarningOnce.Do(func() {
			emitWarning(fmt.Sprintf(
				"Host '%s' not found in SSH config (config has a Match block at line %d that may hide later entries). "+
					"If this host is defined after line %d, move it earlier in %s.",
				alias, matchLine, matchLine, configPath))
		})
	}
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// Also returns the 1-indexed line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
