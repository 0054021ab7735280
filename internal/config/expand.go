package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ExpandTilde replaces ~ or ~/path with the user's home directory.
// Does not support ~username syntax - just ~ for the current user.
func ExpandTilde(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path // Return unchanged if we can't get home
		}
		return filepath.Join(home, path[2:])
	}

	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}

	return path
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces ${NAME} with the local environment value of NAME.
// References to unset variables are left as written, and bare $NAME is never
// touched, so text meant for the remote shell survives.
func ExpandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := envRef.FindStringSubmatch(ref)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return ref
	})
}

// expandServer applies ${NAME} expansion to connection fields and ~ expansion
// to local paths. Commands are left alone; they run remotely.
func expandServer(s ServerConfig) ServerConfig {
	s.Host = ExpandEnv(s.Host)
	s.UserName = ExpandEnv(s.UserName)
	s.Password = ExpandEnv(s.Password)
	s.Passphrase = ExpandEnv(s.Passphrase)
	if !looksLikeKeyMaterial(s.PrivateKey) {
		s.PrivateKey = ExpandTilde(ExpandEnv(s.PrivateKey))
	}
	s.KnownHosts = ExpandTilde(ExpandEnv(s.KnownHosts))
	return s
}

// looksLikeKeyMaterial reports whether v is an inline PEM key rather than a path.
func looksLikeKeyMaterial(v string) bool {
	return strings.Contains(v, "PRIVATE KEY-----")
}
