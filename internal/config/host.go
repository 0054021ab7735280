package config

import (
	"os"
	"regexp"
	"time"

	"github.com/rileyhilliard/ssh2shell/internal/errors"
	"github.com/rileyhilliard/ssh2shell/pkg/shell"
	"github.com/rileyhilliard/ssh2shell/pkg/sshutil"
)

// ShellHost turns a validated config into the session definition.
func (c *Config) ShellHost() (shell.Host, error) {
	server, err := c.Server.Settings(0)
	if err != nil {
		return shell.Host{}, err
	}

	host := shell.Host{
		Server:           server,
		Commands:         append([]string(nil), c.Commands...),
		StandardPrompt:   c.Prompts.Standard,
		PasswordPrompt:   c.Prompts.Password,
		PassphrasePrompt: c.Prompts.Passphrase,
		Enter:            c.Shell.Enter,
		PTY: sshutil.PTY{
			Term: c.Shell.Term,
			Cols: c.Shell.Cols,
			Rows: c.Shell.Rows,
		},
		IdleTimeout:       c.Shell.IdleTimeout,
		ContinueOnTimeout: c.Shell.ContinueOnTimeout,
		ShowBanner:        c.Shell.ShowBanner,
		StripANSI:         c.Shell.StripANSI,
		ConnectedMessage:  c.Messages.Connected,
		ReadyMessage:      c.Messages.Ready,
		ClosedMessage:     c.Messages.Closed,
	}

	if c.Prompts.Pattern != "" {
		re, err := regexp.Compile(c.Prompts.Pattern)
		if err != nil {
			return shell.Host{}, errors.WrapWithCode(err, errors.ErrConfig,
				"prompts.pattern isn't a valid regular expression",
				"Anchor the pattern at the end of the prompt, like `\\$ $`.")
		}
		host.PromptPattern = re
	}

	for _, r := range c.Responses {
		re, err := regexp.Compile(r.Match)
		if err != nil {
			return shell.Host{}, errors.WrapWithCode(err, errors.ErrConfig,
				"Response pattern '"+r.Match+"' isn't a valid regular expression",
				"Check the 'responses' section in your .ssh2shell.yaml.")
		}
		host.Responses = append(host.Responses, shell.Response{Match: re, Send: r.Send})
	}

	for _, hop := range c.Hops {
		settings, err := hop.Server.Settings(c.Server.Timeout)
		if err != nil {
			return shell.Host{}, err
		}
		h := host
		h.Server = settings
		h.Commands = append([]string(nil), hop.Commands...)
		h.ShowBanner = false
		h.Hops = nil
		host.Hops = append(host.Hops, h)
	}

	return host, nil
}

// Settings converts the server section into transport settings. A zero
// timeout falls back to fallbackTimeout.
func (s ServerConfig) Settings(fallbackTimeout time.Duration) (sshutil.Settings, error) {
	out := sshutil.Settings{
		Host:                  s.Host,
		Port:                  s.Port,
		UserName:              s.UserName,
		Password:              s.Password,
		Passphrase:            s.Passphrase,
		UseAgent:              s.UseAgent,
		KnownHostsPath:        s.KnownHosts,
		InsecureIgnoreHostKey: s.Insecure,
		Timeout:               s.Timeout,
	}
	if out.Timeout == 0 {
		out.Timeout = fallbackTimeout
	}

	switch {
	case s.PrivateKey == "":
	case looksLikeKeyMaterial(s.PrivateKey):
		out.PrivateKey = []byte(s.PrivateKey)
	default:
		if _, err := os.Stat(s.PrivateKey); err != nil {
			return sshutil.Settings{}, errors.WrapWithCode(err, errors.ErrConfig,
				"Can't read private key "+s.PrivateKey,
				"PRIVATE_KEY must be a key file path or the PEM text of the key.")
		}
		out.PrivateKeyPath = s.PrivateKey
	}

	return out, nil
}
