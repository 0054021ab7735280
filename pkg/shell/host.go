package shell

import (
	"fmt"
	"regexp"
	"time"

	"github.com/rileyhilliard/ssh2shell/internal/errors"
	"github.com/rileyhilliard/ssh2shell/pkg/sshutil"
)

// Defaults applied by New to any zero-valued Host field.
const (
	DefaultStandardPrompt   = ">$%#"
	DefaultPasswordPrompt   = ":"
	DefaultPassphrasePrompt = ":"
	DefaultEnter            = "\n"
	DefaultIdleTimeout      = 5 * time.Second

	DefaultConnectedMessage = "Connected"
	DefaultReadyMessage     = "Ready"
	DefaultClosedMessage    = "Closed"
)

// Response answers a prompt the shell prints while a command runs. Each
// Response fires at most once per command.
type Response struct {
	Match *regexp.Regexp
	Send  string
}

// Host is everything needed to run one shell session: where to connect,
// what to type, and how to recognise the shell's prompts.
type Host struct {
	Server   sshutil.Settings
	Commands []string

	// StandardPrompt lists the characters that end a ready shell prompt.
	// Trailing spaces or tabs after the character are allowed.
	StandardPrompt string
	// PromptPattern replaces StandardPrompt when set. It is matched against
	// the buffer with ANSI sequences removed, so anchor it with $.
	PromptPattern *regexp.Regexp

	PasswordPrompt   string // sudo password prompt characters
	PassphrasePrompt string // key passphrase prompt characters, for ssh commands

	Responses []Response

	Enter string
	PTY   sshutil.PTY

	// IdleTimeout is how long a command may go without output and without a
	// prompt before it counts as timed out.
	IdleTimeout       time.Duration
	ContinueOnTimeout bool

	ShowBanner bool // include the login banner in the transcript
	StripANSI  bool // remove escape sequences from the transcript

	ConnectedMessage string
	ReadyMessage     string
	ClosedMessage    string

	// Hops are reached through this host's connection once its commands finish.
	Hops []Host
}

func (h Host) withDefaults() Host {
	if h.StandardPrompt == "" {
		h.StandardPrompt = DefaultStandardPrompt
	}
	if h.PasswordPrompt == "" {
		h.PasswordPrompt = DefaultPasswordPrompt
	}
	if h.PassphrasePrompt == "" {
		h.PassphrasePrompt = DefaultPassphrasePrompt
	}
	if h.Enter == "" {
		h.Enter = DefaultEnter
	}
	if h.IdleTimeout == 0 {
		h.IdleTimeout = DefaultIdleTimeout
	}
	if h.ConnectedMessage == "" {
		h.ConnectedMessage = DefaultConnectedMessage
	}
	if h.ReadyMessage == "" {
		h.ReadyMessage = DefaultReadyMessage
	}
	if h.ClosedMessage == "" {
		h.ClosedMessage = DefaultClosedMessage
	}
	if len(h.Hops) > 0 {
		hops := make([]Host, len(h.Hops))
		for i, hop := range h.Hops {
			hops[i] = hop.withDefaults()
		}
		h.Hops = hops
	}
	return h
}

// validate checks a defaulted Host. Auth is checked later by the transport,
// which knows about agents and default key files.
func (h Host) validate() error {
	if h.Server.Host == "" {
		return errors.New(errors.ErrConfig,
			"No host to connect to",
			"Set HOST in the environment or server.host in .ssh2shell.yaml.")
	}
	if h.Server.Port < 0 || h.Server.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Port %d is out of range", h.Server.Port),
			"Use a port between 1 and 65535, or leave it empty for 22.")
	}
	if h.IdleTimeout < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Idle timeout for %s is negative", h.Server.Host),
			"Try something like 5s, 30s, or 2m.")
	}
	for i, r := range h.Responses {
		if r.Match == nil {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Response %d for %s has no pattern", i+1, h.Server.Host),
				"Every response needs a regular expression to match.")
		}
	}
	for _, hop := range h.Hops {
		if err := hop.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Name identifies the host in events and logs: user@host, or host alone.
func (h Host) Name() string {
	if h.Server.UserName != "" {
		return h.Server.UserName + "@" + h.Server.Host
	}
	return h.Server.Host
}
