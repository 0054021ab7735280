package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rileyhilliard/ssh2shell/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
// Commands are required, so call it after merging commands from the CLI.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but ssh2shell only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Grab the latest ssh2shell release.")
	}

	if strings.TrimSpace(cfg.Server.Host) == "" {
		return errors.New(errors.ErrConfig,
			"No host to connect to",
			"Set HOST (and USER_NAME, PASSWORD) in .env or the environment, or server.host in .ssh2shell.yaml.")
	}

	if err := validateServer("server", cfg.Server); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'server' section or the HOST/PORT/USER_NAME/PASSWORD variables.")
	}

	if len(cfg.Commands) == 0 {
		return errors.New(errors.ErrConfig,
			"No commands to run",
			"List them under 'commands' in .ssh2shell.yaml, or pass them: ssh2shell run 'uptime' 'df -h'")
	}

	if err := validatePrompts(cfg.Prompts); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'prompts' section in your .ssh2shell.yaml.")
	}

	for i, r := range cfg.Responses {
		if err := validateResponse(i, r); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Each response needs a 'match' regular expression and the text to 'send'.")
		}
	}

	if err := validateShell(cfg.Shell); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'shell' section in your .ssh2shell.yaml.")
	}

	if err := validateOutput(cfg.Output); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'output' section in your .ssh2shell.yaml.")
	}

	for i, hop := range cfg.Hops {
		name := fmt.Sprintf("hops[%d]", i)
		if strings.TrimSpace(hop.Server.Host) == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("%s has no server.host", name),
				"Every hop needs the host to reach from the main server.")
		}
		if err := validateServer(name+".server", hop.Server); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'hops' section in your .ssh2shell.yaml.")
		}
	}

	return nil
}

func validateServer(name string, s ServerConfig) error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("%s.port %d is out of range - use 1-65535, or leave it out for 22", name, s.Port)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("%s.timeout can't be negative", name)
	}
	if strings.ContainsAny(s.Host, " \t") {
		return fmt.Errorf("%s.host '%s' contains whitespace", name, s.Host)
	}
	return nil
}

func validatePrompts(p PromptConfig) error {
	if p.Pattern != "" {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return fmt.Errorf("prompts.pattern isn't a valid regular expression: %v", err)
		}
	}
	return nil
}

func validateResponse(i int, r ResponseConfig) error {
	if r.Match == "" {
		return fmt.Errorf("responses[%d] is missing 'match'", i)
	}
	if _, err := regexp.Compile(r.Match); err != nil {
		return fmt.Errorf("responses[%d].match isn't a valid regular expression: %v", i, err)
	}
	return nil
}

func validateShell(s ShellConfig) error {
	if s.IdleTimeout < 0 {
		return fmt.Errorf("shell.idle_timeout can't be negative - try something like 5s or 2m")
	}
	if s.Cols < 0 || s.Rows < 0 {
		return fmt.Errorf("shell.cols and shell.rows can't be negative (got %dx%d)", s.Cols, s.Rows)
	}
	return nil
}

// validateOutput checks output configuration.
func validateOutput(out OutputConfig) error {
	validColors := map[string]bool{"auto": true, "always": true, "never": true, "": true}
	if !validColors[out.Color] {
		return fmt.Errorf("output.color '%s' isn't valid - use 'auto', 'always', or 'never'", out.Color)
	}
	if out.KeepRuns < 0 {
		return fmt.Errorf("output.keep_runs can't be negative")
	}
	for i, l := range out.Logs {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("output.logs has an empty entry at position %d", i)
		}
	}
	return nil
}
