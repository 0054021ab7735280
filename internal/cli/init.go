package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/ssh2shell/internal/config"
	"github.com/rileyhilliard/ssh2shell/internal/errors"
	"github.com/rileyhilliard/ssh2shell/internal/ui"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Path           string // default ./.ssh2shell.yaml
	Overwrite      bool   // overwrite an existing file without asking
	NonInteractive bool   // never prompt; fail if the file exists
	Out            io.Writer
}

// Init writes a commented starter .ssh2shell.yaml.
func Init(opts InitOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	path := opts.Path
	if path == "" {
		path = filepath.Join(".", config.ConfigFileName)
	}

	overwrite := opts.Overwrite
	if _, err := os.Stat(path); err == nil && !overwrite {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", path),
				"Use --force to overwrite")
		}

		ok, err := ui.Confirm(
			fmt.Sprintf("Config file '%s' already exists. Overwrite?", filepath.Base(path)),
			"The current file is replaced with the commented example.")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
		overwrite = true
	}

	if err := config.WriteExample(path, overwrite); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't write "+path,
			"Check that the directory is writable.")
	}

	fmt.Fprintf(out, "%s Created %s\n", ui.SymbolComplete, path)
	fmt.Fprintln(out, "  Fill in server.host and the commands, then run: ssh2shell run")
	return nil
}

// AddOptions holds options for the add command.
type AddOptions struct {
	ConfigPath string
	Command    string
	Out        io.Writer
}

// Add appends a command to the commands list of the config file in use.
func Add(opts AddOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	path, err := config.Find(opts.ConfigPath)
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New(errors.ErrConfig,
			"No .ssh2shell.yaml to add to",
			"Run 'ssh2shell init' first.")
	}
	if filepath.Base(path) == config.EnvFileName {
		return errors.New(errors.ErrConfig,
			"Commands can't be stored in "+path,
			"Create a .ssh2shell.yaml with 'ssh2shell init' for the command list.")
	}

	if err := config.AddCommand(path, opts.Command); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't update "+path,
			"Check that 'commands' is a list of strings.")
	}

	fmt.Fprintf(out, "%s Added %q to %s\n", ui.SymbolComplete, opts.Command, path)
	return nil
}
