package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rileyhilliard/ssh2shell/internal/config"
	"github.com/rileyhilliard/ssh2shell/internal/errors"
	"github.com/rileyhilliard/ssh2shell/internal/logger"
	"github.com/rileyhilliard/ssh2shell/internal/output"
	"github.com/rileyhilliard/ssh2shell/internal/sessionlog"
	"github.com/rileyhilliard/ssh2shell/internal/ui"
	"github.com/rileyhilliard/ssh2shell/pkg/shell"
	"github.com/rileyhilliard/ssh2shell/pkg/sshutil"
)

// RunOptions holds options for the run command. Zero values leave the
// config untouched.
type RunOptions struct {
	ConfigPath string
	Commands   []string // replace the configured commands when set

	Host        string
	User        string
	Port        int
	Pick        bool // choose the host from ~/.ssh/config
	AskPassword bool
	Insecure    bool
	IdleTimeout time.Duration

	Logs          []string // appended to output.logs
	TranscriptDir string
	Prefix        bool
	Quiet         bool // print only the transcript

	Stdout io.Writer
	Stderr io.Writer
}

// Run loads config, runs the session and prints its transcript. Session
// output streams to Stdout as it arrives; progress and notices go to Stderr.
func Run(ctx context.Context, opts RunOptions) error {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	cfg, _, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return err
	}
	applyRunOverrides(cfg, opts)

	if f, ok := stdout.(*os.File); ok && !noColor {
		ui.ApplyColorMode(cfg.Output.Color, f)
	}

	if opts.Pick {
		if err := pickServer(cfg); err != nil {
			return err
		}
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	if opts.AskPassword {
		pw, err := ui.PromptPassword(fmt.Sprintf("Password for %s", cfg.Server.Host))
		if err != nil {
			return err
		}
		cfg.Server.Password = pw
	}

	host, err := cfg.ShellHost()
	if err != nil {
		return err
	}

	logs, err := openLogs(cfg.Output.Logs)
	defer closeLogs(logs)
	if err != nil {
		return err
	}

	session := shell.New(host, shell.WithLogger(logger.Default()))
	for _, f := range logs {
		session.Pipe(f)
	}

	console := output.NewConsole(stdout)
	console.SetPrefix(cfg.Output.Prefix)
	console.SetStripANSI(cfg.Shell.StripANSI)

	tracker := output.NewPhaseTracker(stderr)
	tracker.SetQuiet(opts.Quiet)
	display := ui.NewPhaseDisplay(stderr)

	// Handlers run on the session goroutine, one at a time.
	var (
		connects  int
		errEvents []error
	)
	session.On(shell.EventConnect, func(e shell.Event) {
		connects++
		if connects == 1 {
			tracker.Start(output.PhaseRunning, "Running commands on "+e.Host)
			return
		}
		tracker.Start(output.PhaseHop, "Hop to "+e.Host)
	})
	session.On(shell.EventError, func(e shell.Event) {
		errEvents = append(errEvents, e.Err)
	})
	if !opts.Quiet {
		session.On(shell.EventData, func(e shell.Event) {
			_ = console.Write(e.Host, e.Data)
		})
		session.On(shell.EventMsg, func(e shell.Event) {
			display.Message(e.Message)
		})
		session.On(shell.EventCommandTimeout, func(e shell.Event) {
			label := e.Command
			if label == "" {
				label = "first prompt on " + e.Host
			}
			display.RenderTimeout(label, host.IdleTimeout)
		})
	}

	var record *sessionlog.Writer
	if dir := cfg.Output.TranscriptDir; dir != "" {
		if record, err = sessionlog.New(dir, host.Name()); err != nil {
			display.RenderSkipped("Save transcript", err.Error())
		} else {
			defer record.Close()
		}
	}

	start := time.Now()
	tracker.Start(output.PhaseConnecting, "Connecting to "+host.Name())

	finished := make(chan string, 1)
	if err := session.Connect(ctx, func(transcript string) { finished <- transcript }); err != nil {
		tracker.Fail(err)
		return err
	}
	transcript := <-finished
	sessErr := session.Err()
	results := session.Results()

	_ = console.Flush()
	if sessErr != nil {
		tracker.Fail(sessErr)
	} else {
		tracker.Complete()
	}

	// Errors before the last one are sink failures the session survived.
	warnings := errEvents
	if sessErr != nil && len(warnings) > 0 {
		warnings = warnings[:len(warnings)-1]
	}
	for _, w := range warnings {
		display.RenderSkipped("Log sink", w.Error())
	}

	if !opts.Quiet {
		fmt.Fprintln(stderr, ui.RenderSessionSummary(ui.SessionSummary{
			Host:     host.Name(),
			Commands: len(results),
			TimedOut: countTimedOut(results),
			Duration: time.Since(start),
			Err:      sessErr,
		}))
	}

	ui.NewPhaseDisplay(stdout).Transcript(transcript)

	if record != nil {
		err := saveSession(record, cfg.Output.KeepRuns, sessionlog.Summary{
			Host:    host.Name(),
			Results: results,
			Err:     sessErr,
		}, transcript)
		if err != nil {
			display.RenderSkipped("Save transcript", err.Error())
		}
	}

	return sessErr
}

func applyRunOverrides(cfg *config.Config, opts RunOptions) {
	if len(opts.Commands) > 0 {
		cfg.Commands = append([]string(nil), opts.Commands...)
	}
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.User != "" {
		cfg.Server.UserName = opts.User
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	if opts.Insecure {
		cfg.Server.Insecure = true
	}
	if opts.IdleTimeout > 0 {
		cfg.Shell.IdleTimeout = opts.IdleTimeout
	}
	cfg.Output.Logs = append(cfg.Output.Logs, opts.Logs...)
	if opts.TranscriptDir != "" {
		cfg.Output.TranscriptDir = opts.TranscriptDir
	}
	if opts.Prefix {
		cfg.Output.Prefix = true
	}
}

// pickServer replaces the server host with an alias chosen from ~/.ssh/config.
// The alias is resolved against ssh config again when dialing.
func pickServer(cfg *config.Config) error {
	entries, err := sshutil.ParseSSHConfig()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't read ~/.ssh/config",
			"Fix the file, or pass the host with --host instead of --pick.")
	}
	choice, err := ui.PickHost(hostChoices(entries))
	if err != nil {
		return err
	}
	if choice == nil {
		return errors.New(errors.ErrConfig, "No host selected", "")
	}
	cfg.Server.Host = choice.Alias
	return nil
}

func hostChoices(entries []sshutil.SSHHostEntry) []ui.HostChoice {
	choices := make([]ui.HostChoice, 0, len(entries))
	for _, e := range entries {
		choices = append(choices, ui.HostChoice{
			Alias:       e.Alias,
			Hostname:    e.Hostname,
			User:        e.User,
			Description: e.Description(),
		})
	}
	return choices
}

// openLogs opens every log path for appending. Files opened before a failure
// are returned so the caller can close them.
func openLogs(paths []string) ([]*os.File, error) {
	var files []*os.File
	for _, p := range paths {
		path := config.ExpandTilde(p)
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return files, errors.WrapWithCode(err, errors.ErrConfig,
					"Can't create directory for log "+p,
					"Check the path in output.logs or --log.")
			}
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return files, errors.WrapWithCode(err, errors.ErrConfig,
				"Can't open log file "+p,
				"Check the path in output.logs or --log.")
		}
		files = append(files, f)
	}
	return files, nil
}

func closeLogs(files []*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func saveSession(w *sessionlog.Writer, keep int, summary sessionlog.Summary, transcript string) error {
	if err := w.WriteTranscript(transcript); err != nil {
		return err
	}
	if err := w.WriteSummary(summary); err != nil {
		return err
	}
	return sessionlog.Prune(w.BaseDir(), keep)
}

func countTimedOut(results []shell.CommandResult) int {
	n := 0
	for _, r := range results {
		if r.TimedOut {
			n++
		}
	}
	return n
}
