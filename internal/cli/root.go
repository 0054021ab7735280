package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rileyhilliard/ssh2shell/internal/errors"
	"github.com/rileyhilliard/ssh2shell/internal/logger"
	"github.com/rileyhilliard/ssh2shell/internal/ui"
	"github.com/rileyhilliard/ssh2shell/pkg/sshutil"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile string
	noColor bool
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "ssh2shell",
	Short: "Run a list of commands in an interactive SSH shell",
	Long: `ssh2shell logs into a host, types commands into its interactive shell one
after another, answers sudo and ssh prompts, and prints the whole session
transcript when the shell closes.

Connection details come from .ssh2shell.yaml, a .env file with HOST, PORT,
USER_NAME and PASSWORD, or the same variables in the environment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.DisableColors()
		} else {
			ui.ApplyColorMode(ui.ColorAuto, os.Stdout)
		}
		if debug {
			log := logger.NewDebugLogger("[ssh2shell]")
			logger.SetDefault(log)
			sshutil.SetLogger(log)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .ssh2shell.yaml, then .env)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log connection and prompt details to stderr (same as "+logger.DebugEnv+"=1)")
}

// Config returns the --config flag value.
func Config() string {
	return cfgFile
}

// Execute runs the root command and exits with the resulting status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := errors.GetExitCode(err); ok {
			os.Exit(code)
		}
		if isUnknownCommandError(err) {
			fmt.Fprintln(os.Stderr, ui.RenderError(errors.New(errors.ErrConfig,
				fmt.Sprintf("Unknown command %q", extractUnknownCommand(err)),
				"Run 'ssh2shell --help' to see the available commands.")))
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, ui.RenderError(err))
		os.Exit(1)
	}
}

func isUnknownCommandError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "unknown command ")
}

// extractUnknownCommand pulls the name out of cobra's
// `unknown command "foo" for "ssh2shell"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start == -1 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end == -1 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
