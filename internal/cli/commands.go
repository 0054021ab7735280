package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/ssh2shell/internal/errors"
	"github.com/rileyhilliard/ssh2shell/internal/ui"
	"github.com/spf13/cobra"
)

// Command-specific flags
var (
	runHostFlag          string
	runUserFlag          string
	runPortFlag          int
	runPickFlag          bool
	runAskPasswordFlag   bool
	runInsecureFlag      bool
	runIdleTimeoutFlag   string
	runLogFlags          []string
	runTranscriptDirFlag string
	runPrefixFlag        bool
	runQuietFlag         bool
	initForce            bool
	hostsPickFlag        bool
	hostsSSHConfigFlag   string
)

// runCmd runs the configured (or given) commands in a remote shell
var runCmd = &cobra.Command{
	Use:   "run [command...]",
	Short: "Run commands in an interactive shell on the host",
	Long: `Log into the host, open an interactive shell and type each command in
turn, waiting for the prompt between them. Commands given as arguments
replace the list in the config file.

Special commands:
  msg:<text>       print <text> locally instead of sending it
  ` + "`text`" + `           add text to the transcript without sending it
  sudo ...         answered with the server password at the password prompt
  ssh ...          answered with the key passphrase at the passphrase prompt

Examples:
  ssh2shell run
  ssh2shell run "uptime" "df -h"
  ssh2shell run --host deploy@10.0.0.5 --ask-password "sudo systemctl restart app"
  ssh2shell run --pick --log session.log`,
	RunE: func(cmd *cobra.Command, args []string) error {
		idle, err := ParseIdleTimeout(runIdleTimeoutFlag)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return Run(ctx, RunOptions{
			ConfigPath:    Config(),
			Commands:      args,
			Host:          runHostFlag,
			User:          runUserFlag,
			Port:          runPortFlag,
			Pick:          runPickFlag,
			AskPassword:   runAskPasswordFlag,
			Insecure:      runInsecureFlag,
			IdleTimeout:   idle,
			Logs:          runLogFlags,
			TranscriptDir: runTranscriptDirFlag,
			Prefix:        runPrefixFlag,
			Quiet:         runQuietFlag,
		})
	},
}

// initCmd creates a starter .ssh2shell.yaml
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .ssh2shell.yaml configuration",
	Long: `Write a commented .ssh2shell.yaml to the current directory, or to the
path given with --config.

Examples:
  ssh2shell init
  ssh2shell init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Init(InitOptions{
			Path:           Config(),
			Overwrite:      initForce,
			NonInteractive: !ui.IsTerminal(os.Stdin),
			Out:            cmd.OutOrStdout(),
		})
	},
}

// addCmd appends a command to the config
var addCmd = &cobra.Command{
	Use:   "add <command>",
	Short: "Append a command to .ssh2shell.yaml",
	Long: `Append a command to the commands list of the config file in use,
keeping the rest of the file and its comments untouched. Commands already
in the list are not added twice.

Examples:
  ssh2shell add "sudo apt-get update"
  ssh2shell add "msg:Update finished"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return Add(AddOptions{
			ConfigPath: Config(),
			Command:    args[0],
			Out:        cmd.OutOrStdout(),
		})
	},
}

// hostsCmd lists hosts from ssh config
var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "List hosts from ~/.ssh/config",
	Long: `List the concrete Host entries of ~/.ssh/config. Any alias works as
--host or server.host.

Examples:
  ssh2shell hosts
  ssh2shell run --host "$(ssh2shell hosts --pick)"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Hosts(HostsOptions{
			SSHConfigPath: hostsSSHConfigFlag,
			Pick:          hostsPickFlag,
			Out:           cmd.OutOrStdout(),
		})
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for ssh2shell.

Examples:
  # Bash
  ssh2shell completion bash > /etc/bash_completion.d/ssh2shell

  # Zsh
  ssh2shell completion zsh > "${fpath[1]}/_ssh2shell"

  # Fish
  ssh2shell completion fish > ~/.config/fish/completions/ssh2shell.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(out)
		default:
			return errors.New(errors.ErrExec,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	// run command flags
	runCmd.Flags().StringVar(&runHostFlag, "host", "", "host, user@host, host:port or ssh config alias (overrides HOST)")
	runCmd.Flags().StringVarP(&runUserFlag, "user", "u", "", "user name (overrides USER_NAME)")
	runCmd.Flags().IntVarP(&runPortFlag, "port", "p", 0, "port (overrides PORT)")
	runCmd.Flags().BoolVar(&runPickFlag, "pick", false, "choose the host from ~/.ssh/config")
	runCmd.Flags().BoolVar(&runAskPasswordFlag, "ask-password", false, "prompt for the password instead of reading PASSWORD")
	runCmd.Flags().BoolVar(&runInsecureFlag, "insecure", false, "skip host key verification")
	runCmd.Flags().StringVar(&runIdleTimeoutFlag, "idle-timeout", "", "how long a command may stay silent without a prompt (e.g., 5s, 2m)")
	runCmd.Flags().StringArrayVar(&runLogFlags, "log", nil, "append session output to this file (repeatable)")
	runCmd.Flags().StringVar(&runTranscriptDirFlag, "transcript-dir", "", "save each session's transcript and summary.json under this directory")
	runCmd.Flags().BoolVar(&runPrefixFlag, "prefix", false, "prefix output lines with the host name")
	runCmd.Flags().BoolVarP(&runQuietFlag, "quiet", "q", false, "print only the final transcript")
	runCmd.MarkFlagsMutuallyExclusive("host", "pick")

	// init command flags
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing config")

	// hosts command flags
	hostsCmd.Flags().BoolVar(&hostsPickFlag, "pick", false, "choose a host interactively and print its alias")
	hostsCmd.Flags().StringVar(&hostsSSHConfigFlag, "ssh-config", "", "ssh config file to read (default ~/.ssh/config)")

	// Register all commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(hostsCmd)
	rootCmd.AddCommand(completionCmd)
}
