package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rileyhilliard/ssh2shell/internal/ui"
	"github.com/rileyhilliard/ssh2shell/pkg/sshutil"
)

// HostsOptions holds options for the hosts command.
type HostsOptions struct {
	SSHConfigPath string // default ~/.ssh/config
	Pick          bool   // print only the alias chosen in the picker
	Out           io.Writer
}

var hostsColumns = []ui.TableColumn{
	{Title: "ALIAS"},
	{Title: "HOSTNAME"},
	{Title: "USER"},
	{Title: "PORT"},
}

// Hosts lists the concrete host entries of an ssh config file.
func Hosts(opts HostsOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	var (
		entries []sshutil.SSHHostEntry
		err     error
	)
	if opts.SSHConfigPath != "" {
		entries, err = sshutil.ParseSSHConfigFile(opts.SSHConfigPath)
	} else {
		entries, err = sshutil.ParseSSHConfig()
	}
	if err != nil {
		return err
	}

	if opts.Pick {
		choice, err := ui.PickHost(hostChoices(entries))
		if err != nil {
			return err
		}
		if choice != nil {
			fmt.Fprintln(out, choice.Alias)
		}
		return nil
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No hosts in ssh config.")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		port := e.Port
		if port == "" {
			port = "22"
		}
		rows = append(rows, []string{e.Alias, e.Hostname, e.User, port})
	}
	fmt.Fprintln(out, ui.RenderSimpleTable(hostsColumns, rows))
	return nil
}
