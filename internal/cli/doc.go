// Package cli implements the ssh2shell command-line interface.
//
// Each Cobra command parses its flags and hands off to a plain function
// (Run, Init, Add, Hosts) that takes an options struct, so the commands can
// be exercised without going through Cobra.
//
// # Command Structure
//
//	ssh2shell run [command...]  - Run commands in an interactive shell
//	ssh2shell init              - Create .ssh2shell.yaml
//	ssh2shell add <command>     - Append a command to the config
//	ssh2shell hosts             - List ~/.ssh/config hosts
//	ssh2shell version           - Print version information
//
// # Output
//
// Run streams shell output to stdout as it arrives, one complete line at a
// time, and prints the full transcript between the callback markers when the
// session ends. Progress, msg: notices and timeouts go to stderr so stdout
// can be redirected to a file.
//
// # Flag Handling
//
// Global flags (--config, --no-color, --debug) are defined on the root
// command. Connection flags on run override both the config file and the
// HOST, PORT, USER_NAME and PASSWORD environment variables.
package cli
