// Package ui renders ssh2shell's terminal output: status lines, the connect
// spinner, the transcript block, tables and the interactive prompts.
//
// Status output goes to stderr so stdout carries only session data.
//
//	pd := ui.NewPhaseDisplay(os.Stderr)
//	s := ui.NewSpinner("Connecting to deploy@box")
//	s.Start()
//	// ... on connect ...
//	s.Success()
//	pd.Message("Checking disk space")
//	pd.Transcript(transcript)
//
// ApplyColorMode picks the lipgloss color profile from the --color setting
// and whether the target is a terminal. DisableColors forces plain text.
package ui
