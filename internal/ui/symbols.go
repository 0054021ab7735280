package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Command completed
	SymbolFail     = "✗" // Session or command failed
	SymbolPending  = "○" // Not started
	SymbolProgress = "◐" // In progress
	SymbolComplete = "●" // Phase done
	SymbolSkipped  = "⊘" // Skipped
	SymbolTimeout  = "⧗" // Command went quiet without a prompt
	SymbolMessage  = "›" // Local msg: notice
)
