package output

import (
	"io"
	"sync"
	"time"

	"github.com/rileyhilliard/ssh2shell/internal/ui"
)

// Phase is a stage of a session as seen from the console.
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseRunning
	PhaseHop
	PhaseDone
)

// String returns the display name for a phase.
func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "Connecting"
	case PhaseRunning:
		return "Running"
	case PhaseHop:
		return "Hop"
	case PhaseDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// spins reports whether the phase gets an animated spinner. Only connecting
// does; later phases share the terminal with session output.
func (p Phase) spins() bool {
	return p == PhaseConnecting
}

// PhaseEvent records a phase transition.
type PhaseEvent struct {
	Phase     Phase
	Label     string
	StartTime time.Time
	EndTime   time.Time
	Success   bool
	Error     error
}

// Duration returns the phase duration.
func (e PhaseEvent) Duration() time.Duration {
	if e.EndTime.IsZero() {
		return time.Since(e.StartTime)
	}
	return e.EndTime.Sub(e.StartTime)
}

// PhaseTracker follows the session through its phases and renders each one
// when it ends. Session events arrive on the session goroutine while the CLI
// reads results from its own, so access is synchronized.
type PhaseTracker struct {
	mu      sync.Mutex
	display *ui.PhaseDisplay
	spinner *ui.Spinner
	output  func(string)
	events  []PhaseEvent
	quiet   bool
}

// NewPhaseTracker creates a tracker rendering to w.
func NewPhaseTracker(w io.Writer) *PhaseTracker {
	return &PhaseTracker{
		display: ui.NewPhaseDisplay(w),
		output:  func(s string) { _, _ = io.WriteString(w, s) },
	}
}

// SetQuiet suppresses all rendering; events are still recorded.
func (pt *PhaseTracker) SetQuiet(quiet bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.quiet = quiet
}

// Start begins a phase. An unfinished previous phase is completed first.
func (pt *PhaseTracker) Start(phase Phase, label string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if n := len(pt.events); n > 0 && pt.events[n-1].EndTime.IsZero() {
		pt.finishLocked(true, nil)
	}

	pt.events = append(pt.events, PhaseEvent{
		Phase:     phase,
		Label:     label,
		StartTime: time.Now(),
	})

	if phase.spins() && !pt.quiet {
		pt.spinner = ui.NewSpinner(label)
		pt.spinner.SetOutput(pt.output)
		pt.spinner.Start()
	}
}

// Complete marks the current phase as successful.
func (pt *PhaseTracker) Complete() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.finishLocked(true, nil)
}

// Fail marks the current phase as failed.
func (pt *PhaseTracker) Fail(err error) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.finishLocked(false, err)
}

func (pt *PhaseTracker) finishLocked(success bool, err error) {
	n := len(pt.events)
	if n == 0 || !pt.events[n-1].EndTime.IsZero() {
		return
	}
	e := &pt.events[n-1]
	e.EndTime = time.Now()
	e.Success = success
	e.Error = err

	if pt.spinner != nil {
		if success {
			pt.spinner.Success()
		} else {
			pt.spinner.Fail()
		}
		pt.spinner = nil
		return
	}
	if pt.quiet {
		return
	}
	if success {
		pt.display.RenderSuccess(e.Label, e.Duration())
	} else {
		pt.display.RenderFailed(e.Label, e.Duration(), nil)
	}
}

// Current returns the phase in progress, or PhaseDone if none is.
func (pt *PhaseTracker) Current() Phase {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	n := len(pt.events)
	if n == 0 || !pt.events[n-1].EndTime.IsZero() {
		return PhaseDone
	}
	return pt.events[n-1].Phase
}

// Events returns a copy of all phase events.
func (pt *PhaseTracker) Events() []PhaseEvent {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	result := make([]PhaseEvent, len(pt.events))
	copy(result, pt.events)
	return result
}

// TotalDuration returns the time from the first phase to the last finished one.
func (pt *PhaseTracker) TotalDuration() time.Duration {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if len(pt.events) == 0 {
		return 0
	}
	start := pt.events[0].StartTime
	end := time.Now()
	for i := len(pt.events) - 1; i >= 0; i-- {
		if !pt.events[i].EndTime.IsZero() {
			end = pt.events[i].EndTime
			break
		}
	}
	return end.Sub(start)
}
