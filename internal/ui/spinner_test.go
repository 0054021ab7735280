package ui

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type captured struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (c *captured) write(s string) {
	c.mu.Lock()
	c.buf.WriteString(s)
	c.mu.Unlock()
}

func (c *captured) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func TestNewSpinner(t *testing.T) {
	s := NewSpinner("Connecting")
	assert.Equal(t, "Connecting", s.Label())
	assert.Equal(t, SpinnerPending, s.State())
	assert.Zero(t, s.Elapsed())
}

func TestSpinnerFinalStates(t *testing.T) {
	tests := []struct {
		name   string
		finish func(*Spinner)
		state  SpinnerState
		symbol string
	}{
		{"success", (*Spinner).Success, SpinnerSuccess, SymbolComplete},
		{"fail", (*Spinner).Fail, SpinnerFailed, SymbolFail},
		{"skip", (*Spinner).Skip, SpinnerSkipped, SymbolSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &captured{}
			s := NewSpinner("Connecting to box")
			s.SetOutput(out.write)

			s.Start()
			assert.Equal(t, SpinnerInProgress, s.State())
			time.Sleep(20 * time.Millisecond)
			tt.finish(s)

			assert.Equal(t, tt.state, s.State())
			assert.Contains(t, out.String(), "Connecting to box...")
			assert.Contains(t, out.String(), tt.symbol+" Connecting to box")
			assert.True(t, strings.HasSuffix(out.String(), "\n"))
		})
	}
}

func TestSpinnerStartTwiceAndStop(t *testing.T) {
	out := &captured{}
	s := NewSpinner("x")
	s.SetOutput(out.write)

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
	assert.Equal(t, SpinnerInProgress, s.State(), "Stop leaves the state alone")
}

func TestSpinnerSetLabel(t *testing.T) {
	out := &captured{}
	s := NewSpinner("before")
	s.SetOutput(out.write)
	s.SetLabel("after")

	s.Start()
	s.Success()
	assert.Contains(t, out.String(), "after")
	assert.NotContains(t, out.String(), "before")
}
