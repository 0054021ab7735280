package ui

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderSessionSummary(t *testing.T) {
	tests := []struct {
		name    string
		summary SessionSummary
		want    []string
		notWant []string
	}{
		{
			name:    "success",
			summary: SessionSummary{Host: "deploy@box", Commands: 4, Duration: 2100 * time.Millisecond},
			want:    []string{SymbolComplete, "4 commands on deploy@box", "2.1s"},
			notWant: []string{"timed out"},
		},
		{
			name:    "single command",
			summary: SessionSummary{Host: "box", Commands: 1},
			want:    []string{"1 command on box"},
		},
		{
			name:    "failure",
			summary: SessionSummary{Host: "box", Commands: 2, Err: fmt.Errorf("boom")},
			want:    []string{SymbolFail, "box failed after 2 commands"},
		},
		{
			name:    "timeouts",
			summary: SessionSummary{Host: "box", Commands: 3, TimedOut: 1},
			want:    []string{"(1 timed out)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderSessionSummary(tt.summary)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, got, w)
			}
		})
	}
}

func TestRenderError(t *testing.T) {
	assert.Empty(t, RenderError(nil))
	assert.Equal(t, SymbolFail+" first\nsecond", RenderError(fmt.Errorf("first\nsecond\n")))
}
