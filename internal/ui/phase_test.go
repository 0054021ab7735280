package ui

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPhaseDisplay(t *testing.T) {
	tests := []struct {
		name   string
		render func(*PhaseDisplay)
		want   []string
	}{
		{
			name:   "success",
			render: func(pd *PhaseDisplay) { pd.RenderSuccess("Connected deploy@box", 300*time.Millisecond) },
			want:   []string{SymbolComplete, "Connected deploy@box", "0.3s"},
		},
		{
			name: "failed",
			render: func(pd *PhaseDisplay) {
				pd.RenderFailed("Connecting", 2*time.Second, fmt.Errorf("line one\nline two"))
			},
			want: []string{SymbolFail, "Connecting", "2.0s", "  line one\n", "  line two\n"},
		},
		{
			name:   "skipped",
			render: func(pd *PhaseDisplay) { pd.RenderSkipped("Hops", "none configured") },
			want:   []string{SymbolSkipped, "Hops", "(none configured)"},
		},
		{
			name:   "timeout",
			render: func(pd *PhaseDisplay) { pd.RenderTimeout("sleep 60", 5*time.Second) },
			want:   []string{SymbolTimeout, "sleep 60", "no prompt after 5s"},
		},
		{
			name:   "message",
			render: func(pd *PhaseDisplay) { pd.Message("Checking disk space") },
			want:   []string{SymbolMessage + " Checking disk space\n"},
		},
		{
			name:   "divider",
			render: func(pd *PhaseDisplay) { pd.Divider() },
			want:   []string{strings.Repeat("━", DividerWidth)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.render(NewPhaseDisplay(&buf))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestPhaseDisplayTranscript(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "ends with newline",
			text: "ls\nfile\n",
			want: TranscriptStart + "\nls\nfile\n" + TranscriptEnd + "\n",
		},
		{
			name: "ends at a prompt",
			text: "ls\r\nfile\r\n$ ",
			want: TranscriptStart + "\nls\r\nfile\r\n$ \n" + TranscriptEnd + "\n",
		},
		{
			name: "empty",
			text: "",
			want: TranscriptStart + "\n" + TranscriptEnd + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewPhaseDisplay(&buf).Transcript(tt.text)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestFormatPhase(t *testing.T) {
	assert.Equal(t, SymbolComplete+" Done 1.0s", FormatPhase(SymbolComplete, ColorSuccess, "Done", "1.0s"))
	assert.Equal(t, SymbolPending+" Waiting", FormatPhase(SymbolPending, ColorMuted, "Waiting", ""))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0.05s", formatDuration(50*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
}
