package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrSSH,
		ErrAuth,
		ErrShell,
		ErrTimeout,
		ErrExec,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "HOST is not set",
			suggestion: "Export HOST or add server.host to .ssh2shell.yaml",
		},
		{
			name:       "auth error",
			code:       ErrAuth,
			message:    "sudo password rejected",
			suggestion: "Check the password for the remote user",
		},
		{
			name:       "timeout error",
			code:       ErrTimeout,
			message:    "No prompt after 5s",
			suggestion: "Raise shell.idle_timeout or fix prompts.standard",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	err := WrapWithCode(
		errors.New("dial tcp 10.0.0.1:22: i/o timeout"),
		ErrSSH,
		"Can't reach 'box' at 10.0.0.1:22",
		"Make sure the host is reachable",
	)

	output := err.Error()
	lines := strings.Split(output, "\n")

	assert.True(t, strings.HasPrefix(lines[0], "✗"), "first line should start with failure symbol")
	assert.Contains(t, lines[0], "Can't reach 'box'")
	assert.Contains(t, output, "i/o timeout")
	assert.Contains(t, output, "Make sure the host is reachable")
}

func TestErrorFormatting_NoSuggestion(t *testing.T) {
	err := New(ErrShell, "Shell closed", "")
	assert.Equal(t, "✗ Shell closed\n", err.Error())
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying network error")
	wrapped := Wrap(cause, "SSH connection failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrSSH, wrapped.Code, "Wrap should default to ErrSSH code")
	assert.Equal(t, cause, wrapped.Cause)
}

func TestErrorsIsAndAs(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := fmt.Errorf("outer: %w", WrapWithCode(cause, ErrShell, "Shell failed", ""))

	assert.True(t, errors.Is(wrapped, cause))

	var shErr *Error
	require.True(t, errors.As(wrapped, &shErr))
	assert.Equal(t, ErrShell, shErr.Code)
}

func TestIsCode(t *testing.T) {
	err := New(ErrConfig, "Config error", "")

	assert.True(t, IsCode(err, ErrConfig))
	assert.False(t, IsCode(err, ErrSSH))
	assert.False(t, IsCode(errors.New("standard error"), ErrConfig))
	assert.False(t, IsCode(nil, ErrConfig))
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(ErrTimeout, "slow", ""))

	assert.Equal(t, ErrTimeout, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOk   bool
	}{
		{"exit error", NewExitError(42), 42, true},
		{"wrapped exit error", fmt.Errorf("run: %w", NewExitError(3)), 3, true},
		{"standard error", errors.New("boom"), 0, false},
		{"nil", nil, 0, false},
		{"structured error", New(ErrExec, "test", ""), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := GetExitCode(tt.err)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "exit code 137", NewExitError(137).Error())
}
