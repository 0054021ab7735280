// Package sessionlog keeps a per-session record on disk: the transcript and a
// summary.json describing each command, in a timestamped directory.
package sessionlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rileyhilliard/ssh2shell/internal/errors"
	"github.com/rileyhilliard/ssh2shell/pkg/shell"
)

const (
	// TranscriptFile holds the callback transcript.
	TranscriptFile = "transcript.log"
	// SummaryFile holds the per-command results.
	SummaryFile = "summary.json"

	timestampLayout = "20060102-150405.000000"

	// maxDirAttempts bounds the search for a free directory name when
	// sessions to one host start within the same microsecond.
	maxDirAttempts = 100
)

var now = time.Now

// Writer records one session under <base>/<host>-<timestamp>/.
type Writer struct {
	base    string
	dir     string
	started time.Time
	closed  bool
}

// Summary is what the caller knows once a session has finished.
type Summary struct {
	Host    string
	Results []shell.CommandResult
	Err     error
}

// SummaryJSON is the structure written to summary.json.
type SummaryJSON struct {
	Host      string        `json:"host"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  string        `json:"duration"`
	Succeeded bool          `json:"succeeded"`
	Error     string        `json:"error,omitempty"`
	ErrorCode string        `json:"error_code,omitempty"`
	TimedOut  int           `json:"timed_out"`
	Commands  []CommandJSON `json:"commands"`
}

// CommandJSON is one command entry in summary.json.
type CommandJSON struct {
	Host     string `json:"host"`
	Command  string `json:"command"`
	Response string `json:"response"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

// New creates the session directory right away so a crash mid-session still
// leaves something behind. Call it when the session starts: the summary's
// start time and duration are measured from here. Every call gets its own
// directory.
func New(baseDir, host string) (*Writer, error) {
	base, err := expandHome(baseDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(base, 0700); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't create transcript directory "+base,
			"Check your permissions, or change output.transcript_dir.")
	}

	started := now()
	stamp := started
	name := sanitizeFilename(host)
	for i := 0; i < maxDirAttempts; i++ {
		dir := filepath.Join(base, name+"-"+stamp.Format(timestampLayout))
		err := os.Mkdir(dir, 0700)
		if err == nil {
			return &Writer{base: base, dir: dir, started: started}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Can't create transcript directory "+dir,
				"Check your permissions for "+base+", or change output.transcript_dir.")
		}
		stamp = stamp.Add(time.Microsecond)
	}
	return nil, errors.New(errors.ErrConfig,
		"No free session directory for "+host+" in "+base,
		"Clean up "+base+" or set output.keep_runs.")
}

// Started returns when the writer was created.
func (w *Writer) Started() time.Time {
	return w.started
}

// WriteTranscript writes the final transcript.
func (w *Writer) WriteTranscript(transcript string) error {
	if w.closed {
		return errClosed()
	}
	path := filepath.Join(w.dir, TranscriptFile)
	if err := os.WriteFile(path, []byte(transcript), 0600); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Can't write transcript "+path,
			"Check your permissions.")
	}
	return nil
}

// WriteSummary writes summary.json for the finished session.
func (w *Writer) WriteSummary(s Summary) error {
	if w.closed {
		return errClosed()
	}

	end := now()
	out := SummaryJSON{
		Host:      s.Host,
		StartTime: w.started,
		EndTime:   end,
		Duration:  end.Sub(w.started).Round(time.Millisecond).String(),
		Succeeded: s.Err == nil,
		Commands:  make([]CommandJSON, len(s.Results)),
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
		out.ErrorCode = errors.CodeOf(s.Err)
	}
	for i, r := range s.Results {
		if r.TimedOut {
			out.TimedOut++
		}
		out.Commands[i] = CommandJSON{
			Host:     r.Host,
			Command:  r.Command,
			Response: r.Response,
			TimedOut: r.TimedOut,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Can't encode session summary",
			"This is unexpected - check the session results.")
	}

	path := filepath.Join(w.dir, SummaryFile)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Can't write summary file "+path,
			"Check your permissions.")
	}
	return nil
}

// Dir returns this session's directory.
func (w *Writer) Dir() string {
	return w.dir
}

// BaseDir returns the expanded transcript directory.
func (w *Writer) BaseDir() string {
	return w.base
}

// Close finalizes the writer. Later writes fail.
func (w *Writer) Close() error {
	w.closed = true
	return nil
}

func errClosed() error {
	return errors.New(errors.ErrExec,
		"Session log writer is closed",
		"This is unexpected - create a new writer per session.")
}

func expandHome(dir string) (string, error) {
	if len(dir) == 0 || dir[0] != '~' {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Can't determine home directory",
			"Use an absolute output.transcript_dir.")
	}
	return filepath.Join(home, dir[1:]), nil
}

// sanitizeFilename replaces characters that aren't safe in a directory name.
// user@host stays readable.
func sanitizeFilename(name string) string {
	if name == "" {
		return "session"
	}
	out := []byte(name)
	for i, c := range out {
		switch c {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			out[i] = '_'
		}
	}
	return string(out)
}
