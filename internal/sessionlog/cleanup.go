package sessionlog

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/rileyhilliard/ssh2shell/internal/errors"
)

// LockFile guards pruning when several sessions share a transcript directory.
const LockFile = ".prune.lock"

// Run is one recorded session directory.
type Run struct {
	Path    string
	Host    string
	ModTime time.Time
}

// List returns the session directories under baseDir, newest first.
// A missing baseDir is not an error.
func List(baseDir string) ([]Run, error) {
	base, err := expandHome(baseDir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrExec,
			"Can't read transcript directory "+base,
			"Check your permissions.")
	}

	var runs []Run
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		host, ok := splitRunName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		runs = append(runs, Run{
			Path:    filepath.Join(base, entry.Name()),
			Host:    host,
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].ModTime.Equal(runs[j].ModTime) {
			return runs[i].ModTime.After(runs[j].ModTime)
		}
		return runs[i].Path > runs[j].Path
	})
	return runs, nil
}

// Prune keeps the newest keep sessions per host and removes the rest.
// keep <= 0 keeps everything. When another process holds the prune lock the
// call does nothing; that process is already pruning the same directory.
func Prune(baseDir string, keep int) error {
	if keep <= 0 {
		return nil
	}

	base, err := expandHome(baseDir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil
	}

	lock := flock.New(filepath.Join(base, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Can't lock transcript directory "+base,
			"Check your permissions.")
	}
	if !locked {
		return nil
	}
	defer func() { _ = lock.Unlock() }()

	runs, err := List(base)
	if err != nil {
		return err
	}

	seen := make(map[string]int)
	for _, r := range runs {
		seen[r.Host]++
		if seen[r.Host] <= keep {
			continue
		}
		if err := os.RemoveAll(r.Path); err != nil {
			return errors.WrapWithCode(err, errors.ErrExec,
				"Can't delete session directory "+r.Path,
				"Check your permissions.")
		}
	}
	return nil
}

// splitRunName pulls the host out of <host>-<YYYYMMDD>-<HHMMSS>.<micros>.
// Directories that don't follow the pattern aren't ours.
func splitRunName(name string) (string, bool) {
	const stamp = len(timestampLayout) + 1
	if len(name) <= stamp || name[len(name)-stamp] != '-' {
		return "", false
	}
	if _, err := time.Parse(timestampLayout, name[len(name)-stamp+1:]); err != nil {
		return "", false
	}
	host := name[:len(name)-stamp]
	return host, host != ""
}
