package packager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Leftovers PyInstaller writes into the directory it runs in.
const (
	BuildDirName = "build"
	CacheDirName = "__pycache__"
	SpecFileExt  = ".spec"
)

// CleanupOutcome says what happened to one artifact.
type CleanupOutcome string

const (
	CleanupRemoved CleanupOutcome = "removed"
	CleanupAbsent  CleanupOutcome = "absent"
	CleanupFailed  CleanupOutcome = "failed"
)

// CleanupResult is the outcome for one artifact.
type CleanupResult struct {
	Artifact string
	Path     string
	Outcome  CleanupOutcome
	Err      error
}

// Line renders the result as a log line.
func (r CleanupResult) Line() string {
	switch r.Outcome {
	case CleanupRemoved:
		return fmt.Sprintf("removed %s: %s", r.Artifact, r.Path)
	case CleanupFailed:
		return fmt.Sprintf("failed to remove %s %s: %v", r.Artifact, r.Path, r.Err)
	default:
		return fmt.Sprintf("no %s to remove at %s", r.Artifact, r.Path)
	}
}

// CleanupReport holds one result per artifact, in a fixed order.
type CleanupReport []CleanupResult

// Lines renders every result.
func (r CleanupReport) Lines() []string {
	lines := make([]string, 0, len(r))
	for _, res := range r {
		lines = append(lines, res.Line())
	}
	return lines
}

// Failed reports whether any artifact could not be removed.
func (r CleanupReport) Failed() bool {
	for _, res := range r {
		if res.Outcome == CleanupFailed {
			return true
		}
	}
	return false
}

// Cleaner removes build leftovers from a project directory.
type Cleaner struct {
	stat      func(name string) (os.FileInfo, error)
	removeAll func(path string) error
	remove    func(name string) error
}

// NewCleaner builds a cleaner using the real filesystem.
func NewCleaner() *Cleaner {
	return &Cleaner{
		stat:      os.Stat,
		removeAll: os.RemoveAll,
		remove:    os.Remove,
	}
}

// NewCleanerForTests builds a cleaner with injectable filesystem calls.
func NewCleanerForTests(
	stat func(name string) (os.FileInfo, error),
	removeAll func(path string) error,
	remove func(name string) error,
) *Cleaner {
	return &Cleaner{stat: stat, removeAll: removeAll, remove: remove}
}

// Clean attempts every removal independently. It never fails as a whole;
// problems are recorded per artifact.
func (c *Cleaner) Clean(projectDir, entryFile string) CleanupReport {
	return CleanupReport{
		c.removeDir("build directory", filepath.Join(projectDir, BuildDirName)),
		c.removeDir("bytecode cache", filepath.Join(projectDir, CacheDirName)),
		c.removeFile("spec file", filepath.Join(projectDir, SpecFileName(entryFile))),
	}
}

// SpecFileName derives the generated spec file name from the entry script.
func SpecFileName(entryFile string) string {
	base := filepath.Base(filepath.FromSlash(entryFile))
	return strings.TrimSuffix(base, filepath.Ext(base)) + SpecFileExt
}

func (c *Cleaner) removeDir(artifact, path string) CleanupResult {
	res := CleanupResult{Artifact: artifact, Path: path}
	info, err := c.stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		res.Outcome = CleanupAbsent
		return res
	case err != nil:
		res.Outcome, res.Err = CleanupFailed, err
		return res
	case !info.IsDir():
		res.Outcome = CleanupAbsent
		return res
	}
	if err := c.removeAll(path); err != nil {
		res.Outcome, res.Err = CleanupFailed, err
		return res
	}
	res.Outcome = CleanupRemoved
	return res
}

func (c *Cleaner) removeFile(artifact, path string) CleanupResult {
	res := CleanupResult{Artifact: artifact, Path: path}
	info, err := c.stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		res.Outcome = CleanupAbsent
		return res
	case err != nil:
		res.Outcome, res.Err = CleanupFailed, err
		return res
	case info.IsDir():
		res.Outcome = CleanupAbsent
		return res
	}
	if err := c.remove(path); err != nil {
		res.Outcome, res.Err = CleanupFailed, err
		return res
	}
	res.Outcome = CleanupRemoved
	return res
}
