package packager

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanRemovesLeftovers(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(project, "build", "app"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(project, "__pycache__"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "app.spec"), []byte("# spec"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(project, "app.py"), []byte(""), 0o644))

	report := NewCleaner().Clean(project, "app.py")

	require.Len(t, report, 3)
	for _, res := range report {
		assert.Equal(t, CleanupRemoved, res.Outcome, res.Artifact)
		_, err := os.Stat(res.Path)
		assert.True(t, errors.Is(err, os.ErrNotExist), res.Path)
	}
	_, err := os.Stat(filepath.Join(project, "app.py"))
	assert.NoError(t, err, "entry script must survive cleanup")
}

func TestCleanReportsAbsentArtifacts(t *testing.T) {
	report := NewCleaner().Clean(t.TempDir(), "main.py")

	require.Len(t, report, 3)
	assert.False(t, report.Failed())
	for _, res := range report {
		assert.Equal(t, CleanupAbsent, res.Outcome)
	}
	assert.Len(t, report.Lines(), 3)
}

func TestCleanToleratesPartialFailure(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(project, "build"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(project, "__pycache__"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "tool.spec"), []byte(""), 0o644))

	locked := errors.New("file in use")
	cleaner := NewCleanerForTests(
		os.Stat,
		func(path string) error {
			if filepath.Base(path) == "build" {
				return locked
			}
			return os.RemoveAll(path)
		},
		func(string) error { return locked },
	)

	report := cleaner.Clean(project, "src/tool.py")

	require.Len(t, report, 3)
	assert.Equal(t, CleanupFailed, report[0].Outcome)
	assert.Equal(t, CleanupRemoved, report[1].Outcome)
	assert.Equal(t, CleanupFailed, report[2].Outcome)
	assert.True(t, report.Failed())

	lines := report.Lines()
	require.Len(t, lines, 3)
	assert.True(t, strings.Contains(lines[0], "file in use"))
	assert.True(t, strings.HasPrefix(lines[1], "removed"))
}

func TestCleanEveryArtifactState(t *testing.T) {
	states := []string{"absent", "present", "locked"}
	for _, build := range states {
		for _, cache := range states {
			for _, specFile := range states {
				project := t.TempDir()
				lockedPaths := map[string]bool{}
				setup := func(state, name string, dir bool) {
					path := filepath.Join(project, name)
					if state == "absent" {
						return
					}
					if dir {
						require.NoError(t, os.MkdirAll(path, 0o755))
					} else {
						require.NoError(t, os.WriteFile(path, nil, 0o644))
					}
					if state == "locked" {
						lockedPaths[path] = true
					}
				}
				setup(build, "build", true)
				setup(cache, "__pycache__", true)
				setup(specFile, "main.spec", false)

				guard := func(rm func(string) error) func(string) error {
					return func(path string) error {
						if lockedPaths[path] {
							return os.ErrPermission
						}
						return rm(path)
					}
				}
				report := NewCleanerForTests(os.Stat, guard(os.RemoveAll), guard(os.Remove)).Clean(project, "main.py")

				require.Len(t, report.Lines(), 3)
				want := map[string]CleanupOutcome{"absent": CleanupAbsent, "present": CleanupRemoved, "locked": CleanupFailed}
				assert.Equal(t, want[build], report[0].Outcome)
				assert.Equal(t, want[cache], report[1].Outcome)
				assert.Equal(t, want[specFile], report[2].Outcome)
			}
		}
	}
}

func TestSpecFileName(t *testing.T) {
	assert.Equal(t, "app.spec", SpecFileName("app.py"))
	assert.Equal(t, "main.spec", SpecFileName("src/pkg/main.py"))
	assert.Equal(t, "tool.spec", SpecFileName("tool"))
}
