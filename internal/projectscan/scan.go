// Package projectscan lists the Python scripts of a project that can serve as
// the packaging entry point.
package projectscan

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-enry/go-enry/v2"
	gitignore "github.com/sabhiram/go-gitignore"
)

// Directories PyInstaller itself produces or that only hold bytecode.
var defaultIgnores = []string{
	"build/",
	"dist/",
	"__pycache__/",
	"*.egg-info/",
	"site-packages/",
}

// venvMarker identifies a virtual environment root.
const venvMarker = "pyvenv.cfg"

// EntryCandidates returns the .py files under projectDir as slash separated
// relative paths, sorted. Hidden, vendored, virtual-env and .gitignored paths
// are skipped, as are build outputs.
func EntryCandidates(projectDir string) ([]string, error) {
	info, err := os.Stat(projectDir)
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan project: %s is not a directory", projectDir)
	}

	matcher, err := loadIgnore(projectDir)
	if err != nil {
		return nil, err
	}

	var out []string
	err = filepath.WalkDir(projectDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == projectDir {
				return walkErr
			}
			// Unreadable subtrees are left out rather than failing the scan.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(projectDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skipDir(path, rel, matcher) {
				return fs.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(rel), ".py") {
			return nil
		}
		if enry.IsDotFile(rel) || matcher.MatchesPath(rel) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}

	sort.Strings(out)
	return out, nil
}

func skipDir(path, rel string, matcher *gitignore.GitIgnore) bool {
	if enry.IsDotFile(rel) || enry.IsVendor(rel+"/") || matcher.MatchesPath(rel+"/") {
		return true
	}
	_, err := os.Stat(filepath.Join(path, venvMarker))
	return err == nil
}

// loadIgnore compiles the project's .gitignore together with the defaults.
func loadIgnore(projectDir string) (*gitignore.GitIgnore, error) {
	patterns := append([]string(nil), defaultIgnores...)

	f, err := os.Open(filepath.Join(projectDir, ".gitignore"))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read .gitignore: %w", err)
	default:
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			patterns = append(patterns, line)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read .gitignore: %w", err)
		}
	}

	return gitignore.CompileIgnoreLines(patterns...), nil
}
