package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"pyinstaller-studio/internal/domain"
	"pyinstaller-studio/internal/packager"
)

// ErrPackagerNotFound is returned when no packaging executable can be located.
var ErrPackagerNotFound = errors.New("pyinstaller not found")

// DefaultProbeTimeout bounds the --version probe.
const DefaultProbeTimeout = 10 * time.Second

var (
	packagerNames = []string{"pyinstaller", "pyinstaller.exe"}
	venvDirs      = []string{".venv", "venv", "env", "Scripts"}
	venvSubdirs   = []string{"", "bin", "Scripts"}
)

// Resolver locates the PyInstaller command prefix for a profile.
type Resolver struct {
	lookPath func(string) (string, error)
	stat     func(string) (os.FileInfo, error)
	getwd    func() (string, error)
	homeDir  func() (string, error)
	run      func(ctx context.Context, argv []string) ([]byte, error)
	timeout  time.Duration
}

// NewResolver builds a resolver using real OS dependencies.
func NewResolver(timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Resolver{
		lookPath: exec.LookPath,
		stat:     os.Stat,
		getwd:    os.Getwd,
		homeDir:  os.UserHomeDir,
		run:      runCombined,
		timeout:  timeout,
	}
}

// NewResolverForTests creates a resolver with injectable dependencies.
func NewResolverForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	getwd func() (string, error),
	homeDir func() (string, error),
	run func(ctx context.Context, argv []string) ([]byte, error),
) *Resolver {
	return &Resolver{
		lookPath: lookPath,
		stat:     stat,
		getwd:    getwd,
		homeDir:  homeDir,
		run:      run,
		timeout:  DefaultProbeTimeout,
	}
}

// Resolve picks the executable in this order: explicit path, PATH, virtual
// environments near the project, cwd or home, then the configured
// interpreter running the PyInstaller module.
func (r *Resolver) Resolve(settings domain.Settings) (packager.Executable, error) {
	if explicit := strings.TrimSpace(settings.PackagerPath); explicit != "" {
		return packager.Executable{Path: explicit}, nil
	}

	if path, err := r.lookPath("pyinstaller"); err == nil {
		return packager.Executable{Path: path}, nil
	}

	for _, candidate := range r.venvCandidates(settings.ProjectPath) {
		if info, err := r.stat(candidate); err == nil && !info.IsDir() {
			return packager.Executable{Path: candidate}, nil
		}
	}

	if python := strings.TrimSpace(settings.PythonPath); python != "" {
		return packager.Executable{Path: python, Args: []string{"-m", "PyInstaller"}}, nil
	}

	return packager.Executable{}, ErrPackagerNotFound
}

func (r *Resolver) venvCandidates(projectDir string) []string {
	roots := make([]string, 0, 3)
	seen := map[string]bool{}
	addRoot := func(dir string) {
		dir = strings.TrimSpace(dir)
		if dir == "" || seen[dir] {
			return
		}
		seen[dir] = true
		roots = append(roots, dir)
	}
	addRoot(projectDir)
	if wd, err := r.getwd(); err == nil {
		addRoot(wd)
	}
	if home, err := r.homeDir(); err == nil {
		addRoot(home)
	}

	var out []string
	for _, root := range roots {
		for _, venv := range venvDirs {
			for _, sub := range venvSubdirs {
				for _, name := range packagerNames {
					out = append(out, filepath.Join(root, venv, sub, name))
				}
			}
		}
	}
	return out
}

// Probe runs "<exe> --version" and returns the reported version.
func (r *Resolver) Probe(ctx context.Context, exe packager.Executable) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	argv := append(exe.Argv(), "--version")
	out, err := r.run(ctx, argv)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("probe %s: %w", exe.Path, ctx.Err())
		}
		return "", fmt.Errorf("probe %s: %w", exe.Path, err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	version := strings.TrimSpace(lines[len(lines)-1])
	if version == "" {
		return "", fmt.Errorf("probe %s: empty version output", exe.Path)
	}
	return version, nil
}

func runCombined(ctx context.Context, argv []string) ([]byte, error) {
	return exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
}
