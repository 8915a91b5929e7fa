package bootstrap

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

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

const installCommandTimeout = 10 * time.Minute

// Interpreters tried, after the configured one, to install PyInstaller.
var fallbackInterpreters = []string{"python3", "python", "py"}

var packagerDialogFilter = []wailsruntime.FileFilter{
	{DisplayName: "PyInstaller executable", Pattern: "pyinstaller;pyinstaller.exe"},
	{DisplayName: "All files", Pattern: "*"},
}

// commandRunner executes one external command and reports failure.
type commandRunner func(name string, args ...string) error

// InstallOrFixDiagnostic applies a remediation for one failed diagnostic item.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	settingsChanged := false
	var fixErr error

	switch id {
	case domain.DiagnosticPackager:
		var python string
		python, fixErr = installPackager(settings, runCommand, commandAvailable)
		if fixErr == nil {
			a.publishLog("", "Installed PyInstaller with "+python)
			if settings.PythonPath == "" && settings.PackagerPath == "" {
				settings.PythonPath = python
				settingsChanged = true
			}
		}
	case domain.DiagnosticOutputDir:
		settings, settingsChanged, fixErr = installOrFixOutputDir(settings)
	case domain.DiagnosticProjectDir, domain.DiagnosticEntryFile, domain.DiagnosticIcon:
		fixErr = fmt.Errorf("%s cannot be fixed automatically; choose it in the form", id)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.refreshDiagnosticsFromSettings(settings)
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		a.logger.Warn().Err(fixErr).Str("item", id).Msg("diagnostic fix failed")
		return report, fixErr
	}
	return report, nil
}

// SelectPackagerExecutable stores a user-chosen PyInstaller executable in the
// profile after checking that it reports a version. An empty path opens a
// file dialog.
func (a *App) SelectPackagerExecutable(path string) (domain.DiagnosticReport, error) {
	target := strings.TrimSpace(path)
	if target == "" {
		ctx, err := a.runtimeContext()
		if err != nil {
			return domain.DiagnosticReport{}, err
		}
		target, err = wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
			Title:   "Select PyInstaller executable",
			Filters: packagerDialogFilter,
		})
		if err != nil {
			return a.GetDiagnostics(), err
		}
		if target = strings.TrimSpace(target); target == "" {
			return a.GetDiagnostics(), nil
		}
	}

	version, err := a.resolver.Probe(context.Background(), packager.Executable{Path: target})
	if err != nil {
		a.publishLog("", fmt.Sprintf("Selected file is not a working PyInstaller: %v", err))
		return a.GetDiagnostics(), err
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings.PackagerPath = target
	if err := a.Store.Save(settings); err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("save settings: %w", err)
	}

	a.publishLog("", fmt.Sprintf("Using PyInstaller %s at %s", version, target))
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// installPackager runs "<python> -m pip install pyinstaller" with the first
// interpreter that succeeds and returns it.
func installPackager(settings domain.Settings, run commandRunner, available func(string) bool) (string, error) {
	candidates := make([]string, 0, len(fallbackInterpreters)+1)
	if settings.PythonPath != "" {
		candidates = append(candidates, settings.PythonPath)
	}
	candidates = append(candidates, fallbackInterpreters...)

	attemptErrors := make([]string, 0, len(candidates))
	for _, python := range candidates {
		if !available(python) {
			continue
		}
		if err := run(python, "-m", "pip", "install", "pyinstaller"); err != nil {
			attemptErrors = append(attemptErrors, err.Error())
			continue
		}
		return python, nil
	}

	if len(attemptErrors) == 0 {
		return "", errors.New("no Python interpreter found; set the interpreter path first")
	}
	return "", errors.New(strings.Join(attemptErrors, " | "))
}

// installOrFixOutputDir creates the output directory, defaulting to dist
// inside the project when none is set.
func installOrFixOutputDir(settings domain.Settings) (domain.Settings, bool, error) {
	outputDir := strings.TrimSpace(settings.OutputDir)
	changed := false
	if outputDir == "" {
		if settings.ProjectPath == "" {
			return settings, false, errors.New("output directory is not set and there is no project to default to")
		}
		outputDir = filepath.Join(settings.ProjectPath, "dist")
		settings.OutputDir = outputDir
		changed = true
	}
	if settings.ProjectPath != "" {
		outputDir = packager.ResolveIn(settings.ProjectPath, outputDir)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return settings, changed, fmt.Errorf("create output directory %s: %w", outputDir, err)
	}

	return settings, changed, nil
}

func runCommand(name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), installCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", formatCommand(name, args), installCommandTimeout)
	}

	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) > 500 {
		trimmed = trimmed[:500] + "..."
	}
	if trimmed == "" {
		return fmt.Errorf("%s failed: %w", formatCommand(name, args), err)
	}
	return fmt.Errorf("%s failed: %w (%s)", formatCommand(name, args), err, trimmed)
}

func formatCommand(name string, args []string) string {
	parts := append([]string{name}, args...)
	return strings.Join(parts, " ")
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
