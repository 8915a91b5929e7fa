package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pyinstaller-studio/internal/domain"
	"pyinstaller-studio/internal/packager"
)

// Checker validates the packaging tool and the profile's filesystem paths.
type Checker struct {
	resolver   *Resolver
	stat       func(string) (os.FileInfo, error)
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker(resolver *Resolver) *Checker {
	return &Checker{
		resolver:   resolver,
		stat:       os.Stat,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all checks and returns a combined report.
func (c *Checker) Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport {
	report := domain.DiagnosticReport{GeneratedAt: time.Now().UTC()}

	packagerItem, argv, version := c.checkPackager(ctx, settings)
	report.Packager = argv
	report.PackagerVersion = version

	report.Items = []domain.DiagnosticItem{
		packagerItem,
		c.checkProjectDir(settings.ProjectPath),
		c.checkEntryFile(settings.ProjectPath, settings.Entry),
		c.checkOutputDir(inProject(settings.ProjectPath, settings.OutputDir)),
	}
	if strings.TrimSpace(settings.Icon) != "" {
		report.Items = append(report.Items, c.checkIcon(inProject(settings.ProjectPath, settings.Icon)))
	}

	for _, item := range report.Items {
		if item.Status == domain.DiagnosticStatusFail {
			report.HasFailures = true
			break
		}
	}
	return report
}

// checkPackager resolves the executable and probes its version.
func (c *Checker) checkPackager(ctx context.Context, settings domain.Settings) (domain.DiagnosticItem, []string, string) {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticPackager,
		Name: "PyInstaller",
	}

	exe, err := c.resolver.Resolve(settings)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "PyInstaller was not found on PATH or in a virtual environment."
		item.Hint = "Install it with pip, pick the executable manually, or set the Python interpreter path."
		return item, nil, ""
	}

	argv := exe.Argv()
	version, err := c.resolver.Probe(ctx, exe)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Found %s but it did not report a version.", strings.Join(argv, " "))
		item.Hint = "Reinstall PyInstaller for this interpreter or choose another executable."
		return item, argv, ""
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("PyInstaller %s (%s)", version, strings.Join(argv, " "))
	return item, argv, version
}

func (c *Checker) checkProjectDir(projectDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticProjectDir,
		Name: "Project directory",
	}

	if strings.TrimSpace(projectDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Project directory is empty."
		item.Hint = "Choose the folder that contains your Python application."
		return item
	}

	info, err := c.stat(projectDir)
	if err != nil || !info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Project directory does not exist: %s", projectDir)
		item.Hint = "Choose an existing folder."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Project directory found: %s", projectDir)
	return item
}

func (c *Checker) checkEntryFile(projectDir, entry string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticEntryFile,
		Name: "Entry script",
	}

	if strings.TrimSpace(entry) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Entry script is empty."
		item.Hint = "Pick the main .py file of the project."
		return item
	}

	path := entry
	if !filepath.IsAbs(path) {
		path = filepath.Join(projectDir, path)
	}
	info, err := c.stat(path)
	if err != nil || info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Entry script not found: %s", path)
		item.Hint = "The entry script must be a file inside the project directory."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Entry script found: %s", path)
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticOutputDir,
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set the directory where the packaged application is written."
		return item
	}

	info, err := c.stat(outputDir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Output directory does not exist: %s", outputDir)
			item.Hint = "Use the fix action to create it."
		} else {
			item.Message = fmt.Sprintf("Cannot access output directory: %s", outputDir)
			item.Hint = "Check permissions for the output directory."
		}
		return item
	}
	if !info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output path is not a directory: %s", outputDir)
		item.Hint = "Choose a directory, not a file."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

func (c *Checker) checkIcon(icon string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticIcon,
		Name: "Icon",
	}

	info, err := c.stat(icon)
	if err != nil || info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Icon file not found: %s", icon)
		item.Hint = "Pick an existing .ico file or clear the icon field."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Icon file found: %s", icon)
	if !strings.EqualFold(filepath.Ext(icon), ".ico") {
		item.Hint = "Windows builds need an .ico file; convert this image first."
	}
	return item
}

// inProject resolves a relative profile path the way the packaging tool
// sees it from the project directory.
func inProject(projectDir, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || strings.TrimSpace(projectDir) == "" {
		return path
	}
	return packager.ResolveIn(strings.TrimSpace(projectDir), path)
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	resolver *Resolver,
	stat func(string) (os.FileInfo, error),
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		resolver:   resolver,
		stat:       stat,
		createTemp: createTemp,
		remove:     remove,
	}
}
