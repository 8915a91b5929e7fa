package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"pyinstaller-studio/internal/config"
	"pyinstaller-studio/internal/diagnostics"
	"pyinstaller-studio/internal/domain"
	"pyinstaller-studio/internal/iconconv"
	"pyinstaller-studio/internal/jobs"
	"pyinstaller-studio/internal/packager"
	"pyinstaller-studio/internal/projectscan"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// Runtime event names pushed to the frontend.
const (
	jobEventName     = "job:event"
	profileEventName = "profile:imported"
)

var scriptDialogFilter = []wailsruntime.FileFilter{
	{DisplayName: "Python scripts", Pattern: "*.py;*.pyw"},
	{DisplayName: "All files", Pattern: "*"},
}

var iconDialogFilter = []wailsruntime.FileFilter{
	{DisplayName: "Icons and images", Pattern: "*.ico;*.png;*.jpg;*.jpeg;*.gif"},
	{DisplayName: "All files", Pattern: "*"},
}

var profileDialogFilter = []wailsruntime.FileFilter{
	{DisplayName: "JSON profiles", Pattern: "*.json"},
}

var logDialogFilter = []wailsruntime.FileFilter{
	{DisplayName: "Text files", Pattern: "*.txt;*.log"},
}

// App wires the profile store, diagnostics, the job controller and UI
// runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Jobs        *jobs.Controller
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	resolver    *diagnostics.Resolver
	logger      zerolog.Logger

	mu         sync.Mutex
	events     *jobs.EventBus
	runtimeCtx context.Context
}

// New builds the application for development, serving ./frontend from disk.
func New(cfg config.AppConfig, logger zerolog.Logger) (*App, error) {
	return NewWithAssets(nil, cfg, logger)
}

// NewWithAssets builds the application with the last saved profile and
// startup diagnostics, optionally serving embedded frontend assets.
func NewWithAssets(assets fs.FS, cfg config.AppConfig, logger zerolog.Logger) (*App, error) {
	store := config.NewJSONStore(cfg.SettingsPath)
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	resolver := diagnostics.NewResolver(cfg.ProbeTimeout)
	checker := diagnostics.NewChecker(resolver)

	app := &App{
		Settings: settings,
		Store:    store,
		assets:   assets,
		checker:  checker,
		resolver: resolver,
		logger:   logger,
		events:   jobs.NewEventBus(cfg.EventBufferSize),
	}
	app.attachController(jobs.Options{})
	app.Diagnostics = checker.Run(context.Background(), settings)

	logger.Info().
		Str("settings", cfg.SettingsPath).
		Bool("diagnostics_failed", app.Diagnostics.HasFailures).
		Msg("application initialised")
	return app, nil
}

// attachController creates the job controller with output and completion
// routed to the event bus.
func (a *App) attachController(opts jobs.Options) {
	opts.Logger = a.logger
	opts.Sink = a.publishLog
	opts.Notify = a.publishCompletion
	opts.Started = a.publishStarted
	a.Jobs = jobs.NewController(opts)
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "PyInstaller Studio",
		Width:       1100,
		Height:      820,
		AssetServer: assetOptions,
		DragAndDrop: &options.DragAndDrop{EnableFileDrop: true},
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events and dialogs.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	wailsruntime.OnFileDrop(ctx, func(_, _ int, paths []string) {
		a.handleFileDrop(paths)
	})
}

// Shutdown stops a running packaging process before the window closes.
func (a *App) Shutdown(context.Context) {
	if a.Jobs != nil && a.Jobs.IsRunning() {
		if err := a.Jobs.Cancel(); err != nil {
			a.logger.Warn().Err(err).Msg("cancel on shutdown failed")
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = nil
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings returns the profile currently held by the app.
func (a *App) GetSettings() domain.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Settings
}

// SaveSettings normalizes and persists the profile, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(normalized)
	a.publishLog("", "Saved current profile to history.")
	return normalized, nil
}

// LoadHistory reloads the last saved profile from disk.
func (a *App) LoadHistory() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	if settings.ProjectPath == "" && settings.Entry == "" {
		a.publishLog("", "No saved profile found.")
	} else {
		a.publishLog("", "Loaded profile from history.")
	}
	return settings, nil
}

// ExportSettings writes the profile to path, asking for a file when path is
// empty. The chosen path is returned; empty means the dialog was dismissed.
func (a *App) ExportSettings(path string, settings domain.Settings) (string, error) {
	target := strings.TrimSpace(path)
	if target == "" {
		var err error
		target, err = a.saveFileDialog("Export profile", "pyinstaller-profile.json", profileDialogFilter)
		if err != nil || target == "" {
			return "", err
		}
	}

	if err := a.Store.Export(target, normalizeSettings(settings)); err != nil {
		return "", fmt.Errorf("export profile: %w", err)
	}
	a.publishLog("", "Exported profile to: "+target)
	return target, nil
}

// ImportSettings reads a profile from path, asking for a file when path is
// empty. The imported profile is not saved until SaveSettings is called.
func (a *App) ImportSettings(path string) (domain.Settings, error) {
	source := strings.TrimSpace(path)
	if source == "" {
		ctx, err := a.runtimeContext()
		if err != nil {
			return domain.Settings{}, err
		}
		source, err = wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
			Title:   "Import profile",
			Filters: profileDialogFilter,
		})
		if err != nil {
			return domain.Settings{}, err
		}
		if source = strings.TrimSpace(source); source == "" {
			return a.GetSettings(), nil
		}
	}

	settings, err := a.Store.Import(source)
	if err != nil {
		a.publishLog("", fmt.Sprintf("Failed to import profile: %v", err))
		return domain.Settings{}, err
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()
	a.publishLog("", "Imported profile: "+source)
	return settings, nil
}

// PickProjectDirectory opens a native directory picker for the project root.
func (a *App) PickProjectDirectory() (string, error) {
	return a.directoryDialog("Select project directory", "")
}

// PickEntryFile opens a file dialog for the entry script inside projectDir
// and returns the path relative to it when possible.
func (a *App) PickEntryFile(projectDir string) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:            "Select entry script",
		DefaultDirectory: strings.TrimSpace(projectDir),
		Filters:          scriptDialogFilter,
	})
	if err != nil {
		return "", err
	}
	return relativeTo(projectDir, strings.TrimSpace(path)), nil
}

// PickIconFile opens a file dialog for the application icon.
func (a *App) PickIconFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select icon",
		Filters: iconDialogFilter,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

// PickDataFiles lets the user choose files to bundle. Each becomes a mapping
// into the bundle root.
func (a *App) PickDataFiles(projectDir string) ([]domain.DataFile, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return nil, err
	}

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:            "Select data files",
		DefaultDirectory: strings.TrimSpace(projectDir),
	})
	if err != nil {
		return nil, err
	}
	return lo.FilterMap(paths, func(path string, _ int) (domain.DataFile, bool) {
		path = strings.TrimSpace(path)
		return domain.DataFile{Src: relativeTo(projectDir, path), Dst: "."}, path != ""
	}), nil
}

// PickDataDirectory lets the user choose a directory to bundle under its own
// name.
func (a *App) PickDataDirectory(projectDir string) (domain.DataFile, error) {
	path, err := a.directoryDialog("Select data directory", projectDir)
	if err != nil || path == "" {
		return domain.DataFile{}, err
	}
	return domain.DataFile{Src: relativeTo(projectDir, path), Dst: filepath.Base(path)}, nil
}

// PickOutputDirectory opens a native directory picker for packaged output.
func (a *App) PickOutputDirectory() (string, error) {
	return a.directoryDialog("Select output directory", "")
}

// ListEntryFiles returns the candidate entry scripts of a project.
func (a *App) ListEntryFiles(projectDir string) ([]string, error) {
	return projectscan.EntryCandidates(strings.TrimSpace(projectDir))
}

// ConvertIcon converts an image into an .ico next to it, or at dst when set,
// and returns the written path.
func (a *App) ConvertIcon(src, dst string) (string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "", errors.New("icon source is empty")
	}
	target := strings.TrimSpace(dst)
	if target == "" {
		target = iconconv.DefaultTarget(src)
	}
	if err := iconconv.Convert(src, target); err != nil {
		return "", fmt.Errorf("convert icon: %w", err)
	}
	a.publishLog("", "Icon written to: "+target)
	return target, nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	a.mu.Lock()
	projectDir := a.Settings.ProjectPath
	target := strings.TrimSpace(path)
	if target == "" {
		target = a.Settings.OutputDir
	}
	a.mu.Unlock()
	if target == "" {
		return fmt.Errorf("output path is empty")
	}
	if projectDir != "" {
		target = packager.ResolveIn(projectDir, target)
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// RefreshDiagnostics reloads settings and reruns environment checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// StartPackaging validates the saved profile and launches the packaging
// tool. A finished previous job is reset first.
func (a *App) StartPackaging() (domain.Job, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Job{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	exe, err := a.resolver.Resolve(settings)
	if err != nil {
		a.publishLog("", "PyInstaller was not found. Install it or select the executable in diagnostics.")
		return a.Jobs.Current(), fmt.Errorf("resolve packager: %w", err)
	}

	cfg, err := packager.NewJobConfig(settings, exe)
	if err != nil {
		a.publishLog("", err.Error())
		return a.Jobs.Current(), err
	}

	if err := a.Jobs.Reset(); err != nil {
		return a.Jobs.Current(), err
	}

	job, err := a.Jobs.Start(cfg)
	if err != nil {
		return job, err
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()
	return job, nil
}

// CancelPackaging asks the running packaging process to stop.
func (a *App) CancelPackaging() error {
	job := a.Jobs.Current()
	err := a.Jobs.Cancel()
	switch {
	case errors.Is(err, jobs.ErrNoRunningJob):
		a.publishLog("", "No packaging job is running.")
	case err != nil:
		a.publishLog(job.ID, fmt.Sprintf("Cancel failed: %v", err))
	}
	return err
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// ExportLog writes the buffered output lines to path, asking for a file when
// path is empty.
func (a *App) ExportLog(path string) (string, error) {
	target := strings.TrimSpace(path)
	if target == "" {
		var err error
		target, err = a.saveFileDialog("Export log", "packaging.log", logDialogFilter)
		if err != nil || target == "" {
			return "", err
		}
	}

	lines := a.events.LogLines()
	body := strings.Join(lines, "\n")
	if len(lines) > 0 {
		body += "\n"
	}
	if err := os.WriteFile(target, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("export log: %w", err)
	}
	return target, nil
}

// handleFileDrop imports the first dropped JSON profile.
func (a *App) handleFileDrop(paths []string) {
	path, ok := lo.Find(paths, func(p string) bool {
		return strings.EqualFold(filepath.Ext(p), ".json")
	})
	if !ok {
		return
	}

	settings, err := a.ImportSettings(path)
	if err != nil {
		return
	}

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, profileEventName, settings)
	}
}

// publishLog records one output line with its presentation tag.
func (a *App) publishLog(jobID, line string) {
	line = strings.ToValidUTF8(line, "�")
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeLog,
		Message: line,
		Tag:     domain.ClassifyLine(line),
	})
}

// publishStarted records the running status before the process can write
// any output.
func (a *App) publishStarted(job domain.Job, cfg packager.JobConfig) {
	a.publishEvent(jobs.Event{
		JobID:     job.ID,
		Type:      jobs.EventTypeStatus,
		Status:    domain.JobStatusRunning,
		Message:   "Packaging started",
		Args:      packager.BuildCommand(cfg),
		OutputDir: cfg.OutputDirectory,
	})
}

// publishCompletion maps the controller's single terminal notification to
// status and result events.
func (a *App) publishCompletion(c jobs.Completion) {
	message := "Packaging failed"
	switch c.Status {
	case domain.JobStatusSucceeded:
		message = "Packaging finished"
	case domain.JobStatusCancelled:
		message = "Packaging cancelled"
	}

	a.publishEvent(jobs.Event{
		JobID:   c.JobID,
		Type:    jobs.EventTypeStatus,
		Status:  c.Status,
		Message: message,
	})
	a.publishEvent(jobs.Event{
		JobID:     c.JobID,
		Type:      jobs.EventTypeResult,
		Status:    c.Status,
		Message:   message,
		Success:   c.Success,
		ExitCode:  c.ExitCode,
		OutputDir: c.OutputDir,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, jobEventName, published)
	}
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	var report domain.DiagnosticReport
	if a.checker != nil {
		report = a.checker.Run(context.Background(), settings)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = report
	}
	return a.Diagnostics
}

func (a *App) directoryDialog(title, defaultDir string) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:            title,
		DefaultDirectory: strings.TrimSpace(defaultDir),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

func (a *App) saveFileDialog(title, defaultName string, filters []wailsruntime.FileFilter) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.SaveFileDialog(ctx, wailsruntime.SaveDialogOptions{
		Title:           title,
		DefaultFilename: defaultName,
		Filters:         filters,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and drops incomplete data mappings.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.ProjectPath = strings.TrimSpace(settings.ProjectPath)
	settings.Entry = strings.TrimSpace(settings.Entry)
	settings.Icon = strings.TrimSpace(settings.Icon)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.CustomArgs = strings.TrimSpace(settings.CustomArgs)
	settings.PythonPath = strings.TrimSpace(settings.PythonPath)
	settings.PackagerPath = strings.TrimSpace(settings.PackagerPath)
	settings.DataFiles = lo.FilterMap(settings.DataFiles, func(df domain.DataFile, _ int) (domain.DataFile, bool) {
		df.Src = strings.TrimSpace(df.Src)
		df.Dst = strings.TrimSpace(df.Dst)
		return df, df.Src != "" && df.Dst != ""
	})
	return settings
}

// relativeTo returns path relative to base when it lies inside base.
func relativeTo(base, path string) string {
	base = strings.TrimSpace(base)
	if base == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
