package bootstrap

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pyinstaller-studio/internal/config"
	"pyinstaller-studio/internal/diagnostics"
	"pyinstaller-studio/internal/domain"
	"pyinstaller-studio/internal/jobs"
	"pyinstaller-studio/internal/packager"
)

// fakeStore keeps settings in memory for App tests.
type fakeStore struct {
	mu       sync.Mutex
	settings domain.Settings
	saved    int
}

// Load returns preconfigured settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

// Save records the profile.
func (s *fakeStore) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.saved++
	return nil
}

func (s *fakeStore) Export(string, domain.Settings) error { return nil }

func (s *fakeStore) Import(string) (domain.Settings, error) { return s.Load() }

// scriptedHandle ends with the scripted exit code, or -1 once termination
// is requested.
type scriptedHandle struct {
	exit      chan packager.Exit
	terminate chan struct{}
	once      sync.Once
}

func (h *scriptedHandle) Exit() <-chan packager.Exit { return h.exit }

func (h *scriptedHandle) RequestTermination() error {
	h.once.Do(func() { close(h.terminate) })
	return nil
}

// scriptedRunner replays output lines from a goroutine and then exits.
type scriptedRunner struct {
	lines []string
	code  int
	block bool

	mu    sync.Mutex
	procs []packager.Process
}

func (r *scriptedRunner) Start(proc packager.Process, sink packager.LineSink) packager.Handle {
	r.mu.Lock()
	r.procs = append(r.procs, proc)
	r.mu.Unlock()

	h := &scriptedHandle{exit: make(chan packager.Exit, 1), terminate: make(chan struct{})}
	go func() {
		for _, line := range r.lines {
			sink(line)
		}
		if r.block {
			<-h.terminate
			h.exit <- packager.Exit{Code: -1}
			return
		}
		h.exit <- packager.Exit{Code: r.code}
	}()
	return h
}

func validProfile(t *testing.T) domain.Settings {
	t.Helper()
	project := t.TempDir()
	if err := os.WriteFile(filepath.Join(project, "app.py"), []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(project, "assets"), 0o755); err != nil {
		t.Fatalf("mkdir assets: %v", err)
	}
	return domain.Settings{
		ProjectPath:  project,
		Entry:        "app.py",
		OutputDir:    t.TempDir(),
		OneFile:      true,
		DataFiles:    []domain.DataFile{{Src: "assets", Dst: "assets"}},
		PackagerPath: "/opt/tools/pyinstaller",
	}
}

func newTestApp(store config.Store, runner *scriptedRunner) *App {
	app := &App{
		Store:    store,
		resolver: diagnostics.NewResolver(time.Second),
		logger:   zerolog.Nop(),
		events:   jobs.NewEventBus(100),
	}
	app.attachController(jobs.Options{Runner: runner})
	return app
}

// TestStartPackagingPublishesLogsAndResult checks the event flow of a
// successful job.
func TestStartPackagingPublishesLogsAndResult(t *testing.T) {
	profile := validProfile(t)
	runner := &scriptedRunner{lines: []string{"Building...", "WARNING: hidden import not found"}}
	app := newTestApp(&fakeStore{settings: profile}, runner)

	job, err := app.StartPackaging()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if job.Status != domain.JobStatusRunning {
		t.Fatalf("status = %s, want running", job.Status)
	}

	waitForStatus(t, app, domain.JobStatusSucceeded)
	app.Jobs.Wait()

	argv := runner.procs[0].Argv
	if argv[0] != "/opt/tools/pyinstaller" || argv[len(argv)-1] != "app.py" {
		t.Fatalf("argv = %v", argv)
	}
	if !containsArg(argv, "--onefile") || !containsArg(argv, "--add-data") {
		t.Fatalf("argv missing flags: %v", argv)
	}
	if runner.procs[0].Dir != profile.ProjectPath {
		t.Fatalf("dir = %s, want %s", runner.procs[0].Dir, profile.ProjectPath)
	}

	events := app.JobEvents(0)
	assertEventTypeExists(t, events, jobs.EventTypeStatus)
	assertEventTypeExists(t, events, jobs.EventTypeLog)
	assertEventTypeExists(t, events, jobs.EventTypeResult)

	warning := findLog(events, "WARNING: hidden import not found")
	if warning == nil || warning.Tag != domain.LogTagWarning {
		t.Fatalf("warning line not tagged: %+v", warning)
	}

	result := lastOfType(events, jobs.EventTypeResult)
	if !result.Success || result.OutputDir != profile.OutputDir {
		t.Fatalf("result = %+v", result)
	}
}

// instantRunner writes its output and exits before Start returns.
type instantRunner struct{}

func (instantRunner) Start(_ packager.Process, sink packager.LineSink) packager.Handle {
	sink("Building...")
	h := &scriptedHandle{exit: make(chan packager.Exit, 1), terminate: make(chan struct{})}
	h.exit <- packager.Exit{Code: 0}
	return h
}

// TestStartPackagingPublishesRunningStatusFirst checks the running status
// precedes the job's output and result.
func TestStartPackagingPublishesRunningStatusFirst(t *testing.T) {
	app := &App{
		Store:    &fakeStore{settings: validProfile(t)},
		resolver: diagnostics.NewResolver(time.Second),
		logger:   zerolog.Nop(),
		events:   jobs.NewEventBus(100),
	}
	app.attachController(jobs.Options{Runner: instantRunner{}})

	job, err := app.StartPackaging()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStatus(t, app, domain.JobStatusSucceeded)
	app.Jobs.Wait()

	events := app.JobEvents(0)
	if len(events) == 0 {
		t.Fatal("no events published")
	}
	first := events[0]
	if first.Type != jobs.EventTypeStatus || first.Status != domain.JobStatusRunning || first.JobID != job.ID {
		t.Fatalf("first event = %+v, want running status", first)
	}
	if len(first.Args) == 0 || first.Args[len(first.Args)-1] != "app.py" {
		t.Fatalf("running status args = %v", first.Args)
	}
	building := findLog(events, "Building...")
	if building == nil || building.Seq <= first.Seq {
		t.Fatalf("output line = %+v, want after seq %d", building, first.Seq)
	}
	if result := lastOfType(events, jobs.EventTypeResult); result.Seq <= building.Seq {
		t.Fatalf("result seq %d not after output seq %d", result.Seq, building.Seq)
	}
}

// TestStartPackagingReportsFailure checks a non-zero exit despite success text.
func TestStartPackagingReportsFailure(t *testing.T) {
	runner := &scriptedRunner{lines: []string{"Build complete!"}, code: 1}
	app := newTestApp(&fakeStore{settings: validProfile(t)}, runner)

	if _, err := app.StartPackaging(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStatus(t, app, domain.JobStatusFailed)
	app.Jobs.Wait()

	result := lastOfType(app.JobEvents(0), jobs.EventTypeResult)
	if result.Success || result.ExitCode == nil || *result.ExitCode != 1 {
		t.Fatalf("result = %+v", result)
	}
}

// TestStartPackagingRejectsInvalidProfile checks validation happens before
// any process starts.
func TestStartPackagingRejectsInvalidProfile(t *testing.T) {
	profile := validProfile(t)
	profile.Entry = "missing.py"
	runner := &scriptedRunner{}
	app := newTestApp(&fakeStore{settings: profile}, runner)

	_, err := app.StartPackaging()
	var cfgErr *packager.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "entry" {
		t.Fatalf("err = %v, want entry ConfigError", err)
	}
	if len(runner.procs) != 0 {
		t.Fatal("runner should not be called")
	}
	// The rejection is also published to the event log.
	events := app.JobEvents(0)
	if len(events) != 1 || findLog(events, err.Error()) == nil {
		t.Fatalf("events = %+v, want one log line with %q", events, err.Error())
	}
	if app.CurrentJob().Status != domain.JobStatusIdle {
		t.Fatalf("status = %s, want idle", app.CurrentJob().Status)
	}
}

// TestStartPackagingEnforcesSingleRunningJob checks single-job guard and
// cancellation.
func TestStartPackagingEnforcesSingleRunningJob(t *testing.T) {
	runner := &scriptedRunner{lines: []string{"Building..."}, block: true}
	app := newTestApp(&fakeStore{settings: validProfile(t)}, runner)

	if _, err := app.StartPackaging(); err != nil {
		t.Fatalf("start first job: %v", err)
	}
	if _, err := app.StartPackaging(); !errors.Is(err, jobs.ErrJobAlreadyRunning) {
		t.Fatalf("second start error = %v, want %v", err, jobs.ErrJobAlreadyRunning)
	}

	if err := app.CancelPackaging(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	waitForStatus(t, app, domain.JobStatusCancelled)
	app.Jobs.Wait()

	results := 0
	for _, event := range app.JobEvents(0) {
		if event.Type == jobs.EventTypeResult {
			results++
		}
	}
	if results != 1 {
		t.Fatalf("result events = %d, want 1", results)
	}
}

// TestStartPackagingAfterFinishedJob checks the automatic reset.
func TestStartPackagingAfterFinishedJob(t *testing.T) {
	app := newTestApp(&fakeStore{settings: validProfile(t)}, &scriptedRunner{})

	first, err := app.StartPackaging()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStatus(t, app, domain.JobStatusSucceeded)
	app.Jobs.Wait()

	second, err := app.StartPackaging()
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a new job id")
	}
	waitForStatus(t, app, domain.JobStatusSucceeded)
	app.Jobs.Wait()
}

// TestCancelPackagingWithoutJob reports the idle state to the log.
func TestCancelPackagingWithoutJob(t *testing.T) {
	app := newTestApp(&fakeStore{}, &scriptedRunner{})

	if err := app.CancelPackaging(); !errors.Is(err, jobs.ErrNoRunningJob) {
		t.Fatalf("cancel err = %v", err)
	}
	if findLog(app.JobEvents(0), "No packaging job is running.") == nil {
		t.Fatal("expected idle cancel log line")
	}
}

// TestExportLogWritesOutputLines checks only log events are exported.
func TestExportLogWritesOutputLines(t *testing.T) {
	app := newTestApp(&fakeStore{settings: validProfile(t)}, &scriptedRunner{lines: []string{"Building...", "done"}})
	if _, err := app.StartPackaging(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStatus(t, app, domain.JobStatusSucceeded)
	app.Jobs.Wait()

	path := filepath.Join(t.TempDir(), "build.log")
	written, err := app.ExportLog(path)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if written != path {
		t.Fatalf("path = %s", written)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "Building...\ndone\npackaging finished with exit code 0\n") {
		t.Fatalf("log = %q", text)
	}
	if strings.Contains(text, "Packaging started") {
		t.Fatalf("status messages must not be exported: %q", text)
	}
}

// TestSettingsExportImportRoundTrip uses the JSON store end to end.
func TestSettingsExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := config.NewJSONStore(filepath.Join(dir, "history.json"))
	app := newTestApp(store, &scriptedRunner{})

	profile := domain.Settings{
		ProjectPath: " /work/proj ",
		Entry:       "app.py",
		OutputDir:   "/work/out",
		DataFiles:   []domain.DataFile{{Src: "assets", Dst: "assets"}, {Src: "", Dst: "x"}},
	}
	target := filepath.Join(dir, "export", "profile.json")
	if _, err := app.ExportSettings(target, profile); err != nil {
		t.Fatalf("export: %v", err)
	}

	imported, err := app.ImportSettings(target)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported.ProjectPath != "/work/proj" || len(imported.DataFiles) != 1 {
		t.Fatalf("imported = %+v", imported)
	}
	if app.GetSettings().Entry != "app.py" {
		t.Fatalf("app settings not updated: %+v", app.GetSettings())
	}
}

// TestHandleFileDropImportsFirstProfile ignores non-JSON drops.
func TestHandleFileDropImportsFirstProfile(t *testing.T) {
	dir := t.TempDir()
	store := config.NewJSONStore(filepath.Join(dir, "history.json"))
	profile := filepath.Join(dir, "dropped.json")
	if err := store.Export(profile, domain.Settings{Entry: "main.py"}); err != nil {
		t.Fatalf("export: %v", err)
	}
	app := newTestApp(store, &scriptedRunner{})

	app.handleFileDrop([]string{filepath.Join(dir, "readme.txt"), profile})
	if app.GetSettings().Entry != "main.py" {
		t.Fatalf("settings = %+v", app.GetSettings())
	}
}

// TestNormalizeSettingsDropsIncompleteMappings trims form input.
func TestNormalizeSettingsDropsIncompleteMappings(t *testing.T) {
	got := normalizeSettings(domain.Settings{
		ProjectPath: "  /p ",
		CustomArgs:  " --clean ",
		DataFiles:   []domain.DataFile{{Src: " a ", Dst: " b "}, {Src: "c"}},
	})
	if got.ProjectPath != "/p" || got.CustomArgs != "--clean" {
		t.Fatalf("settings = %+v", got)
	}
	if len(got.DataFiles) != 1 || got.DataFiles[0] != (domain.DataFile{Src: "a", Dst: "b"}) {
		t.Fatalf("data files = %+v", got.DataFiles)
	}
}

// TestRelativeTo keeps paths outside the base absolute.
func TestRelativeTo(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "work", "proj")
	if got := relativeTo(base, filepath.Join(base, "pkg", "main.py")); got != filepath.Join("pkg", "main.py") {
		t.Fatalf("inside = %s", got)
	}
	outside := filepath.Join(string(filepath.Separator), "other", "x.py")
	if got := relativeTo(base, outside); got != outside {
		t.Fatalf("outside = %s", got)
	}
}

// TestListEntryFilesSkipsBuildOutput checks the entry picker candidates.
func TestListEntryFilesSkipsBuildOutput(t *testing.T) {
	project := t.TempDir()
	for _, rel := range []string{"main.py", "tools/gen.py", "build/app/stub.py"} {
		path := filepath.Join(project, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("pass\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	app := newTestApp(&fakeStore{}, &scriptedRunner{})

	got, err := app.ListEntryFiles(" " + project + " ")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Join(got, ",") != "main.py,tools/gen.py" {
		t.Fatalf("entries = %v", got)
	}
}

// TestConvertIconWritesNextToSource checks the default .ico target.
func TestConvertIconWritesNextToSource(t *testing.T) {
	src := filepath.Join(t.TempDir(), "logo.png")
	f, err := os.Create(src)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := png.Encode(f, image.NewNRGBA(image.Rect(0, 0, 48, 48))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()
	app := newTestApp(&fakeStore{}, &scriptedRunner{})

	target, err := app.ConvertIcon(src, "")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if target != filepath.Join(filepath.Dir(src), "logo.ico") {
		t.Fatalf("target = %s", target)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("icon not written: %v", err)
	}
	if findLog(app.JobEvents(0), "Icon written to: "+target) == nil {
		t.Fatal("expected icon log line")
	}

	if _, err := app.ConvertIcon("  ", ""); err == nil {
		t.Fatal("expected error for empty source")
	}
}

// TestRefreshDiagnosticsUsesSavedProfile checks the report is rebuilt from
// the store and cached for GetDiagnostics.
func TestRefreshDiagnosticsUsesSavedProfile(t *testing.T) {
	settings := validProfile(t)
	app := newTestApp(&fakeStore{settings: settings}, &scriptedRunner{})
	app.resolver = diagnostics.NewResolverForTests(
		func(string) (string, error) { return "", errors.New("not found") },
		os.Stat,
		os.Getwd,
		os.UserHomeDir,
		func(_ context.Context, argv []string) ([]byte, error) {
			if argv[0] != settings.PackagerPath {
				t.Errorf("probe argv = %v", argv)
			}
			return []byte("6.3.0\n"), nil
		},
	)
	app.checker = diagnostics.NewChecker(app.resolver)

	report, err := app.RefreshDiagnostics()
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if report.HasFailures {
		t.Fatalf("unexpected failures: %+v", report.Items)
	}
	if report.PackagerVersion != "6.3.0" {
		t.Fatalf("version = %q", report.PackagerVersion)
	}
	if got := app.GetDiagnostics(); got.PackagerVersion != "6.3.0" || len(got.Items) != len(report.Items) {
		t.Fatalf("cached report = %+v", got)
	}
	if app.GetSettings().ProjectPath != settings.ProjectPath {
		t.Fatal("settings were not refreshed")
	}
}

// TestCurrentJobIdleBeforeStart checks the initial job snapshot.
func TestCurrentJobIdleBeforeStart(t *testing.T) {
	app := newTestApp(&fakeStore{}, &scriptedRunner{})

	if job := app.CurrentJob(); job.Status != domain.JobStatusIdle || job.ID != "" {
		t.Fatalf("job = %+v", job)
	}
}

// TestOpenOutputFolderRejectsMissingPath checks validation before launching
// the file manager.
func TestOpenOutputFolderRejectsMissingPath(t *testing.T) {
	app := newTestApp(&fakeStore{}, &scriptedRunner{})

	if err := app.OpenOutputFolder(""); err == nil {
		t.Fatal("expected error for empty path")
	}
	if err := app.OpenOutputFolder(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing path")
	}
}

// waitForStatus polls until job reaches desired status or times out.
func waitForStatus(t *testing.T, app *App, want domain.JobStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if app.CurrentJob().Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status = %s, want %s", app.CurrentJob().Status, want)
}

// assertEventTypeExists verifies at least one event of given type exists.
func assertEventTypeExists(t *testing.T, events []jobs.Event, want jobs.EventType) {
	t.Helper()
	for _, event := range events {
		if event.Type == want {
			return
		}
	}
	t.Fatalf("event type %s not found", want)
}

func findLog(events []jobs.Event, message string) *jobs.Event {
	for i := range events {
		if events[i].Type == jobs.EventTypeLog && events[i].Message == message {
			return &events[i]
		}
	}
	return nil
}

func lastOfType(events []jobs.Event, eventType jobs.EventType) jobs.Event {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == eventType {
			return events[i]
		}
	}
	return jobs.Event{}
}

func containsArg(argv []string, want string) bool {
	for _, arg := range argv {
		if arg == want {
			return true
		}
	}
	return false
}
