package jobs

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pyinstaller-studio/internal/domain"
	"pyinstaller-studio/internal/packager"
)

// ErrJobAlreadyRunning is returned when starting while a job is active or
// not yet reset.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when cancel is requested outside Running.
var ErrNoRunningJob = errors.New("no running job")

// ErrPreviousJobExiting is returned by Reset while a cancelled job's process
// has not exited yet.
var ErrPreviousJobExiting = errors.New("previous job is still exiting")

// Completion is the single terminal notification of a job.
type Completion struct {
	JobID     string           `json:"jobId"`
	Status    domain.JobStatus `json:"status"`
	Success   bool             `json:"success"`
	ExitCode  *int             `json:"exitCode,omitempty"`
	OutputDir string           `json:"outputDir,omitempty"`
}

// processStarter launches the packaging process.
type processStarter interface {
	Start(proc packager.Process, sink packager.LineSink) packager.Handle
}

// artifactCleaner removes build leftovers after the process exits.
type artifactCleaner interface {
	Clean(projectDir, entryFile string) packager.CleanupReport
}

// Options configures a Controller. Sink and Notify may be nil.
type Options struct {
	Runner  processStarter
	Cleaner artifactCleaner
	Logger  zerolog.Logger
	// Sink receives child output and cleanup lines from the job goroutine.
	Sink func(jobID, line string)
	// Notify is called exactly once per job with its outcome.
	Notify func(Completion)
	// Started is called with the controller lock held, before the process
	// is launched. It must not call back into the Controller.
	Started func(job domain.Job, cfg packager.JobConfig)
	// Env is added to the child environment.
	Env map[string]string
}

// jobState belongs to exactly one job and is never reused.
type jobState struct {
	id        string
	status    domain.JobStatus
	handle    packager.Handle
	cfg       packager.JobConfig
	handled   bool
	exited    bool
	exitCode  *int
	startedAt time.Time
	endedAt   time.Time
}

func (s *jobState) snapshot() domain.Job {
	return domain.Job{
		ID:        s.id,
		Status:    s.status,
		ExitCode:  s.exitCode,
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
	}
}

// Controller owns the single packaging job and its state transitions.
type Controller struct {
	runner  processStarter
	cleaner artifactCleaner
	logger  zerolog.Logger
	sink    func(jobID, line string)
	notify  func(Completion)
	started func(domain.Job, packager.JobConfig)
	env     map[string]string
	newID   func() string

	mu      sync.Mutex
	current *jobState
	wg      sync.WaitGroup
}

// NewController creates a controller in idle state.
func NewController(opts Options) *Controller {
	if opts.Runner == nil {
		opts.Runner = packager.NewRunner()
	}
	if opts.Cleaner == nil {
		opts.Cleaner = packager.NewCleaner()
	}
	if opts.Env == nil {
		opts.Env = packager.UnbufferedEnv
	}
	return &Controller{
		runner:  opts.Runner,
		cleaner: opts.Cleaner,
		logger:  opts.Logger,
		sink:    opts.Sink,
		notify:  opts.Notify,
		started: opts.Started,
		env:     opts.Env,
		newID:   uuid.NewString,
		current: &jobState{status: domain.JobStatusIdle},
	}
}

// Start launches a job for a validated config. It is rejected unless the
// controller is idle.
func (c *Controller) Start(cfg packager.JobConfig) (domain.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.status != domain.JobStatusIdle {
		c.logger.Warn().
			Str("job_id", c.current.id).
			Str("status", string(c.current.status)).
			Msg("start rejected: controller is not idle")
		return c.current.snapshot(), ErrJobAlreadyRunning
	}

	st := &jobState{
		id:        c.newID(),
		status:    domain.JobStatusRunning,
		cfg:       cfg,
		startedAt: time.Now().UTC(),
	}
	if c.started != nil {
		c.started(st.snapshot(), cfg)
	}
	argv := packager.BuildCommand(cfg)
	st.handle = c.runner.Start(packager.Process{
		Argv: argv,
		Dir:  cfg.WorkingDirectory,
		Env:  c.env,
	}, c.lineSink(st.id))
	c.current = st

	c.logger.Info().Str("job_id", st.id).Strs("argv", argv).Str("dir", cfg.WorkingDirectory).Msg("packaging job started")

	c.wg.Add(1)
	go c.await(st)
	return st.snapshot(), nil
}

// Cancel asks the running process to stop. On success the job becomes
// Cancelled at once; a failed request leaves it Running. A process that has
// already exited yields ErrNoRunningJob.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	st := c.current
	if st.status != domain.JobStatusRunning {
		c.mu.Unlock()
		c.logger.Info().Str("status", string(st.status)).Msg("cancel ignored: no running job")
		return ErrNoRunningJob
	}
	handle := st.handle
	c.mu.Unlock()

	if err := handle.RequestTermination(); err != nil {
		c.mu.Lock()
		finished := st.handled || st.exited
		c.mu.Unlock()
		if finished || errors.Is(err, os.ErrProcessDone) {
			c.logger.Info().Str("job_id", st.id).Msg("cancel ignored: process already exited")
			return ErrNoRunningJob
		}
		c.logger.Warn().Err(err).Str("job_id", st.id).Msg("cancel failed; job keeps running")
		return err
	}

	c.mu.Lock()
	if st.handled {
		c.mu.Unlock()
		c.logger.Info().Str("job_id", st.id).Msg("job finished before cancellation took effect")
		return nil
	}
	st.handled = true
	st.status = domain.JobStatusCancelled
	st.endedAt = time.Now().UTC()
	completion := Completion{JobID: st.id, Status: st.status, OutputDir: st.cfg.OutputDirectory}
	c.mu.Unlock()

	c.logger.Info().Str("job_id", st.id).Msg("packaging job cancelled")
	c.deliver(completion)
	return nil
}

// Reset replaces a finished job with a fresh idle state.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.current.status == domain.JobStatusIdle:
		return nil
	case c.current.status == domain.JobStatusRunning:
		return ErrJobAlreadyRunning
	case !c.current.exited:
		return ErrPreviousJobExiting
	}
	c.current = &jobState{status: domain.JobStatusIdle}
	return nil
}

// Current returns a snapshot of the current job.
func (c *Controller) Current() domain.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.snapshot()
}

// IsRunning reports whether a job is in the Running phase.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.status == domain.JobStatusRunning
}

// Wait blocks until every started job has processed its terminal event.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// await is the per-job control goroutine: it receives the terminal event,
// runs cleanup and then finalizes state.
func (c *Controller) await(st *jobState) {
	defer c.wg.Done()

	exit := <-st.handle.Exit()
	code := exit.Code

	logEvt := c.logger.Info()
	if code != 0 {
		logEvt = c.logger.Warn().Err(exit.Err)
	}
	logEvt.Str("job_id", st.id).Int("exit_code", code).Msg("packaging process exited")

	if code == 0 {
		c.emit(st.id, "packaging finished with exit code 0")
	} else {
		c.emit(st.id, fmt.Sprintf("packaging failed with exit code %d", code))
	}

	report := c.cleaner.Clean(st.cfg.WorkingDirectory, st.cfg.EntryFile)
	for _, line := range report.Lines() {
		c.emit(st.id, line)
	}
	if report.Failed() {
		c.logger.Warn().Str("job_id", st.id).Strs("cleanup", report.Lines()).Msg("cleanup incomplete")
	}

	c.mu.Lock()
	st.exited = true
	st.exitCode = &code
	if st.handled {
		c.mu.Unlock()
		c.logger.Debug().Str("job_id", st.id).Msg("terminal event dropped: completion already handled")
		return
	}
	st.handled = true
	st.endedAt = time.Now().UTC()
	if code == 0 {
		st.status = domain.JobStatusSucceeded
	} else {
		st.status = domain.JobStatusFailed
	}
	completion := Completion{
		JobID:     st.id,
		Status:    st.status,
		Success:   code == 0,
		ExitCode:  &code,
		OutputDir: st.cfg.OutputDirectory,
	}
	c.mu.Unlock()

	c.deliver(completion)
}

// lineSink forwards child output. Completion-sounding text is only noted in
// the application log.
func (c *Controller) lineSink(jobID string) packager.LineSink {
	return func(line string) {
		if domain.LooksLikeCompletion(line) {
			c.logger.Debug().Str("job_id", jobID).Str("line", line).Msg("completion-like output; waiting for exit status")
		}
		c.emit(jobID, line)
	}
}

func (c *Controller) emit(jobID, line string) {
	if c.sink != nil {
		c.sink(jobID, line)
	}
}

func (c *Controller) deliver(completion Completion) {
	if c.notify != nil {
		c.notify(completion)
	}
}
