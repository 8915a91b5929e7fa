package packager

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
)

// SpawnFailureExitCode is reported when the process could not be started.
const SpawnFailureExitCode = -1

// ErrNotStarted is returned when termination is requested for a process that
// has not been spawned, or never will be.
var ErrNotStarted = errors.New("process not started")

// UnbufferedEnv makes the Python child flush output line by line.
var UnbufferedEnv = map[string]string{"PYTHONUNBUFFERED": "1"}

// Process describes one child process to launch.
type Process struct {
	Argv []string
	Dir  string
	Env  map[string]string
}

// LineSink receives child output lines, in order, from the reader goroutine.
type LineSink func(line string)

// Exit is the terminal event of a run.
type Exit struct {
	Code int
	Err  error
}

// Handle is the capability returned for a started run.
type Handle interface {
	// Exit delivers exactly one value once the process has exited and all
	// of its output has been passed to the sink.
	Exit() <-chan Exit
	// RequestTermination asks the OS to stop the process. It is advisory.
	RequestTermination() error
}

// Runner launches packaging processes.
type Runner struct {
	environ func() []string
}

// NewRunner builds a runner inheriting the current process environment.
func NewRunner() *Runner {
	return &Runner{environ: os.Environ}
}

// Start launches the process in a background goroutine and returns
// immediately. Spawn failures are reported through the sink and the exit
// channel, never as a return value.
func (r *Runner) Start(proc Process, sink LineSink) Handle {
	h := &processHandle{
		exit:    make(chan Exit, 1),
		started: make(chan struct{}),
	}
	go r.run(h, proc, sink)
	return h
}

func (r *Runner) run(h *processHandle, proc Process, sink LineSink) {
	if sink == nil {
		sink = func(string) {}
	}

	cmd, reader, err := r.spawn(proc)
	if err != nil {
		h.markStarted(nil)
		sink(fmt.Sprintf("failed to start packaging tool: %v", err))
		h.exit <- Exit{Code: SpawnFailureExitCode, Err: err}
		return
	}
	h.markStarted(cmd.Process)

	readErr := readLines(reader, sink)
	_ = reader.Close()

	waitErr := cmd.Wait()
	code := 0
	if waitErr != nil {
		code = SpawnFailureExitCode
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
	}
	if waitErr == nil && readErr != nil {
		waitErr = readErr
	}
	h.exit <- Exit{Code: code, Err: waitErr}
}

// spawn starts the command with stdout and stderr sharing one pipe so lines
// keep the order in which the child wrote them.
func (r *Runner) spawn(proc Process) (*exec.Cmd, *os.File, error) {
	if len(proc.Argv) == 0 || proc.Argv[0] == "" {
		return nil, nil, errors.New("empty command")
	}

	cmd := exec.Command(proc.Argv[0], proc.Argv[1:]...)
	cmd.Dir = proc.Dir
	cmd.Env = mergeEnv(r.environ(), proc.Env)

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, nil, err
	}
	// The child owns its copy of the write end; closing ours lets the reader
	// see EOF when the child exits.
	_ = pw.Close()
	return cmd, pr, nil
}

// readLines forwards each line without its terminator. A final line with no
// trailing newline is still delivered.
func readLines(r io.Reader, sink LineSink) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			sink(strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

// mergeEnv overlays overrides on base, replacing existing keys.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[key]; ok {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}

// processHandle exposes termination without handing out the process.
type processHandle struct {
	exit    chan Exit
	started chan struct{}

	mu   sync.Mutex
	proc *os.Process
}

func (h *processHandle) Exit() <-chan Exit {
	return h.exit
}

func (h *processHandle) RequestTermination() error {
	select {
	case <-h.started:
	default:
		return ErrNotStarted
	}

	h.mu.Lock()
	proc := h.proc
	h.mu.Unlock()
	if proc == nil {
		return ErrNotStarted
	}
	if err := terminate(proc); err != nil {
		return fmt.Errorf("terminate pid %d: %w", proc.Pid, err)
	}
	return nil
}

func (h *processHandle) markStarted(proc *os.Process) {
	h.mu.Lock()
	h.proc = proc
	h.mu.Unlock()
	close(h.started)
}
