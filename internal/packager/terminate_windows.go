//go:build windows

package packager

import "os"

// Windows has no SIGTERM; Kill maps to TerminateProcess.
func terminate(proc *os.Process) error {
	return proc.Kill()
}
