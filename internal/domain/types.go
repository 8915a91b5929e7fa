package domain

import "time"

// JobStatus tracks the lifecycle phase of a single packaging job.
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition can happen for the job.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// DataFile is one auxiliary file or directory bundled into the output.
type DataFile struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

// Settings is the user-editable packaging profile. JSON keys stay compatible
// with profiles exported by earlier releases of the tool.
type Settings struct {
	ProjectPath  string     `json:"proj_path"`
	Entry        string     `json:"entry"`
	Icon         string     `json:"icon"`
	OutputDir    string     `json:"out_dir"`
	NoConsole    bool       `json:"cb_noconsole"`
	OneFile      bool       `json:"cb_onefile"`
	Debug        bool       `json:"cb_debug"`
	CustomArgs   string     `json:"custom_args"`
	DataFiles    []DataFile `json:"data_files"`
	PythonPath   string     `json:"python_path,omitempty"`
	PackagerPath string     `json:"pyinstaller_path,omitempty"`
}

// Job stores the current job identity and lifecycle status.
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	ExitCode  *int      `json:"exitCode,omitempty"`
	StartedAt time.Time `json:"startedAt,omitempty"`
	EndedAt   time.Time `json:"endedAt,omitempty"`
}
