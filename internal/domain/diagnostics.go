package domain

import "time"

// DiagnosticStatus indicates whether a single environment check passed.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusFail DiagnosticStatus = "fail"
)

// Diagnostic item IDs understood by the fix-up actions.
const (
	DiagnosticPackager   = "tool_pyinstaller"
	DiagnosticProjectDir = "project_dir"
	DiagnosticEntryFile  = "entry_file"
	DiagnosticOutputDir  = "output_dir"
	DiagnosticIcon       = "icon"
)

// DiagnosticItem is one environment check result with optional hint.
type DiagnosticItem struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Status  DiagnosticStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
}

// DiagnosticReport aggregates checks for UI and CLI output. Packager holds
// the resolved command prefix when the packaging tool was found.
type DiagnosticReport struct {
	GeneratedAt     time.Time        `json:"generatedAt"`
	HasFailures     bool             `json:"hasFailures"`
	Packager        []string         `json:"packager,omitempty"`
	PackagerVersion string           `json:"packagerVersion,omitempty"`
	Items           []DiagnosticItem `json:"items"`
}

// Item returns the report entry with the given ID.
func (r DiagnosticReport) Item(id string) (DiagnosticItem, bool) {
	for _, item := range r.Items {
		if item.ID == id {
			return item, true
		}
	}
	return DiagnosticItem{}, false
}
