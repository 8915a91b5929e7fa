// Package packager turns a packaging profile into a PyInstaller invocation,
// runs it as a child process and removes the build leftovers afterwards.
package packager

import (
	"os"

	"github.com/samber/lo"
)

// Executable is the command prefix that launches the packaging tool: either a
// standalone binary (no Args) or an interpreter running a module.
type Executable struct {
	Path string
	Args []string
}

// Argv returns the prefix as argument vector tokens.
func (e Executable) Argv() []string {
	return append([]string{e.Path}, e.Args...)
}

// DataMapping is one --add-data source/destination pair.
type DataMapping struct {
	Source      string
	Destination string
}

// String joins source and destination with the platform list separator.
func (m DataMapping) String() string {
	return m.Source + string(os.PathListSeparator) + m.Destination
}

// JobConfig is a fully validated packaging request. Build one with
// NewJobConfig.
type JobConfig struct {
	Executable       Executable
	WorkingDirectory string
	EntryFile        string
	IconPath         string
	DataMappings     []DataMapping
	ExtraFlags       []string
	OutputDirectory  string
}

// BuildCommand assembles the argument vector for one job. Tokens are never
// quoted: the runner hands them to the OS without a shell.
func BuildCommand(cfg JobConfig) []string {
	argv := cfg.Executable.Argv()
	if cfg.IconPath != "" {
		argv = append(argv, "--icon", cfg.IconPath)
	}
	argv = append(argv, lo.FlatMap(cfg.DataMappings, func(m DataMapping, _ int) []string {
		return []string{"--add-data", m.String()}
	})...)
	argv = append(argv, cfg.ExtraFlags...)
	argv = append(argv,
		"--distpath", cfg.OutputDirectory,
		"--log-level", "DEBUG",
		cfg.EntryFile,
	)
	return argv
}
