package packager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"pyinstaller-studio/internal/domain"
)

// ConfigError reports the first invalid profile field found before a job
// is created.
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewJobConfig validates a profile and turns it into a JobConfig. Checks run
// in the order the form presents them so the user sees the topmost problem.
func NewJobConfig(settings domain.Settings, exe Executable) (JobConfig, error) {
	if strings.TrimSpace(exe.Path) == "" {
		return JobConfig{}, &ConfigError{Field: "packager", Message: "packaging tool is not resolved"}
	}

	projectDir := strings.TrimSpace(settings.ProjectPath)
	if projectDir == "" {
		return JobConfig{}, &ConfigError{Field: "proj_path", Message: "project path is required"}
	}
	if !isDir(projectDir) {
		return JobConfig{}, &ConfigError{Field: "proj_path", Message: fmt.Sprintf("project path does not exist: %s", projectDir)}
	}

	entry := strings.TrimSpace(settings.Entry)
	if entry == "" {
		return JobConfig{}, &ConfigError{Field: "entry", Message: "entry file is not selected"}
	}
	if !isFile(ResolveIn(projectDir, entry)) {
		return JobConfig{}, &ConfigError{Field: "entry", Message: fmt.Sprintf("entry file does not exist: %s", filepath.Join(projectDir, entry))}
	}

	icon := ResolveIn(projectDir, strings.TrimSpace(settings.Icon))
	if icon != "" && !isFile(icon) {
		return JobConfig{}, &ConfigError{Field: "icon", Message: fmt.Sprintf("icon file does not exist: %s", icon)}
	}

	outDir := strings.TrimSpace(settings.OutputDir)
	if outDir == "" {
		return JobConfig{}, &ConfigError{Field: "out_dir", Message: "output directory is required"}
	}
	outDir = ResolveIn(projectDir, outDir)
	if !isDir(outDir) {
		return JobConfig{}, &ConfigError{Field: "out_dir", Message: fmt.Sprintf("output directory does not exist: %s", outDir)}
	}
	if err := checkWritable(outDir); err != nil {
		return JobConfig{}, &ConfigError{Field: "out_dir", Message: fmt.Sprintf("output directory is not writable: %s", outDir)}
	}

	for _, df := range settings.DataFiles {
		if _, err := os.Stat(ResolveIn(projectDir, df.Src)); err != nil {
			return JobConfig{}, &ConfigError{Field: "data_files", Message: fmt.Sprintf("data file does not exist: %s", df.Src)}
		}
	}

	return JobConfig{
		Executable:       exe,
		WorkingDirectory: projectDir,
		EntryFile:        entry,
		IconPath:         icon,
		DataMappings: lo.Map(settings.DataFiles, func(df domain.DataFile, _ int) DataMapping {
			return DataMapping{Source: df.Src, Destination: df.Dst}
		}),
		ExtraFlags:      ExpandFlags(settings),
		OutputDirectory: outDir,
	}, nil
}

// ResolveIn interprets relative paths against the project directory, which
// is where the packaging tool runs.
func ResolveIn(projectDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectDir, path)
}

// checkWritable creates and removes a probe file in dir.
func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".pyinstaller-studio-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
