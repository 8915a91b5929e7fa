package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides of AppConfig.
const EnvPrefix = "PYSTUDIO_"

// AppConfig is the runtime configuration of the desktop app and the CLI.
type AppConfig struct {
	LogLevel        string        `yaml:"log_level" env:"LOG_LEVEL"`
	LogFile         string        `yaml:"log_file" env:"LOG_FILE"`
	EventBufferSize int           `yaml:"event_buffer_size" env:"EVENT_BUFFER_SIZE"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout" env:"PROBE_TIMEOUT"`
	SettingsPath    string        `yaml:"settings_path" env:"SETTINGS_PATH"`
}

// LoadOptions says where AppConfig values come from. Empty paths are skipped.
type LoadOptions struct {
	File    string
	EnvFile string
	Environ []string
}

// LoadAppConfig layers defaults, the YAML file, the .env file and finally the
// process environment, then validates the result. Variables already set in
// the environment win over the .env file.
func LoadAppConfig(opts LoadOptions) (AppConfig, error) {
	cfg := DefaultAppConfig()

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		case len(data) > 0:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse yaml: %w", err)
			}
		}
	}

	environment := env.ToMap(opts.Environ)
	if opts.EnvFile != "" {
		dotenv, err := godotenv.Read(opts.EnvFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load .env file: %w", err)
		}
		for k, v := range dotenv {
			if _, ok := environment[k]; !ok {
				environment[k] = v
			}
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{
		Environment: environment,
		Prefix:      EnvPrefix,
	}); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate normalizes and checks the configuration.
func (c *AppConfig) Validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (want debug, info, warn or error)", c.LogLevel)
	}
	if c.EventBufferSize < 1 {
		return fmt.Errorf("invalid event_buffer_size: %d (must be >= 1)", c.EventBufferSize)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("invalid probe_timeout: %s (must be positive)", c.ProbeTimeout)
	}
	if strings.TrimSpace(c.SettingsPath) == "" {
		return errors.New("settings_path is empty")
	}
	return nil
}
