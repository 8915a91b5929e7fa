package config

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// LoadDefault reads the runtime config from its default locations (the
// user's config.yml, ./.env and the process environment) and builds the
// logger.
func LoadDefault(console io.Writer) (AppConfig, zerolog.Logger, io.Closer, error) {
	cfg, err := LoadAppConfig(LoadOptions{
		File:    DefaultConfigPath(),
		EnvFile: ".env",
		Environ: os.Environ(),
	})
	if err != nil {
		return cfg, zerolog.Nop(), nopCloser{}, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := NewLogger(cfg, console)
	if err != nil {
		return cfg, zerolog.Nop(), nopCloser{}, err
	}
	return cfg, logger, closer, nil
}
