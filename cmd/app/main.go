package main

import (
	"log"
	"os"

	"pyinstaller-studio/internal/bootstrap"
	"pyinstaller-studio/internal/config"
)

func main() {
	cfg, logger, closer, err := config.LoadDefault(os.Stderr)
	if err != nil {
		log.Fatalf("bootstrap config: %v", err)
	}
	defer closer.Close()

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap app")
	}

	if err := app.Run(); err != nil {
		logger.Fatal().Err(err).Msg("run app")
	}
}
