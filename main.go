package main

import (
	"embed"
	"log"
	"os"

	"pyinstaller-studio/internal/bootstrap"
	"pyinstaller-studio/internal/config"
)

//go:embed frontend/index.html frontend/wailsjs
var appAssets embed.FS

func main() {
	cfg, logger, closer, err := config.LoadDefault(os.Stderr)
	if err != nil {
		log.Fatalf("bootstrap config: %v", err)
	}
	defer closer.Close()

	app, err := bootstrap.NewWithAssets(appAssets, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap app")
	}

	if err := app.Run(); err != nil {
		logger.Fatal().Err(err).Msg("run app")
	}
}
