package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/gyro_pipeline/internal/app"
	"github.com/relabs-tech/gyro_pipeline/internal/config"
	"github.com/relabs-tech/gyro_pipeline/internal/logger"
)

func main() {
	configPath := flag.String("config", "gyro_pipeline.toml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init("info")
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.LogLevel)

	if err := app.RunSimProducer(cfg); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
