package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facecrop/facecrop"
	"github.com/facecrop/facecrop/internal/backend"
	"github.com/facecrop/facecrop/internal/config"
	"github.com/facecrop/facecrop/internal/logger"
	"github.com/facecrop/facecrop/internal/server"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

var (
	addr    = flag.String("addr", "", "Listen address (overrides FACECROP_ADDR)")
	envFile = flag.String("env", "", "Load the settings from this env file instead of .env")
)

func main() {
	flag.Parse()

	boot := logger.New(os.Stderr, logger.JSON, zerolog.InfoLevel)

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(os.Stderr, logger.JSON, level)

	models, err := backend.Open(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load the face detection models")
	}
	defer models.Close()

	detector := facecrop.NewDetector(models.Models,
		facecrop.WithAcceptance(cfg.NormalAcceptance, cfg.StrictAcceptance),
		facecrop.WithLogger(log),
	)
	srv := server.New(detector, server.Options{MaxUploadBytes: cfg.MaxUploadBytes}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Start(cfg.Addr)
	}()
	log.Info().Str("backend", models.Name).Msg("face detector ready")

	select {
	case err := <-errc:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}
