// Package backend turns the configuration into the models of the face detector.
package backend

import (
	"errors"
	"fmt"

	"github.com/facecrop/facecrop"
	"github.com/facecrop/facecrop/internal/backend/opencv"
	"github.com/facecrop/facecrop/internal/backend/pigo"
	"github.com/facecrop/facecrop/internal/config"
	"github.com/rs/zerolog"
)

// Backend bundles the loaded detector models and the function releasing them.
type Backend struct {
	Name   string
	Models facecrop.Models
	close  func() error
}

// Close releases the models.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open loads the models of the configured backend. The auto backend picks
// OpenCV when the binary supports it and falls back to pigo otherwise.
func Open(cfg *config.Config, log zerolog.Logger) (*Backend, error) {
	switch cfg.Backend {
	case config.BackendOpenCV:
		return openOpenCV(cfg)
	case config.BackendPigo:
		return openPigo(cfg)
	case config.BackendAuto, "":
		if opencv.Available {
			b, err := openOpenCV(cfg)
			if err == nil {
				return b, nil
			}
			log.Warn().Err(err).Msg("OpenCV models unavailable, falling back to pigo")
		}
		return openPigo(cfg)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func openOpenCV(cfg *config.Config) (*Backend, error) {
	cv, err := opencv.Open(opencv.Paths{
		DNNModel:       cfg.Path(cfg.DNNModel),
		DNNConfig:      cfg.Path(cfg.DNNConfig),
		FrontalCascade: cfg.Path(cfg.FrontalCascade),
		ProfileCascade: cfg.Path(cfg.ProfileCascade),
	})
	if err != nil {
		return nil, fmt.Errorf("opencv backend: %w", err)
	}
	return &Backend{Name: config.BackendOpenCV, Models: cv.Models(), close: cv.Close}, nil
}

func openPigo(cfg *config.Config) (*Backend, error) {
	var models facecrop.Models

	if path := cfg.Path(cfg.PigoCascade); path != "" {
		frontal, err := pigo.Load(path)
		if err != nil {
			return nil, fmt.Errorf("pigo backend: %w", err)
		}
		models.Frontal = frontal
	}
	if path := cfg.Path(cfg.PigoProfileCascade); path != "" {
		profile, err := pigo.Load(path)
		if err != nil {
			return nil, fmt.Errorf("pigo backend: %w", err)
		}
		models.Profile = profile
	}

	if models.Frontal == nil && models.Profile == nil {
		return nil, errors.New("pigo backend: no cascade configured")
	}
	return &Backend{Name: config.BackendPigo, Models: models}, nil
}
