// Package config loads the settings shared by the command line tool and the
// upload server from an optional .env file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendAuto   = "auto"
	BackendOpenCV = "opencv"
	BackendPigo   = "pigo"
)

// Config holds the runtime settings. Model paths are resolved against
// ModelDir unless absolute; an empty path disables the model.
type Config struct {
	Backend  string
	ModelDir string

	DNNModel       string
	DNNConfig      string
	FrontalCascade string
	ProfileCascade string

	PigoCascade        string
	PigoProfileCascade string

	Addr             string
	LogLevel         string
	StrictAcceptance float32
	NormalAcceptance float32
	MaxUploadBytes   int64
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Backend:          BackendAuto,
		ModelDir:         "models",
		DNNModel:         "res10_300x300_ssd_iter_140000.caffemodel",
		DNNConfig:        "deploy.prototxt",
		FrontalCascade:   "haarcascade_frontalface_default.xml",
		ProfileCascade:   "haarcascade_profileface.xml",
		PigoCascade:      "facefinder",
		Addr:             ":8080",
		LogLevel:         "info",
		NormalAcceptance: 0.1,
		StrictAcceptance: 0.5,
		MaxUploadBytes:   50 << 20,
	}
}

// Load reads the given .env files, or .env in the working directory if none
// is given, then the FACECROP_* environment variables. Variables already set
// in the environment take precedence over the .env files.
func Load(files ...string) (*Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return nil, fmt.Errorf("could not load the env file: %w", err)
		}
	} else {
		// .env is optional.
		_ = godotenv.Load()
	}

	cfg := Default()

	lookupString("FACECROP_BACKEND", &cfg.Backend)
	lookupString("FACECROP_MODEL_DIR", &cfg.ModelDir)
	lookupString("FACECROP_DNN_MODEL", &cfg.DNNModel)
	lookupString("FACECROP_DNN_CONFIG", &cfg.DNNConfig)
	lookupString("FACECROP_FRONTAL_CASCADE", &cfg.FrontalCascade)
	lookupString("FACECROP_PROFILE_CASCADE", &cfg.ProfileCascade)
	lookupString("FACECROP_PIGO_CASCADE", &cfg.PigoCascade)
	lookupString("FACECROP_PIGO_PROFILE_CASCADE", &cfg.PigoProfileCascade)
	lookupString("FACECROP_ADDR", &cfg.Addr)
	lookupString("FACECROP_LOG_LEVEL", &cfg.LogLevel)

	if err := lookupFloat("FACECROP_NORMAL_ACCEPTANCE", &cfg.NormalAcceptance); err != nil {
		return nil, err
	}
	if err := lookupFloat("FACECROP_STRICT_ACCEPTANCE", &cfg.StrictAcceptance); err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv("FACECROP_MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid FACECROP_MAX_UPLOAD_BYTES %q", v)
		}
		cfg.MaxUploadBytes = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values which cannot be checked at use.
func (c *Config) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case BackendAuto, BackendOpenCV, BackendPigo:
	default:
		return fmt.Errorf("unknown backend %q, expected one of %s, %s, %s",
			c.Backend, BackendAuto, BackendOpenCV, BackendPigo)
	}
	if c.StrictAcceptance < c.NormalAcceptance {
		return fmt.Errorf("strict acceptance %v is below the normal acceptance %v",
			c.StrictAcceptance, c.NormalAcceptance)
	}
	return nil
}

// Path resolves a model file name against the model directory.
// An empty name stays empty.
func (c *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.ModelDir, name)
}

func lookupString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

func lookupFloat(key string, dst *float32) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = float32(f)
	return nil
}
