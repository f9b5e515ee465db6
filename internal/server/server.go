// Package server exposes the face cropper over HTTP: a minimal upload page,
// a JSON API returning the crops base64 encoded, and a zip download.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/facecrop/facecrop"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// DefaultMaxUploadBytes limits the size of a request body.
const DefaultMaxUploadBytes = 50 << 20

// Options configures the server.
type Options struct {
	MaxUploadBytes int64
}

// Server is the HTTP front end of a face detector.
type Server struct {
	echo     *echo.Echo
	detector *facecrop.Detector
	log      zerolog.Logger
}

// New builds the server and registers its routes.
func New(detector *facecrop.Detector, opts Options, log zerolog.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, detector: detector, log: log}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.log.Info()
			if v.Error != nil {
				event = s.log.Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dB", opts.MaxUploadBytes)))

	e.GET("/", s.index)
	e.GET("/health", s.health)
	e.POST("/api/crop", s.crop)
	e.POST("/api/crop.zip", s.cropZip)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("server listening")
	s.echo.Server.ReadHeaderTimeout = 10 * time.Second
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for the pending requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) index(c echo.Context) error {
	return c.HTML(http.StatusOK, indexPage)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
