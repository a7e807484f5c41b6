package server

import (
	"context"
	"fmt"
	"net"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/andresfernandez89/livestore/internal/config"
	"github.com/andresfernandez89/livestore/internal/coordinator"
	"github.com/andresfernandez89/livestore/internal/domain"
	apperrors "github.com/andresfernandez89/livestore/internal/errors"
	"github.com/andresfernandez89/livestore/internal/hub"
)

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	gate        domain.Gate
	coordinator *coordinator.Coordinator
	hub         *hub.Hub
	clock       clockwork.Clock
	handlers    map[string]eventHandler
}

func NewServer(cfg *config.Config, gate domain.Gate, coord *coordinator.Coordinator, h *hub.Hub, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:        e,
		config:      cfg,
		gate:        gate,
		coordinator: coord,
		hub:         h,
		clock:       clock,
	}
	srv.handlers = srv.eventHandlers()
	srv.registerRoutes()
	return srv
}

// Start binds the configured port and serves until Shutdown.
func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

// Serve runs on a caller-provided listener. Workers in CLUSTER mode pass a
// SO_REUSEPORT listener here so siblings can share the port.
func (s *Server) Serve(listener net.Listener) error {
	s.echo.Listener = listener
	return s.echo.Start("")
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
