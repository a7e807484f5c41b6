package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/info", s.handleInfo)

	// Root - redirect to the realtime page
	s.echo.GET("/", func(c echo.Context) error {
		return c.Redirect(302, "/home")
	})

	// Auth routes
	s.echo.GET("/login", s.handleLoginPage)
	s.echo.POST("/login", s.handleLogin)
	s.echo.POST("/logout", s.handleLogout)

	// Protected page
	s.echo.GET("/home", s.handleHome, s.requireAuth)

	// REST façade over the catalog (same validation path as the ws events)
	s.echo.GET("/api/products", s.handleListProducts)
	s.echo.POST("/api/products", s.handleCreateProduct, s.requireAuth)

	// Realtime channel
	s.echo.GET("/ws", s.handleWebSocket)
}
