package server

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/andresfernandez89/livestore/internal/version"
)

const readinessTimeout = 2 * time.Second

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(200, map[string]string{"status": "ok"})
}

// handleReadiness reports ready only when the record store answers. A worker
// that cannot read the catalog cannot serve correct snapshots.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	if _, err := s.coordinator.Products(ctx); err != nil {
		return c.JSON(503, map[string]string{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(200, map[string]string{"status": "ok"})
}

// handleInfo exposes per-worker process details. With port sharing enabled,
// repeated requests land on different workers and show different pids.
func (s *Server) handleInfo(c echo.Context) error {
	executable, _ := os.Executable()
	workingDir, _ := os.Getwd()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return c.JSON(200, map[string]any{
		"pid":        os.Getpid(),
		"build":      version.Get(),
		"args":       os.Args,
		"executable": executable,
		"workingDir": workingDir,
		"numCPU":     runtime.NumCPU(),
		"memoryRSS":  mem.Sys,
		"mode":       s.config.Mode,
	})
}
