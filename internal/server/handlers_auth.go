package server

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/andresfernandez89/livestore/internal/domain"
	apperrors "github.com/andresfernandez89/livestore/internal/errors"
)

// requireAuth guards browser routes. Browsers get a redirect to the login
// page instead of a bare 401.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := s.gate.Authorize(c.Request())
		if err != nil {
			return c.Redirect(302, "/login")
		}

		c.Set("identity", identity)
		return next(c)
	}
}

func (s *Server) handleLoginPage(c echo.Context) error {
	if _, err := s.gate.Authorize(c.Request()); err == nil {
		return c.Redirect(302, "/home")
	}
	return renderTemplate(c, loginTemplate, nil)
}

func (s *Server) handleLogin(c echo.Context) error {
	email := strings.TrimSpace(c.FormValue("email"))
	if email == "" || !strings.Contains(email, "@") {
		return apperrors.ValidationError("a valid email is required to log in")
	}

	identity := domain.Identity{Email: email}
	if err := s.gate.Login(c.Response(), c.Request(), identity); err != nil {
		return err
	}
	return c.Redirect(302, "/home")
}

func (s *Server) handleLogout(c echo.Context) error {
	if err := s.gate.Logout(c.Response(), c.Request()); err != nil {
		return err
	}
	return c.Redirect(302, "/login")
}
