package server

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/andresfernandez89/livestore/internal/domain"
)

//go:embed templates/*.html
var templateFiles embed.FS

var (
	loginTemplate = template.Must(template.ParseFS(templateFiles, "templates/login.html"))
	homeTemplate  = template.Must(template.ParseFS(templateFiles, "templates/home.html"))
)

// renderTemplate renders to a buffer first so a mid-render failure never
// leaks partial HTML to the client.
func renderTemplate(c echo.Context, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		slog.Error("template execution failed", "path", c.Request().URL.Path, "error", err)
		return c.String(500, "failed to render page")
	}
	return c.HTMLBlob(200, buf.Bytes())
}

func (s *Server) handleHome(c echo.Context) error {
	identity := c.Get("identity").(domain.Identity)

	products, err := s.coordinator.Products(c.Request().Context())
	if err != nil {
		products = []domain.Product{}
	}
	messages, err := s.coordinator.Messages(c.Request().Context())
	if err != nil {
		messages = []domain.Message{}
	}

	data := map[string]any{
		"Email":    identity.Email,
		"Products": products,
		"Messages": messages,
	}
	return renderTemplate(c, homeTemplate, data)
}

func (s *Server) handleListProducts(c echo.Context) error {
	products, err := s.coordinator.Products(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(200, products)
}

func (s *Server) handleCreateProduct(c echo.Context) error {
	var product domain.Product
	if err := c.Bind(&product); err != nil {
		return err
	}

	created, err := s.coordinator.AddProduct(c.Request().Context(), product)
	if err != nil {
		return err
	}
	return c.JSON(201, created)
}
