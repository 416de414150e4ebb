package httpcontroller

import (
	"bytes"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/respireai/respire-web/internal/conf"
	"github.com/respireai/respire-web/internal/errors"
	"github.com/respireai/respire-web/internal/flow"
	"github.com/respireai/respire-web/internal/session"
)

// PageData represents data for rendering a page.
type PageData struct {
	C        echo.Context
	Page     string
	Title    string
	Settings *conf.Settings
	User     *session.State

	// Populated for the analysis page only.
	Health string
	Flow   flow.Snapshot

	// Form feedback shown above the active form, if any.
	FormError string
}

// ErrMessage returns the flow error text for display, if any.
func (d *PageData) ErrMessage() string {
	if d.Flow.Err == nil {
		return ""
	}
	return d.Flow.Err.Error()
}

// TemplateRenderer is a custom HTML template renderer for Echo framework.
type TemplateRenderer struct {
	templates *template.Template
}

// Render renders a template with the given data.
func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

// RenderContent renders the page's content template inside the layout.
func (s *Server) RenderContent(data interface{}) (template.HTML, error) {
	d, ok := data.(*PageData)
	if !ok {
		return "", errors.Newf("invalid data type for page render").
			Component("httpcontroller").
			Category(errors.CategoryGeneric).
			Build()
	}

	buf := new(bytes.Buffer)
	if err := s.Echo.Renderer.Render(buf, d.Page, d, d.C); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil //nolint:gosec // our own template output
}

// buildPageData assembles the common render payload for a route. The
// session state is read best effort; a corrupt profile reads as none.
func (s *Server) buildPageData(c echo.Context, route *routeConfig) *PageData {
	state, err := s.Store.Get(c)
	if err != nil {
		s.Debug("session read for %s: %v", c.Path(), err)
	}
	return &PageData{
		C:        c,
		Page:     route.TemplateName,
		Title:    route.Title,
		Settings: s.Settings,
		User:     state,
	}
}
