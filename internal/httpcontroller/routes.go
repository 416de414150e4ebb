// httpcontroller/routes.go
package httpcontroller

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/respireai/respire-web/internal/diagnosis"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Embed the assets and views directories.
//
//go:embed assets
var AssetsFs embed.FS

//go:embed views
var ViewsFs embed.FS

// routeConfig defines the structure for each page route.
type routeConfig struct {
	Path          string
	TemplateName  string
	Title         string
	Authenticated bool // requires a logged-in session
}

// routes lists all the page routes in the application.
var routes = []routeConfig{
	{Path: "/", TemplateName: "home", Title: "Home"},
	{Path: "/about", TemplateName: "about", Title: "About"},
	{Path: "/how-it-works", TemplateName: "how-it-works", Title: "How It Works"},
	{Path: "/features", TemplateName: "features", Title: "Features"},
	{Path: "/contact", TemplateName: "contact", Title: "Contact"},
	{Path: "/predict", TemplateName: "predict", Title: "Analysis", Authenticated: true},
}

// initRoutes initializes the routes for the server.
func (s *Server) initRoutes() {
	// Define function map for templates.
	funcMap := template.FuncMap{
		"title":         cases.Title(language.English).String,
		"label":         diagnosis.Label,
		"description":   diagnosis.Description,
		"percent":       diagnosis.FormatPercent,
		"band":          diagnosis.ConfidenceBand,
		"bandClass":     func(c float64) string { return diagnosis.ConfidenceBand(c).CSSClass() },
		"classBadge":    diagnosis.ClassCSSClass,
		"probRows":      diagnosis.ProbabilityRows,
		"RenderContent": s.RenderContent,
		"sub":           func(a, b int) int { return a - b },
		"add":           func(a, b int) int { return a + b },
	}

	// Parse templates from the embedded filesystem.
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(ViewsFs, "views/*.html")
	if err != nil {
		s.Echo.Logger.Fatal(err)
	}
	s.Echo.Renderer = &TemplateRenderer{templates: tmpl}

	// Set up routes from the configuration.
	s.pageRoutes = make(map[string]routeConfig)
	for _, route := range routes {
		s.pageRoutes[route.Path] = route
		if route.Authenticated {
			s.Echo.GET(route.Path, s.handlePageRequest, s.AuthMiddleware)
		} else {
			s.Echo.GET(route.Path, s.handlePageRequest)
		}
	}

	// Login page and session mutations.
	s.Echo.GET("/login", s.handleLoginPage)
	s.Echo.POST("/login", s.handleLogin)
	s.Echo.POST("/register", s.handleRegister)
	s.Echo.POST("/logout", s.handleLogout)

	// Upload form submission on the analysis page.
	s.Echo.POST("/predict", s.handlePredictForm, s.AuthMiddleware)

	// JSON API.
	api := s.Echo.Group("/api/v1")
	api.GET("/health", s.handleAPIHealth)
	api.POST("/predict", s.handleAPIPredict, s.AuthMiddleware)
	api.GET("/report", s.handleAPIReport, s.AuthMiddleware)

	// Prometheus metrics.
	s.Echo.GET("/metrics", echo.WrapHandler(
		promhttp.HandlerFor(s.metricsRegistry, promhttp.HandlerOpts{})))

	// Set up static file serving for assets.
	assetsFS, err := fs.Sub(AssetsFs, "assets")
	if err != nil {
		s.Echo.Logger.Fatal(err)
	}
	s.Echo.StaticFS("/assets", assetsFS)

	// Unknown paths render the not-found page.
	s.Echo.RouteNotFound("/*", s.handleNotFound)
}

// handlePageRequest serves a page from the route table.
func (s *Server) handlePageRequest(c echo.Context) error {
	route, exists := s.pageRoutes[c.Path()]
	if !exists {
		return s.handleNotFound(c)
	}
	data := s.buildPageData(c, &route)
	if route.TemplateName == "predict" {
		data.Health = s.upstreamHealth(c.Request().Context())
		data.Flow = s.sessionFlow(c).Snapshot()
	}
	return c.Render(http.StatusOK, "index", data)
}

// handleNotFound renders the 404 page.
func (s *Server) handleNotFound(c echo.Context) error {
	route := routeConfig{TemplateName: "not-found", Title: "Page Not Found"}
	return c.Render(http.StatusNotFound, "index", s.buildPageData(c, &route))
}
