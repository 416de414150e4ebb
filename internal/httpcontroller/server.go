// internal/httpcontroller/server.go
package httpcontroller

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/respireai/respire-web/internal/conf"
	"github.com/respireai/respire-web/internal/flow"
	"github.com/respireai/respire-web/internal/inference"
	"github.com/respireai/respire-web/internal/logging"
	"github.com/respireai/respire-web/internal/observability"
	"github.com/respireai/respire-web/internal/session"
	"golang.org/x/crypto/acme/autocert"
)

// Server encapsulates the Echo server and its collaborators.
type Server struct {
	Echo      *echo.Echo
	Settings  *conf.Settings
	Store     session.Store
	Inference *inference.Client
	Flows     *flow.Registry
	Metrics   *observability.Metrics

	// Page routes by path
	pageRoutes map[string]routeConfig

	// Cached upstream health status
	healthCache *cache.Cache

	// Per-server metric registry backing /metrics
	metricsRegistry *prometheus.Registry

	// Structured logger for web operations
	webLogger      *slog.Logger
	webLoggerClose func() error
}

// Upstream health cache tuning.
const (
	healthCacheTTL     = 30 * time.Second
	healthCacheCleanup = time.Minute
	healthProbeTimeout = 5 * time.Second
)

// New initializes a new HTTP server with the given settings, session
// store and inference client.
func New(settings *conf.Settings, store session.Store, inferenceClient *inference.Client) *Server {
	configureDefaultSettings(settings)

	registry := prometheus.NewRegistry()
	s := &Server{
		Echo:            echo.New(),
		Settings:        settings,
		Store:           store,
		Inference:       inferenceClient,
		Flows:           flow.NewRegistry(inferenceClient),
		Metrics:         observability.NewMetrics(registry),
		metricsRegistry: registry,
		healthCache:     cache.New(healthCacheTTL, healthCacheCleanup),
	}

	// Configure an IP extractor
	s.Echo.IPExtractor = echo.ExtractIPFromXFFHeader()

	s.initializeServer()
	return s
}

// configureDefaultSettings sets default values for server settings.
func configureDefaultSettings(settings *conf.Settings) {
	if settings.WebServer.Port == "" {
		settings.WebServer.Port = "8080"
	}
}

// initializeServer configures and initializes the server.
func (s *Server) initializeServer() {
	s.Echo.HideBanner = true
	s.initLogger()

	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.Gzip())
	s.Echo.Use(s.LoggingMiddleware())

	s.initRoutes()
}

// Start begins listening and serving HTTP requests.
func (s *Server) Start() {
	errChan := make(chan error)

	go func() {
		var err error

		if s.Settings.WebServer.AutoTLS {
			configPaths, configErr := conf.GetDefaultConfigPaths()
			if configErr != nil {
				errChan <- fmt.Errorf("failed to get config paths: %w", configErr)
				return
			}

			s.Echo.AutoTLSManager.Prompt = autocert.AcceptTOS
			s.Echo.AutoTLSManager.Cache = autocert.DirCache(configPaths[0])
			s.Echo.AutoTLSManager.HostPolicy = autocert.HostWhitelist(s.Settings.WebServer.TLSHost)

			err = s.Echo.StartAutoTLS(s.Settings.WebServer.Host + ":" + s.Settings.WebServer.Port)
		} else {
			err = s.Echo.Start(s.Settings.WebServer.Host + ":" + s.Settings.WebServer.Port)
		}

		if err != nil {
			errChan <- err
		}
	}()

	go handleServerError(errChan)

	fmt.Printf("HTTP server started on port %s (AutoTLS: %v)\n", s.Settings.WebServer.Port, s.Settings.WebServer.AutoTLS)
}

// handleServerError listens for server errors and handles them.
func handleServerError(errChan chan error) {
	for err := range errChan {
		log.Printf("Server error: %v", err)
	}
}

// Shutdown performs cleanup operations and gracefully stops the server.
func (s *Server) Shutdown() error {
	if s.webLoggerClose != nil {
		if err := s.webLoggerClose(); err != nil {
			log.Printf("Error closing web log file: %v", err)
		}
	}
	return s.Echo.Close()
}

// initLogger initializes the structured web request logger.
func (s *Server) initLogger() {
	if !s.Settings.WebServer.Log.Enabled {
		fmt.Println("Web logging disabled")
		return
	}

	webLogPath := s.Settings.WebServer.Log.Path
	webLogger, closeFunc, err := logging.NewFileLogger(webLogPath, "web", slog.LevelInfo)
	if err != nil {
		log.Printf("Warning: Failed to initialize web structured logger: %v", err)
		// Continue without structured logging rather than failing completely
		return
	}
	s.webLogger = webLogger
	s.webLoggerClose = closeFunc
	log.Printf("Web structured logging initialized to %s", webLogPath)

	// Discard Echo's default log output, rely on middleware
	s.Echo.Logger.SetOutput(io.Discard)
	s.Echo.Logger.SetLevel(99)
}

// Debug logs debug messages if debug mode is enabled.
func (s *Server) Debug(format string, v ...any) {
	if !s.Settings.WebServer.Debug {
		return
	}
	msg := format
	if len(v) > 0 {
		msg = fmt.Sprintf(format, v...)
	}
	log.Print(msg)
	if s.webLogger != nil {
		s.webLogger.Debug(msg)
	}
}

// LogError logs an error with structured request information.
func (s *Server) LogError(c echo.Context, err error, message string) {
	log.Printf("ERROR: %s: %v", message, err)

	if s.webLogger != nil {
		req := c.Request()
		s.webLogger.Error("Error",
			"message", message,
			"error", err.Error(),
			"path", req.URL.Path,
			"method", req.Method,
			"ip", c.RealIP(),
			"user_agent", req.UserAgent(),
		)
	}
}

// LoggingMiddleware logs HTTP requests with structured information.
func (s *Server) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if s.webLogger == nil {
				return next(ctx)
			}

			start := time.Now()
			err := next(ctx)

			req := ctx.Request()
			res := ctx.Response()

			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"query", req.URL.RawQuery,
				"status", res.Status,
				"ip", ctx.RealIP(),
				"user_agent", req.UserAgent(),
				"latency_ms", time.Since(start).Milliseconds(),
				"bytes_out", res.Size,
			}

			switch {
			case err != nil:
				attrs = append(attrs, "error", err.Error())
				s.webLogger.Error("HTTP Request", attrs...)
			case res.Status >= 400:
				s.webLogger.Warn("HTTP Request", attrs...)
			default:
				s.webLogger.Info("HTTP Request", attrs...)
			}

			return err
		}
	}
}

// upstreamHealth probes the inference service, caching the outcome so
// page loads do not hammer the upstream. Returns "online" or "offline".
func (s *Server) upstreamHealth(ctx context.Context) string {
	const key = "health"
	if v, ok := s.healthCache.Get(key); ok {
		return v.(string)
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	status := "online"
	if _, err := s.Inference.Health(probeCtx); err != nil {
		status = "offline"
		s.Metrics.UpstreamUp.Set(0)
	} else {
		s.Metrics.UpstreamUp.Set(1)
	}
	s.healthCache.Set(key, status, cache.DefaultExpiration)
	return status
}
