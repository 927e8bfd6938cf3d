// Package gateway is the HTTP front door of the web frontend. It applies
// the route guard, proxies API traffic to the remote service and serves
// the static bundle.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"todo-client/guard"
)

// Config configures a Server.
type Config struct {
	ListenAddr string
	// StaticDir holds the frontend bundle. Empty disables static serving.
	StaticDir string
	// Upstream is the base URL of the remote API.
	Upstream string
	// ProxyPrefixes are forwarded to Upstream unchanged.
	ProxyPrefixes []string
	Guard         guard.Config
}

// Server wraps the echo instance.
type Server struct {
	echo     *echo.Echo
	cfg      Config
	logger   *log.Logger
	registry *prometheus.Registry
	guard    *guard.Guard
}

// New builds the gateway. logger may be nil.
func New(cfg Config, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if len(cfg.ProxyPrefixes) == 0 {
		cfg.ProxyPrefixes = []string{"/api", "/auth"}
	}
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", cfg.Upstream)
	}

	registry := prometheus.NewRegistry()
	g := guard.New(cfg.Guard, guard.WithLogger(logger), guard.WithRegisterer(registry))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger(logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "todo_gateway",
		Subsystem:  "http",
		Registerer: registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/healthz"
		},
	}))
	e.Use(g.Middleware())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: registry}))

	balancer := middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{{Name: "api", URL: upstream}})
	for _, prefix := range cfg.ProxyPrefixes {
		e.Group(strings.TrimRight(prefix, "/"), middleware.ProxyWithConfig(middleware.ProxyConfig{Balancer: balancer}))
	}

	if cfg.StaticDir != "" {
		e.Use(middleware.StaticWithConfig(middleware.StaticConfig{
			Root:  cfg.StaticDir,
			HTML5: true,
			Skipper: func(c echo.Context) bool {
				return underAny(c.Request().URL.Path, cfg.ProxyPrefixes)
			},
		}))
	}

	return &Server{echo: e, cfg: cfg, logger: logger, registry: registry, guard: g}, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Registry returns the registry backing /metrics.
func (s *Server) Registry() *prometheus.Registry { return s.registry }

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.logger.WithFields(log.Fields{
		"addr":      s.cfg.ListenAddr,
		"upstream":  s.cfg.Upstream,
		"protected": strings.Join(s.guard.Config().ProtectedPrefixes, ","),
	}).Info("gateway.start")
	if err := s.echo.Start(s.cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func requestLogger(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			fields := log.Fields{
				"method":     c.Request().Method,
				"path":       c.Request().URL.Path,
				"status":     status,
				"total_ms":   float64(time.Since(start).Microseconds()) / 1000,
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}
			entry := logger.WithFields(fields)
			switch {
			case status >= http.StatusInternalServerError:
				entry.Error("gateway.request")
			case status >= http.StatusBadRequest:
				entry.Warn("gateway.request")
			default:
				entry.Debug("gateway.request")
			}
			return nil
		}
	}
}

func underAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.TrimRight(p, "/")
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
