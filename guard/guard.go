// Package guard gates navigation to protected paths on the presence of a
// bearer token. It never decodes or validates the token; an expired token
// still passes and the API rejects it on use.
package guard

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// Decision is the outcome of Authorize.
type Decision int

const (
	Allow Decision = iota
	RedirectToSignin
	Unauthorized
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToSignin:
		return "redirect_signin"
	case Unauthorized:
		return "unauthorized"
	}
	return "unknown"
}

// Credentials exposes the parts of a request a token may be carried in.
type Credentials interface {
	Cookie(name string) string
	Header(name string) string
}

type requestCredentials struct{ r *http.Request }

func (rc requestCredentials) Cookie(name string) string {
	c, err := rc.r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (rc requestCredentials) Header(name string) string {
	return rc.r.Header.Get(name)
}

// FromRequest adapts r to Credentials.
func FromRequest(r *http.Request) Credentials {
	return requestCredentials{r: r}
}

// Config describes which paths are protected.
type Config struct {
	// ProtectedPrefixes are gated paths. A prefix ending in "/" matches
	// anything below it; otherwise it matches itself and its subpaths.
	ProtectedPrefixes []string
	// APIPrefix selects the paths answered with 401 instead of a redirect.
	APIPrefix string
	// SigninPath is the redirect target for page requests.
	SigninPath string
	// CookieName is the cookie checked before the Authorization header.
	CookieName string
	// Skip lists static asset and infrastructure paths the guard never
	// looks at.
	Skip []string
}

// DefaultConfig protects the dashboard pages and the proxied API.
func DefaultConfig() Config {
	return Config{
		ProtectedPrefixes: []string{"/dashboard", "/api/"},
		APIPrefix:         "/api",
		SigninPath:        "/signin",
		CookieName:        "access_token",
		Skip:              []string{"/_next/", "/favicon.ico", "/healthz", "/metrics"},
	}
}

// Guard applies a Config.
type Guard struct {
	cfg       Config
	logger    *log.Logger
	decisions *prometheus.CounterVec
}

// Option customises a Guard.
type Option func(*Guard)

// WithLogger sets the logger for denied requests.
func WithLogger(logger *log.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithRegisterer counts decisions in reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(g *Guard) {
		if reg == nil {
			return
		}
		g.decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todo_gateway_guard_decisions_total",
			Help: "Route guard decisions by outcome.",
		}, []string{"decision"})
		reg.MustRegister(g.decisions)
	}
}

// New creates a Guard. Empty Config fields take their DefaultConfig value.
func New(cfg Config, opts ...Option) *Guard {
	def := DefaultConfig()
	if cfg.ProtectedPrefixes == nil {
		cfg.ProtectedPrefixes = def.ProtectedPrefixes
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = def.APIPrefix
	}
	if cfg.SigninPath == "" {
		cfg.SigninPath = def.SigninPath
	}
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.Skip == nil {
		cfg.Skip = def.Skip
	}
	g := &Guard{cfg: cfg, logger: log.StandardLogger()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Config returns the effective configuration.
func (g *Guard) Config() Config { return g.cfg }

// Skipped reports whether path is on the allowlist.
func (g *Guard) Skipped(path string) bool {
	for _, p := range g.cfg.Skip {
		if underPrefix(path, p) {
			return true
		}
	}
	return false
}

// Protected reports whether path requires a token.
func (g *Guard) Protected(path string) bool {
	if g.Skipped(path) {
		return false
	}
	for _, p := range g.cfg.ProtectedPrefixes {
		if underPrefix(path, p) {
			return true
		}
	}
	return false
}

// Authorize decides whether a request for path may proceed.
func (g *Guard) Authorize(path string, creds Credentials) Decision {
	d := g.authorize(path, creds)
	if g.decisions != nil {
		g.decisions.WithLabelValues(d.String()).Inc()
	}
	return d
}

func (g *Guard) authorize(path string, creds Credentials) Decision {
	if !g.Protected(path) {
		return Allow
	}
	if TokenFrom(creds, g.cfg.CookieName) != "" {
		return Allow
	}
	if underPrefix(path, g.cfg.APIPrefix) {
		return Unauthorized
	}
	return RedirectToSignin
}

// TokenFrom extracts a token from the named cookie, then from the
// Authorization header with any "Bearer " prefix removed.
func TokenFrom(creds Credentials, cookieName string) string {
	if creds == nil {
		return ""
	}
	if v := strings.TrimSpace(creds.Cookie(cookieName)); v != "" {
		return v
	}
	h := strings.TrimSpace(creds.Header("Authorization"))
	if h == "Bearer" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func underPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	if strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(path, prefix)
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
