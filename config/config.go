// Package config loads settings for the todo client and gateway from the
// environment, optionally layered over a YAML file.
package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Credential backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Client holds settings for the terminal client.
type Client struct {
	APIBaseURL        string        `yaml:"api_base_url"`
	CredentialBackend string        `yaml:"credential_backend"`
	CredentialFile    string        `yaml:"credential_file"`
	RedisURL          string        `yaml:"redis_url"`
	RedisPrefix       string        `yaml:"redis_prefix"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
}

// Gateway holds settings for the HTTP gateway.
type Gateway struct {
	ListenAddr        string
	StaticDir         string
	SigninPath        string
	ProtectedPrefixes []string
	APIPrefix         string
	Upstream          string
}

// LoadClient reads client settings. Defaults are overridden by the YAML
// file named in TODO_CONFIG, which is overridden by environment variables.
func LoadClient() (*Client, error) {
	cfg := &Client{
		APIBaseURL:        "http://localhost:8000",
		CredentialBackend: BackendFile,
		RedisPrefix:       "todo:",
		HTTPTimeout:       15 * time.Second,
	}
	if path := os.Getenv("TODO_CONFIG"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.APIBaseURL = getEnvString("TODO_API_BASE_URL", cfg.APIBaseURL)
	cfg.CredentialBackend = strings.ToLower(getEnvString("TODO_CREDENTIAL_BACKEND", cfg.CredentialBackend))
	cfg.CredentialFile = getEnvString("TODO_CREDENTIAL_FILE", cfg.CredentialFile)
	cfg.RedisURL = getEnvString("TODO_REDIS_URL", cfg.RedisURL)
	cfg.RedisPrefix = getEnvString("TODO_REDIS_PREFIX", cfg.RedisPrefix)
	timeout, err := getEnvDuration("TODO_HTTP_TIMEOUT", cfg.HTTPTimeout)
	if err != nil {
		return nil, err
	}
	cfg.HTTPTimeout = timeout

	if cfg.CredentialFile == "" {
		cfg.CredentialFile = defaultCredentialFile()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Client) validate() error {
	switch c.CredentialBackend {
	case BackendFile:
		if c.CredentialFile == "" {
			return fmt.Errorf("TODO_CREDENTIAL_FILE is required for the file backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("TODO_REDIS_URL is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid TODO_CREDENTIAL_BACKEND %q", c.CredentialBackend)
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("TODO_API_BASE_URL must not be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("invalid TODO_HTTP_TIMEOUT: must be greater than zero")
	}
	return nil
}

// LoadGateway reads gateway settings from the environment.
func LoadGateway() (*Gateway, error) {
	cfg := &Gateway{
		ListenAddr:        getEnvString("GATEWAY_LISTEN_ADDR", ":3000"),
		StaticDir:         os.Getenv("GATEWAY_STATIC_DIR"),
		SigninPath:        getEnvString("GATEWAY_SIGNIN_PATH", "/signin"),
		ProtectedPrefixes: splitList(getEnvString("GATEWAY_PROTECTED_PREFIXES", "/dashboard,/api/")),
		APIPrefix:         getEnvString("GATEWAY_API_PREFIX", "/api"),
		Upstream:          getEnvString("GATEWAY_UPSTREAM", "http://localhost:8000"),
	}
	if !strings.HasPrefix(cfg.SigninPath, "/") {
		return nil, fmt.Errorf("invalid GATEWAY_SIGNIN_PATH %q: must start with /", cfg.SigninPath)
	}
	if len(cfg.ProtectedPrefixes) == 0 {
		return nil, fmt.Errorf("GATEWAY_PROTECTED_PREFIXES must not be empty")
	}
	return cfg, nil
}

// RedisOptions parses a redis URL, falling back to the
// "host:port,password=...,ssl=true" connection string form.
func RedisOptions(conn string) (*redis.Options, error) {
	if conn == "" {
		return nil, fmt.Errorf("empty redis connection string")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	if parts[0] == "" || strings.Contains(parts[0], "://") {
		return nil, fmt.Errorf("invalid redis connection string %q", conn)
	}
	opts := &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}

// NewLogger returns a logger configured by DEBUG and LOG_FORMAT.
func NewLogger() *log.Logger {
	logger := log.New()
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		logger.SetLevel(log.DebugLevel)
	}
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logger.SetFormatter(&log.JSONFormatter{})
	}
	return logger
}

func loadYAML(path string, cfg *Client) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func defaultCredentialFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "todo", "credentials.json")
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
