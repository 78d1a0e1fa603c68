// Package config provides YAML configuration loading for cmd/demo, the
// example embedder of the wsserver module.
//
// Grounded on bobbydeveaux-starbucks-mugs/internal/config: read-file,
// yaml.Unmarshal, apply defaults, validate required fields, wrap errors with
// fmt.Errorf("config: ...: %w", err) throughout.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the demo server.
type Config struct {
	// Port is the TCP port the server listens on. Required.
	Port int `yaml:"port"`

	// LogLevel sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`

	// StaticRoutes lists URL -> canned-response registrations applied at
	// startup.
	StaticRoutes []StaticRoute `yaml:"static_routes"`

	// WebSocketRoutes lists URLs to register as echo WebSocket endpoints.
	WebSocketRoutes []string `yaml:"websocket_routes"`
}

// StaticRoute is one RegisterStatic call's worth of configuration.
type StaticRoute struct {
	// URL is the path this route answers. Required.
	URL string `yaml:"url"`

	// Body is the literal response body text.
	Body string `yaml:"body"`

	// ContentType is the MIME type served for Body. Defaults to
	// "text/plain" when omitted.
	ContentType string `yaml:"content_type"`
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load reads the YAML file at path, unmarshals it into Config, applies
// defaults, and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed for %q: %w", path, err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	for i := range cfg.StaticRoutes {
		if cfg.StaticRoutes[i].ContentType == "" {
			cfg.StaticRoutes[i].ContentType = "text/plain"
		}
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Port <= 0 {
		errs = append(errs, errors.New("port is required and must be positive"))
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q must be one of: debug, info, warn, error", cfg.LogLevel))
	}
	for i, r := range cfg.StaticRoutes {
		if r.URL == "" {
			errs = append(errs, fmt.Errorf("static_routes[%d]: url is required", i))
		}
	}
	for i, u := range cfg.WebSocketRoutes {
		if u == "" {
			errs = append(errs, fmt.Errorf("websocket_routes[%d]: url is required", i))
		}
	}

	return errors.Join(errs...)
}
