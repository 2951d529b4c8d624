package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/vmunix/arrdash/internal/backend"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

var validIndexerProviders = map[string]bool{
	"jackett": true, "prowlarr": true, "": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	// Server validation
	if c.Server.Port != 0 && (c.Server.Port < 1 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port: must be between 1 and 65535, got %d", c.Server.Port))
	}
	if !validLogLevels[c.Server.LogLevel] {
		errs = append(errs, fmt.Sprintf("server.log_level: must be one of debug, info, warn, error; got %q", c.Server.LogLevel))
	}

	if c.Poll.Interval != 0 && c.Poll.Interval < time.Second {
		errs = append(errs, fmt.Sprintf("poll.interval: must be at least 1s, got %s", c.Poll.Interval))
	}
	if c.Audit.Retention < 0 {
		errs = append(errs, "audit.retention: must not be negative")
	}

	for _, kind := range backend.Kinds {
		errs = append(errs, ValidateService(kind, c.Services.Get(kind))...)
	}

	return errs
}

// ValidateService checks one service section. Disabled sections are not checked
// beyond their provider.
func ValidateService(kind backend.Kind, sc *ServiceConfig) []string {
	if sc == nil {
		return nil
	}
	var errs []string
	prefix := "services." + string(kind)

	if kind == backend.KindIndexer && !validIndexerProviders[sc.Provider] {
		errs = append(errs, fmt.Sprintf("%s.provider: must be one of jackett, prowlarr; got %q", prefix, sc.Provider))
	}
	if sc.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("%s.timeout: must not be negative", prefix))
	}
	if !sc.Enabled {
		return errs
	}

	if sc.URL == "" {
		errs = append(errs, fmt.Sprintf("%s.url: required when enabled", prefix))
	} else if u, err := url.Parse(sc.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("%s.url: must be an http(s) URL, got %q", prefix, sc.URL))
	}

	if kind != backend.KindTorrent && sc.APIKey == "" {
		errs = append(errs, fmt.Sprintf("%s.api_key: required when enabled", prefix))
	}
	if kind == backend.KindTorrent && sc.Password != "" && sc.Username == "" {
		errs = append(errs, fmt.Sprintf("%s.username: required when password is set", prefix))
	}

	return errs
}
