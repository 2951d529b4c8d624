// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vmunix/arrdash/internal/backend"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Poll     PollConfig     `toml:"poll"`
	Audit    AuditConfig    `toml:"audit"`
	Services ServicesConfig `toml:"services"`
}

type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type PollConfig struct {
	Interval time.Duration `toml:"interval"`
}

type AuditConfig struct {
	Retention time.Duration `toml:"retention"`
}

// ServicesConfig holds one optional section per service kind.
type ServicesConfig struct {
	Sonarr       *ServiceConfig `toml:"sonarr" json:"sonarr,omitempty"`
	Radarr       *ServiceConfig `toml:"radarr" json:"radarr,omitempty"`
	Indexer      *ServiceConfig `toml:"indexer" json:"indexer,omitempty"`
	Transmission *ServiceConfig `toml:"transmission" json:"transmission,omitempty"`
}

// ServiceConfig is the connection record for one service.
type ServiceConfig struct {
	Enabled  bool          `toml:"enabled" json:"enabled"`
	Provider string        `toml:"provider,omitempty" json:"provider,omitempty"`
	URL      string        `toml:"url" json:"url"`
	APIKey   string        `toml:"api_key,omitempty" json:"api_key,omitempty"`
	Username string        `toml:"username,omitempty" json:"username,omitempty"`
	Password string        `toml:"password,omitempty" json:"password,omitempty"`
	Timeout  time.Duration `toml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Get returns the section for kind, or nil.
func (s *ServicesConfig) Get(kind backend.Kind) *ServiceConfig {
	switch kind {
	case backend.KindSeries:
		return s.Sonarr
	case backend.KindMovie:
		return s.Radarr
	case backend.KindIndexer:
		return s.Indexer
	case backend.KindTorrent:
		return s.Transmission
	default:
		return nil
	}
}

// Set replaces the section for kind.
func (s *ServicesConfig) Set(kind backend.Kind, sc *ServiceConfig) {
	switch kind {
	case backend.KindSeries:
		s.Sonarr = sc
	case backend.KindMovie:
		s.Radarr = sc
	case backend.KindIndexer:
		s.Indexer = sc
	case backend.KindTorrent:
		s.Transmission = sc
	}
}

// Endpoints returns one endpoint per configured section, in dashboard order.
func (s *ServicesConfig) Endpoints() []backend.Endpoint {
	var out []backend.Endpoint
	for _, kind := range backend.Kinds {
		sc := s.Get(kind)
		if sc == nil {
			continue
		}
		out = append(out, sc.Endpoint(kind))
	}
	return out
}

// Endpoint converts the section to a backend endpoint.
func (sc ServiceConfig) Endpoint(kind backend.Kind) backend.Endpoint {
	return backend.Endpoint{
		Kind:     kind,
		Provider: sc.Provider,
		BaseURL:  sc.URL,
		APIKey:   sc.APIKey,
		Username: sc.Username,
		Password: sc.Password,
		Enabled:  sc.Enabled,
		Timeout:  sc.Timeout,
	}
}

// Load reads, parses and validates the configuration file.
func Load(path string) (*Config, error) {
	cfg, missing, err := load(path)
	if err != nil {
		return nil, err
	}

	cfgErr := &ConfigError{Path: path, Missing: missing, Errors: cfg.Validate()}
	if cfgErr.HasErrors() {
		return nil, cfgErr
	}
	return cfg, nil
}

// LoadWithoutValidation reads and parses the file, tolerating unresolved
// variables and invalid values. Used by tooling that inspects a config.
func LoadWithoutValidation(path string) (*Config, error) {
	cfg, _, err := load(path)
	return cfg, err
}

func load(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}

	// Substitute environment variables
	content, missing := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, missing, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8585
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/arrdash.db"
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = 30 * time.Second
	}
	if c.Audit.Retention == 0 {
		c.Audit.Retention = 90 * 24 * time.Hour
	}
	if c.Services.Indexer != nil && c.Services.Indexer.Provider == "" {
		c.Services.Indexer.Provider = "jackett"
	}
}

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}`)

// substituteEnvVars replaces variable references with environment values.
// Unresolved references are left in place and reported in missing.
func substituteEnvVars(content string) (string, []string) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		name, op, arg := parts[1], parts[2], parts[3]
		value, ok := os.LookupEnv(name)

		switch op {
		case ":-":
			if !ok || value == "" {
				return arg
			}
			return value
		case ":?":
			if !ok || value == "" {
				missing = append(missing, fmt.Sprintf("%s: %s", name, strings.TrimSpace(arg)))
				return match
			}
			return value
		default:
			if !ok {
				missing = append(missing, name)
				return match
			}
			return value
		}
	})
	return out, missing
}
