// Package settings stores service endpoint overrides edited through the API.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/config"
)

// Mask replaces secrets in everything returned to clients.
const Mask = "********"

const servicePrefix = "service."

// Store is a key/value table in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a settings store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the value for key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set writes value for key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// Services returns the stored service overrides.
func (s *Store) Services(ctx context.Context) (map[backend.Kind]config.ServiceConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings WHERE key LIKE ?`, servicePrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	out := make(map[backend.Kind]config.ServiceConfig)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		var sc config.ServiceConfig
		if err := json.Unmarshal([]byte(value), &sc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out[backend.Kind(strings.TrimPrefix(key, servicePrefix))] = sc
	}
	return out, rows.Err()
}

// SaveService stores an override for kind.
func (s *Store) SaveService(ctx context.Context, kind backend.Kind, sc config.ServiceConfig) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode service: %w", err)
	}
	return s.Set(ctx, servicePrefix+string(kind), string(data))
}

// Apply returns a copy of base with stored overrides replacing whole sections.
func (s *Store) Apply(ctx context.Context, base config.ServicesConfig) (config.ServicesConfig, error) {
	overrides, err := s.Services(ctx)
	if err != nil {
		return base, err
	}
	out := Clone(base)
	for kind, sc := range overrides {
		sc := sc
		out.Set(kind, &sc)
	}
	return out, nil
}

// Clone deep-copies services.
func Clone(in config.ServicesConfig) config.ServicesConfig {
	var out config.ServicesConfig
	for _, kind := range backend.Kinds {
		if sc := in.Get(kind); sc != nil {
			c := *sc
			out.Set(kind, &c)
		}
	}
	return out
}

// Masked returns a copy of services with every non-empty secret replaced by Mask.
func Masked(in config.ServicesConfig) config.ServicesConfig {
	out := Clone(in)
	for _, kind := range backend.Kinds {
		if sc := out.Get(kind); sc != nil {
			sc.APIKey = mask(sc.APIKey)
			sc.Password = mask(sc.Password)
		}
	}
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return Mask
}

// MergeSecrets returns incoming with masked secrets replaced by current's.
func MergeSecrets(current *config.ServiceConfig, incoming config.ServiceConfig) config.ServiceConfig {
	if current == nil {
		if incoming.APIKey == Mask {
			incoming.APIKey = ""
		}
		if incoming.Password == Mask {
			incoming.Password = ""
		}
		return incoming
	}
	if incoming.APIKey == Mask {
		incoming.APIKey = current.APIKey
	}
	if incoming.Password == Mask {
		incoming.Password = current.Password
	}
	return incoming
}

// hostSecretKeys are the host settings fields never shown unmasked.
var hostSecretKeys = []string{"apiKey", "password", "sslCertPassword"}

// MaskedHost returns a copy of cfg with every non-empty secret replaced by Mask.
func MaskedHost(cfg backend.HostConfig) backend.HostConfig {
	out := maps.Clone(cfg)
	for _, k := range hostSecretKeys {
		if v, ok := out[k].(string); ok {
			out[k] = mask(v)
		}
	}
	return out
}

// MergeHost overlays patch on current. Secrets sent back as Mask keep their
// current value.
func MergeHost(current, patch backend.HostConfig) backend.HostConfig {
	out := maps.Clone(current)
	if out == nil {
		out = make(backend.HostConfig, len(patch))
	}
	for k, v := range patch {
		if s, ok := v.(string); ok && s == Mask && slices.Contains(hostSecretKeys, k) {
			continue
		}
		out[k] = v
	}
	return out
}
