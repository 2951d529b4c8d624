// Package registry builds vendor clients from endpoint records.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/backend/jackett"
	"github.com/vmunix/arrdash/internal/backend/prowlarr"
	"github.com/vmunix/arrdash/internal/backend/radarr"
	"github.com/vmunix/arrdash/internal/backend/sonarr"
	"github.com/vmunix/arrdash/internal/backend/transmission"
)

// Indexer providers.
const (
	ProviderJackett  = "jackett"
	ProviderProwlarr = "prowlarr"
)

// New returns the client for ep.
func New(ep backend.Endpoint, log *slog.Logger) (backend.Client, error) {
	if strings.TrimSpace(ep.BaseURL) == "" {
		return nil, fmt.Errorf("%w: %s has no url", backend.ErrConfigMissing, ep.Kind)
	}

	switch ep.Kind {
	case backend.KindSeries:
		return sonarr.New(ep, log), nil
	case backend.KindMovie:
		return radarr.New(ep, log), nil
	case backend.KindIndexer:
		switch strings.ToLower(ep.Provider) {
		case "", ProviderJackett:
			return jackett.New(ep, log), nil
		case ProviderProwlarr:
			return prowlarr.New(ep, log), nil
		default:
			return nil, fmt.Errorf("unknown indexer provider %q", ep.Provider)
		}
	case backend.KindTorrent:
		return transmission.New(ep, log), nil
	default:
		return nil, fmt.Errorf("unknown service kind %q", ep.Kind)
	}
}
