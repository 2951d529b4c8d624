package dashboard

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/vmunix/arrdash/internal/audit"
	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/settings"
)

func (s *Service) hostConfigurer(kind backend.Kind) (backend.HostConfigurer, error) {
	c, err := s.client(kind)
	if err != nil {
		return nil, err
	}
	hc, ok := c.(backend.HostConfigurer)
	if !ok {
		return nil, unsupported(kind, "edit host settings")
	}
	return hc, nil
}

// HostConfig returns kind's own host settings with secrets masked.
func (s *Service) HostConfig(ctx context.Context, kind backend.Kind) (backend.HostConfig, error) {
	hc, err := s.hostConfigurer(kind)
	if err != nil {
		return nil, err
	}
	cfg, err := hc.HostConfig(ctx)
	if err != nil {
		return nil, err
	}
	return settings.MaskedHost(cfg), nil
}

// UpdateHostConfig overlays patch on kind's current host settings and sends
// the result back. Secrets sent as settings.Mask keep their value.
func (s *Service) UpdateHostConfig(ctx context.Context, kind backend.Kind, patch backend.HostConfig) (backend.HostConfig, error) {
	if len(patch) == 0 {
		return nil, fmt.Errorf("%w: no host settings given", backend.ErrInvalidSpec)
	}

	keys := slices.Sorted(maps.Keys(patch))
	cmd := &command{action: audit.ActionHostUpdate, kind: kind, detail: "keys=" + strings.Join(keys, ","), trigger: true}
	var stored backend.HostConfig
	err := s.run(ctx, cmd, func() error {
		hc, err := s.hostConfigurer(kind)
		if err != nil {
			return err
		}
		current, err := hc.HostConfig(ctx)
		if err != nil {
			return err
		}
		stored, err = hc.UpdateHostConfig(ctx, settings.MergeHost(current, patch))
		return err
	})
	if err != nil {
		return nil, err
	}
	return settings.MaskedHost(stored), nil
}
