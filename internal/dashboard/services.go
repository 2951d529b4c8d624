package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/vmunix/arrdash/internal/audit"
	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/config"
	"github.com/vmunix/arrdash/internal/settings"
)

// Reload applies base, overlaid with any stored overrides. Called at startup
// and whenever the config file is re-read.
func (s *Service) Reload(ctx context.Context, base config.ServicesConfig) error {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()

	effective := settings.Clone(base)
	if s.store != nil {
		var err error
		if effective, err = s.store.Apply(ctx, base); err != nil {
			return fmt.Errorf("apply overrides: %w", err)
		}
	}
	for _, kind := range backend.Kinds {
		if errs := config.ValidateService(kind, effective.Get(kind)); len(errs) > 0 {
			return fmt.Errorf("%w: %s", backend.ErrInvalidSpec, strings.Join(errs, "; "))
		}
	}
	if err := s.Reconfigure(effective.Endpoints()); err != nil {
		return err
	}

	s.mu.Lock()
	s.services = effective
	s.mu.Unlock()
	return nil
}

// Services returns the effective service configuration with secrets masked.
func (s *Service) Services() config.ServicesConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return settings.Masked(s.services)
}

// UpdateService stores a new section for kind and applies it. Secrets sent
// back as settings.Mask keep their current value.
func (s *Service) UpdateService(ctx context.Context, kind backend.Kind, sc config.ServiceConfig) error {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()

	cmd := &command{action: audit.ActionConfigUpdate, kind: kind, detail: fmt.Sprintf("enabled=%t url=%s", sc.Enabled, sc.URL)}
	return s.run(ctx, cmd, func() error {
		if s.store == nil {
			return fmt.Errorf("%w: no settings store", backend.ErrUnsupported)
		}

		s.mu.RLock()
		next := settings.Clone(s.services)
		s.mu.RUnlock()

		merged := settings.MergeSecrets(next.Get(kind), sc)
		if errs := config.ValidateService(kind, &merged); len(errs) > 0 {
			return fmt.Errorf("%w: %s", backend.ErrInvalidSpec, strings.Join(errs, "; "))
		}
		next.Set(kind, &merged)

		if err := s.store.SaveService(ctx, kind, merged); err != nil {
			return err
		}
		if err := s.Reconfigure(next.Endpoints()); err != nil {
			return err
		}

		s.mu.Lock()
		s.services = next
		s.mu.Unlock()
		return nil
	})
}
