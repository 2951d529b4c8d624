package dashboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/arrdash/internal/backend"
)

// outcome is one service's answer to a fanned-out call.
type outcome[T any] struct {
	kind backend.Kind
	val  T
	err  error
}

// fanOut calls fn concurrently on every configured client implementing C,
// in dashboard order. It fails with ErrConfigMissing when none does; what
// each call returned is left to the caller.
func fanOut[C, T any](ctx context.Context, s *Service, what string, fn func(context.Context, C) (T, error)) ([]outcome[T], error) {
	type target struct {
		kind backend.Kind
		c    C
	}
	var targets []target
	s.mu.RLock()
	for _, kind := range backend.Kinds {
		if c, ok := s.clients[kind].(C); ok {
			targets = append(targets, target{kind, c})
		}
	}
	s.mu.RUnlock()
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no service supports %s", backend.ErrConfigMissing, what)
	}

	out := make([]outcome[T], len(targets))
	var g errgroup.Group
	for i, t := range targets {
		out[i].kind = t.kind
		g.Go(func() error {
			out[i].val, out[i].err = fn(ctx, t.c)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// collectErrors records every failed outcome by kind and returns the first
// error when all of them failed.
func collectErrors[T any](s *Service, what string, outs []outcome[T]) (map[backend.Kind]string, error) {
	var errs map[backend.Kind]string
	var first error
	for _, o := range outs {
		if o.err == nil {
			continue
		}
		if errs == nil {
			errs = make(map[backend.Kind]string)
		}
		errs[o.kind] = o.err.Error()
		if first == nil {
			first = o.err
		}
		s.log.Warn(what+" failed", "kind", o.kind, "error", o.err)
	}
	if len(errs) == len(outs) {
		return errs, first
	}
	return errs, nil
}
