package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/vmunix/arrdash/internal/audit"
	"github.com/vmunix/arrdash/internal/backend"
)

// command describes one audited call.
type command struct {
	action  string
	kind    backend.Kind
	target  string
	detail  string
	trigger bool // refresh kind on success
}

// run executes fn and appends exactly one audit entry for it. The error from
// fn is returned unchanged; a failing audit append is only logged.
func (s *Service) run(ctx context.Context, cmd *command, fn func() error) error {
	reqID := s.newID()
	log := s.log.With("request_id", reqID, "action", cmd.action, "kind", cmd.kind)

	start := time.Now()
	err := fn()

	entry := &audit.Entry{
		Action:     cmd.action,
		TargetKind: string(cmd.kind),
		TargetID:   cmd.target,
		Outcome:    audit.OutcomeSuccess,
		Detail:     cmd.detail,
		RequestID:  reqID,
	}
	if err != nil {
		entry.Outcome = audit.OutcomeFailure
		entry.Detail = err.Error()
		log.Warn("command failed", "target", cmd.target, "error", err)
	} else {
		log.Info("command succeeded", "target", cmd.target, "duration_ms", time.Since(start).Milliseconds())
		if cmd.trigger {
			s.poller.Trigger(cmd.kind)
		}
	}

	if aerr := s.audit.Append(context.WithoutCancel(ctx), entry); aerr != nil {
		log.Error("audit append failed", "error", aerr)
	}
	return err
}

func unsupported(kind backend.Kind, op string) error {
	return fmt.Errorf("%w: %s cannot %s", backend.ErrUnsupported, kind, op)
}

// ListItems returns the items kind manages.
func (s *Service) ListItems(ctx context.Context, kind backend.Kind) ([]backend.Item, error) {
	var items []backend.Item
	err := s.run(ctx, &command{action: audit.ActionList, kind: kind, trigger: true}, func() error {
		c, err := s.client(kind)
		if err != nil {
			return err
		}
		lister, ok := c.(backend.ItemLister)
		if !ok {
			return unsupported(kind, "list items")
		}
		items, err = lister.ListItems(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// AddItem adds spec to kind.
func (s *Service) AddItem(ctx context.Context, kind backend.Kind, spec backend.ItemSpec) (*backend.Item, error) {
	cmd := &command{action: audit.ActionAdd, kind: kind, detail: describeSpec(spec), trigger: true}
	var item *backend.Item
	err := s.run(ctx, cmd, func() error {
		c, err := s.client(kind)
		if err != nil {
			return err
		}
		adder, ok := c.(backend.ItemAdder)
		if !ok {
			return unsupported(kind, "add items")
		}
		item, err = adder.AddItem(ctx, spec)
		if err == nil && item != nil {
			cmd.target = item.ID
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func describeSpec(spec backend.ItemSpec) string {
	switch {
	case spec.Title != "" && spec.Year > 0:
		return fmt.Sprintf("%s (%d)", spec.Title, spec.Year)
	case spec.Title != "":
		return spec.Title
	default:
		return spec.TorrentURL
	}
}

// RemoveItem removes id from kind.
func (s *Service) RemoveItem(ctx context.Context, kind backend.Kind, id string, opts backend.RemoveOptions) error {
	cmd := &command{
		action:  audit.ActionRemove,
		kind:    kind,
		target:  id,
		detail:  fmt.Sprintf("delete_files=%t", opts.DeleteFiles),
		trigger: true,
	}
	return s.run(ctx, cmd, func() error {
		c, err := s.client(kind)
		if err != nil {
			return err
		}
		remover, ok := c.(backend.ItemRemover)
		if !ok {
			return unsupported(kind, "remove items")
		}
		return remover.RemoveItem(ctx, id, opts)
	})
}

// StartTorrent resumes a torrent.
func (s *Service) StartTorrent(ctx context.Context, id string) error {
	return s.control(ctx, audit.ActionStart, id, backend.TorrentController.StartTorrent)
}

// StopTorrent pauses a torrent.
func (s *Service) StopTorrent(ctx context.Context, id string) error {
	return s.control(ctx, audit.ActionStop, id, backend.TorrentController.StopTorrent)
}

func (s *Service) control(ctx context.Context, action, id string, fn func(backend.TorrentController, context.Context, string) error) error {
	kind := backend.KindTorrent
	return s.run(ctx, &command{action: action, kind: kind, target: id, trigger: true}, func() error {
		c, err := s.client(kind)
		if err != nil {
			return err
		}
		tc, ok := c.(backend.TorrentController)
		if !ok {
			return unsupported(kind, action+" torrents")
		}
		return fn(tc, ctx, id)
	})
}

// RootFolders returns kind's library roots.
func (s *Service) RootFolders(ctx context.Context, kind backend.Kind) ([]backend.RootFolder, error) {
	pl, err := s.profiles(kind)
	if err != nil {
		return nil, err
	}
	return pl.RootFolders(ctx)
}

// QualityProfiles returns kind's quality profiles.
func (s *Service) QualityProfiles(ctx context.Context, kind backend.Kind) ([]backend.QualityProfile, error) {
	pl, err := s.profiles(kind)
	if err != nil {
		return nil, err
	}
	return pl.QualityProfiles(ctx)
}

func (s *Service) profiles(kind backend.Kind) (backend.ProfileLister, error) {
	c, err := s.client(kind)
	if err != nil {
		return nil, err
	}
	pl, ok := c.(backend.ProfileLister)
	if !ok {
		return nil, unsupported(kind, "list profiles")
	}
	return pl, nil
}
