package v1

import (
	"context"
	"errors"

	"github.com/vmunix/arrdash/internal/audit"
	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/config"
	"github.com/vmunix/arrdash/internal/dashboard"
	"github.com/vmunix/arrdash/internal/events"
)

// ErrMissingDependency is returned when a required dependency is nil.
var ErrMissingDependency = errors.New("missing required dependency")

// Dashboard is the facade the handlers drive. Implemented by *dashboard.Service.
type Dashboard interface {
	Dashboard() dashboard.View
	Enabled() []backend.Kind
	Refresh(ctx context.Context, kind backend.Kind) (backend.Snapshot, error)
	ListItems(ctx context.Context, kind backend.Kind) ([]backend.Item, error)
	AddItem(ctx context.Context, kind backend.Kind, spec backend.ItemSpec) (*backend.Item, error)
	RemoveItem(ctx context.Context, kind backend.Kind, id string, opts backend.RemoveOptions) error
	StartTorrent(ctx context.Context, id string) error
	StopTorrent(ctx context.Context, id string) error
	RootFolders(ctx context.Context, kind backend.Kind) ([]backend.RootFolder, error)
	QualityProfiles(ctx context.Context, kind backend.Kind) ([]backend.QualityProfile, error)
	Search(ctx context.Context, term string) (*dashboard.SearchResult, error)
	Calendar(ctx context.Context, days int) (*dashboard.CalendarResult, error)
	DiskSpace(ctx context.Context) (*dashboard.DiskSpaceResult, error)
	HostConfig(ctx context.Context, kind backend.Kind) (backend.HostConfig, error)
	UpdateHostConfig(ctx context.Context, kind backend.Kind, patch backend.HostConfig) (backend.HostConfig, error)
	Services() config.ServicesConfig
	UpdateService(ctx context.Context, kind backend.Kind, sc config.ServiceConfig) error
}

// AuditReader reads the audit log.
type AuditReader interface {
	Recent(ctx context.Context, f audit.Filter) ([]audit.Entry, int, error)
}

// EventLog reads persisted service events.
type EventLog interface {
	Recent(limit int) ([]events.RawEvent, error)
	ForEntity(entityType, entityID string) ([]events.RawEvent, error)
}

// EventStream delivers live events. Implemented by *events.Bus.
type EventStream interface {
	SubscribeAll(bufferSize int) <-chan events.Event
	Unsubscribe(ch <-chan events.Event)
}

// ServerDeps contains all dependencies for the API server.
// Required dependencies must be non-nil; optional dependencies may be nil.
type ServerDeps struct {
	// Required
	Dashboard Dashboard

	// Optional (endpoints answer 503 when nil)
	Audit    AuditReader
	EventLog EventLog
	Events   EventStream
	Registry *events.Registry // decodes event payloads; raw payloads when nil

	Version string
}

// Validate checks that all required dependencies are provided.
func (d ServerDeps) Validate() error {
	if d.Dashboard == nil {
		return errors.New("dashboard is required")
	}
	return nil
}
