package events

import (
	"time"

	"github.com/vmunix/arrdash/internal/backend"
)

// EntityService is the entity type of every service event.
const EntityService = "service"

// Event type constants
const (
	EventSnapshotUpdated  = "snapshot.updated"
	EventBackendDown      = "backend.down"
	EventBackendRecovered = "backend.recovered"
	EventServicesReloaded = "services.reloaded"
)

// SnapshotUpdated is emitted after every stored poll cycle. It is high
// volume and not persisted.
type SnapshotUpdated struct {
	BaseEvent
	Kind      backend.Kind `json:"kind"`
	Reachable bool         `json:"reachable"`
	LatencyMS int64        `json:"latency_ms"`
}

func (*SnapshotUpdated) Transient() bool { return true }

// NewSnapshotUpdated builds the event for snap.
func NewSnapshotUpdated(snap backend.Snapshot) *SnapshotUpdated {
	return &SnapshotUpdated{
		BaseEvent: NewBaseEvent(EventSnapshotUpdated, EntityService, string(snap.Kind), snap.FetchedAt),
		Kind:      snap.Kind,
		Reachable: snap.Reachable,
		LatencyMS: snap.Latency.Milliseconds(),
	}
}

// BackendDown is emitted when a reachable (or never polled) service fails a cycle.
type BackendDown struct {
	BaseEvent
	Kind  backend.Kind `json:"kind"`
	Error string       `json:"error"`
}

// NewBackendDown builds the event for a failed snapshot.
func NewBackendDown(snap backend.Snapshot) *BackendDown {
	return &BackendDown{
		BaseEvent: NewBaseEvent(EventBackendDown, EntityService, string(snap.Kind), snap.FetchedAt),
		Kind:      snap.Kind,
		Error:     snap.ErrorDetail,
	}
}

// BackendRecovered is emitted when a down service answers again.
type BackendRecovered struct {
	BaseEvent
	Kind     backend.Kind `json:"kind"`
	Version  string       `json:"version,omitempty"`
	Downtime string       `json:"downtime"`
}

// NewBackendRecovered builds the event for snap after being down since downSince.
func NewBackendRecovered(snap backend.Snapshot, downSince time.Time) *BackendRecovered {
	return &BackendRecovered{
		BaseEvent: NewBaseEvent(EventBackendRecovered, EntityService, string(snap.Kind), snap.FetchedAt),
		Kind:      snap.Kind,
		Version:   snap.Version,
		Downtime:  snap.FetchedAt.Sub(downSince).Round(time.Second).String(),
	}
}

// ServicesReloaded is emitted when the set of polled services changes.
type ServicesReloaded struct {
	BaseEvent
	Enabled []backend.Kind `json:"enabled"`
}

// NewServicesReloaded builds the event.
func NewServicesReloaded(enabled []backend.Kind, at time.Time) *ServicesReloaded {
	return &ServicesReloaded{
		BaseEvent: NewBaseEvent(EventServicesReloaded, EntityService, "*", at),
		Enabled:   enabled,
	}
}
