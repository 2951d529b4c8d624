package v1

import (
	"encoding/json"

	"github.com/vmunix/arrdash/internal/audit"
	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/config"
)

// statusResponse is the response for GET /status.
type statusResponse struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	Services []backend.Kind `json:"services"`
}

// listItemsResponse is the response for GET /services/{kind}/items.
type listItemsResponse struct {
	Kind  backend.Kind   `json:"kind"`
	Items []backend.Item `json:"items"`
	Total int            `json:"total"`
}

type listRootFoldersResponse struct {
	Items []backend.RootFolder `json:"items"`
}

type listQualityProfilesResponse struct {
	Items []backend.QualityProfile `json:"items"`
}

// hostConfigResponse is the response for GET and PUT /services/{kind}/host.
// Secrets are masked.
type hostConfigResponse struct {
	Kind     backend.Kind       `json:"kind"`
	Settings backend.HostConfig `json:"settings"`
}

// listAuditResponse is the response for GET /audit.
type listAuditResponse struct {
	Items  []audit.Entry `json:"items"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// EventResponse is one persisted event.
type EventResponse struct {
	ID         int64  `json:"id"`
	EventType  string `json:"event_type"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	OccurredAt string `json:"occurred_at"`
	Data       any    `json:"data,omitempty"`
}

type listEventsResponse struct {
	Items []EventResponse `json:"items"`
	Total int             `json:"total"`
}

// configResponse is the response for GET and PUT /config. Secrets are masked.
type configResponse struct {
	Services config.ServicesConfig `json:"services"`
}

// updateConfigRequest is the body of PUT /config. Only the listed services
// are changed.
type updateConfigRequest struct {
	Services map[string]config.ServiceConfig `json:"services"`
}

// rawPayload keeps an undecodable event payload as JSON.
func rawPayload(s string) any {
	if !json.Valid([]byte(s)) {
		return s
	}
	return json.RawMessage(s)
}
