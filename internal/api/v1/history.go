package v1

import (
	"net/http"
	"time"

	"github.com/vmunix/arrdash/internal/audit"
	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/events"
)

const maxLimit = 1000

func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit < 0 || offset < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PAGINATION", "limit and offset must be non-negative")
		return
	}
	limit = min(limit, maxLimit)

	f := audit.Filter{Limit: limit, Offset: offset}
	if k := r.URL.Query().Get("kind"); k != "" {
		kind, err := backend.ParseKind(k)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
			return
		}
		f.TargetKind = string(kind)
	}
	switch o := audit.Outcome(r.URL.Query().Get("outcome")); o {
	case "", audit.OutcomeSuccess, audit.OutcomeFailure:
		f.Outcome = o
	default:
		writeError(w, http.StatusBadRequest, "INVALID_OUTCOME", "outcome must be success or failure")
		return
	}

	entries, total, err := s.deps.Audit.Recent(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "AUDIT_ERROR", err.Error())
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, listAuditResponse{Items: entries, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PAGINATION", "limit must be non-negative")
		return
	}
	limit = min(limit, maxLimit)

	var (
		raw []events.RawEvent
		err error
	)
	if k := r.URL.Query().Get("kind"); k != "" {
		kind, perr := backend.ParseKind(k)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "INVALID_KIND", perr.Error())
			return
		}
		raw, err = s.deps.EventLog.ForEntity(events.EntityService, string(kind))
	} else {
		raw, err = s.deps.EventLog.Recent(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "EVENT_ERROR", err.Error())
		return
	}

	resp := listEventsResponse{Items: make([]EventResponse, len(raw)), Total: len(raw)}
	for i, e := range raw {
		resp.Items[i] = EventResponse{
			ID:         e.ID,
			EventType:  e.EventType,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			OccurredAt: e.OccurredAt.Format(time.RFC3339),
			Data:       s.decodeEvent(e),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeEvent(e events.RawEvent) any {
	if s.deps.Registry != nil {
		if ev, err := s.deps.Registry.Unmarshal(e); err == nil {
			return ev
		}
	}
	return rawPayload(e.Payload)
}
