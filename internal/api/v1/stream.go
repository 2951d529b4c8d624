package v1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vmunix/arrdash/internal/backend"
)

const streamBuffer = 64

// streamEvents writes live bus events as server-sent events until the client
// goes away or the bus closes. ?kind= limits the stream to one service plus
// service-set changes.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	var only string
	if k := r.URL.Query().Get("kind"); k != "" {
		kind, err := backend.ParseKind(k)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
			return
		}
		only = string(kind)
	}

	rc := http.NewResponseController(w)
	ch := s.deps.Events.SubscribeAll(streamBuffer)
	defer s.deps.Events.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if only != "" && e.EntityID() != only && e.EntityID() != "*" {
				continue
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.EventType(), data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
