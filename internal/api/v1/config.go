package v1

import (
	"encoding/json"
	"net/http"

	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/config"
)

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, configResponse{Services: s.deps.Dashboard.Services()})
}

func (s *Server) putConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if len(req.Services) == 0 {
		writeError(w, http.StatusBadRequest, "EMPTY_UPDATE", "no services in request")
		return
	}

	updates := make(map[backend.Kind]config.ServiceConfig, len(req.Services))
	for name, sc := range req.Services {
		kind, err := backend.ParseKind(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
			return
		}
		updates[kind] = sc
	}

	for _, kind := range backend.Kinds {
		sc, ok := updates[kind]
		if !ok {
			continue
		}
		if err := s.deps.Dashboard.UpdateService(r.Context(), kind, sc); err != nil {
			writeBackendError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, configResponse{Services: s.deps.Dashboard.Services()})
}
