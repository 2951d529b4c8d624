package v1

import (
	"encoding/json"
	"net/http"

	"github.com/vmunix/arrdash/internal/backend"
)

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	enabled := s.deps.Dashboard.Enabled()
	if enabled == nil {
		enabled = []backend.Kind{}
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:   "ok",
		Version:  s.deps.Version,
		Services: enabled,
	})
}

func (s *Server) getDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Dashboard.Dashboard())
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}

	items, err := s.deps.Dashboard.ListItems(r.Context(), kind)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	if items == nil {
		items = []backend.Item{}
	}
	writeJSON(w, http.StatusOK, listItemsResponse{Kind: kind, Items: items, Total: len(items)})
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}

	var spec backend.ItemSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	item, err := s.deps.Dashboard.AddItem(r.Context(), kind, spec)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}
	id := r.PathValue("id")

	opts := backend.RemoveOptions{DeleteFiles: queryBool(r, "delete_files")}
	if err := s.deps.Dashboard.RemoveItem(r.Context(), kind, id, opts); err != nil {
		writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}

	snap, err := s.deps.Dashboard.Refresh(r.Context(), kind)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) listRootFolders(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}

	folders, err := s.deps.Dashboard.RootFolders(r.Context(), kind)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	if folders == nil {
		folders = []backend.RootFolder{}
	}
	writeJSON(w, http.StatusOK, listRootFoldersResponse{Items: folders})
}

func (s *Server) listQualityProfiles(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}

	profiles, err := s.deps.Dashboard.QualityProfiles(r.Context(), kind)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	if profiles == nil {
		profiles = []backend.QualityProfile{}
	}
	writeJSON(w, http.StatusOK, listQualityProfilesResponse{Items: profiles})
}

func (s *Server) startTorrent(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Dashboard.StartTorrent(r.Context(), r.PathValue("id")); err != nil {
		writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) stopTorrent(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Dashboard.StopTorrent(r.Context(), r.PathValue("id")); err != nil {
		writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	if term == "" {
		writeError(w, http.StatusBadRequest, "MISSING_TERM", "term is required")
		return
	}

	res, err := s.deps.Dashboard.Search(r.Context(), term)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getHostConfig(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}

	cfg, err := s.deps.Dashboard.HostConfig(r.Context(), kind)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hostConfigResponse{Kind: kind, Settings: cfg})
}

func (s *Server) putHostConfig(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}

	var patch backend.HostConfig
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	cfg, err := s.deps.Dashboard.UpdateHostConfig(r.Context(), kind, patch)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hostConfigResponse{Kind: kind, Settings: cfg})
}

func (s *Server) calendar(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 0)
	res, err := s.deps.Dashboard.Calendar(r.Context(), days)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) diskSpace(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Dashboard.DiskSpace(r.Context())
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
