// Package v1 implements the JSON API served by the daemon.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/vmunix/arrdash/internal/backend"
)

// Server is the v1 API server.
type Server struct {
	deps ServerDeps
}

// New creates a v1 API server.
func New(deps ServerDeps) (*Server, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingDependency, err)
	}
	return &Server{deps: deps}, nil
}

// RegisterRoutes registers API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("GET /api/v1/status", s.getStatus)
	mux.HandleFunc("GET /api/v1/dashboard", s.getDashboard)

	// Services
	mux.HandleFunc("GET /api/v1/services/{kind}/items", s.listItems)
	mux.HandleFunc("POST /api/v1/services/{kind}/items", s.addItem)
	mux.HandleFunc("DELETE /api/v1/services/{kind}/items/{id}", s.removeItem)
	mux.HandleFunc("POST /api/v1/services/{kind}/refresh", s.refresh)
	mux.HandleFunc("GET /api/v1/services/{kind}/rootfolders", s.listRootFolders)
	mux.HandleFunc("GET /api/v1/services/{kind}/qualityprofiles", s.listQualityProfiles)
	mux.HandleFunc("GET /api/v1/services/{kind}/host", s.getHostConfig)
	mux.HandleFunc("PUT /api/v1/services/{kind}/host", s.putHostConfig)
	mux.HandleFunc("POST /api/v1/services/transmission/items/{id}/start", s.startTorrent)
	mux.HandleFunc("POST /api/v1/services/transmission/items/{id}/stop", s.stopTorrent)

	// Search
	mux.HandleFunc("GET /api/v1/search", s.search)

	// Library
	mux.HandleFunc("GET /api/v1/calendar", s.calendar)
	mux.HandleFunc("GET /api/v1/diskspace", s.diskSpace)

	// History
	mux.HandleFunc("GET /api/v1/audit", s.requireAudit(s.listAudit))
	mux.HandleFunc("GET /api/v1/events", s.requireEventLog(s.listEvents))
	mux.HandleFunc("GET /api/v1/events/stream", s.requireEvents(s.streamEvents))

	// Config
	mux.HandleFunc("GET /api/v1/config", s.getConfig)
	mux.HandleFunc("PUT /api/v1/config", s.putConfig)
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// Error response
type errorResponse struct {
	Error        string `json:"error"`
	Code         string `json:"code"`
	VendorStatus int    `json:"vendor_status,omitempty"`
	VendorBody   string `json:"vendor_body,omitempty"`
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, errorResponse{Error: message, Code: errCode})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// writeBackendError maps facade errors to HTTP statuses. Vendor rejections
// carry the vendor's status and body through unchanged.
func writeBackendError(w http.ResponseWriter, err error) {
	var rejected *backend.RejectedError
	switch {
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:        err.Error(),
			Code:         "BACKEND_REJECTED",
			VendorStatus: rejected.Status,
			VendorBody:   rejected.Body,
		})
	case errors.Is(err, backend.ErrInvalidSpec):
		writeError(w, http.StatusBadRequest, "INVALID_SPEC", err.Error())
	case errors.Is(err, backend.ErrConfigMissing):
		writeError(w, http.StatusNotFound, "NOT_CONFIGURED", err.Error())
	case errors.Is(err, backend.ErrUnsupported):
		writeError(w, http.StatusMethodNotAllowed, "UNSUPPORTED", err.Error())
	case errors.Is(err, backend.ErrBackendUnreachable):
		writeError(w, http.StatusBadGateway, "BACKEND_UNREACHABLE", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

// pathKind parses the {kind} path parameter.
func pathKind(r *http.Request) (backend.Kind, error) {
	return backend.ParseKind(r.PathValue("kind"))
}

// queryInt extracts an optional integer from query string.
func queryInt(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

// queryBool extracts an optional boolean from query string.
func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}
