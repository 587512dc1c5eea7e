package api

import (
	"encoding/json/v2"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shelfsyncapp/shelfsync-server/internal/cache"
	"github.com/shelfsyncapp/shelfsync-server/internal/http/response"
)

// handleHealthCheck reports daemon liveness.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{"status": "ok"}, s.logger)
}

// handleSyncStatus returns the session state, last sync time, cache version,
// and connectivity flags.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	response.Success(w, s.session.CurrentStatus(), s.logger)
}

// handleForceResync runs a full merge-and-push cycle and returns the
// resulting status.
func (s *Server) handleForceResync(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ForceResync(r.Context()); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, s.session.CurrentStatus(), s.logger)
}

type setOnlineRequest struct {
	Online bool `json:"online"`
}

// handleSetOnline feeds a connectivity transition to the offline monitor.
// Going online with pending changes runs the catch-up sync inline.
func (s *Server) handleSetOnline(w http.ResponseWriter, r *http.Request) {
	var req setOnlineRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body", s.logger)
		return
	}

	s.session.Monitor().SetOnline(r.Context(), req.Online)
	response.Success(w, s.session.CurrentStatus(), s.logger)
}

type invalidateCacheRequest struct {
	Scope string `json:"scope"`
}

// handleInvalidateCache invalidates caches for the given typed scope.
func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateCacheRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body", s.logger)
		return
	}

	if err := s.session.InvalidateCache(cache.Scope(req.Scope)); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]uint64{"cache_version": s.session.Caches().Version()}, s.logger)
}

// handleCatalogSearch proxies a catalog search through the rate-limited,
// cached client.
func (s *Server) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	result, err := s.catalog.Search(r.Context(), query, limit, offset)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, result, s.logger)
}

// handleCatalogList serves the curated list of works for a subject slug.
func (s *Server) handleCatalogList(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "subject")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := s.catalog.Subject(r.Context(), slug, limit)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, list, s.logger)
}
