package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/common"
)

// BrowserStatus reports scraper browser pool readiness
type BrowserStatus interface {
	IsInitialized() bool
}

type APIHandler struct {
	browsers BrowserStatus
	logger   arbor.ILogger
}

func NewAPIHandler(browsers BrowserStatus, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		browsers: browsers,
		logger:   logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"git_commit": common.GetGitCommit(),
	})
}

// HealthHandler returns health check status
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	browsersReady := h.browsers != nil && h.browsers.IsInitialized()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"browsers_ready": browsersReady,
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
