package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/kozaktomas/artmap/internal/snapshot"
)

// SystemHandler exposes health and reload endpoints.
type SystemHandler struct {
	catalog *snapshot.Catalog
	reload  func(ctx context.Context) error
}

// NewSystemHandler creates a handler; reload is invoked by POST /reload.
func NewSystemHandler(catalog *snapshot.Catalog, reload func(ctx context.Context) error) *SystemHandler {
	return &SystemHandler{catalog: catalog, reload: reload}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string          `json:"status"`
	Snapshot snapshot.Status `json:"snapshot"`
	Error    string          `json:"error,omitempty"`
}

// Health handles the health check endpoint. An unreachable snapshot source
// (the database mirror) answers 503 while the loaded view keeps serving.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Snapshot: h.catalog.Status()}
	if err := h.catalog.Ping(r.Context()); err != nil {
		log.Printf("Health check: snapshot source unreachable: %v", err)
		resp.Status = "degraded"
		resp.Error = "snapshot source unreachable"
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Reload reloads the snapshot from its source.
func (h *SystemHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.reload(r.Context()); err != nil {
		log.Printf("Reload failed: %v", err)
		respondError(w, http.StatusInternalServerError, "reload failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "reloaded", Snapshot: h.catalog.Status()})
}
