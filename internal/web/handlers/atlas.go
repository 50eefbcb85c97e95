package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/kozaktomas/artmap/internal/constants"
	"github.com/kozaktomas/artmap/internal/similarity"
	"github.com/kozaktomas/artmap/internal/snapshot"
)

// AtlasHandler serves the scatterplot data and similarity queries.
type AtlasHandler struct {
	catalog *snapshot.Catalog
}

func NewAtlasHandler(catalog *snapshot.Catalog) *AtlasHandler {
	return &AtlasHandler{catalog: catalog}
}

// Points returns every record of the snapshot as scatterplot rows.
func (h *AtlasHandler) Points(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.catalog.Points())
}

// Similar returns the paths nearest to the "path" query parameter, closest
// first and including the image itself.
func (h *AtlasHandler) Similar(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, http.StatusBadRequest, "path parameter is required")
		return
	}

	k := constants.DefaultNeighbors
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > constants.MaxNeighbors {
			respondError(w, http.StatusBadRequest, "k must be an integer between 1 and "+strconv.Itoa(constants.MaxNeighbors))
			return
		}
		k = n
	}

	paths, err := h.catalog.Similarity().Nearest(path, k)
	switch {
	case errors.Is(err, similarity.ErrUnavailable):
		respondError(w, http.StatusBadRequest, "similarity search is unavailable: vectors not loaded")
	case errors.Is(err, similarity.ErrNotFound):
		respondError(w, http.StatusNotFound, "image not found: "+path)
	case err != nil:
		log.Printf("similarity query for %s failed: %v", sanitizeForLog(path), err)
		respondError(w, http.StatusInternalServerError, "similarity query failed")
	default:
		respondJSON(w, http.StatusOK, paths)
	}
}
