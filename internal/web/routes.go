package web

import (
	"bytes"
	"log"
	"net/http"

	"github.com/kozaktomas/artmap/internal/web/handlers"
	"github.com/kozaktomas/artmap/internal/web/static"
)

func (s *Server) setupRoutes() {
	atlasHandler := handlers.NewAtlasHandler(s.catalog)
	systemHandler := handlers.NewSystemHandler(s.catalog, s.Reload)

	s.router.Get("/api/v1/health", systemHandler.Health)
	s.router.Post("/api/v1/reload", systemHandler.Reload)

	// Endpoints consumed by the scatterplot.
	s.router.Get("/get_van_gogh_data", atlasHandler.Points)
	s.router.Get("/get_similar_images", atlasHandler.Similar)
	s.router.Get("/data/*", s.images.Serve)

	s.router.Handle("/static/*", http.StripPrefix("/static/", s.staticAssets()))
	s.router.Get("/", s.serveIndex)
}

// staticAssets serves the embedded frontend files.
func (s *Server) staticAssets() http.Handler {
	fileServer := http.FileServer(static.GetFileSystem())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// index.html is a template and only reachable through "/".
		if r.URL.Path == "" || r.URL.Path == "index.html" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		fileServer.ServeHTTP(w, r)
	})
}

// serveIndex renders the visualisation page, which fetches its data from the
// API endpoints.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	var page bytes.Buffer
	if err := static.RenderIndex(&page, static.Page{AssetPrefix: "/static/"}); err != nil {
		log.Printf("Error rendering index: %v", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page.Bytes())
}
