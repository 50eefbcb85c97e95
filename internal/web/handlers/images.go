package handlers

import (
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/artmap/internal/dataset"
)

// ImagesHandler serves raw image bytes from the dataset directory.
type ImagesHandler struct {
	root *os.Root
}

// NewImagesHandler opens dir as the image root. A missing directory is
// logged and every request answers 404.
func NewImagesHandler(dir string) *ImagesHandler {
	root, err := os.OpenRoot(dir)
	if err != nil {
		log.Printf("Warning: dataset directory unavailable, images will not be served: %v", err)
		return &ImagesHandler{}
	}
	return &ImagesHandler{root: root}
}

// Close releases the dataset root.
func (h *ImagesHandler) Close() error {
	if h.root == nil {
		return nil
	}
	return h.root.Close()
}

// Serve handles GET /data/*. Paths leaving the dataset root, directories and
// missing files all answer 404.
func (h *ImagesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	if h.root == nil || name == "" {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}

	f, err := h.root.Open(name)
	if err != nil {
		// Filenames may be stored decomposed or composed depending on the
		// filesystem the dataset came from.
		if alt := dataset.NormalizePath(name); alt != name {
			f, err = h.root.Open(alt)
		}
	}
	if err != nil {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}

	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
