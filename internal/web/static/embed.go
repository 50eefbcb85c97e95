package static

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
)

//go:embed all:dist/*
var distFS embed.FS

var indexTemplate = template.Must(template.ParseFS(distFS, "dist/index.html"))

// Page controls how index.html is rendered.
type Page struct {
	// AssetPrefix is prepended to main.js and style.css, e.g. "/static/" when
	// served or "static/" for a file:// export.
	AssetPrefix string
	// Inline loads data.js from AssetPrefix instead of fetching the
	// scatterplot data from the server API.
	Inline bool
	// Vectors additionally loads vectors.js for in-browser similarity. Only
	// meaningful with Inline.
	Vectors bool
}

// GetFileSystem returns an http.FileSystem for the embedded dist directory.
func GetFileSystem() http.FileSystem {
	return http.FS(Sub())
}

// Sub returns the embedded dist directory as an fs.FS.
func Sub() fs.FS {
	fsys, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic(err)
	}
	return fsys
}

// RenderIndex writes the visualisation page.
func RenderIndex(w io.Writer, p Page) error {
	if err := indexTemplate.Execute(w, p); err != nil {
		return fmt.Errorf("rendering index: %w", err)
	}
	return nil
}

// Asset returns the content of an embedded asset such as "main.js".
func Asset(name string) ([]byte, error) {
	return fs.ReadFile(Sub(), name)
}
