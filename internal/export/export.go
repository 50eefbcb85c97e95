// Package export builds a server-less copy of the visualisation that opens
// straight from disk.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/artmap/internal/corpus"
	"github.com/kozaktomas/artmap/internal/web/static"
)

// Options configures an export.
type Options struct {
	FeaturesCSV string
	VectorsJSON string
	OutDir      string // index.html goes here, assets under OutDir/static
	DataDir     string // dataset root, used when CopyImages is set
	CopyImages  bool
	Progress    io.Writer // image copy progress, nil for none
	Status      io.Writer // status lines, nil for none
}

// Result summarises what was written.
type Result struct {
	Records        int
	Vectors        int
	VectorsSkipped bool
	ImagesCopied   int
}

const staticDir = "static"

func statusf(w io.Writer, format string, args ...any) {
	if w != nil {
		fmt.Fprintf(w, format, args...)
	}
}

// Run writes data.js, vectors.js, main.js, style.css and index.html. Missing
// features are an error; missing vectors only disable similarity in the
// exported page.
func Run(opts Options) (*Result, error) {
	records, err := corpus.LoadFeatures(opts.FeaturesCSV)
	if err != nil {
		return nil, err
	}

	assets := filepath.Join(opts.OutDir, staticDir)
	if err := os.MkdirAll(assets, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	res := &Result{Records: len(records)}

	dataJS := filepath.Join(assets, "data.js")
	if err := writeJS(dataJS, "GLOBAL_DATA", corpus.Points(records), true); err != nil {
		return nil, err
	}
	statusf(opts.Status, "Generated %s\n", dataJS)

	vectors, err := corpus.LoadVectors(opts.VectorsJSON)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		res.VectorsSkipped = true
		statusf(opts.Status, "Warning: %s not found, similarity will be unavailable\n", opts.VectorsJSON)
		if err := os.Remove(filepath.Join(assets, "vectors.js")); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale vectors.js: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		vectorsJS := filepath.Join(assets, "vectors.js")
		if err := writeJS(vectorsJS, "GLOBAL_VECTORS", vectors, false); err != nil {
			return nil, err
		}
		res.Vectors = vectors.Len()
		statusf(opts.Status, "Generated %s\n", vectorsJS)
	}

	for _, name := range []string{"main.js", "style.css"} {
		content, err := static.Asset(name)
		if err != nil {
			return nil, fmt.Errorf("reading embedded %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(assets, name), content, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	var page bytes.Buffer
	if err := static.RenderIndex(&page, static.Page{
		AssetPrefix: staticDir + "/",
		Inline:      true,
		Vectors:     !res.VectorsSkipped,
	}); err != nil {
		return nil, err
	}
	index := filepath.Join(opts.OutDir, "index.html")
	if err := os.WriteFile(index, page.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("failed to write index.html: %w", err)
	}
	statusf(opts.Status, "Generated %s\n", index)

	if opts.CopyImages {
		n, err := copyImages(opts, records)
		if err != nil {
			return nil, err
		}
		res.ImagesCopied = n
		statusf(opts.Status, "Copied %d images to %s\n", n, filepath.Join(opts.OutDir, "data"))
	}

	return res, nil
}

// writeJS writes "window.<name> = <json>;" without HTML escaping.
func writeJS(dest, name string, v any, indent bool) error {
	var buf bytes.Buffer
	buf.WriteString("window." + name + " = ")
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	out = append(out, ';')
	if err := os.WriteFile(dest, out, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}

// copyImages copies every record's image below OutDir/data so the page's
// relative image URLs resolve. Reads go through an os.Root so paths cannot
// leave the dataset.
func copyImages(opts Options, records []corpus.ImageRecord) (int, error) {
	src, err := os.OpenRoot(opts.DataDir)
	if err != nil {
		return 0, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer src.Close()

	destDir := filepath.Join(opts.OutDir, "data")
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create image directory: %w", err)
	}
	dst, err := os.OpenRoot(destDir)
	if err != nil {
		return 0, fmt.Errorf("failed to open image directory: %w", err)
	}
	defer dst.Close()

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(records),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("Copying images"),
			progressbar.OptionShowCount(),
			progressbar.OptionFullWidth(),
		)
	} else {
		bar = progressbar.DefaultSilent(int64(len(records)))
	}

	copied := 0
	for _, r := range records {
		if err := copyOne(src, dst, r.Path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to copy %s: %v\n", r.Path, err)
		} else {
			copied++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	return copied, nil
}

func copyOne(src, dst *os.Root, rel string) error {
	in, err := src.Open(rel)
	if err != nil {
		return err
	}
	defer in.Close()

	if dir := path.Dir(rel); dir != "." {
		if err := dst.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	out, err := dst.Create(rel)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
