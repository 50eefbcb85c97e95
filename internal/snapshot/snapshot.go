// Package snapshot holds the corpus the presentation server answers from and
// swaps it as a whole on reload.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/artmap/internal/corpus"
	"github.com/kozaktomas/artmap/internal/similarity"
)

// Source provides the persisted artifacts of the latest indexing run.
// *postgres.ArtworkRepository satisfies it, as does FileSource.
type Source interface {
	LoadRecords(ctx context.Context) ([]corpus.ImageRecord, error)
	LoadVectors(ctx context.Context) (*corpus.VectorStore, error)
	LatestManifest(ctx context.Context) (*corpus.Manifest, error)
}

// FileSource reads the files written by the indexer.
type FileSource struct {
	FeaturesCSV  string
	VectorsJSON  string
	ManifestJSON string
}

func (s FileSource) LoadRecords(ctx context.Context) ([]corpus.ImageRecord, error) {
	return corpus.LoadFeatures(s.FeaturesCSV)
}

func (s FileSource) LoadVectors(ctx context.Context) (*corpus.VectorStore, error) {
	return corpus.LoadVectors(s.VectorsJSON)
}

// LatestManifest returns nil without error when no manifest was written.
func (s FileSource) LatestManifest(ctx context.Context) (*corpus.Manifest, error) {
	if s.ManifestJSON == "" {
		return nil, nil
	}
	m, err := corpus.LoadManifest(s.ManifestJSON)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return m, err
}

// Status summarises the loaded snapshot.
type Status struct {
	Records    int       `json:"records"`
	Vectors    int       `json:"vectors"`
	Similarity bool      `json:"similarity"`
	RunID      string    `json:"run_id,omitempty"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// Pinger is implemented by sources backed by a live connection, such as the
// database mirror.
type Pinger interface {
	Ping(ctx context.Context) error
}

// View is one loaded snapshot. Points and similarity always belong to the
// same load.
type View struct {
	points   []corpus.Point
	manifest *corpus.Manifest
	similar  *similarity.Service
	loadedAt time.Time
}

// Points returns the scatterplot rows. Callers must not modify the result.
func (v *View) Points() []corpus.Point {
	return v.points
}

// Similarity returns the nearest-neighbour service over this view's vectors.
func (v *View) Similarity() *similarity.Service {
	return v.similar
}

// Catalog is the read side of the server. Readers never lock; Load builds a
// new view and publishes it with a single pointer swap.
type Catalog struct {
	source  Source
	empty   *View
	current atomic.Pointer[View]
	loadMu  sync.Mutex
}

func NewCatalog(src Source) *Catalog {
	return &Catalog{
		source: src,
		empty:  &View{points: []corpus.Point{}, similar: similarity.NewService(nil)},
	}
}

// Load reads records, manifest and vectors. Records are required: without
// them Load fails and the previous view stays in place. A vector failure only
// disables similarity and is logged.
func (c *Catalog) Load(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	records, err := c.source.LoadRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}

	manifest, err := c.source.LatestManifest(ctx)
	if err != nil {
		log.Printf("Warning: failed to load manifest: %v", err)
		manifest = nil
	}

	similar := similarity.NewService(nil)
	store, err := c.source.LoadVectors(ctx)
	if err != nil {
		log.Printf("Warning: similarity search disabled: %v", err)
	} else {
		check := &corpus.Corpus{Records: records, Vectors: store}
		if verr := check.Validate(); verr != nil {
			log.Printf("Warning: records and vectors disagree: %v", verr)
		}
		similar.Set(store)
	}

	c.current.Store(&View{
		points:   corpus.Points(records),
		manifest: manifest,
		similar:  similar,
		loadedAt: time.Now().UTC(),
	})
	log.Printf("Loaded snapshot: %d records, %d vectors", len(records), similar.Len())
	return nil
}

// Current returns the loaded view, or an empty one before the first Load.
func (c *Catalog) Current() *View {
	if v := c.current.Load(); v != nil {
		return v
	}
	return c.empty
}

// Points returns the scatterplot rows of the current view.
func (c *Catalog) Points() []corpus.Point {
	return c.Current().Points()
}

// Similarity returns the nearest-neighbour service of the current view.
func (c *Catalog) Similarity() *similarity.Service {
	return c.Current().Similarity()
}

// Ping checks the source's connection. Sources without one always succeed.
func (c *Catalog) Ping(ctx context.Context) error {
	if p, ok := c.source.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Status reports what is loaded.
func (c *Catalog) Status() Status {
	v := c.Current()
	st := Status{
		Records:    len(v.points),
		Vectors:    v.similar.Len(),
		Similarity: v.similar.Available(),
		LoadedAt:   v.loadedAt,
	}
	if v.manifest != nil {
		st.RunID = v.manifest.RunID
	}
	return st
}
