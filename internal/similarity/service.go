// Package similarity answers nearest-neighbour queries over the embeddings of
// the current snapshot by exhaustive Euclidean search.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/hupe1980/vecgo/distance"

	"github.com/kozaktomas/artmap/internal/corpus"
	"github.com/kozaktomas/artmap/internal/dataset"
)

var (
	// ErrUnavailable is returned while no vector store is loaded.
	ErrUnavailable = errors.New("vector store unavailable")
	// ErrNotFound is returned for a query path that is not in the store.
	ErrNotFound = errors.New("image not found in vector store")
)

// Loader produces a vector store, typically from the vectors JSON file or
// from the database mirror.
type Loader interface {
	LoadVectors(ctx context.Context) (*corpus.VectorStore, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (*corpus.VectorStore, error)

func (f LoaderFunc) LoadVectors(ctx context.Context) (*corpus.VectorStore, error) {
	return f(ctx)
}

// FileLoader loads vectors from a JSON file written by the indexer.
func FileLoader(path string) Loader {
	return LoaderFunc(func(ctx context.Context) (*corpus.VectorStore, error) {
		return corpus.LoadVectors(path)
	})
}

// Neighbor is one ranked result.
type Neighbor struct {
	Path     string  `json:"path"`
	Distance float64 `json:"distance"`
}

type snapshot struct {
	store *corpus.VectorStore
	// normalized maps NFC keys to store positions for paths whose on-disk
	// form is not NFC.
	normalized map[string]int
}

// Service holds an immutable vector snapshot that can be swapped atomically.
// Queries never block on a reload.
type Service struct {
	loader  Loader
	current atomic.Pointer[snapshot]
}

func NewService(loader Loader) *Service {
	return &Service{loader: loader}
}

// Load reads vectors through the loader and makes them the current snapshot.
// On failure the previous snapshot, if any, stays in place.
func (s *Service) Load(ctx context.Context) error {
	if s.loader == nil {
		return fmt.Errorf("%w: no loader configured", ErrUnavailable)
	}
	store, err := s.loader.LoadVectors(ctx)
	if err != nil {
		return fmt.Errorf("failed to load vectors: %w", err)
	}
	s.Set(store)
	return nil
}

// Reload is Load under the name used by the server's reload paths.
func (s *Service) Reload(ctx context.Context) error {
	return s.Load(ctx)
}

// Set installs store as the current snapshot. A nil store makes the service
// unavailable.
func (s *Service) Set(store *corpus.VectorStore) {
	if store == nil {
		s.current.Store(nil)
		return
	}
	snap := &snapshot{store: store, normalized: make(map[string]int)}
	for i := range store.Len() {
		p, _ := store.At(i)
		if n := dataset.NormalizePath(p); n != p {
			snap.normalized[n] = i
		}
	}
	s.current.Store(snap)
}

// Available reports whether a snapshot is loaded.
func (s *Service) Available() bool {
	return s.current.Load() != nil
}

// Len returns the number of vectors in the current snapshot.
func (s *Service) Len() int {
	snap := s.current.Load()
	if snap == nil {
		return 0
	}
	return snap.store.Len()
}

// Nearest returns up to k paths closest to path, closest first. The query
// image itself is part of the ranking (distance 0).
func (s *Service) Nearest(path string, k int) ([]string, error) {
	neighbors, err := s.Neighbors(path, k)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(neighbors))
	for i, n := range neighbors {
		out[i] = n.Path
	}
	return out, nil
}

// Neighbors ranks every stored vector by Euclidean distance to the vector of
// path and returns the first k. Equal distances keep store insertion order.
func (s *Service) Neighbors(path string, k int) ([]Neighbor, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrUnavailable
	}
	query, ok := snap.lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if k <= 0 {
		return []Neighbor{}, nil
	}

	n := snap.store.Len()
	ranked := make([]Neighbor, n)
	for i := range n {
		p, vec := snap.store.At(i)
		ranked[i] = Neighbor{Path: p, Distance: squaredL2(query, vec)}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Distance < ranked[b].Distance
	})

	ranked = ranked[:min(k, n)]
	for i := range ranked {
		ranked[i].Distance = math.Sqrt(ranked[i].Distance)
	}
	return ranked, nil
}

func (s *snapshot) lookup(path string) ([]float32, bool) {
	if vec, ok := s.store.Get(path); ok {
		return vec, true
	}
	norm := dataset.NormalizePath(path)
	if vec, ok := s.store.Get(norm); ok {
		return vec, true
	}
	if i, ok := s.normalized[norm]; ok {
		_, vec := s.store.At(i)
		return vec, true
	}
	return nil, false
}

// squaredL2 treats vectors of a different length as infinitely far away so a
// corrupt entry sorts last instead of breaking the query.
func squaredL2(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	return float64(distance.SquaredL2(a, b))
}
