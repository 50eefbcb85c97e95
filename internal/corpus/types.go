// Package corpus holds the data model shared by the indexer, the similarity
// service and the presentation layer, together with its on-disk formats.
package corpus

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImageRecord is one sampled image of an indexing run.
type ImageRecord struct {
	Path      string // author-dir/filename, forward slashes
	Author    string
	ClassID   int // 1-based, first-seen order within one scan
	ClusterID int // 0-based k-means cluster
	X         float64
	Y         float64
	Embedding []float32 // not persisted in the tabular output
}

// ClassName returns the class label of the record; it is the author.
func (r ImageRecord) ClassName() string {
	return r.Author
}

// ImageURL returns the URL under which the image is served relative to the
// site root. Each path segment is escaped.
func (r ImageRecord) ImageURL() string {
	segments := strings.Split(r.Path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "data/" + strings.Join(segments, "/")
}

// Manifest describes one indexing run.
type Manifest struct {
	RunID           string    `json:"run_id"`
	CreatedAt       time.Time `json:"created_at"`
	Seed            int64     `json:"seed"`
	SamplesPerLabel int       `json:"samples_per_label"`
	Backbone        string    `json:"backbone"`
	Dim             int       `json:"dim"`
	Scanned         int       `json:"scanned"`
	Sampled         int       `json:"sampled"`
	Extracted       int       `json:"extracted"`
	Failed          int       `json:"failed"`
	Clusters        int       `json:"clusters"`
	Authors         []string  `json:"authors"`
}

// NewManifest returns a manifest with a fresh run id.
func NewManifest(seed int64, samplesPerLabel int, backbone string, dim int) *Manifest {
	return &Manifest{
		RunID:           uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		Seed:            seed,
		SamplesPerLabel: samplesPerLabel,
		Backbone:        backbone,
		Dim:             dim,
	}
}

// Corpus is the immutable output of one indexing run.
type Corpus struct {
	Records  []ImageRecord
	Vectors  *VectorStore
	Manifest *Manifest
}

// Validate checks that records and vectors describe the same set of images.
func (c *Corpus) Validate() error {
	if c.Vectors == nil {
		return fmt.Errorf("corpus has no vector store")
	}
	if len(c.Records) != c.Vectors.Len() {
		return fmt.Errorf("corpus has %d records but %d vectors", len(c.Records), c.Vectors.Len())
	}
	seen := make(map[string]struct{}, len(c.Records))
	for _, r := range c.Records {
		if _, dup := seen[r.Path]; dup {
			return fmt.Errorf("duplicate record %s", r.Path)
		}
		seen[r.Path] = struct{}{}
		if _, ok := c.Vectors.Get(r.Path); !ok {
			return fmt.Errorf("record %s has no vector", r.Path)
		}
	}
	return nil
}
