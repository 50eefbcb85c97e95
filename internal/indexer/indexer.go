// Package indexer runs the offline pipeline: scan the dataset, sample per
// author, extract embeddings, project to 2D, cluster and persist the
// snapshot.
package indexer

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/kozaktomas/artmap/internal/cluster"
	"github.com/kozaktomas/artmap/internal/constants"
	"github.com/kozaktomas/artmap/internal/corpus"
	"github.com/kozaktomas/artmap/internal/dataset"
	"github.com/kozaktomas/artmap/internal/extractor"
	"github.com/kozaktomas/artmap/internal/projection"
)

// Options configures one run.
type Options struct {
	DataDir         string
	FeaturesCSV     string
	VectorsJSON     string
	ManifestJSON    string
	SamplesPerLabel int
	Seed            int64
	ClusterCount    int // 0 selects the number of authors
	Concurrency     int
	Progress        io.Writer // progress bar output, nil for none
	Status          io.Writer // status lines, nil for none
}

// Publisher receives the finished corpus, e.g. the database mirror.
type Publisher interface {
	SaveSnapshot(ctx context.Context, c *corpus.Corpus) error
}

// Result describes a completed run.
type Result struct {
	Corpus   *corpus.Corpus
	Scan     *dataset.ScanResult
	Failures []extractor.Failure
}

type Indexer struct {
	opts       Options
	extractor  extractor.Extractor
	publishers []Publisher
}

func New(ext extractor.Extractor, opts Options) *Indexer {
	return &Indexer{opts: opts, extractor: ext}
}

// AddPublisher registers a sink that receives the corpus after the files
// were written.
func (ix *Indexer) AddPublisher(p Publisher) {
	ix.publishers = append(ix.publishers, p)
}

func (ix *Indexer) statusf(format string, args ...any) {
	if ix.opts.Status != nil {
		fmt.Fprintf(ix.opts.Status, format, args...)
	}
}

// Run executes the pipeline. A missing dataset aborts the run; images that
// fail extraction are skipped and reported in the result.
func (ix *Indexer) Run(ctx context.Context) (*Result, error) {
	scan, err := dataset.Scan(ix.opts.DataDir)
	if err != nil {
		return nil, err
	}
	ix.statusf("Scanned %d images from %d authors\n", len(scan.Items), len(scan.Authors))

	sampled := dataset.Sample(scan.Items, ix.opts.SamplesPerLabel, ix.opts.Seed)
	ix.statusf("Sampled %d images (up to %d per author)\n", len(sampled), ix.opts.SamplesPerLabel)

	paths := make([]string, len(sampled))
	for i, it := range sampled {
		paths[i] = it.Path
	}
	run, err := extractor.Run(ctx, ix.extractor, ix.opts.DataDir, paths, extractor.RunOptions{
		Concurrency: ix.opts.Concurrency,
		Progress:    ix.opts.Progress,
	})
	if err != nil {
		return nil, fmt.Errorf("feature extraction aborted: %w", err)
	}

	records := make([]corpus.ImageRecord, 0, run.Succeeded())
	store := corpus.NewVectorStore()
	for i, it := range sampled {
		vec := run.Vectors[i]
		if vec == nil {
			continue
		}
		records = append(records, corpus.ImageRecord{
			Path:      it.Path,
			Author:    it.Author,
			ClassID:   it.ClassID,
			Embedding: vec,
		})
		store.Add(it.Path, vec)
	}
	ix.statusf("Extracted %d embeddings, %d failed\n", len(records), len(run.Failures))

	embeddings := make([][]float32, len(records))
	for i := range records {
		embeddings[i] = records[i].Embedding
	}

	if len(records) < 2 {
		ix.statusf("Warning: %d embeddings, skipping projection\n", len(records))
	}
	points, err := projection.TSNE(ctx, embeddings, projection.DefaultOptions(ix.opts.Seed))
	if err != nil {
		return nil, fmt.Errorf("projection failed: %w", err)
	}
	for i, p := range points {
		records[i].X = p.X
		records[i].Y = p.Y
	}

	k := ix.clusterCount(records)
	clusters, err := cluster.KMeans(ctx, embeddings, k, ix.opts.Seed, constants.KMeansIterations)
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}
	for i, c := range clusters {
		records[i].ClusterID = c
	}

	backbone := ix.extractor.Backbone()
	manifest := corpus.NewManifest(ix.opts.Seed, ix.opts.SamplesPerLabel, backbone.Name, backbone.Dim)
	manifest.Scanned = len(scan.Items)
	manifest.Sampled = len(sampled)
	manifest.Extracted = len(records)
	manifest.Failed = len(run.Failures)
	manifest.Clusters = min(k, len(records))
	manifest.Authors = authorsOf(records)

	c := &corpus.Corpus{Records: records, Vectors: store, Manifest: manifest}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := ix.persist(c); err != nil {
		return nil, err
	}
	for _, p := range ix.publishers {
		if err := p.SaveSnapshot(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to publish snapshot: %w", err)
		}
	}

	return &Result{Corpus: c, Scan: scan, Failures: run.Failures}, nil
}

func (ix *Indexer) clusterCount(records []corpus.ImageRecord) int {
	if ix.opts.ClusterCount > 0 {
		return ix.opts.ClusterCount
	}
	return len(authorsOf(records))
}

// persist writes features, vectors and manifest together; a failure leaves
// the previous snapshot on disk untouched.
func (ix *Indexer) persist(c *corpus.Corpus) error {
	artifacts := []corpus.Artifact{
		corpus.FeaturesArtifact(ix.opts.FeaturesCSV, c.Records),
		corpus.VectorsArtifact(ix.opts.VectorsJSON, c.Vectors),
	}
	if ix.opts.ManifestJSON != "" {
		artifacts = append(artifacts, corpus.ManifestArtifact(ix.opts.ManifestJSON, c.Manifest))
	}
	if err := corpus.WriteArtifacts(artifacts...); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	ix.statusf("Features saved to: %s\n", ix.opts.FeaturesCSV)
	ix.statusf("Vectors saved to: %s\n", ix.opts.VectorsJSON)
	return nil
}

func authorsOf(records []corpus.ImageRecord) []string {
	seen := make(map[string]struct{})
	var authors []string
	for _, r := range records {
		if _, ok := seen[r.Author]; !ok {
			seen[r.Author] = struct{}{}
			authors = append(authors, r.Author)
		}
	}
	sort.Strings(authors)
	return authors
}
