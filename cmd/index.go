package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/artmap/internal/config"
	"github.com/kozaktomas/artmap/internal/database/postgres"
	"github.com/kozaktomas/artmap/internal/extractor"
	"github.com/kozaktomas/artmap/internal/indexer"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed, project and cluster the dataset",
	Long: `Scan the dataset (one directory per author), sample up to N images per
author, extract an embedding for each sampled image, project the embeddings
to 2D with t-SNE and cluster them with k-means.

Writes the features CSV, the vectors JSON and a run manifest. Images that
fail extraction are skipped with a warning.

Examples:
  # Index with the defaults (28 per author, seed 42, HTTP embedding service)
  artmap index

  # Use the built-in DCT descriptor, no model needed
  artmap index --extractor dct

  # Index everything and mirror the snapshot into PostgreSQL
  artmap index --samples-per-label 0 --push`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().String("data", "", "Dataset directory (default DATA_DIR or ./data)")
	indexCmd.Flags().Int("samples-per-label", 0, "Images sampled per author, 0 keeps SAMPLES_PER_LABEL")
	indexCmd.Flags().Bool("all", false, "Index every image instead of sampling")
	indexCmd.Flags().Int64("seed", 0, "Random seed (default RANDOM_SEED or 42)")
	indexCmd.Flags().Int("clusters", 0, "Number of k-means clusters (default CLUSTER_COUNT or number of authors)")
	indexCmd.Flags().Int("concurrency", 0, "Parallel extraction workers (default EXTRACT_CONCURRENCY or 1)")
	indexCmd.Flags().String("extractor", "", "Extractor backend: http, onnx or dct (default EXTRACTOR)")
	indexCmd.Flags().String("backbone", "", "Backbone name (default EMBEDDING_BACKBONE)")
	indexCmd.Flags().Float64("rate-limit", 0, "Embedding service requests per second, 0 for unlimited (default EMBEDDING_RATE_LIMIT)")
	indexCmd.Flags().Bool("push", false, "Mirror the snapshot into PostgreSQL (DATABASE_URL)")
	indexCmd.Flags().Bool("quiet", false, "Hide the progress bar")
}

// applyIndexFlags overrides config values with flags the user set.
func applyIndexFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.Dataset.Dir = mustGetString(cmd, "data")
	}
	if flags.Changed("samples-per-label") {
		n := mustGetInt(cmd, "samples-per-label")
		if n < 1 {
			return errors.New("--samples-per-label must be positive, use --all to disable sampling")
		}
		cfg.Index.SamplesPerLabel = n
	}
	if mustGetBool(cmd, "all") {
		cfg.Index.SamplesPerLabel = 0
	}
	if flags.Changed("seed") {
		cfg.Index.Seed = mustGetInt64(cmd, "seed")
	}
	if flags.Changed("clusters") {
		cfg.Index.ClusterCount = mustGetInt(cmd, "clusters")
	}
	if flags.Changed("concurrency") {
		cfg.Index.Concurrency = mustGetInt(cmd, "concurrency")
	}
	if flags.Changed("extractor") {
		cfg.Embedding.Extractor = mustGetString(cmd, "extractor")
	}
	if flags.Changed("backbone") {
		cfg.Embedding.Backbone = mustGetString(cmd, "backbone")
	}
	if flags.Changed("rate-limit") {
		cfg.Embedding.RateLimit = mustGetFloat64(cmd, "rate-limit")
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := applyIndexFlags(cmd, cfg); err != nil {
		return err
	}

	ext, err := extractor.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}
	if closer, ok := ext.(io.Closer); ok {
		defer closer.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()

	out := cmd.OutOrStdout()
	opts := indexer.Options{
		DataDir:         cfg.Dataset.Dir,
		FeaturesCSV:     cfg.Index.FeaturesCSV,
		VectorsJSON:     cfg.Index.VectorsJSON,
		ManifestJSON:    cfg.Index.ManifestJSON,
		SamplesPerLabel: cfg.Index.SamplesPerLabel,
		Seed:            cfg.Index.Seed,
		ClusterCount:    cfg.Index.ClusterCount,
		Concurrency:     cfg.Index.Concurrency,
		Status:          out,
	}
	if !mustGetBool(cmd, "quiet") {
		opts.Progress = os.Stderr
	}
	ix := indexer.New(ext, opts)

	if mustGetBool(cmd, "push") {
		pool, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		ix.AddPublisher(postgres.NewArtworkRepository(pool))
	}

	backbone := ext.Backbone()
	fmt.Fprintf(out, "Indexing %s with %s extractor (backbone %s, dim %d)\n",
		cfg.Dataset.Dir, cfg.Embedding.Extractor, backbone.Name, backbone.Dim)

	start := time.Now()
	res, err := ix.Run(ctx)
	if err != nil {
		return err
	}

	m := res.Corpus.Manifest
	fmt.Fprintf(out, "\nIndexing complete in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "  Run:       %s\n", m.RunID)
	fmt.Fprintf(out, "  Authors:   %d\n", len(m.Authors))
	fmt.Fprintf(out, "  Images:    %d extracted, %d failed\n", m.Extracted, m.Failed)
	fmt.Fprintf(out, "  Clusters:  %d\n", m.Clusters)
	return nil
}

// openDatabase connects to DATABASE_URL and applies migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*postgres.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return pool, nil
}
