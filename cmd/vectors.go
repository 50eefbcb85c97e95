package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/artmap/internal/config"
	"github.com/kozaktomas/artmap/internal/corpus"
	"github.com/kozaktomas/artmap/internal/database/postgres"
)

var vectorsCmd = &cobra.Command{
	Use:   "vectors",
	Short: "Manage the PostgreSQL mirror of the index",
}

var vectorsPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Copy the indexed snapshot into PostgreSQL",
	Long: `Load the features CSV, vectors JSON and manifest written by 'artmap index'
and replace the snapshot stored in PostgreSQL (DATABASE_URL) with them, so
'artmap serve' can run with VECTOR_SOURCE=postgres.

Examples:
  artmap vectors push`,
	RunE: runVectorsPush,
}

func init() {
	rootCmd.AddCommand(vectorsCmd)
	vectorsCmd.AddCommand(vectorsPushCmd)
}

// loadCorpusFiles assembles a corpus from the indexer artifacts. A missing
// manifest is replaced by a minimal one.
func loadCorpusFiles(cfg *config.Config) (*corpus.Corpus, error) {
	records, err := corpus.LoadFeatures(cfg.Index.FeaturesCSV)
	if err != nil {
		return nil, fmt.Errorf("failed to load features: %w", err)
	}
	vectors, err := corpus.LoadVectors(cfg.Index.VectorsJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	manifest, err := corpus.LoadManifest(cfg.Index.ManifestJSON)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("Warning: %s not found, recording a new run\n", cfg.Index.ManifestJSON)
		manifest = corpus.NewManifest(cfg.Index.Seed, cfg.Index.SamplesPerLabel, "", vectors.Dim())
		manifest.Extracted = len(records)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	return &corpus.Corpus{Records: records, Vectors: vectors, Manifest: manifest}, nil
}

func runVectorsPush(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := cmd.Context()

	c, err := loadCorpusFiles(cfg)
	if err != nil {
		return err
	}

	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := postgres.NewArtworkRepository(pool)
	if err := repo.SaveSnapshot(ctx, c); err != nil {
		return err
	}

	count, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pushed run %s: %d artworks stored\n", c.Manifest.RunID, count)
	return nil
}
