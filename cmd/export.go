package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/artmap/internal/config"
	"github.com/kozaktomas/artmap/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Build the static, server-less visualisation",
	Long: `Write index.html plus static/data.js, static/vectors.js and the frontend
assets so the scatterplot opens straight from disk. Similarity is computed
in the browser from vectors.js; without a vectors file the export still
succeeds and similarity is disabled.

Examples:
  artmap export
  artmap export --out site --copy-images`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("out", ".", "Directory for index.html; assets go to <out>/static")
	exportCmd.Flags().Bool("copy-images", false, "Copy the indexed images to <out>/data")
	exportCmd.Flags().String("data", "", "Dataset directory to copy images from (default DATA_DIR)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cmd.Flags().Changed("data") {
		cfg.Dataset.Dir = mustGetString(cmd, "data")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Building static site from %s...\n", cfg.Index.FeaturesCSV)

	res, err := export.Run(export.Options{
		FeaturesCSV: cfg.Index.FeaturesCSV,
		VectorsJSON: cfg.Index.VectorsJSON,
		OutDir:      mustGetString(cmd, "out"),
		DataDir:     cfg.Dataset.Dir,
		CopyImages:  mustGetBool(cmd, "copy-images"),
		Progress:    os.Stderr,
		Status:      out,
	})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintf(out, "Static site ready: %d records, %d vectors\n", res.Records, res.Vectors)
	if !mustGetBool(cmd, "copy-images") {
		fmt.Fprintf(out, "Images are referenced as data/<author>/<file>; place the dataset next to index.html or use --copy-images\n")
	}
	return nil
}
