package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/artmap/internal/config"
	"github.com/kozaktomas/artmap/internal/dataset"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Prepare and inspect the painting collection",
}

var datasetPrepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Materialise the directory-per-author tree",
	Long: `Extract a downloaded .zip archive or copy a downloaded directory into the
dataset directory. A nested training/ or training/training/ level, as found
in the impressionist classifier download, is lifted to the top.

Examples:
  artmap dataset prepare --archive ~/Downloads/impressionist-classifier-data.zip
  artmap dataset prepare --source ~/.cache/kagglehub/datasets/.../versions/1`,
	RunE: runDatasetPrepare,
}

var datasetScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List authors and image counts",
	RunE:  runDatasetScan,
}

func init() {
	rootCmd.AddCommand(datasetCmd)
	datasetCmd.AddCommand(datasetPrepareCmd)
	datasetCmd.AddCommand(datasetScanCmd)

	datasetCmd.PersistentFlags().String("data", "", "Dataset directory (default DATA_DIR or ./data)")

	datasetPrepareCmd.Flags().String("archive", "", "Zip archive to extract")
	datasetPrepareCmd.Flags().String("source", "", "Directory to copy")
	datasetPrepareCmd.MarkFlagsMutuallyExclusive("archive", "source")
	datasetPrepareCmd.MarkFlagsOneRequired("archive", "source")

	datasetScanCmd.Flags().Bool("json", false, "Output as JSON")
}

func datasetDir(cmd *cobra.Command) string {
	if dir := mustGetString(cmd, "data"); dir != "" {
		return dir
	}
	return config.Load().Dataset.Dir
}

func runDatasetPrepare(cmd *cobra.Command, args []string) error {
	dest := datasetDir(cmd)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Preparing dataset in %s...\n", dest)

	res, err := dataset.Prepare(cmd.Context(), dataset.PrepareOptions{
		Archive: mustGetString(cmd, "archive"),
		Source:  mustGetString(cmd, "source"),
		Dest:    dest,
	})
	if err != nil {
		return fmt.Errorf("failed to prepare dataset: %w", err)
	}

	fmt.Fprintf(out, "Wrote %d files\n", res.Files)
	if res.Flattened != "" {
		fmt.Fprintf(out, "Moved author directories out of %s/\n", res.Flattened)
	}

	scan, err := dataset.Scan(dest)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Dataset ready: %d images from %d authors\n", len(scan.Items), len(scan.Authors))
	return nil
}

// AuthorCount is one row of the scan summary.
type AuthorCount struct {
	Author  string `json:"author"`
	ClassID int    `json:"class_id"`
	Images  int    `json:"images"`
}

func runDatasetScan(cmd *cobra.Command, args []string) error {
	scan, err := dataset.Scan(datasetDir(cmd))
	if err != nil {
		return err
	}

	counts := dataset.CountByAuthor(scan.Items)
	rows := make([]AuthorCount, 0, len(scan.Authors))
	for _, a := range scan.Authors {
		rows = append(rows, AuthorCount{Author: a, ClassID: scan.Labels[a], Images: counts[a]})
	}

	out := cmd.OutOrStdout()
	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tAUTHOR\tIMAGES")
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%s\t%d\n", r.ClassID, r.Author, r.Images)
	}
	fmt.Fprintf(w, "\t%d authors\t%d\n", len(rows), len(scan.Items))
	return w.Flush()
}
