package cmd

import (
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/artmap/internal/config"
	"github.com/kozaktomas/artmap/internal/constants"
	"github.com/kozaktomas/artmap/internal/dataset"
	"github.com/kozaktomas/artmap/internal/similarity"
)

var similarCmd = &cobra.Command{
	Use:   "similar <image-path>",
	Short: "Find the paintings closest to an indexed image",
	Long: `Rank every indexed image by Euclidean distance to the embedding of the
given image (a path such as vanGogh/starry-night.jpg, as written in the
features CSV) and print the closest ones. The image itself is included with
distance 0.

Examples:
  artmap similar vanGogh/starry-night.jpg
  artmap similar vanGogh/starry-night.jpg -k 10 --json

  # Closest paintings by a given author (diacritics and case ignored)
  artmap similar vanGogh/starry-night.jpg --author monet`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func init() {
	rootCmd.AddCommand(similarCmd)

	similarCmd.Flags().IntP("limit", "k", constants.DefaultNeighbors, "Number of results")
	similarCmd.Flags().StringSlice("author", nil, "Only list paintings by these authors")
	similarCmd.Flags().String("vector-source", "", "Snapshot source: file or postgres (default VECTOR_SOURCE)")
	similarCmd.Flags().Bool("json", false, "Output as JSON")
}

func runSimilar(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cmd.Flags().Changed("vector-source") {
		cfg.Web.VectorSource = mustGetString(cmd, "vector-source")
	}
	k := mustGetInt(cmd, "limit")
	if k < 1 || k > constants.MaxNeighbors {
		return fmt.Errorf("--limit must be between 1 and %d", constants.MaxNeighbors)
	}

	ctx := cmd.Context()
	src, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	svc := similarity.NewService(src)
	if err := svc.Load(ctx); err != nil {
		return err
	}

	authors := mustGetStringSlice(cmd, "author")
	limit := k
	if len(authors) > 0 {
		limit = svc.Len()
	}
	neighbors, err := svc.Neighbors(args[0], limit)
	if err != nil {
		return err
	}
	if len(authors) > 0 {
		neighbors = filterByAuthor(neighbors, authors, k)
	}

	out := cmd.OutOrStdout()
	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(neighbors)
	}

	if len(neighbors) == 0 {
		fmt.Fprintln(out, "No matching images")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tDISTANCE\tPATH")
	for i, n := range neighbors {
		fmt.Fprintf(w, "%d\t%.4f\t%s\n", i+1, n.Distance, n.Path)
	}
	return w.Flush()
}

// filterByAuthor keeps up to k neighbours whose author directory matches one
// of the queries.
func filterByAuthor(neighbors []similarity.Neighbor, queries []string, k int) []similarity.Neighbor {
	var known []string
	for _, n := range neighbors {
		if a := path.Dir(n.Path); !slices.Contains(known, a) {
			known = append(known, a)
		}
	}
	var wanted []string
	for _, q := range queries {
		wanted = append(wanted, dataset.MatchAuthors(q, known)...)
	}

	out := make([]similarity.Neighbor, 0, k)
	for _, n := range neighbors {
		if len(out) == k {
			break
		}
		if slices.Contains(wanted, path.Dir(n.Path)) {
			out = append(out, n)
		}
	}
	return out
}
