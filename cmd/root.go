package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "artmap",
	Short: "Map a painting collection by visual similarity",
	Long: `Artmap embeds a directory-per-author painting collection with a frozen
pretrained network, lays the embeddings out in 2D with t-SNE and serves an
interactive scatterplot with nearest-neighbour lookup, either from a resident
web server or as a static bundle that opens without a server.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
