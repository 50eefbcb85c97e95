package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/artmap/internal/config"
	"github.com/kozaktomas/artmap/internal/database/postgres"
	"github.com/kozaktomas/artmap/internal/snapshot"
	"github.com/kozaktomas/artmap/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the artmap web server.

The server loads the features and vectors written by 'artmap index' once at
startup and serves the scatterplot, the raw images and nearest-neighbour
queries. Without vectors the server still starts; only similarity is
disabled. Send SIGHUP or POST /api/v1/reload to pick up a new index.

Examples:
  artmap serve
  artmap serve --port 8080 --host 0.0.0.0
  VECTOR_SOURCE=postgres artmap serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default WEB_PORT or 5001)")
	serveCmd.Flags().String("host", "", "Host to bind to (default WEB_HOST or 127.0.0.1)")
	serveCmd.Flags().String("data", "", "Dataset directory images are served from (default DATA_DIR)")
	serveCmd.Flags().String("vector-source", "", "Snapshot source: file or postgres (default VECTOR_SOURCE)")
}

// resolveServeConfig applies flags the user set on top of the environment.
func resolveServeConfig(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if flags.Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
	if flags.Changed("data") {
		cfg.Dataset.Dir = mustGetString(cmd, "data")
	}
	if flags.Changed("vector-source") {
		cfg.Web.VectorSource = mustGetString(cmd, "vector-source")
	}
}

// openSource returns the snapshot source selected by cfg.Web.VectorSource and
// a cleanup function.
func openSource(ctx context.Context, cfg *config.Config) (snapshot.Source, func(), error) {
	switch cfg.Web.VectorSource {
	case "file", "":
		return snapshot.FileSource{
			FeaturesCSV:  cfg.Index.FeaturesCSV,
			VectorsJSON:  cfg.Index.VectorsJSON,
			ManifestJSON: cfg.Index.ManifestJSON,
		}, func() {}, nil
	case "postgres":
		pool, err := openDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		fmt.Printf("Using PostgreSQL snapshot\n")
		return postgres.NewArtworkRepository(pool), func() { pool.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown VECTOR_SOURCE %q (expected file or postgres)", cfg.Web.VectorSource)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeConfig(cmd, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	catalog := snapshot.NewCatalog(src)
	if err := catalog.Load(ctx); err != nil {
		return err
	}
	if !catalog.Similarity().Available() {
		fmt.Printf("Warning: vectors not loaded, /get_similar_images will answer 400\n")
	}

	server := web.NewServer(cfg, catalog)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	go func() {
		for sig := range sigChan {
			if sig == syscall.SIGHUP {
				fmt.Println("Reloading snapshot...")
				if err := server.Reload(ctx); err != nil {
					fmt.Printf("Warning: reload failed, keeping previous snapshot: %v\n", err)
				}
				continue
			}

			fmt.Println("\nShutting down...")
			shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
			if err := server.Shutdown(shutdownCtx); err != nil {
				fmt.Printf("Error during shutdown: %v\n", err)
			}
			shutdownCancel()
			return
		}
	}()

	fmt.Printf("Starting artmap on http://%s\n", server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
