package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/recallapp/recall/internal/config"
	"github.com/recallapp/recall/internal/detect"
	"github.com/recallapp/recall/internal/scan"
	"github.com/recallapp/recall/internal/store"
	"github.com/recallapp/recall/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the Recall API server.
The server exposes persons, matching, encounters, scanning and integrity
auditing over HTTP. With DATABASE_URL set it persists to PostgreSQL,
otherwise everything lives in memory.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("hnsw", true, "Build an in-memory HNSW index for match pre-selection")
	serveCmd.Flags().Bool("prewarm", false, "Prewarm the embedding service on startup")
	serveCmd.Flags().Bool("propagate", true, "Propagate confirmed labels to near-identical sibling faces")
}

// initPersonIndex builds the in-memory HNSW index over all stored embeddings.
func initPersonIndex(ctx context.Context, st store.PersonReader) *store.PersonIndex {
	fmt.Println("Building in-memory HNSW index for face matching...")
	persons, err := st.ListPersons(ctx)
	if err != nil {
		fmt.Printf("Warning: failed to load persons for HNSW index: %v\n", err)
		fmt.Println("Face matching will scan all persons (slower)")
		return nil
	}
	index := store.NewPersonIndex()
	index.Build(persons)
	fmt.Printf("HNSW index built with %d embeddings\n", index.Len())
	return index
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	detector := detect.NewDetectorClient(cfg.Detector.URL, cfg.Detector.Enhance, cfg.Detector.MaxImageSize)
	embedder := detect.NewEmbedderClient(cfg.Embedder.URL, cfg.Embedder.Dim)

	if mustGetBool(cmd, "prewarm") {
		if err := embedder.Prewarm(ctx); err != nil {
			fmt.Printf("Warning: embedder prewarm failed: %v\n", err)
		}
	}

	pipeline := scan.New(st, detector, embedder, cfg)
	pipeline.SetPropagationDisabled(!mustGetBool(cmd, "propagate"))

	var index *store.PersonIndex
	if mustGetBool(cmd, "hnsw") {
		index = initPersonIndex(ctx, st)
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, host, port, st, pipeline, index)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Recall API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
