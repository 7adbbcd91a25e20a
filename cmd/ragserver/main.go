// Package main provides the query API server entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ivpetrov/docsrag/internal/api"
	"github.com/ivpetrov/docsrag/internal/embedding"
	"github.com/ivpetrov/docsrag/internal/index"
	"github.com/ivpetrov/docsrag/internal/rag"
	"github.com/ivpetrov/docsrag/internal/storage"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Configuration from environment
	qdrantHost := getEnv("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	collectionName := getEnv("COLLECTION_NAME", storage.CollectionName)
	vectorDataDir := getEnv("VECTOR_DATA_DIR", "vector_data")
	embeddingModel := getEnv("EMBEDDING_MODEL", embedding.DefaultModel)
	generationModel := getEnv("GENERATION_MODEL", rag.DefaultGenerationModel)
	port := getEnv("PORT", "8000")

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Initialize storage
	store, err := storage.NewQdrantStore(qdrantHost, qdrantPort, collectionName)
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer store.Close()

	// Optionally drop the collection so it rebuilds from source on first query
	if getEnv("REINDEX", "false") == "true" {
		log.Println("REINDEX=true, dropping collection")
		if err := store.Drop(ctx); err != nil {
			log.Fatalf("failed to drop collection: %v", err)
		}
	}

	// Initialize embedding client
	embeddingClient, err := embedding.NewClient()
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, embeddingModel, 0) // Use default batch size

	manager := index.NewManager(store, vectorDataDir, logger)

	// Build the collection up front so the first query does not pay for it.
	// A failure here is not fatal: queries retry the build and answer with a
	// clear unavailability message until it succeeds.
	if err := manager.GetOrBuild(ctx); err != nil {
		logger.Warn("index not ready at startup, will retry on first query", "error", err)
	}

	generator := rag.NewGenerator(embeddingClient.Client(), generationModel)
	engine := rag.NewEngine(embedder, manager, generator, logger)

	server := api.NewServer(api.Config{
		Engine:         engine,
		Index:          manager,
		CollectionName: collectionName,
		EmbeddingModel: embeddingModel,
		Logger:         logger,
	})

	addr := "0.0.0.0:" + port
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Mux(),
	}

	go func() {
		log.Printf("Starting query API server on %s (query at /query, health at /health)", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
