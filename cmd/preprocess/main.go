// Package main provides the chunk-and-embed preprocessing CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ivpetrov/docsrag/internal/embedding"
	"github.com/ivpetrov/docsrag/internal/preprocess"
	"github.com/ivpetrov/docsrag/internal/textsplit"
)

var (
	dataDir      string
	outputDir    string
	model        string
	chunkSize    int
	chunkOverlap int
)

var rootCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Split scraped articles into embedded passages",
	Long: `Reads scraped articles, splits each article's text into overlapping
passages without breaking image markers, embeds every passage, and writes
chroma_data.json plus image_mapping.json for the vector index.

Environment variables:
  OPENAI_API_KEY OpenAI API key for embeddings (required)`,
	RunE: runPreprocess,
}

func init() {
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "directory containing scraped data (required)")
	rootCmd.Flags().StringVar(&outputDir, "output-dir", "", "directory to write processed data (required)")
	rootCmd.Flags().StringVar(&model, "model", embedding.DefaultModel, "embedding model name")
	rootCmd.Flags().IntVar(&chunkSize, "chunk-size", textsplit.DefaultChunkSize, "target chunk size in characters")
	rootCmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", textsplit.DefaultChunkOverlap, "overlap between chunks in characters")
	_ = rootCmd.MarkFlagRequired("data-dir")
	_ = rootCmd.MarkFlagRequired("output-dir")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPreprocess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	client, err := embedding.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(client, model, 0)
	splitter := textsplit.NewSplitter(chunkSize, chunkOverlap)

	fmt.Printf("Processing articles from %s (model %s, chunk size %d, overlap %d)...\n",
		dataDir, model, chunkSize, chunkOverlap)
	fmt.Println()

	pipeline := preprocess.NewPipeline(dataDir, outputDir, splitter, embedder, slog.Default())
	result, err := pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("preprocessing failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Preprocessing complete!")
	fmt.Printf("  Articles: %d/%d\n", result.ProcessedArticles, result.TotalArticles)
	fmt.Printf("  Passages: %d\n", result.TotalPassages)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Second))

	if len(result.FailedArticles) > 0 {
		fmt.Println()
		fmt.Println("Failed articles:")
		for _, failed := range result.FailedArticles {
			fmt.Printf("  - %s: %s\n", failed.File, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}
