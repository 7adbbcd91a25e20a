// Package main provides the documentation site scraper CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ivpetrov/docsrag/internal/scraper"
)

var (
	startURL    string
	outputDir   string
	maxArticles int
	sections    []string
	delay       time.Duration
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Crawl a documentation site into article and image files",
	Long: `Crawls a documentation site starting from the given URL, following only
links within the configured sections of the same domain, and writes one JSON
file per article plus downloaded images, an article index, an image index,
and a static HTML viewer.

Re-running against the same start URL replaces prior output: articles and
images are identified by a hash of their source URL.`,
	RunE: runScrape,
}

func init() {
	rootCmd.Flags().StringVar(&startURL, "start-url", "", "URL to start crawling from (required)")
	rootCmd.Flags().StringVar(&outputDir, "output-dir", "data", "directory to write scraped data to")
	rootCmd.Flags().IntVar(&maxArticles, "max-articles", 30, "maximum number of articles to scrape")
	rootCmd.Flags().StringSliceVar(&sections, "sections", scraper.DefaultSections, "path substrings a link must contain to be followed")
	rootCmd.Flags().DurationVar(&delay, "delay", time.Second, "delay between page requests")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	_ = rootCmd.MarkFlagRequired("start-url")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScrape(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	start := time.Now()
	fmt.Printf("Starting crawl from %s...\n", startURL)

	s, err := scraper.New(scraper.Config{
		StartURL:    startURL,
		OutputDir:   outputDir,
		MaxArticles: maxArticles,
		Sections:    sections,
		Delay:       delay,
	}, logger)
	if err != nil {
		return err
	}

	articles, err := s.Run()
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Crawl complete!")
	fmt.Printf("  Articles: %d\n", len(articles))
	fmt.Printf("  Output: %s\n", outputDir)
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Second))
	return nil
}
