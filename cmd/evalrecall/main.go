// Package main provides the Recall@k evaluation CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ivpetrov/docsrag/internal/eval"
)

var (
	assessmentPath string
	apiBaseURL     string
	k              int
	outputPath     string
	delay          time.Duration
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "evalrecall",
	Short: "Score retrieval quality of a running query service with Recall@k",
	Long: `Replays a labeled question set against the query API and computes
Recall@k per question plus an aggregate scorecard. Per-question request
failures are recorded in the report; the run continues.

The assessment file maps question ids to objects with "question" and
"relevant_chunks" fields.`,
	RunE: runEval,
}

func init() {
	rootCmd.Flags().StringVar(&assessmentPath, "assessment", "", "path to the assessment JSON file (required)")
	rootCmd.Flags().StringVar(&apiBaseURL, "api", "http://localhost:8000", "base URL of the query service")
	rootCmd.Flags().IntVar(&k, "k", 3, "number of top retrieved passages to score against")
	rootCmd.Flags().StringVar(&outputPath, "output", "", "report file path (default recall_<k>_evaluation_results.json)")
	rootCmd.Flags().DurationVar(&delay, "delay", time.Second, "minimum interval between API requests")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	_ = rootCmd.MarkFlagRequired("assessment")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runEval(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	set, err := eval.LoadAssessment(assessmentPath)
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return fmt.Errorf("assessment file %s contains no questions", assessmentPath)
	}

	evaluator, err := eval.NewEvaluator(apiBaseURL, k, delay, logger)
	if err != nil {
		return err
	}

	report, err := evaluator.Evaluate(cmd.Context(), set)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	report.PrintSummary(os.Stdout)

	if outputPath == "" {
		outputPath = fmt.Sprintf("recall_%d_evaluation_results.json", k)
	}
	if err := report.Write(outputPath); err != nil {
		return err
	}
	fmt.Printf("\nDetailed report saved to %s\n", outputPath)
	return nil
}
