package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Question is one labeled entry of the assessment set: a free-text question
// and the passage ids a correct retrieval should return.
type Question struct {
	Question       string   `json:"question"`
	RelevantChunks []string `json:"relevant_chunks"`
}

// AssessmentSet maps question id to its labeled data.
type AssessmentSet map[string]Question

// LoadAssessment reads an assessment JSON file.
func LoadAssessment(path string) (AssessmentSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assessment file: %w", err)
	}
	var set AssessmentSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("parse assessment file: %w", err)
	}
	return set, nil
}

// QuestionResult is the per-question outcome. A request failure records
// recall 0 with the error captured; the run continues.
type QuestionResult struct {
	QuestionID        string   `json:"question_id"`
	Question          string   `json:"question"`
	RelevantChunks    []string `json:"relevant_chunks"`
	RetrievedChunks   []string `json:"retrieved_chunks"`
	RecallAtK         float64  `json:"recall_at_k"`
	RelevantCount     int      `json:"relevant_count"`
	RetrievedCount    int      `json:"retrieved_count"`
	IntersectionCount int      `json:"intersection_count"`
	Error             string   `json:"error,omitempty"`
}

// Summary aggregates recall over the whole run.
type Summary struct {
	KParameter              int     `json:"k_parameter"`
	TotalQuestions          int     `json:"total_questions"`
	SuccessfulEvaluations   int     `json:"successful_evaluations"`
	AverageRecall           float64 `json:"average_recall_at_k"`
	MaxRecall               float64 `json:"max_recall_at_k"`
	MinRecall               float64 `json:"min_recall_at_k"`
	PerfectRecallCount      int     `json:"perfect_recall_count"`
	ZeroRecallCount         int     `json:"zero_recall_count"`
	PerfectRecallPercentage float64 `json:"perfect_recall_percentage"`
	ZeroRecallPercentage    float64 `json:"zero_recall_percentage"`
}

// Report is the machine-readable evaluation output.
type Report struct {
	Summary         Summary          `json:"summary"`
	DetailedResults []QuestionResult `json:"detailed_results"`
}

// Evaluator replays questions against the query API, throttled so the live
// service is not flooded.
type Evaluator struct {
	endpoint string
	k        int
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewEvaluator creates an evaluator for the query service at apiBaseURL,
// issuing at most one request per delay interval.
func NewEvaluator(apiBaseURL string, k int, delay time.Duration, logger *slog.Logger) (*Evaluator, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if delay <= 0 {
		delay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		endpoint: strings.TrimRight(apiBaseURL, "/") + "/query",
		k:        k,
		client:   &http.Client{Timeout: 60 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(delay), 1),
		logger:   logger,
	}, nil
}

type queryRequest struct {
	Query       string  `json:"query"`
	MaxResults  int     `json:"max_results"`
	Temperature float64 `json:"temperature"`
}

type queryResponse struct {
	ChunkIDs []string `json:"chunk_ids"`
}

// queryAPI sends one question to the query endpoint and returns the
// retrieved passage ids.
func (e *Evaluator) queryAPI(ctx context.Context, question string) ([]string, error) {
	body, err := json.Marshal(queryRequest{
		Query:       question,
		MaxResults:  e.k,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("query API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var decoded queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return decoded.ChunkIDs, nil
}

// Evaluate runs the full assessment set and aggregates the scorecard.
// Questions are processed in id order for reproducible reports.
func (e *Evaluator) Evaluate(ctx context.Context, set AssessmentSet) (*Report, error) {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	e.logger.Info("starting evaluation", "questions", len(ids), "k", e.k)

	var results []QuestionResult
	var scores []float64
	for _, id := range ids {
		q := set[id]
		e.logger.Info("processing question", "id", id, "question", q.Question)

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result := QuestionResult{
			QuestionID:      id,
			Question:        q.Question,
			RelevantChunks:  q.RelevantChunks,
			RetrievedChunks: []string{},
			RelevantCount:   len(q.RelevantChunks),
		}

		retrieved, err := e.queryAPI(ctx, q.Question)
		if err != nil {
			e.logger.Error("query failed", "id", id, "error", err)
			result.Error = err.Error()
		} else {
			recall := RecallAtK(q.RelevantChunks, retrieved, e.k)
			scores = append(scores, recall)

			result.RetrievedChunks = retrieved
			result.RecallAtK = recall
			result.RetrievedCount = len(retrieved)
			result.IntersectionCount = intersectionCount(q.RelevantChunks, retrieved, e.k)
			e.logger.Info("question scored", "id", id, "recall", recall)
		}
		results = append(results, result)
	}

	return &Report{
		Summary:         summarize(e.k, len(ids), scores),
		DetailedResults: results,
	}, nil
}

func intersectionCount(relevant, retrieved []string, k int) int {
	if k > len(retrieved) {
		k = len(retrieved)
	}
	topK := make(map[string]bool, k)
	for _, id := range retrieved[:k] {
		topK[id] = true
	}
	count := 0
	seen := make(map[string]bool, len(relevant))
	for _, id := range relevant {
		if !seen[id] && topK[id] {
			count++
		}
		seen[id] = true
	}
	return count
}

func summarize(k, total int, scores []float64) Summary {
	summary := Summary{
		KParameter:            k,
		TotalQuestions:        total,
		SuccessfulEvaluations: len(scores),
	}
	if len(scores) == 0 {
		return summary
	}

	var sum float64
	summary.MinRecall = scores[0]
	summary.MaxRecall = scores[0]
	for _, score := range scores {
		sum += score
		if score > summary.MaxRecall {
			summary.MaxRecall = score
		}
		if score < summary.MinRecall {
			summary.MinRecall = score
		}
		if score == 1.0 {
			summary.PerfectRecallCount++
		}
		if score == 0.0 {
			summary.ZeroRecallCount++
		}
	}
	summary.AverageRecall = sum / float64(len(scores))
	summary.PerfectRecallPercentage = float64(summary.PerfectRecallCount) / float64(len(scores)) * 100
	summary.ZeroRecallPercentage = float64(summary.ZeroRecallCount) / float64(len(scores)) * 100
	return summary
}

// Write saves the report as indented JSON.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// PrintSummary writes the human-readable scorecard.
func (r *Report) PrintSummary(w io.Writer) {
	s := r.Summary
	line := strings.Repeat("=", 60)
	fmt.Fprintln(w)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "RECALL@%d EVALUATION RESULTS\n", s.KParameter)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Parameter k: %d\n", s.KParameter)
	fmt.Fprintf(w, "Total questions: %d\n", s.TotalQuestions)
	fmt.Fprintf(w, "Successfully processed: %d\n", s.SuccessfulEvaluations)
	fmt.Fprintf(w, "Average Recall@%d: %.3f\n", s.KParameter, s.AverageRecall)
	fmt.Fprintf(w, "Maximum Recall@%d: %.3f\n", s.KParameter, s.MaxRecall)
	fmt.Fprintf(w, "Minimum Recall@%d: %.3f\n", s.KParameter, s.MinRecall)
	fmt.Fprintf(w, "Questions with perfect recall (1.0): %d (%.1f%%)\n", s.PerfectRecallCount, s.PerfectRecallPercentage)
	fmt.Fprintf(w, "Questions with zero recall (0.0): %d (%.1f%%)\n", s.ZeroRecallCount, s.ZeroRecallPercentage)
	fmt.Fprintln(w, line)
}
