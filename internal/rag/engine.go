// Package rag answers free-text questions over the indexed documentation:
// embed the query, retrieve the nearest passages and their images, and
// synthesize a grounded answer, degrading to an extractive summary when
// generation is unavailable.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ivpetrov/docsrag/internal/index"
	"github.com/ivpetrov/docsrag/internal/storage"
)

// DefaultMaxResults is the number of passages retrieved per query unless
// the request says otherwise.
const DefaultMaxResults = 3

// Terminal answers for queries that retrieve nothing. Both are valid
// outcomes, not errors.
const (
	NoInformationAnswer    = "I couldn't find relevant information in the documentation. Please try rephrasing your question."
	IndexUnavailableAnswer = "The documentation index is temporarily unavailable. Please try again later."
)

// ErrEmptyQuery rejects blank queries before any retrieval work begins.
var ErrEmptyQuery = errors.New("query must not be empty")

// snippetLength bounds the per-passage excerpt in the extractive fallback.
const snippetLength = 150

// Image is an image reference in a query response, internal ids stripped.
type Image struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// Response is the result of processing one query.
type Response struct {
	Answer         string   `json:"answer"`
	RelevantChunks []string `json:"relevant_chunks"`
	ChunkIDs       []string `json:"chunk_ids"`
	Images         []Image  `json:"images"`
}

// QueryEmbedder embeds a query with the same model the passages were
// embedded with at build time.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Retriever is the index read path. *index.Manager implements it.
type Retriever interface {
	QuerySimilar(ctx context.Context, embedding []float32, k int) ([]storage.ScoredPassage, []storage.ImageRef, error)
}

// Engine processes queries as independent, stateless units of work; it is
// safe for concurrent use.
type Engine struct {
	embedder  QueryEmbedder
	retriever Retriever
	generator AnswerGenerator
	logger    *slog.Logger
}

// NewEngine wires the query pipeline together.
func NewEngine(embedder QueryEmbedder, retriever Retriever, generator AnswerGenerator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		logger:    logger,
	}
}

// ProcessQuery runs the full query pipeline. It returns an error only for
// malformed input; every downstream failure is converted into one of the
// well-formed response shapes.
func (e *Engine) ProcessQuery(ctx context.Context, query string, maxResults int, temperature float64) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxResults <= 0 {
		return nil, fmt.Errorf("max_results must be positive, got %d", maxResults)
	}

	queryEmbedding, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		e.logger.Error("failed to embed query", "error", err)
		return emptyResponse(IndexUnavailableAnswer), nil
	}

	hits, imageRefs, err := e.retriever.QuerySimilar(ctx, queryEmbedding, maxResults)
	if err != nil {
		// A rebuild-on-demand failure is surfaced as a clear terminal
		// answer rather than a raw error or a silent empty result.
		if errors.Is(err, index.ErrIndexUnavailable) {
			e.logger.Warn("index unavailable for query", "error", err)
		} else {
			e.logger.Error("retrieval failed", "error", err)
		}
		return emptyResponse(IndexUnavailableAnswer), nil
	}

	if len(hits) == 0 {
		return emptyResponse(NoInformationAnswer), nil
	}

	chunks := make([]string, len(hits))
	chunkIDs := make([]string, len(hits))
	for i, hit := range hits {
		chunks[i] = hit.Text
		chunkIDs[i] = hit.ID
	}
	images := make([]Image, len(imageRefs))
	for i, ref := range imageRefs {
		images[i] = Image{Path: ref.Path, Title: ref.Title}
	}

	answer, err := e.generator.Generate(ctx, query, buildContext(chunks, images), temperature)
	if err != nil {
		e.logger.Warn("generation failed, using extractive fallback", "error", err)
		answer = extractiveFallback(query, chunks, images)
	}

	return &Response{
		Answer:         answer,
		RelevantChunks: chunks,
		ChunkIDs:       chunkIDs,
		Images:         images,
	}, nil
}

func emptyResponse(answer string) *Response {
	return &Response{
		Answer:         answer,
		RelevantChunks: []string{},
		ChunkIDs:       []string{},
		Images:         []Image{},
	}
}

// buildContext concatenates the retrieved passages in rank order and lists
// the image titles for the generator to reference as [Image N].
func buildContext(chunks []string, images []Image) string {
	var b strings.Builder
	b.WriteString(strings.Join(chunks, "\n\n"))
	if len(images) > 0 {
		b.WriteString("\n\nRelevant images:\n")
		for i, img := range images {
			fmt.Fprintf(&b, "[Image %d]: %s\n", i+1, img.Title)
		}
	}
	return b.String()
}

// extractiveFallback assembles a deterministic answer from the retrieved
// passages alone. It uses only locally available data and never fails.
func extractiveFallback(query string, chunks []string, images []Image) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the documentation, here's information about your question on '%s':\n\n", query)

	for i, chunk := range chunks {
		fmt.Fprintf(&b, "Information %d: %s\n", i+1, snippet(chunk))
	}

	if len(images) > 0 {
		b.WriteString("\nRelevant images found in the documentation:\n")
		for i, img := range images {
			fmt.Fprintf(&b, "[Image %d]: %s\n", i+1, img.Title)
		}
	}

	return b.String()
}

// snippet truncates a chunk to roughly snippetLength characters without
// splitting a UTF-8 sequence.
func snippet(chunk string) string {
	if len(chunk) <= snippetLength {
		return chunk
	}
	cut := snippetLength
	for cut > 0 && !utf8.RuneStart(chunk[cut]) {
		cut--
	}
	return chunk[:cut] + "..."
}
