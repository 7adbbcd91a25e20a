// Package preprocess turns scraped articles into the passage index consumed
// by the vector store: it splits article text into overlapping passages
// without breaking image markers, embeds each passage, and writes
// chroma_data.json plus image_mapping.json.
package preprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivpetrov/docsrag/internal/embedding"
	"github.com/ivpetrov/docsrag/internal/scraper"
	"github.com/ivpetrov/docsrag/internal/storage"
	"github.com/ivpetrov/docsrag/internal/textsplit"
)

// Result contains statistics about a preprocessing run.
type Result struct {
	TotalArticles     int
	ProcessedArticles int
	TotalPassages     int
	FailedArticles    []FailedArticle
	Duration          time.Duration
}

// FailedArticle records an article that could not be processed. The run
// continues past individual failures.
type FailedArticle struct {
	File   string
	Reason string
}

// Pipeline orchestrates the offline batch job from article files to index
// files.
type Pipeline struct {
	dataDir   string
	outputDir string
	splitter  *textsplit.Splitter
	embedder  embedding.TextEmbedder
	logger    *slog.Logger
}

// NewPipeline creates a pipeline reading scraped articles from dataDir and
// writing index files to outputDir.
func NewPipeline(dataDir, outputDir string, splitter *textsplit.Splitter, embedder embedding.TextEmbedder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		dataDir:   dataDir,
		outputDir: outputDir,
		splitter:  splitter,
		embedder:  embedder,
		logger:    logger,
	}
}

// Run processes every article and writes the passage index. A failure on a
// single article is recorded and skipped; only I/O failures on the inputs
// directory or the outputs are fatal.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	articles, failed, err := p.loadArticles()
	if err != nil {
		return nil, err
	}
	result.TotalArticles = len(articles) + len(failed)
	result.FailedArticles = failed
	p.logger.Info("loaded articles", "count", len(articles), "failed", len(failed))

	// Non-nil slices so empty output still serializes as [] arrays.
	chroma := &storage.ChromaData{
		IDs:        []string{},
		Embeddings: [][]float32{},
		Metadatas:  []storage.PassageMeta{},
		Documents:  []string{},
	}
	mapping := storage.ImageMapping{}

	for _, article := range articles {
		passages, err := p.processArticle(ctx, article)
		if err != nil {
			p.logger.Warn("failed to process article, skipping", "title", article.Title, "error", err)
			result.FailedArticles = append(result.FailedArticles, FailedArticle{
				File:   fmt.Sprintf("article_%s.json", article.ID),
				Reason: err.Error(),
			})
			continue
		}
		for _, passage := range passages {
			chroma.IDs = append(chroma.IDs, passage.ID)
			chroma.Embeddings = append(chroma.Embeddings, passage.Embedding)
			chroma.Metadatas = append(chroma.Metadatas, passage.Meta)
			chroma.Documents = append(chroma.Documents, passage.Text)
			if len(passage.Images) > 0 {
				mapping[passage.ID] = passage.Images
			}
		}
		result.ProcessedArticles++
		result.TotalPassages += len(passages)
		p.logger.Info("processed article", "title", article.Title, "passages", len(passages))
	}

	if err := p.writeJSON("chroma_data.json", chroma); err != nil {
		return nil, err
	}
	if err := p.writeJSON("image_mapping.json", mapping); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	p.logger.Info("preprocessing complete",
		"articles", result.ProcessedArticles,
		"failed", len(result.FailedArticles),
		"passages", result.TotalPassages,
		"duration", result.Duration,
	)
	return result, nil
}

// passage pairs a storage passage with the images its raw markers named.
type passage struct {
	storage.Passage
	Images []storage.ImageRef
}

// processArticle splits one article into embedded passages.
//
// The splitter never sees raw markers: they are swapped for fixed
// placeholder tokens first, restored in each chunk afterwards, and only
// then normalized to the [IMAGE: <title>] form that is embedded and shown
// to the generator.
func (p *Pipeline) processArticle(ctx context.Context, article scraper.Article) ([]passage, error) {
	protected, placeholders := textsplit.Protect(article.ContentText)
	chunks := p.splitter.Split(protected)

	passages := make([]passage, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	for idx, chunk := range chunks {
		restored := textsplit.Restore(chunk, placeholders)
		normalized, markerImages := textsplit.Normalize(restored)

		images := make([]storage.ImageRef, 0, len(markerImages))
		for _, img := range markerImages {
			images = append(images, storage.ImageRef{
				Path:      img.Path,
				Title:     img.Title,
				ArticleID: article.ID,
			})
		}

		passages = append(passages, passage{
			Passage: storage.Passage{
				ID:   fmt.Sprintf("%s_chunk_%d", article.ID, idx),
				Text: normalized,
				Meta: storage.PassageMeta{
					ArticleID:    article.ID,
					ArticleTitle: article.Title,
					ChunkIndex:   idx,
					HasImages:    len(images) > 0,
				},
			},
			Images: images,
		})
		texts = append(texts, normalized)
	}

	if len(texts) == 0 {
		return nil, nil
	}
	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	if len(embeddings) != len(passages) {
		return nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(passages), len(embeddings))
	}
	for i := range passages {
		passages[i].Embedding = embeddings[i]
	}

	return passages, nil
}

// loadArticles reads every article JSON file from the scraper output.
// Unreadable files are reported and skipped.
func (p *Pipeline) loadArticles() ([]scraper.Article, []FailedArticle, error) {
	articlesDir := filepath.Join(p.dataDir, "articles")
	entries, err := os.ReadDir(articlesDir)
	if err != nil {
		return nil, nil, fmt.Errorf("read articles dir: %w", err)
	}

	var articles []scraper.Article
	var failed []FailedArticle
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(articlesDir, entry.Name()))
		if err != nil {
			p.logger.Warn("failed to read article file", "file", entry.Name(), "error", err)
			failed = append(failed, FailedArticle{File: entry.Name(), Reason: err.Error()})
			continue
		}
		var article scraper.Article
		if err := json.Unmarshal(raw, &article); err != nil {
			p.logger.Warn("failed to parse article file", "file", entry.Name(), "error", err)
			failed = append(failed, FailedArticle{File: entry.Name(), Reason: err.Error()})
			continue
		}
		articles = append(articles, article)
	}
	return articles, failed, nil
}

func (p *Pipeline) writeJSON(name string, v any) error {
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(p.outputDir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
