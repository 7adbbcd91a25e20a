package preprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivpetrov/docsrag/internal/scraper"
	"github.com/ivpetrov/docsrag/internal/storage"
	"github.com/ivpetrov/docsrag/internal/textsplit"
)

// fakeEmbedder returns a deterministic vector per text.
type fakeEmbedder struct {
	calls int
	fail  bool
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("embedding service down")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return "fake-model" }

func writeArticle(t *testing.T, dir string, a scraper.Article) {
	t.Helper()
	data, err := json.Marshal(a)
	require.NoError(t, err)
	name := fmt.Sprintf("article_%s.json", a.ID)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestPipelineRun(t *testing.T) {
	dataDir := t.TempDir()
	outputDir := t.TempDir()
	articlesDir := filepath.Join(dataDir, "articles")
	require.NoError(t, os.MkdirAll(articlesDir, 0o755))

	writeArticle(t, articlesDir, scraper.Article{
		ID:          "art1",
		Title:       "With Image",
		ContentText: "Intro text.\n[[IMAGE:images/a.png|Login screen]]\nMore text after.",
	})
	writeArticle(t, articlesDir, scraper.Article{
		ID:          "art2",
		Title:       "Plain",
		ContentText: "Just plain text without any images.",
	})
	// Unparseable file is skipped, not fatal.
	require.NoError(t, os.WriteFile(filepath.Join(articlesDir, "broken.json"), []byte("{not json"), 0o644))

	embedder := &fakeEmbedder{}
	p := NewPipeline(dataDir, outputDir, textsplit.NewSplitter(0, 0), embedder, nil)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalArticles)
	assert.Equal(t, 2, result.ProcessedArticles)
	assert.Equal(t, 2, result.TotalPassages)
	require.Len(t, result.FailedArticles, 1)
	assert.Equal(t, "broken.json", result.FailedArticles[0].File)

	data, err := storage.LoadChromaData(filepath.Join(outputDir, "chroma_data.json"))
	require.NoError(t, err)
	passages, err := data.Passages()
	require.NoError(t, err)
	require.Len(t, passages, 2)

	byID := make(map[string]storage.Passage)
	for _, passage := range passages {
		byID[passage.ID] = passage
	}
	require.Contains(t, byID, "art1_chunk_0")
	require.Contains(t, byID, "art2_chunk_0")

	// Markers are normalized for embedding; paths never reach the index text.
	withImage := byID["art1_chunk_0"]
	assert.Contains(t, withImage.Text, "[IMAGE: Login screen]")
	assert.NotContains(t, withImage.Text, "images/a.png")
	assert.True(t, withImage.Meta.HasImages)
	assert.Equal(t, "With Image", withImage.Meta.ArticleTitle)
	assert.Equal(t, 0, withImage.Meta.ChunkIndex)
	assert.NotEmpty(t, withImage.Embedding)

	assert.False(t, byID["art2_chunk_0"].Meta.HasImages)

	mapping, err := storage.LoadImageMapping(filepath.Join(outputDir, "image_mapping.json"))
	require.NoError(t, err)
	require.Len(t, mapping, 1)
	require.Len(t, mapping["art1_chunk_0"], 1)
	assert.Equal(t, storage.ImageRef{
		Path:      "images/a.png",
		Title:     "Login screen",
		ArticleID: "art1",
	}, mapping["art1_chunk_0"][0])

	// One embedding call per article.
	assert.Equal(t, 2, embedder.calls)
}

func TestPipelineEmbeddingFailureSkipsArticle(t *testing.T) {
	dataDir := t.TempDir()
	outputDir := t.TempDir()
	articlesDir := filepath.Join(dataDir, "articles")
	require.NoError(t, os.MkdirAll(articlesDir, 0o755))

	writeArticle(t, articlesDir, scraper.Article{
		ID:          "art1",
		Title:       "Doomed",
		ContentText: "Some content.",
	})

	p := NewPipeline(dataDir, outputDir, textsplit.NewSplitter(0, 0), &fakeEmbedder{fail: true}, nil)
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.ProcessedArticles)
	require.Len(t, result.FailedArticles, 1)
	assert.Equal(t, "article_art1.json", result.FailedArticles[0].File)

	// Output files still exist with empty arrays.
	data, err := storage.LoadChromaData(filepath.Join(outputDir, "chroma_data.json"))
	require.NoError(t, err)
	passages, err := data.Passages()
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestPipelineEmptyArticleProducesNoPassages(t *testing.T) {
	dataDir := t.TempDir()
	outputDir := t.TempDir()
	articlesDir := filepath.Join(dataDir, "articles")
	require.NoError(t, os.MkdirAll(articlesDir, 0o755))

	writeArticle(t, articlesDir, scraper.Article{ID: "art1", Title: "Empty", ContentText: "   "})

	embedder := &fakeEmbedder{}
	p := NewPipeline(dataDir, outputDir, textsplit.NewSplitter(0, 0), embedder, nil)
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedArticles)
	assert.Equal(t, 0, result.TotalPassages)
	assert.Equal(t, 0, embedder.calls)
}

func TestPipelineMissingArticlesDirFails(t *testing.T) {
	p := NewPipeline(filepath.Join(t.TempDir(), "nope"), t.TempDir(), textsplit.NewSplitter(0, 0), &fakeEmbedder{}, nil)
	_, err := p.Run(context.Background())
	assert.Error(t, err)
}
