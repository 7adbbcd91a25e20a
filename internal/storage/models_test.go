package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromaDataPassages(t *testing.T) {
	data := &ChromaData{
		IDs:        []string{"a_chunk_0", "a_chunk_1"},
		Embeddings: [][]float32{{1, 0}, {0, 1}},
		Metadatas: []PassageMeta{
			{ArticleID: "a", ChunkIndex: 0, HasImages: true},
			{ArticleID: "a", ChunkIndex: 1},
		},
		Documents: []string{"first", "second"},
	}

	passages, err := data.Passages()
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "a_chunk_0", passages[0].ID)
	assert.Equal(t, "first", passages[0].Text)
	assert.True(t, passages[0].Meta.HasImages)
	assert.Equal(t, []float32{0, 1}, passages[1].Embedding)
}

func TestChromaDataPassagesInconsistent(t *testing.T) {
	data := &ChromaData{
		IDs:        []string{"a_chunk_0"},
		Embeddings: [][]float32{},
		Metadatas:  []PassageMeta{{}},
		Documents:  []string{"first"},
	}
	_, err := data.Passages()
	assert.Error(t, err)
}

func TestLoadChromaData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chroma_data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"ids": ["x_chunk_0"],
		"embeddings": [[0.1, 0.2]],
		"metadatas": [{"article_id": "x", "article_title": "X", "chunk_index": 0, "has_images": false}],
		"documents": ["body"]
	}`), 0o644))

	data, err := LoadChromaData(path)
	require.NoError(t, err)
	passages, err := data.Passages()
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "X", passages[0].Meta.ArticleTitle)

	_, err = LoadChromaData(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadImageMappingMissingFile(t *testing.T) {
	mapping, err := LoadImageMapping(filepath.Join(t.TempDir(), "image_mapping.json"))
	require.NoError(t, err)
	assert.Empty(t, mapping)
}

func TestPointIDDeterministic(t *testing.T) {
	a := pointID("art1_chunk_0")
	b := pointID("art1_chunk_0")
	c := pointID("art1_chunk_1")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	// Valid UUID, so Qdrant accepts it as a point id.
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
