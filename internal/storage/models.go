// Package storage persists passage vectors in Qdrant and defines the data
// files exchanged between the preprocessing job and the index.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
)

// CollectionName is the default Qdrant collection for passages.
const CollectionName = "documentation"

// PassageMeta is the retrieval metadata stored alongside each passage.
type PassageMeta struct {
	ArticleID    string `json:"article_id"`
	ArticleTitle string `json:"article_title"`
	ChunkIndex   int    `json:"chunk_index"`
	HasImages    bool   `json:"has_images"`
}

// Passage is one unit of retrieval: a bounded slice of an article's text
// with its embedding. IDs are deterministic, "<article_id>_chunk_<index>".
type Passage struct {
	ID        string
	Text      string
	Meta      PassageMeta
	Embedding []float32
}

// ScoredPassage is a search hit. Score is cosine similarity: higher means
// nearer, so results ordered by descending score are nearest first.
type ScoredPassage struct {
	Passage
	Score float32
}

// ImageRef is an image associated with a passage in image_mapping.json.
type ImageRef struct {
	Path      string `json:"path"`
	Title     string `json:"title"`
	ArticleID string `json:"article_id"`
}

// ImageMapping maps passage id to the images whose markers the passage
// contained before normalization.
type ImageMapping map[string][]ImageRef

// ChromaData mirrors chroma_data.json: four parallel arrays, one entry per
// passage. It is the sole input for (re)building the vector collection, so
// the collection is a derived cache rather than a source of truth.
type ChromaData struct {
	IDs        []string      `json:"ids"`
	Embeddings [][]float32   `json:"embeddings"`
	Metadatas  []PassageMeta `json:"metadatas"`
	Documents  []string      `json:"documents"`
}

// Passages converts the parallel arrays into passage values, validating
// that the arrays line up.
func (d *ChromaData) Passages() ([]Passage, error) {
	n := len(d.IDs)
	if len(d.Embeddings) != n || len(d.Metadatas) != n || len(d.Documents) != n {
		return nil, fmt.Errorf("inconsistent chroma data: ids=%d embeddings=%d metadatas=%d documents=%d",
			n, len(d.Embeddings), len(d.Metadatas), len(d.Documents))
	}
	passages := make([]Passage, n)
	for i := 0; i < n; i++ {
		passages[i] = Passage{
			ID:        d.IDs[i],
			Text:      d.Documents[i],
			Meta:      d.Metadatas[i],
			Embedding: d.Embeddings[i],
		}
	}
	return passages, nil
}

// LoadChromaData reads chroma_data.json from the vector data directory.
func LoadChromaData(path string) (*ChromaData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chroma data: %w", err)
	}
	var data ChromaData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse chroma data: %w", err)
	}
	return &data, nil
}

// LoadImageMapping reads image_mapping.json. A missing file is not an
// error: retrieval then simply returns no images.
func LoadImageMapping(path string) (ImageMapping, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ImageMapping{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read image mapping: %w", err)
	}
	var mapping ImageMapping
	if err := json.Unmarshal(raw, &mapping); err != nil {
		return nil, fmt.Errorf("parse image mapping: %w", err)
	}
	return mapping, nil
}
