// Package index manages the similarity-searchable passage collection. The
// collection is a derived cache: if it is missing it is rebuilt from the
// preprocessor's output files on first access.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/ivpetrov/docsrag/internal/storage"
)

// ErrIndexUnavailable reports that the collection is absent and could not
// be rebuilt from source data. Callers must surface this clearly rather
// than treating it as an empty result.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// buildBatchSize bounds memory during a rebuild. A failed batch is logged
// and skipped, not fatal to the whole build.
const buildBatchSize = 100

// VectorStore is the persistence the manager drives. *storage.QdrantStore
// implements it.
type VectorStore interface {
	Health(ctx context.Context) error
	CollectionExists(ctx context.Context) (bool, error)
	EnsureCollection(ctx context.Context, vectorSize uint64) error
	UpsertPassages(ctx context.Context, passages []storage.Passage) error
	SearchPassages(ctx context.Context, embedding []float32, limit int) ([]storage.ScoredPassage, error)
	Count(ctx context.Context) (uint64, error)
}

// Manager exposes the retrieval read path and the guarded lazy build path.
// Reads are safe for concurrent use; the build is serialized so at most one
// rebuild runs system-wide, with concurrent callers waiting on it.
type Manager struct {
	store         VectorStore
	vectorDataDir string
	logger        *slog.Logger

	mu     sync.Mutex
	ready  bool
	images storage.ImageMapping
}

// NewManager creates a manager over the given store. vectorDataDir must
// contain chroma_data.json and image_mapping.json from the preprocessor.
func NewManager(store VectorStore, vectorDataDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:         store,
		vectorDataDir: vectorDataDir,
		logger:        logger,
	}
}

// GetOrBuild makes sure the collection exists, building it from the
// preprocessor's output if needed. Safe to call from concurrent queries.
func (m *Manager) GetOrBuild(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return nil
	}

	if m.images == nil {
		mapping, err := storage.LoadImageMapping(filepath.Join(m.vectorDataDir, "image_mapping.json"))
		if err != nil {
			m.logger.Warn("failed to load image mapping, continuing without images", "error", err)
			mapping = storage.ImageMapping{}
		}
		m.images = mapping
	}

	exists, err := m.store.CollectionExists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if !exists {
		if err := m.build(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
		}
	}

	m.ready = true
	return nil
}

// build creates the collection and populates it from chroma_data.json in
// batches. Caller holds m.mu.
func (m *Manager) build(ctx context.Context) error {
	m.logger.Info("collection missing, building from source", "dir", m.vectorDataDir)

	data, err := storage.LoadChromaData(filepath.Join(m.vectorDataDir, "chroma_data.json"))
	if err != nil {
		return err
	}
	passages, err := data.Passages()
	if err != nil {
		return err
	}
	if len(passages) == 0 {
		return fmt.Errorf("no passages in source data")
	}

	vectorSize := uint64(len(passages[0].Embedding))
	if err := m.store.EnsureCollection(ctx, vectorSize); err != nil {
		return err
	}

	var stored, skipped int
	for i := 0; i < len(passages); i += buildBatchSize {
		end := min(i+buildBatchSize, len(passages))
		batch := passages[i:end]
		if err := m.store.UpsertPassages(ctx, batch); err != nil {
			m.logger.Error("failed to store batch, skipping", "from", i, "to", end, "error", err)
			skipped += len(batch)
			continue
		}
		stored += len(batch)
	}

	m.logger.Info("collection built", "stored", stored, "skipped", skipped)
	return nil
}

// QuerySimilar returns the k passages nearest to the query embedding,
// nearest first, together with the deduplicated union of images mapped to
// those passages.
func (m *Manager) QuerySimilar(ctx context.Context, embedding []float32, k int) ([]storage.ScoredPassage, []storage.ImageRef, error) {
	if err := m.GetOrBuild(ctx); err != nil {
		return nil, nil, err
	}

	hits, err := m.store.SearchPassages(ctx, embedding, k)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar: %w", err)
	}

	var images []storage.ImageRef
	seen := make(map[string]bool)
	for _, hit := range hits {
		for _, img := range m.images[hit.ID] {
			if seen[img.Path] {
				continue
			}
			seen[img.Path] = true
			images = append(images, img)
		}
	}

	return hits, images, nil
}

// Count returns the number of indexed passages.
func (m *Manager) Count(ctx context.Context) (uint64, error) {
	if err := m.GetOrBuild(ctx); err != nil {
		return 0, err
	}
	return m.store.Count(ctx)
}

// Health reports whether the underlying store is reachable.
func (m *Manager) Health(ctx context.Context) error {
	return m.store.Health(ctx)
}
