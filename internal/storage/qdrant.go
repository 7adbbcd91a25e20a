package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// pointNamespace seeds the UUIDv5 derivation of Qdrant point ids from
// passage ids. Fixed so rebuilding the collection maps the same passage to
// the same point, making builds idempotent.
var pointNamespace = uuid.MustParse("7d0b4c6e-9f2a-4b81-bb13-5a60d2c4f9aa")

// QdrantStore wraps the Qdrant client with connection management and
// passage-level operations.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStore creates a Qdrant client and validates connectivity with a
// retried health check, failing fast if the server is unreachable.
func NewQdrantStore(host string, port int, collection string) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	if collection == "" {
		collection = CollectionName
	}
	store := &QdrantStore{
		client:     client,
		collection: collection,
	}

	if err := store.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}

	return store, nil
}

// Collection returns the collection name the store operates on.
func (s *QdrantStore) Collection() string {
	return s.collection
}

// healthCheckWithRetry probes Qdrant with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// CollectionExists reports whether the passage collection is present.
func (s *QdrantStore) CollectionExists(ctx context.Context) (bool, error) {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// EnsureCollection creates the passage collection if it does not exist. The
// vector size comes from the preprocessor's output rather than a constant:
// the embedding model is opaque, only consistency between build and query
// matters. Cosine distance must not change without a full rebuild.
func (s *QdrantStore) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	exists, err := s.CollectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Index the filterable payload fields.
	for field, fieldType := range map[string]qdrant.FieldType{
		"passage_id": qdrant.FieldType_FieldTypeKeyword,
		"article_id": qdrant.FieldType_FieldTypeKeyword,
		"has_images": qdrant.FieldType_FieldTypeBool,
	} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      fieldType.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// Drop deletes the collection so the next access rebuilds it from source.
func (s *QdrantStore) Drop(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// UpsertPassages stores one batch of passages. All embeddings must share
// the dimension the collection was created with.
func (s *QdrantStore) UpsertPassages(ctx context.Context, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}

	dim := len(passages[0].Embedding)
	points := make([]*qdrant.PointStruct, len(passages))
	for i, p := range passages {
		if len(p.Embedding) != dim {
			return fmt.Errorf("%w: passage %s has %d dimensions, expected %d",
				ErrDimensionMismatch, p.ID, len(p.Embedding), dim)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(p.ID)),
			Vectors: qdrant.NewVectors(p.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"passage_id":    p.ID,
				"document":      p.Text,
				"article_id":    p.Meta.ArticleID,
				"article_title": p.Meta.ArticleTitle,
				"chunk_index":   int64(p.Meta.ChunkIndex),
				"has_images":    p.Meta.HasImages,
			}),
		}
	}

	return s.upsertWithRetry(ctx, points)
}

// upsertWithRetry performs an upsert with exponential backoff.
func (s *QdrantStore) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return err
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// SearchPassages returns the top-limit passages nearest to the query
// embedding, nearest first.
func (s *QdrantStore) SearchPassages(ctx context.Context, embedding []float32, limit int) ([]ScoredPassage, error) {
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search passages: %w", err)
	}

	passages := make([]ScoredPassage, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		passages = append(passages, ScoredPassage{
			Passage: Passage{
				ID:   payload["passage_id"].GetStringValue(),
				Text: payload["document"].GetStringValue(),
				Meta: PassageMeta{
					ArticleID:    payload["article_id"].GetStringValue(),
					ArticleTitle: payload["article_title"].GetStringValue(),
					ChunkIndex:   int(payload["chunk_index"].GetIntegerValue()),
					HasImages:    payload["has_images"].GetBoolValue(),
				},
			},
			Score: result.Score,
		})
	}

	return passages, nil
}

// Count returns the number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (uint64, error) {
	collection, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection info: %w", err)
	}
	return collection.GetPointsCount(), nil
}

// pointID maps a passage id to a stable Qdrant UUID.
func pointID(passageID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(passageID)).String()
}
