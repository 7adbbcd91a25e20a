package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivpetrov/docsrag/internal/rag"
)

type fakeEngine struct {
	gotQuery       string
	gotMaxResults  int
	gotTemperature float64
	resp           *rag.Response
	err            error
}

func (f *fakeEngine) ProcessQuery(ctx context.Context, query string, maxResults int, temperature float64) (*rag.Response, error) {
	f.gotQuery = query
	f.gotMaxResults = maxResults
	f.gotTemperature = temperature
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeIndex struct {
	count uint64
	err   error
}

func (f *fakeIndex) Count(ctx context.Context) (uint64, error) {
	return f.count, f.err
}

func newTestServer(engine *fakeEngine, idx *fakeIndex) *Server {
	return NewServer(Config{
		Engine:         engine,
		Index:          idx,
		CollectionName: "documentation",
		EmbeddingModel: "text-embedding-3-small",
	})
}

func TestHandleQueryAppliesDefaults(t *testing.T) {
	engine := &fakeEngine{resp: &rag.Response{
		Answer:         "the answer",
		RelevantChunks: []string{"chunk one"},
		ChunkIDs:       []string{"a_chunk_0"},
		Images:         []rag.Image{},
	}}
	srv := newTestServer(engine, &fakeIndex{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"how?"}`))
	srv.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "how?", engine.gotQuery)
	assert.Equal(t, 3, engine.gotMaxResults)
	assert.Equal(t, 0.7, engine.gotTemperature)

	var resp rag.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "the answer", resp.Answer)
	assert.Equal(t, []string{"a_chunk_0"}, resp.ChunkIDs)
}

func TestHandleQueryExplicitParams(t *testing.T) {
	engine := &fakeEngine{resp: &rag.Response{Answer: "ok"}}
	srv := newTestServer(engine, &fakeIndex{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/query",
		strings.NewReader(`{"query":"q","max_results":7,"temperature":0.1}`))
	srv.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, engine.gotMaxResults)
	assert.Equal(t, 0.1, engine.gotTemperature)
}

func TestHandleQueryInvalidJSON(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeIndex{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{broken`))
	srv.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "invalid JSON")
}

func TestHandleQueryValidationError(t *testing.T) {
	srv := newTestServer(&fakeEngine{err: rag.ErrEmptyQuery}, &fakeIndex{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":""}`))
	srv.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, rag.ErrEmptyQuery.Error(), resp["error"])
}

func TestHandleQueryMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeIndex{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/query", nil)
	srv.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeIndex{count: 42})

	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, float64(42), resp["vector_db_items"])
}

func TestHandleHealthUnhealthy(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeIndex{err: fmt.Errorf("qdrant unreachable")})

	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp["status"])
}

func TestHandleInfo(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeIndex{})

	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "documentation", resp["collection_name"])
	assert.Equal(t, "text-embedding-3-small", resp["embedding_model"])
}
