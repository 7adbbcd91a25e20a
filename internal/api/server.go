// Package api exposes the query engine over HTTP: POST /query plus the
// /health and /info read-only endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ivpetrov/docsrag/internal/rag"
)

// Request defaults matching the query contract.
const (
	defaultMaxResults  = rag.DefaultMaxResults
	defaultTemperature = 0.7
)

// QueryProcessor handles one query end to end. *rag.Engine implements it.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, query string, maxResults int, temperature float64) (*rag.Response, error)
}

// IndexInfo reports the size of the vector index. *index.Manager
// implements it.
type IndexInfo interface {
	Count(ctx context.Context) (uint64, error)
}

// Config holds server dependencies and the values reported by /info.
type Config struct {
	Engine         QueryProcessor
	Index          IndexInfo
	CollectionName string
	EmbeddingModel string
	Logger         *slog.Logger
}

// Server routes HTTP requests to the query engine.
type Server struct {
	engine         QueryProcessor
	index          IndexInfo
	collectionName string
	embeddingModel string
	logger         *slog.Logger
}

// NewServer creates a server from the given configuration.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:         cfg.Engine,
		index:          cfg.Index,
		collectionName: cfg.CollectionName,
		embeddingModel: cfg.EmbeddingModel,
		logger:         logger,
	}
}

// Mux returns the HTTP handler with all routes registered.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /info", s.handleInfo)
	return mux
}

type queryRequest struct {
	Query       string  `json:"query"`
	MaxResults  int     `json:"max_results"`
	Temperature float64 `json:"temperature"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleQuery validates the request and runs the query pipeline. Engine
// errors are validation failures by contract, so they map to 400;
// downstream failures are already converted to well-formed answers.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req := queryRequest{
		MaxResults:  defaultMaxResults,
		Temperature: defaultTemperature,
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}

	resp, err := s.engine.ProcessQuery(r.Context(), req.Query, req.MaxResults, req.Temperature)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status        string `json:"status"`
	VectorDBItems uint64 `json:"vector_db_items"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	count, err := s.index.Count(ctx)
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", VectorDBItems: count})
}

type infoResponse struct {
	CollectionName string `json:"collection_name"`
	EmbeddingModel string `json:"embedding_model"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{
		CollectionName: s.collectionName,
		EmbeddingModel: s.embeddingModel,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
