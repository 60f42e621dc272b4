package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/ragbot/internal/biz/domain"
	"github.com/example/ragbot/internal/biz/repo"
	"github.com/example/ragbot/internal/biz/usecase"
)

const apiVersion = "1.0.0"

// Server exposes the query and cache administration HTTP surface
type Server struct {
	answering *usecase.Answering
	cache     repo.CacheRepo

	server *http.Server
	port   int
}

// NewServer creates a new API server
func NewServer(answering *usecase.Answering, cache repo.CacheRepo, port int) *Server {
	return &Server{
		answering: answering,
		cache:     cache,
		port:      port,
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/cache/stats", s.handleCacheStats)
	mux.HandleFunc("/cache/clear", s.handleCacheClear)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	fmt.Printf("[API] Starting HTTP server on port %d\n", s.port)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Shutdown(context.Background())
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "RAG Chat API",
		"version": apiVersion,
		"endpoints": []string{
			"/query - Get contextual responses",
			"/cache/stats - Get cache statistics",
			"/cache/clear - Clear expired cache entries",
		},
	})
}

// QueryRequest is the body of POST /query
type QueryRequest struct {
	Query      string `json:"query"`
	MaxContext int    `json:"max_context"`
	UseCache   *bool  `json:"use_cache"`
}

// QueryResponse is the body of a successful POST /query
type QueryResponse struct {
	Answer    string              `json:"answer"`
	Context   []domain.ContextRef `json:"context"`
	Timestamp string              `json:"timestamp"`
	Query     string              `json:"query"`
	Cached    bool                `json:"cached"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}

	result, err := s.answering.Answer(r.Context(), req.Query, req.MaxContext, useCache)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctxRefs := result.Context
	if ctxRefs == nil {
		ctxRefs = []domain.ContextRef{}
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Answer:    result.Answer,
		Context:   ctxRefs,
		Timestamp: result.Timestamp.Format(time.RFC3339),
		Query:     result.Query,
		Cached:    result.Cached,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Stats(r.Context()))
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	cleared, stats, err := s.cache.ClearExpired(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cleared_entries": cleared,
		"current_stats":   stats,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Printf("[API] Failed to encode response: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
