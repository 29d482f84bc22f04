package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// DefaultMaxRequestSize bounds the size of a request body.
const DefaultMaxRequestSize = 5 * 1024 * 1024

// ServerConfig holds the HTTP transport limits.
type ServerConfig struct {
	MaxBatchSize   int
	MaxRequestSize int64
	Parallelism    int
}

// DefaultServerConfig returns the default transport limits.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MaxBatchSize:   DefaultMaxBatchSize,
		MaxRequestSize: DefaultMaxRequestSize,
		Parallelism:    DefaultParallelism,
	}
}

// Server is a JSON-RPC HTTP server that dispatches requests to the EthAPI.
type Server struct {
	api     *EthAPI
	batch   *BatchHandler
	maxBody int64
	mux     *http.ServeMux
}

// NewServer creates a JSON-RPC server over api.
func NewServer(api *EthAPI, cfg ServerConfig) *Server {
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = DefaultMaxRequestSize
	}
	batch := NewBatchHandler(api)
	if cfg.MaxBatchSize > 0 {
		batch.SetMaxBatchSize(cfg.MaxBatchSize)
	}
	if cfg.Parallelism > 0 {
		batch.SetParallelism(cfg.Parallelism)
	}
	s := &Server{
		api:     api,
		batch:   batch,
		maxBody: cfg.MaxRequestSize,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/", s.handleRPC)
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.api.resolver.Head(r.Context()); err != nil {
		http.Error(w, "no canonical head", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, ErrCodeInvalidRequest, "request body too large")
			return
		}
		writeError(w, ErrCodeParse, "failed to read request body")
		return
	}

	if IsBatchRequest(body) {
		responses, err := s.batch.HandleBatch(r.Context(), body)
		switch {
		case errors.Is(err, ErrBatchEmpty):
			writeError(w, ErrCodeInvalidRequest, "empty batch")
		case errors.Is(err, ErrBatchTooLarge):
			writeError(w, ErrCodeInvalidRequest, "batch too large")
		case err != nil:
			writeError(w, ErrCodeParse, "invalid JSON")
		default:
			writeJSON(w, responses)
		}
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, ErrCodeParse, "invalid JSON")
		return
	}
	writeJSON(w, s.api.HandleRequest(r.Context(), &req))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, errorResponse(nil, &RPCError{Code: code, Message: message}))
}
