// Package server exposes the drafting pipeline over a small HTTP API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/policyops/regamend/pkg/errors"
	"github.com/policyops/regamend/pkg/llm"
	"github.com/policyops/regamend/pkg/pipeline"
)

// maxUploadBytes bounds regulation uploads.
const maxUploadBytes = 50 << 20

// Server is the HTTP facade over the pipeline.
type Server struct {
	pipeline  *pipeline.Pipeline
	uploadDir string
	logger    *slog.Logger
	http      *http.Server
}

// New creates the server listening on addr.
func New(addr string, p *pipeline.Pipeline, uploadDir string) *Server {
	s := &Server{
		pipeline:  p,
		uploadDir: uploadDir,
		logger:    slog.Default().With("component", "http-server"),
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/regulation/upload", s.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/policies/ingest", s.handleIngest).Methods(http.MethodPost)
	api.HandleFunc("/policies/rebuild", s.handleRebuild).Methods(http.MethodPost)
	api.HandleFunc("/match/{taskID}", s.handleMatch).Methods(http.MethodPost)
	api.HandleFunc("/suggest/{taskID}", s.handleSuggest).Methods(http.MethodPost)
	api.HandleFunc("/suggestions/{taskID}", s.handleGetSuggestions).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.handleTasks).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload accepts a multipart regulation document, stores it, and parses
// it into a new task.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, apperrors.NewValidation("invalid multipart upload: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, apperrors.NewValidation("missing file field"))
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." {
		s.writeError(w, apperrors.NewValidation("invalid filename"))
		return
	}

	path, err := s.saveUpload(file, name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	record, err := s.pipeline.ParseRegulation(r.Context(), path)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) saveUpload(file io.Reader, name string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", apperrors.WrapInternal(err, "failed to create upload directory")
	}
	path := filepath.Join(s.uploadDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", apperrors.WrapInternal(err, "failed to store upload")
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		return "", apperrors.WrapInternal(err, "failed to store upload")
	}
	return path, nil
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	report, err := s.pipeline.IngestPolicies(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.RebuildIndex(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	report, err := s.pipeline.IngestPolicies(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskID"]
	record, err := s.pipeline.Match(r.Context(), taskID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

// suggestRequest carries optional per-request generation overrides.
type suggestRequest struct {
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int32   `json:"max_output_tokens"`
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskID"]

	var req suggestRequest
	if r.Body != nil {
		// An empty or absent body means defaults; only malformed JSON is an error.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			s.writeError(w, apperrors.NewValidation("invalid request body: %v", err))
			return
		}
	}

	record, err := s.pipeline.Suggest(r.Context(), taskID, llm.Options{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleGetSuggestions(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskID"]
	record, err := s.pipeline.LoadSuggestions(taskID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.pipeline.History()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.pipeline.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperrors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	} else {
		s.logger.Warn("request rejected", "status", status, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
