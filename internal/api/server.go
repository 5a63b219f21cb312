// Package api exposes the trigger, health and status endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/saleops/pagepulse/internal/coverage"
	"github.com/saleops/pagepulse/internal/runner"
	"github.com/saleops/pagepulse/internal/segment"
	"github.com/saleops/pagepulse/internal/store"
)

// CycleRunner triggers a batch cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*runner.Report, error)
}

// Storage is the read/write surface the handlers need.
type Storage interface {
	Ping(ctx context.Context) error
	ListConversations(ctx context.Context) ([]store.Conversation, error)
	LastRun(ctx context.Context) (*store.RunRecord, error)
	InsertSessions(ctx context.Context, sourceRef string, sessions []segment.Session) error
}

type Server struct {
	router *chi.Mux
	port   int

	runner    CycleRunner
	db        Storage
	gap       time.Duration
	threshold int
	logger    *slog.Logger
}

func NewServer(port int, r CycleRunner, db Storage, gap time.Duration, threshold int, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		port:      port,
		runner:    r,
		db:        db,
		gap:       gap,
		threshold: threshold,
		logger:    logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/status", s.status)
	router.Post("/api/v1/analyze", s.analyze)
	router.Post("/api/v1/sessionize", s.sessionize)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]any{"database": "ok"}

	if err := s.db.Ping(ctx); err != nil {
		resp["database"] = "unreachable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	convs, err := s.db.ListConversations(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("list conversations: %v", err))
		return
	}
	resp["conversations"] = len(convs)
	resp["backlog"] = len(coverage.SelectBacklog(convs, s.threshold))

	if last, err := s.db.LastRun(ctx); err == nil && last != nil {
		resp["last_run"] = map[string]any{
			"id":          last.ID,
			"finished_at": last.FinishedAt,
			"status":      last.Status,
			"analyzed":    last.Analyzed,
			"errors":      len(last.Errors),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// analyze runs a full batch cycle synchronously and returns its report.
// Per-conversation failures live inside the report; only infrastructure
// failures produce a non-200.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	report, err := s.runner.RunCycle(r.Context())
	if err != nil {
		s.logger.Error("cycle failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// sessionize accepts a raw chat export, segments it into sessions and
// persists them. The whole upload is rejected on any malformed timestamp.
func (s *Server) sessionize(w http.ResponseWriter, r *http.Request) {
	raw, err := segment.DecodeRawLog(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = segment.DefaultPrefix(time.Now())
	}

	sessions, err := segment.Segment(raw.Messages, s.gap, prefix)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.db.InsertSessions(r.Context(), prefix, sessions); err != nil {
		s.logger.Error("failed to persist sessions", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_count": len(sessions),
		"sessions":      sessions,
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
