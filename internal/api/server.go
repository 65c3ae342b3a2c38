// Package api wires the bot's modules together and exposes the operator HTTP
// endpoints.
//
// The HTTP surface is for operators only: health, session/submission
// statistics, and the failed-submission list used for manual ledger recovery.
// Participants never touch it.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/frol/connect-volunteers-bot/internal/models"
	"github.com/frol/connect-volunteers-bot/internal/store"
)

// Constants for the operator API configuration
const (
	// DefaultAddr is the default listen address for the operator API.
	DefaultAddr = ":8080"
	// requestTimeout bounds one operator API request.
	requestTimeout = 15 * time.Second
)

// Opts holds configuration options for the operator API.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the operator API.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server serves the operator endpoints backed by the store.
type Server struct {
	store store.Store
	addr  string
}

// NewServer creates an operator API server.
func NewServer(st store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{store: st, addr: cfg.Addr}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Router builds the chi router with the operator endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/submissions/failed", s.handleFailedSubmissions)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statsResponse is the payload of GET /stats.
type statsResponse struct {
	ActiveSessions       int `json:"active_sessions"`
	SubmissionsTotal     int `json:"submissions_total"`
	SubmissionsDelivered int `json:"submissions_delivered"`
	SubmissionsFailed    int `json:"submissions_failed"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	activeSessions, err := s.store.CountActiveSessions()
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := s.store.CountSubmissions("")
	if err != nil {
		writeError(w, err)
		return
	}
	delivered, err := s.store.CountSubmissions(models.SubmissionDelivered)
	if err != nil {
		writeError(w, err)
		return
	}
	failed, err := s.store.CountSubmissions(models.SubmissionFailed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		ActiveSessions:       activeSessions,
		SubmissionsTotal:     total,
		SubmissionsDelivered: delivered,
		SubmissionsFailed:    failed,
	})
}

func (s *Server) handleFailedSubmissions(w http.ResponseWriter, r *http.Request) {
	submissions, err := s.store.ListSubmissions(models.SubmissionFailed)
	if err != nil {
		writeError(w, err)
		return
	}
	if submissions == nil {
		submissions = []models.Submission{}
	}
	writeJSON(w, http.StatusOK, submissions)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Operator API failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	slog.Error("Operator API request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
