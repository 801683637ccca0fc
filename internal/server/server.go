// Package server exposes the concierge over HTTP: one endpoint per dialogue
// operation, the reviewer side of the approval queue, health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chinook-concierge/agent/approval"
	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	nodex "github.com/tanpawarit/chinook-concierge/agent/nodes"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
)

type Config struct {
	Addr              string        `envconfig:"ADDR" default:":8080"`
	ReadHeaderTimeout time.Duration `split_words:"true" default:"5s"`
	WriteTimeout      time.Duration `split_words:"true" default:"120s"`
	ShutdownTimeout   time.Duration `split_words:"true" default:"15s"`
}

// Dialogue runs user turns.
type Dialogue interface {
	Run(ctx context.Context, in nodex.GraphInput) (nodex.GraphOutput, error)
}

// Approvals is the reviewer side of the approval queue.
type Approvals interface {
	List(ctx context.Context, status approval.Status) ([]approval.Record, error)
	Resolve(ctx context.Context, id string, approve bool, reviewer string) (approval.Record, error)
}

type Server struct {
	dialogue  Dialogue
	approvals Approvals
	gatherer  prometheus.Gatherer
	router    *http.ServeMux
}

func New(dialogue Dialogue, approvals Approvals, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		dialogue:  dialogue,
		approvals: approvals,
		gatherer:  gatherer,
		router:    http.NewServeMux(),
	}
	s.registerHandlers()
	return s
}

func (s *Server) registerHandlers() {
	s.router.HandleFunc("POST /v1/sessions/{id}/messages", s.handleMessage)
	s.router.HandleFunc("POST /v1/sessions/{id}/resume", s.handleResume)
	s.router.HandleFunc("GET /v1/approvals", s.handleListApprovals)
	s.router.HandleFunc("POST /v1/approvals/{id}", s.handleResolveApproval)
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	if s.gatherer != nil {
		s.router.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, cfg Config) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	log.Info().Msg("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

type messageRequest struct {
	Text string `json:"text"`
}

type resolveRequest struct {
	Approve  bool   `json:"approve"`
	Reviewer string `json:"reviewer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	s.runTurn(w, r, nodex.GraphInput{SessionID: r.PathValue("id"), Text: req.Text})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.runTurn(w, r, nodex.GraphInput{SessionID: r.PathValue("id"), Resume: true})
}

func (s *Server) runTurn(w http.ResponseWriter, r *http.Request, in nodex.GraphInput) {
	out, err := s.dialogue.Run(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	status, err := approval.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	recs, err := s.approvals.List(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleResolveApproval(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	reviewer := strings.TrimSpace(req.Reviewer)
	if reviewer == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "reviewer is required"})
		return
	}
	rec, err := s.approvals.Resolve(r.Context(), r.PathValue("id"), req.Approve, reviewer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, nodex.ErrInvalidMessage),
		errors.Is(err, statex.ErrInvalidSession),
		errors.Is(err, approval.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, approval.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contractx.ErrNothingToResume),
		errors.Is(err, approval.ErrAlreadyResolved):
		return http.StatusConflict
	case errors.Is(err, contractx.ErrModelInvoke),
		errors.Is(err, contractx.ErrMalformedPlan),
		errors.Is(err, contractx.ErrSchemaViolation),
		errors.Is(err, contractx.ErrStepLimit):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", code).Msg("request failed")
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}
