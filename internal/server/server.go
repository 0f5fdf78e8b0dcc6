package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dshills/juris/internal/explain"
	"github.com/dshills/juris/internal/ingest"
	"github.com/dshills/juris/internal/logging"
	"github.com/dshills/juris/internal/prompts"
	"github.com/dshills/juris/internal/review"
	"github.com/dshills/juris/internal/store"
)

const maxBodyBytes = 10 << 20

// Analyzer reviews contracts.
type Analyzer interface {
	Analyze(ctx context.Context, contract review.Contract, ct prompts.ContractType) (*review.Result, error)
}

// Explainer opens clause explanation streams.
type Explainer interface {
	Explain(ctx context.Context, clause string, ct prompts.ContractType) (*explain.Stream, error)
}

// Store persists review results.
type Store interface {
	SaveReview(ctx context.Context, r *review.Result) error
	GetReview(ctx context.Context, id string) (*review.Result, error)
	ListReviews(ctx context.Context, limit int) ([]store.ReviewSummary, error)
	Totals(ctx context.Context) (store.Totals, error)
}

// Options configures a Server. Store may be nil, in which case review
// history endpoints answer 503 and nothing is persisted.
type Options struct {
	Analyzer  Analyzer
	Explainer Explainer
	Store     Store
	Logger    *zap.Logger
}

// Server routes HTTP requests to the review engine and explainer.
type Server struct {
	analyzer  Analyzer
	explainer Explainer
	store     Store
	log       *zap.Logger
	router    *mux.Router
}

// New creates a Server.
func New(opts Options) *Server {
	s := &Server{
		analyzer:  opts.Analyzer,
		explainer: opts.Explainer,
		store:     opts.Store,
		log:       logging.OrGlobal(opts.Logger).Named("server"),
		router:    mux.NewRouter(),
	}
	s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(requestLogger(s.log))
	s.router.Use(recoverer(s.log))

	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	// registered on the root router so a method mismatch answers 405
	s.router.HandleFunc("/v1/reviews", s.createReview).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/reviews", s.listReviews).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/reviews/{id}", s.getReview).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/analytics", s.analytics).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/explain", s.explainClause).Methods(http.MethodPost)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return eris.Wrap(err, "serving http")
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutting down")
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type reviewRequest struct {
	ContractType string          `json:"contract_type"`
	Contract     review.Contract `json:"contract"`
	// HTML, when set, replaces Contract.Clauses with the marked list items.
	HTML string `json:"html,omitempty"`
	Save *bool  `json:"save,omitempty"`
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	contract := req.Contract
	if req.HTML != "" {
		_, clauses, err := ingest.MarkClauses(req.HTML)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		contract.Clauses = clauses
		if contract.Title == "" {
			contract.Title = ingest.Title(req.HTML)
		}
	}
	if len(contract.Clauses) == 0 {
		writeError(w, http.StatusBadRequest, "contract has no clauses")
		return
	}

	ct := contractType(req.ContractType)
	result, err := s.analyzer.Analyze(r.Context(), contract, ct)
	if err != nil {
		if eris.Is(err, review.ErrDuplicateClauseKey) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("review failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "review failed")
		return
	}

	if s.store != nil && (req.Save == nil || *req.Save) {
		if err := s.store.SaveReview(r.Context(), result); err != nil {
			s.log.Error("saving review failed", zap.String("review_id", result.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "saving review failed")
			return
		}
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	reviews, err := s.store.ListReviews(r.Context(), limit)
	if err != nil {
		s.log.Error("listing reviews failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listing reviews failed")
		return
	}
	if reviews == nil {
		reviews = []store.ReviewSummary{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := mux.Vars(r)["id"]
	result, err := s.store.GetReview(r.Context(), id)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "review not found")
			return
		}
		s.log.Error("loading review failed", zap.String("review_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "loading review failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) analytics(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	totals, err := s.store.Totals(r.Context())
	if err != nil {
		s.log.Error("computing analytics failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "computing analytics failed")
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

type explainRequest struct {
	Clause       string `json:"clause"`
	ContractType string `json:"contract_type"`
}

func (s *Server) explainClause(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Clause) == "" {
		writeError(w, http.StatusBadRequest, "clause is required")
		return
	}

	stream, err := s.explainer.Explain(r.Context(), req.Clause, contractType(req.ContractType))
	if err != nil {
		s.log.Error("opening explanation failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "explanation unavailable")
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	flush := func() {}
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	if _, err := stream.CopyFlush(w, flush); err != nil {
		// headers are already sent; the client sees a truncated body
		s.log.Warn("explanation stream ended early", zap.Error(err))
	}
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "review store not configured")
		return false
	}
	return true
}

func contractType(s string) prompts.ContractType {
	if strings.TrimSpace(s) == "" {
		return prompts.Other
	}
	return prompts.Normalize(s)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
