package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/beu-results/pkg/batch"
	"github.com/Sternrassler/beu-results/pkg/config"
	"github.com/Sternrassler/beu-results/pkg/logging"
	"github.com/Sternrassler/beu-results/pkg/metrics"
	"github.com/Sternrassler/beu-results/pkg/planner"
	"github.com/Sternrassler/beu-results/pkg/result"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Client-facing messages.
const (
	msgMissingCoreParams = "Missing 'reg_no' or 'year' query parameter"
	msgMissingEdgeParams = "Please provide all required parameters: sem, year, and reg_no"
	msgInvalidRegNo      = "Please provide a valid registration number."
	msgInvalidSuffix     = "Invalid last 3 digits of registration number."
	msgInvalidSemester   = "Invalid semester"
	msgFetchFailed       = "An error occurred while fetching student data."
)

// server serves result lookups over HTTP.
type server struct {
	mode         string
	orchestrator *batch.Orchestrator
	aggregator   *batch.Aggregator
	redis        *redis.Client
	logger       zerolog.Logger
}

func newServer(a *app) *server {
	return &server{
		mode:         a.cfg.Server.Mode,
		orchestrator: a.orchestrator,
		aggregator:   a.aggregator,
		redis:        a.redis,
		logger:       logging.NewLogger("http"),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", s.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	if s.mode == config.ModeEdge {
		mux.HandleFunc("/result", s.edgeHandler)
	} else {
		mux.HandleFunc("/result", s.coreHandler)
	}

	return s.withRequestID(withCORS(mux))
}

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

// withCORS adds CORS headers to every response and answers preflights.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w.Header())
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestID tags each request with an id and logs its completion.
func (s *server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = logging.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := logging.WithRequestID(r.Context(), id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(ctx))

		logger := logging.Enrich(ctx, s.logger)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			writeText(w, http.StatusServiceUnavailable, "Redis unavailable")
			return
		}
	}
	writeText(w, http.StatusOK, "READY")
}

// coreHandler serves GET /result?reg_no&year&sem.
func (s *server) coreHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	regNo, year := q.Get("reg_no"), q.Get("year")
	if regNo == "" || year == "" {
		writeError(w, http.StatusBadRequest, msgMissingCoreParams)
		return
	}

	semester := batch.DefaultSemester
	if raw := q.Get("sem"); raw != "" {
		sem, ok := batch.Semester(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, msgInvalidSemester)
			return
		}
		semester = sem
	}

	entries, err := s.orchestrator.Run(r.Context(), batch.Request{Year: year, Semester: semester, RegNo: regNo})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, entries)
	case errors.Is(err, batch.ErrUnknownYear):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("No results available for the year %s", year))
	case errors.Is(err, planner.ErrInvalidRegNo):
		writeError(w, http.StatusBadRequest, msgInvalidRegNo)
	default:
		logger := logging.Enrich(r.Context(), s.logger)
		logger.Error().Err(err).Str("reg_no", regNo).Msg("Core lookup failed")
		writeError(w, http.StatusInternalServerError, msgFetchFailed)
	}
}

// edgeHandler serves GET /result?sem&year&reg_no.
func (s *server) edgeHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sem, year, regNo := q.Get("sem"), q.Get("year"), q.Get("reg_no")
	if sem == "" || year == "" || regNo == "" {
		writeText(w, http.StatusBadRequest, msgMissingEdgeParams)
		return
	}
	if len(regNo) < batch.MinRegNoLength {
		writeText(w, http.StatusBadRequest, msgInvalidRegNo)
		return
	}
	if _, err := s.orchestrator.BaseURL(year); err != nil {
		writeText(w, http.StatusBadRequest, fmt.Sprintf("No results available for the year %s", year))
		return
	}

	entries, err := s.aggregator.Run(r.Context(), batch.EdgeRequest{Semester: sem, Year: year, RegNo: regNo})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, entries)
	case errors.Is(err, planner.ErrInvalidSuffix), errors.Is(err, planner.ErrInvalidRegNo):
		writeText(w, http.StatusBadRequest, msgInvalidSuffix)
	case errors.Is(err, batch.ErrShortRegNo), errors.Is(err, planner.ErrCohortOutOfRange):
		writeText(w, http.StatusBadRequest, msgInvalidRegNo)
	default:
		logger := logging.Enrich(r.Context(), s.logger)
		logger.Error().Err(err).Str("reg_no", regNo).Msg("Edge lookup failed")
		writeError(w, http.StatusInternalServerError, msgFetchFailed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	if entries, ok := v.([]result.Entry); ok && entries == nil {
		v = []result.Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(strings.TrimSpace(msg)))
}
