// Package api provides the HTTP and WebSocket endpoints of the flight deals server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"

	"github.com/San4ouzs/Flight-deals-eu/pkg/aggregator"
	"github.com/San4ouzs/Flight-deals-eu/pkg/deals"
	"github.com/San4ouzs/Flight-deals-eu/pkg/logging"
	"github.com/San4ouzs/Flight-deals-eu/pkg/metrics"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
	"github.com/San4ouzs/Flight-deals-eu/pkg/store"
)

// Searcher runs a fan-out search.
type Searcher interface {
	Search(ctx context.Context, req sources.SearchRequest) (*aggregator.Result, error)
	Sources() []sources.Source
}

// DealFinder computes deals.
type DealFinder interface {
	FindDeals(ctx context.Context, thresholdPct float64, limit int) ([]deals.Deal, error)
}

// PriceStore is the part of the store the API reads directly.
type PriceStore interface {
	History(ctx context.Context, origin, destination string, date time.Time) ([]store.PriceRecord, error)
	Ping(ctx context.Context) error
}

// Defaults applied to query parameters that are not given.
type Defaults struct {
	Threshold float64
	Limit     int
	Currency  string
	MaxStops  int
}

// Server represents the HTTP API server.
type Server struct {
	addr     string
	searcher Searcher
	finder   DealFinder
	store    PriceStore
	defaults Defaults
	server   *http.Server
	logger   *logging.Logger
	timeout  time.Duration
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, searcher Searcher, finder DealFinder, st PriceStore, defaults Defaults, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if defaults.Limit <= 0 {
		defaults.Limit = deals.DefaultLimit
	}
	if defaults.Currency == "" {
		defaults.Currency = "EUR"
	}
	s := &Server{
		addr:     addr,
		searcher: searcher,
		finder:   finder,
		store:    st,
		defaults: defaults,
		logger:   logger.With("component", "http"),
		timeout:  60 * time.Second,
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the routed handler with recovery, compression and request
// metrics applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/deals", s.handleDeals)
	mux.HandleFunc("GET /v1/search", s.handleSearch)
	mux.HandleFunc("GET /v1/sources", s.handleSources)
	mux.HandleFunc("GET /v1/history", s.handleHistory)

	h := s.instrument(mux)
	h = handlers.CompressHandler(h)
	h = handlers.CORS(handlers.AllowedMethods([]string{http.MethodGet}))(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}), handlers.PrintRecoveryStack(false))(h)
	return h
}

// Start starts the HTTP server and blocks until it stops. It returns nil at
// once if Stop already ran.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth reports whether the price store is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("Health check failed", "error", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type dealsResponse struct {
	Threshold float64      `json:"threshold"`
	Limit     int          `json:"limit"`
	Count     int          `json:"count"`
	Deals     []deals.Deal `json:"deals"`
}

// handleDeals handles /v1/deals?threshold=-20&limit=50.
func (s *Server) handleDeals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	threshold := s.defaults.Threshold
	if v := q.Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.sendError(w, http.StatusBadRequest, fmt.Errorf("%w: threshold %q", sources.ErrInvalidInput, v))
			return
		}
		threshold = f
	}

	limit := s.defaults.Limit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.sendError(w, http.StatusBadRequest, fmt.Errorf("%w: limit %q", sources.ErrInvalidInput, v))
			return
		}
		limit = n
	}

	found, err := s.finder.FindDeals(r.Context(), threshold, limit)
	if err != nil {
		s.sendError(w, statusFor(err), err)
		return
	}

	s.sendJSON(w, http.StatusOK, dealsResponse{Threshold: threshold, Limit: limit, Count: len(found), Deals: found})
}

type outcomeData struct {
	Source     string `json:"source"`
	Status     string `json:"status"`
	Count      int    `json:"count"`
	Rejected   int    `json:"rejected,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type searchResponse struct {
	Quotes  []sources.Quote `json:"quotes"`
	Sources []outcomeData   `json:"sources"`
}

// handleSearch handles /v1/search?origin=RIX&destination=FRA&date=2024-06-01.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseSearchRequest(r)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.searcher.Search(ctx, req)
	if err != nil {
		s.sendError(w, statusFor(err), err)
		return
	}

	out := searchResponse{Quotes: res.Quotes, Sources: make([]outcomeData, 0, len(res.Outcomes))}
	for _, o := range res.Outcomes {
		od := outcomeData{
			Source:     o.Source,
			Status:     string(o.Status),
			Count:      o.Count,
			Rejected:   o.Rejected,
			DurationMS: o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			od.Error = o.Err.Error()
		}
		out.Sources = append(out.Sources, od)
	}
	s.sendJSON(w, http.StatusOK, out)
}

func (s *Server) parseSearchRequest(r *http.Request) (sources.SearchRequest, error) {
	q := r.URL.Query()

	date, err := sources.ParseDate(q.Get("date"))
	if err != nil {
		return sources.SearchRequest{}, err
	}

	maxStops := s.defaults.MaxStops
	if v := q.Get("max_stops"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return sources.SearchRequest{}, fmt.Errorf("%w: max_stops %q", sources.ErrInvalidInput, v)
		}
		maxStops = n
	}

	currency := q.Get("currency")
	if currency == "" {
		currency = s.defaults.Currency
	}

	return sources.SearchRequest{
		Origin:      q.Get("origin"),
		Destination: q.Get("destination"),
		Date:        date,
		Currency:    currency,
		MaxStops:    maxStops,
	}, nil
}

type sourceData struct {
	Name       string `json:"name"`
	Mode       string `json:"mode"`
	Healthy    bool   `json:"healthy"`
	LastUpdate string `json:"last_update,omitempty"`
}

// handleSources lists configured sources with their health.
func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	list := s.searcher.Sources()
	out := make([]sourceData, 0, len(list))
	for _, src := range list {
		sd := sourceData{Name: src.Name(), Mode: string(src.Mode()), Healthy: src.IsHealthy()}
		if t := src.LastUpdate(); !t.IsZero() {
			sd.LastUpdate = t.UTC().Format(time.RFC3339)
		}
		out = append(out, sd)
	}
	s.sendJSON(w, http.StatusOK, out)
}

// handleHistory handles /v1/history?origin=RIX&destination=FRA&date=2024-06-01.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := sources.ParseDate(q.Get("date"))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err)
		return
	}
	origin := sources.NormalizeCode(q.Get("origin"))
	destination := sources.NormalizeCode(q.Get("destination"))
	for _, code := range []string{origin, destination} {
		if err := sources.ValidateLocationCode(code); err != nil {
			s.sendError(w, http.StatusBadRequest, err)
			return
		}
	}

	records, err := s.store.History(r.Context(), origin, destination, date)
	if err != nil {
		s.sendError(w, statusFor(err), err)
		return
	}
	s.sendJSON(w, http.StatusOK, records)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sources.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrStorage):
		return http.StatusInternalServerError
	default:
		return http.StatusServiceUnavailable
	}
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "status", status, "error", err)
	}
	s.sendJSON(w, status, map[string]string{"error": err.Error()})
}

// instrument records a request counter and latency per route.
func (s *Server) instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := routeLabel(mux, r)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r)
		metrics.RecordHTTPRequest(route, strconv.Itoa(rec.status), time.Since(start))
	})
}

// unmatchedRoute labels requests that no registered pattern serves.
const unmatchedRoute = "unmatched"

// routeLabel returns the registered pattern that serves r, which keeps the
// endpoint label bounded by the route table.
func routeLabel(mux *http.ServeMux, r *http.Request) string {
	if _, pattern := mux.Handler(r); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// recoveryLogger adapts the logger to handlers.RecoveryHandlerLogger.
type recoveryLogger struct {
	logger *logging.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("Recovered from panic in HTTP handler", "panic", fmt.Sprint(v...))
}
