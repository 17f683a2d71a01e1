// Package metrics provides Prometheus metrics for the price history pipeline.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceRequestsTotal is a counter of quote source calls by outcome.
	SourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_requests_total",
			Help: "Total number of quote source searches by outcome",
		},
		[]string{"source", "status"},
	)

	// SourceRequestDuration is a histogram of quote source latencies.
	SourceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_request_duration_seconds",
			Help:    "Duration of quote source searches",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"source"},
	)

	// QuotesReturnedTotal is a counter of quotes returned by sources.
	QuotesReturnedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotes_returned_total",
			Help: "Total number of quotes returned by sources",
		},
		[]string{"source"},
	)

	// CurrencyRejectionsTotal is a counter of quotes dropped for a currency mismatch.
	CurrencyRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "currency_rejections_total",
			Help: "Total number of quotes dropped because their currency differed from the request",
		},
		[]string{"source"},
	)

	// CacheLookupsTotal is a counter of quote cache lookups.
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_cache_lookups_total",
			Help: "Total number of quote cache lookups by result",
		},
		[]string{"source", "result"},
	)

	// ScansTotal is a counter of route/date scans by outcome.
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scans_total",
			Help: "Total number of route/date scans",
		},
		[]string{"status"},
	)

	// StoreOperationDuration is a histogram of price store operation latencies.
	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of price store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// StoreErrorsTotal is a counter of price store failures.
	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Total number of price store failures",
		},
		[]string{"operation"},
	)

	// PriceRecordsTotal is a counter of appended price records.
	PriceRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "price_records_appended_total",
			Help: "Total number of price records appended",
		},
	)

	// DealsFound is a gauge of deals returned by the last deal query.
	DealsFound = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "deals_found",
			Help: "Number of deals returned by the most recent query",
		},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 30},
		},
		[]string{"endpoint"},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default Prometheus registry.
// Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			SourceRequestsTotal,
			SourceRequestDuration,
			QuotesReturnedTotal,
			CurrencyRejectionsTotal,
			CacheLookupsTotal,
			ScansTotal,
			StoreOperationDuration,
			StoreErrorsTotal,
			PriceRecordsTotal,
			DealsFound,
			HTTPRequestsTotal,
			HTTPRequestDuration,
		)
	})
}

// NewServer returns an HTTP server exposing the default registry on path.
func NewServer(addr, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Serve runs the metrics server until ctx is done, then shuts it down.
func Serve(ctx context.Context, addr, path string) error {
	server := NewServer(addr, path)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}

// RecordSourceRequest records one quote source search.
func RecordSourceRequest(source, status string, quotes int, duration time.Duration) {
	SourceRequestsTotal.WithLabelValues(source, status).Inc()
	SourceRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
	if quotes > 0 {
		QuotesReturnedTotal.WithLabelValues(source).Add(float64(quotes))
	}
}

// RecordCurrencyRejection records a quote dropped for a currency mismatch.
func RecordCurrencyRejection(source string) {
	CurrencyRejectionsTotal.WithLabelValues(source).Inc()
}

// RecordCacheLookup records a quote cache hit, miss or error.
func RecordCacheLookup(source, result string) {
	CacheLookupsTotal.WithLabelValues(source, result).Inc()
}

// RecordScan records one route/date scan.
func RecordScan(status string) {
	ScansTotal.WithLabelValues(status).Inc()
}

// RecordStoreOperation records a price store operation and its outcome.
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// RecordAppended records appended price records.
func RecordAppended(n int) {
	PriceRecordsTotal.Add(float64(n))
}

// RecordDeals records the size of a deal query result.
func RecordDeals(n int) {
	DealsFound.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
