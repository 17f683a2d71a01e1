// Package aggregator fans a search out to every configured quote source and
// merges the results.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/San4ouzs/Flight-deals-eu/pkg/logging"
	"github.com/San4ouzs/Flight-deals-eu/pkg/metrics"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
)

const (
	DefaultSourceTimeout = 20 * time.Second
	DefaultConcurrency   = 4
)

// Status classifies how a single source answered a search.
type Status string

const (
	StatusOK          Status = "ok"
	StatusEmpty       Status = "empty"
	StatusUnavailable Status = "unavailable"
)

// Outcome is the per-source part of a Result.
type Outcome struct {
	Source   string        `json:"source"`
	Status   Status        `json:"status"`
	Count    int           `json:"count"`
	Rejected int           `json:"rejected,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Result holds the merged quotes of one search, cheapest first, and one
// Outcome per source in registration order.
type Result struct {
	Quotes   []sources.Quote
	Outcomes []Outcome
}

// Best returns the cheapest quote, if any.
func (r *Result) Best() (sources.Quote, bool) {
	if len(r.Quotes) == 0 {
		return sources.Quote{}, false
	}
	return r.Quotes[0], true
}

// Options tune the fan-out.
type Options struct {
	SourceTimeout          time.Duration
	Concurrency            int
	RejectCurrencyMismatch bool
}

// Aggregator queries an explicit, ordered list of sources.
type Aggregator struct {
	sources []sources.Source
	opts    Options
	logger  *logging.Logger
}

// New creates an aggregator over srcs. Order matters: quotes with equal prices
// keep the order of the sources that produced them.
func New(srcs []sources.Source, opts Options, logger *logging.Logger) *Aggregator {
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = DefaultSourceTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	list := make([]sources.Source, len(srcs))
	copy(list, srcs)

	return &Aggregator{
		sources: list,
		opts:    opts,
		logger:  logger.With("component", "aggregator"),
	}
}

// Sources returns the registered sources in order.
func (a *Aggregator) Sources() []sources.Source {
	list := make([]sources.Source, len(a.sources))
	copy(list, a.sources)
	return list
}

// SearchAll returns every quote for req, cheapest first. Individual source
// failures are absorbed; the only error is sources.ErrInvalidInput.
func (a *Aggregator) SearchAll(ctx context.Context, req sources.SearchRequest) ([]sources.Quote, error) {
	res, err := a.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Quotes, nil
}

// Search is SearchAll with per-source outcomes attached.
func (a *Aggregator) Search(ctx context.Context, req sources.SearchRequest) (*Result, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	slots := make([][]sources.Quote, len(a.sources))
	outcomes := make([]Outcome, len(a.sources))

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)

	for i, src := range a.sources {
		g.Go(func() error {
			slots[i], outcomes[i] = a.query(ctx, src, req)
			return nil
		})
	}
	_ = g.Wait()

	var merged []sources.Quote
	for _, quotes := range slots {
		merged = append(merged, quotes...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Price.LessThan(merged[j].Price)
	})
	if merged == nil {
		merged = []sources.Quote{}
	}

	a.logger.Debug("Search complete", "route", req.Route(), "date", req.Date.Format(sources.DateLayout), "quotes", len(merged))
	return &Result{Quotes: merged, Outcomes: outcomes}, nil
}

func (a *Aggregator) query(ctx context.Context, src sources.Source, req sources.SearchRequest) ([]sources.Quote, Outcome) {
	start := time.Now()
	out := Outcome{Source: src.Name()}

	quotes, err := a.call(ctx, src, req)
	out.Duration = time.Since(start)

	if err != nil {
		out.Status = StatusUnavailable
		out.Err = err
		a.logger.Warn("Source unavailable, skipping",
			"source", src.Name(),
			"route", req.Route(),
			"date", req.Date.Format(sources.DateLayout),
			"error", err,
		)
		metrics.RecordSourceRequest(src.Name(), string(out.Status), 0, out.Duration)
		return nil, out
	}

	kept := quotes[:0:0]
	for _, q := range quotes {
		if q.Source == "" {
			q.Source = src.Name()
		}
		if a.opts.RejectCurrencyMismatch && q.Currency != req.Currency {
			out.Rejected++
			metrics.RecordCurrencyRejection(src.Name())
			a.logger.Warn("Dropping quote in unexpected currency",
				"source", src.Name(),
				"route", req.Route(),
				"currency", q.Currency,
				"expected", req.Currency,
			)
			continue
		}
		kept = append(kept, q)
	}

	out.Count = len(kept)
	out.Status = StatusOK
	if len(kept) == 0 {
		out.Status = StatusEmpty
	}
	metrics.RecordSourceRequest(src.Name(), string(out.Status), len(kept), out.Duration)
	return kept, out
}

// call runs one source under the per-source timeout. A panic is reported as
// sources.ErrSourcePanic and a timeout as sources.ErrSourceUnavailable. A
// source that ignores its context is abandoned once the deadline passes.
func (a *Aggregator) call(ctx context.Context, src sources.Source, req sources.SearchRequest) ([]sources.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.SourceTimeout)
	defer cancel()

	type result struct {
		quotes []sources.Quote
		err    error
	}
	// buffered so an abandoned search can still deliver and exit
	ch := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("%w: %v", sources.ErrSourcePanic, r)}
			}
		}()
		quotes, err := src.Search(ctx, req)
		ch <- result{quotes: quotes, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", sources.ErrSourceUnavailable, ctx.Err())
		}
		return res.quotes, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", sources.ErrSourceUnavailable, ctx.Err())
	}
}
