package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/San4ouzs/Flight-deals-eu/pkg/aggregator"
	"github.com/San4ouzs/Flight-deals-eu/pkg/logging"
	"github.com/San4ouzs/Flight-deals-eu/pkg/metrics"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
)

// Searcher is the aggregator as seen by the scanner.
type Searcher interface {
	Search(ctx context.Context, req sources.SearchRequest) (*aggregator.Result, error)
}

// Recorder persists quotes.
type Recorder interface {
	Append(ctx context.Context, quotes []sources.Quote, observedAt time.Time) error
}

// Plan describes one scan run.
type Plan struct {
	Origins      []string
	Destinations []string
	// Start is the first departure date; zero means today.
	Start     time.Time
	DaysAhead int
	Currency  string
	MaxStops  int
}

// Validate checks codes, currency and ranges.
func (p Plan) Validate() error {
	if len(p.Origins) == 0 {
		return fmt.Errorf("%w: no origins", ErrInvalidPlan)
	}
	if len(p.Destinations) == 0 {
		return fmt.Errorf("%w: no destinations", ErrInvalidPlan)
	}
	for _, code := range append(append([]string{}, p.Origins...), p.Destinations...) {
		if err := sources.ValidateLocationCode(code); err != nil {
			return err
		}
	}
	if err := sources.ValidateCurrency(p.Currency); err != nil {
		return err
	}
	if p.DaysAhead < 0 {
		return fmt.Errorf("%w: days ahead must not be negative", ErrInvalidPlan)
	}
	if p.MaxStops < 0 {
		return fmt.Errorf("%w: max stops must not be negative", ErrInvalidPlan)
	}
	return nil
}

// Dates returns Start through Start+DaysAhead inclusive.
func (p Plan) Dates() []time.Time {
	start := sources.Day(p.Start)
	dates := make([]time.Time, 0, p.DaysAhead+1)
	for i := 0; i <= p.DaysAhead; i++ {
		dates = append(dates, start.AddDate(0, 0, i))
	}
	return dates
}

// Recorded is emitted for every quote written during a run.
type Recorded struct {
	RunID      string        `json:"run_id"`
	Quote      sources.Quote `json:"quote"`
	ObservedAt time.Time     `json:"observed_at"`
}

// Summary describes a finished (or aborted) run.
type Summary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Scans      int       `json:"scans"`
	Recorded   int       `json:"recorded"`
	Empty      int       `json:"empty"`
}

// Scanner walks a plan, asking the aggregator for every origin, destination
// and date and appending the cheapest quote of each.
type Scanner struct {
	searcher Searcher
	recorder Recorder
	logger   *logging.Logger
	now      func() time.Time

	mu         sync.RWMutex
	onRecorded []func(Recorded)
	last       *Summary
}

// New creates a scanner.
func New(searcher Searcher, recorder Recorder, logger *logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Scanner{
		searcher: searcher,
		recorder: recorder,
		logger:   logger.With("component", "scanner"),
		now:      time.Now,
	}
}

// OnRecorded registers fn to be called after each successful append.
func (s *Scanner) OnRecorded(fn func(Recorded)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRecorded = append(s.onRecorded, fn)
}

// LastSummary returns the summary of the most recent run, if any.
func (s *Scanner) LastSummary() (Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Summary{}, false
	}
	return *s.last, true
}

// Run executes plan. Origin and destination pairs that are equal are skipped.
// A storage failure or a canceled context stops the run; the partial summary
// is returned alongside the error.
func (s *Scanner) Run(ctx context.Context, plan Plan) (*Summary, error) {
	if plan.Start.IsZero() {
		plan.Start = s.now()
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	summary := &Summary{RunID: uuid.NewString(), StartedAt: s.now().UTC()}
	logger := s.logger.With("run_id", summary.RunID)
	dates := plan.Dates()

	logger.Info("Starting scan",
		"origins", len(plan.Origins),
		"destinations", len(plan.Destinations),
		"from", dates[0].Format(sources.DateLayout),
		"to", dates[len(dates)-1].Format(sources.DateLayout),
	)

	err := s.walk(ctx, plan, dates, summary, logger)
	summary.FinishedAt = s.now().UTC()

	s.mu.Lock()
	last := *summary
	s.last = &last
	s.mu.Unlock()

	if err != nil {
		metrics.RecordScan("aborted")
		logger.Error("Scan aborted", "scans", summary.Scans, "recorded", summary.Recorded, "error", err)
		return summary, err
	}

	logger.Info("Scan complete",
		"scans", summary.Scans,
		"recorded", summary.Recorded,
		"empty", summary.Empty,
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)
	return summary, nil
}

func (s *Scanner) walk(ctx context.Context, plan Plan, dates []time.Time, summary *Summary, logger *logging.Logger) error {
	for _, origin := range plan.Origins {
		for _, destination := range plan.Destinations {
			if origin == destination {
				continue
			}
			for _, date := range dates {
				if err := ctx.Err(); err != nil {
					return err
				}
				req := sources.SearchRequest{
					Origin:      origin,
					Destination: destination,
					Date:        date,
					Currency:    plan.Currency,
					MaxStops:    plan.MaxStops,
				}
				if err := s.scanOne(ctx, req, summary, logger); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Scanner) scanOne(ctx context.Context, req sources.SearchRequest, summary *Summary, logger *logging.Logger) error {
	summary.Scans++

	res, err := s.searcher.Search(ctx, req)
	if err != nil {
		return err
	}

	best, ok := res.Best()
	if !ok {
		summary.Empty++
		metrics.RecordScan("empty")
		logger.Debug("No quotes", "route", req.Route(), "date", req.Date.Format(sources.DateLayout))
		return nil
	}

	observedAt := s.now().UTC()
	if err := s.recorder.Append(ctx, []sources.Quote{best}, observedAt); err != nil {
		return err
	}
	summary.Recorded++
	metrics.RecordScan("recorded")

	logger.Info("Recorded best price",
		"route", req.Route(),
		"date", req.Date.Format(sources.DateLayout),
		"price", best.Price.StringFixed(2),
		"currency", best.Currency,
		"source", best.Source,
	)

	s.mu.RLock()
	callbacks := s.onRecorded
	s.mu.RUnlock()
	for _, fn := range callbacks {
		fn(Recorded{RunID: summary.RunID, Quote: best, ObservedAt: observedAt})
	}
	return nil
}

// RunEvery runs a scan immediately and then once per interval until ctx is
// done. plan is called before each run so that the start date follows the
// calendar. Failed runs are logged and do not stop the loop.
func (s *Scanner) RunEvery(ctx context.Context, interval time.Duration, plan func() Plan) error {
	if interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidPlan)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Run(ctx, plan()); err != nil && ctx.Err() == nil {
			s.logger.Warn("Periodic scan failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
