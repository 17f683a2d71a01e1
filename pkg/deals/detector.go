// Package deals finds routes whose latest price is well below its trailing
// average.
package deals

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/San4ouzs/Flight-deals-eu/pkg/logging"
	"github.com/San4ouzs/Flight-deals-eu/pkg/metrics"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
	"github.com/San4ouzs/Flight-deals-eu/pkg/store"
)

const (
	DefaultThreshold = -20.0
	DefaultLimit     = 50
)

var hundred = decimal.NewFromInt(100)

// History is the read side of the price store used by the detector.
type History interface {
	LatestPerCombination(ctx context.Context) ([]store.PriceRecord, error)
	TrailingAverage(ctx context.Context, origin, destination string, date time.Time, currency string) (decimal.Decimal, bool, error)
}

// Deal is a computed view over the latest record of one (route, date, source).
type Deal struct {
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureDate time.Time       `json:"departure_date"`
	Source        string          `json:"source"`
	Currency      string          `json:"currency"`
	Price         decimal.Decimal `json:"price"`
	Average       decimal.Decimal `json:"avg365"`
	// Deviation is (Price/Average - 1) * 100; negative is cheaper than usual.
	Deviation  decimal.Decimal `json:"pct_vs_avg"`
	ObservedAt time.Time       `json:"observed_at"`
}

// Detector computes deals on demand. It holds no state of its own.
type Detector struct {
	history History
	logger  *logging.Logger
}

// NewDetector creates a detector reading from history.
func NewDetector(history History, logger *logging.Logger) *Detector {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Detector{
		history: history,
		logger:  logger.With("component", "deals"),
	}
}

// FindDeals returns at most limit deals whose deviation is at or below
// thresholdPct, most discounted first and cheaper first on equal deviation.
// Records without a positive trailing average are skipped. Any storage
// failure is returned as is.
func (d *Detector) FindDeals(ctx context.Context, thresholdPct float64, limit int) ([]Deal, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", sources.ErrInvalidInput, limit)
	}
	if math.IsNaN(thresholdPct) || math.IsInf(thresholdPct, 0) {
		return nil, fmt.Errorf("%w: threshold must be a finite number", sources.ErrInvalidInput)
	}
	threshold := decimal.NewFromFloat(thresholdPct)

	latest, err := d.history.LatestPerCombination(ctx)
	if err != nil {
		return nil, err
	}

	var found []Deal
	skipped := 0
	for _, rec := range latest {
		avg, ok, err := d.history.TrailingAverage(ctx, rec.Origin, rec.Destination, rec.DepartureDate, rec.Currency)
		if err != nil {
			return nil, err
		}
		if !ok || !avg.IsPositive() {
			skipped++
			continue
		}

		deviation := rec.Price.Div(avg).Sub(decimal.NewFromInt(1)).Mul(hundred)
		if deviation.GreaterThan(threshold) {
			continue
		}

		found = append(found, Deal{
			Origin:        rec.Origin,
			Destination:   rec.Destination,
			DepartureDate: rec.DepartureDate,
			Source:        rec.Source,
			Currency:      rec.Currency,
			Price:         rec.Price,
			Average:       avg,
			Deviation:     deviation,
			ObservedAt:    rec.ObservedAt,
		})
	}

	sort.SliceStable(found, func(i, j int) bool {
		if c := found[i].Deviation.Cmp(found[j].Deviation); c != 0 {
			return c < 0
		}
		return found[i].Price.LessThan(found[j].Price)
	})
	if len(found) > limit {
		found = found[:limit]
	}
	if found == nil {
		found = []Deal{}
	}

	metrics.RecordDeals(len(found))
	d.logger.Debug("Deal query complete",
		"threshold", thresholdPct,
		"limit", limit,
		"combinations", len(latest),
		"without_average", skipped,
		"deals", len(found),
	)
	return found, nil
}
