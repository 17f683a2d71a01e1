package sources

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"

	"github.com/San4ouzs/Flight-deals-eu/pkg/logging"
)

// SyntheticSource stands in for a provider that has no credentials configured.
// Prices are derived from a hash of source name, route and date, so the same
// request always yields the same quote. Quotes carry SyntheticAirline.
type SyntheticSource struct {
	*BaseSource

	base   int64
	spread uint64
}

var _ Source = (*SyntheticSource)(nil)

// NewSyntheticSource creates a synthetic source pricing in [base, base+spread).
func NewSyntheticSource(name string, base, spread int64, logger *logging.Logger) *SyntheticSource {
	if spread <= 0 {
		spread = 1
	}
	return &SyntheticSource{
		BaseSource: NewBaseSource(name, ModeSynthetic, 1, logger),
		base:       base,
		spread:     uint64(spread),
	}
}

// Search returns exactly one synthetic quote.
func (s *SyntheticSource) Search(ctx context.Context, req SearchRequest) ([]Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	q := req.NewQuote(s.Name(), SyntheticPrice(s.Name(), req, s.base, s.spread))
	q.Airline = SyntheticAirline

	s.MarkResult(nil)
	return s.Finalize([]Quote{q}, req.MaxStops), nil
}

// SyntheticPrice is the deterministic price for a request.
func SyntheticPrice(salt string, req SearchRequest, base int64, spread uint64) decimal.Decimal {
	key := salt + "|" + req.Origin + "|" + req.Destination + "|" + req.Date.Format(DateLayout)
	offset := xxhash.Sum64String(key) % spread
	return decimal.NewFromInt(base + int64(offset)) // #nosec G115 -- offset < spread <= MaxInt64
}
