package sources

import (
	"sort"
	"sync"
	"time"

	"github.com/San4ouzs/Flight-deals-eu/pkg/logging"
)

// DefaultMaxResults caps how many quotes a single source returns per search.
const DefaultMaxResults = 3

// BaseSource provides common functionality for all quote sources
type BaseSource struct {
	name       string
	mode       Mode
	maxResults int
	lastUpdate time.Time
	updateMu   sync.RWMutex
	healthy    bool
	healthMu   sync.RWMutex
	logger     *logging.Logger
}

// NewBaseSource creates a new base source
func NewBaseSource(name string, mode Mode, maxResults int, logger *logging.Logger) *BaseSource {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	return &BaseSource{
		name:       name,
		mode:       mode,
		maxResults: maxResults,
		logger:     logger.With("source", name, "mode", string(mode)),
		healthy:    true,
	}
}

// Name returns the source name
func (b *BaseSource) Name() string {
	return b.name
}

// Mode returns whether the source is live or synthetic
func (b *BaseSource) Mode() Mode {
	return b.mode
}

// IsHealthy returns the health status
func (b *BaseSource) IsHealthy() bool {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.healthy
}

// SetHealthy sets the health status
func (b *BaseSource) SetHealthy(healthy bool) {
	b.healthMu.Lock()
	defer b.healthMu.Unlock()
	b.healthy = healthy
}

// LastUpdate returns the time of the last successful search
func (b *BaseSource) LastUpdate() time.Time {
	b.updateMu.RLock()
	defer b.updateMu.RUnlock()
	return b.lastUpdate
}

// SetLastUpdate sets the last update time
func (b *BaseSource) SetLastUpdate(t time.Time) {
	b.updateMu.Lock()
	defer b.updateMu.Unlock()
	b.lastUpdate = t
}

// MarkResult updates health bookkeeping after a search.
func (b *BaseSource) MarkResult(err error) {
	if err != nil {
		b.SetHealthy(false)
		return
	}
	b.SetHealthy(true)
	b.SetLastUpdate(time.Now())
}

// Logger returns the logger
func (b *BaseSource) Logger() *logging.Logger {
	return b.logger
}

// Finalize drops quotes with more than maxStops stops, sorts the rest by
// price and keeps at most the per-source cap given to NewBaseSource.
func (b *BaseSource) Finalize(quotes []Quote, maxStops int) []Quote {
	return FinalizeQuotes(quotes, maxStops, b.maxResults)
}

// FinalizeQuotes is the stop filter, price sort and cap shared by all sources.
func FinalizeQuotes(quotes []Quote, maxStops, maxResults int) []Quote {
	kept := make([]Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.Stops > maxStops {
			continue
		}
		kept = append(kept, q)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Price.LessThan(kept[j].Price)
	})

	if maxResults > 0 && len(kept) > maxResults {
		kept = kept[:maxResults]
	}
	return kept
}
