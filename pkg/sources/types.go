package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for departure dates everywhere.
const DateLayout = "2006-01-02"

// SyntheticAirline marks quotes produced without live upstream data.
const SyntheticAirline = "MOCK"

// Mode says whether a source talks to its upstream provider or fabricates
// deterministic quotes.
type Mode string

const (
	ModeLive      Mode = "live"
	ModeSynthetic Mode = "synthetic"
)

// Quote is a single one-way price offer for a route and departure date.
type Quote struct {
	Source          string          `json:"source"`
	Origin          string          `json:"origin"`
	Destination     string          `json:"destination"`
	DepartureDate   time.Time       `json:"departure_date"`
	Price           decimal.Decimal `json:"price"`
	Currency        string          `json:"currency"`
	Airline         string          `json:"airline,omitempty"`
	FlightNumber    string          `json:"flight_number,omitempty"`
	Stops           int             `json:"stops"`
	BaggageIncluded *bool           `json:"baggage_included,omitempty"`
	DeepLink        string          `json:"deep_link,omitempty"`
}

// IsSynthetic reports whether the quote was fabricated by a synthetic source.
func (q Quote) IsSynthetic() bool {
	return q.Airline == SyntheticAirline
}

// SearchRequest describes one origin/destination/date lookup.
type SearchRequest struct {
	Origin      string
	Destination string
	Date        time.Time
	Currency    string
	MaxStops    int
}

// Normalize upper-cases codes and strips the time of day from Date.
func (r SearchRequest) Normalize() SearchRequest {
	r.Origin = NormalizeCode(r.Origin)
	r.Destination = NormalizeCode(r.Destination)
	r.Currency = NormalizeCode(r.Currency)
	r.Date = Day(r.Date)
	return r
}

// Validate rejects malformed requests before any I/O happens.
func (r SearchRequest) Validate() error {
	if err := ValidateLocationCode(r.Origin); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if err := ValidateLocationCode(r.Destination); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if r.Origin == r.Destination {
		return fmt.Errorf("%w: origin and destination are both %s", ErrInvalidInput, r.Origin)
	}
	if err := ValidateCurrency(r.Currency); err != nil {
		return err
	}
	if r.MaxStops < 0 {
		return fmt.Errorf("%w: max stops %d is negative", ErrInvalidInput, r.MaxStops)
	}
	if r.Date.IsZero() {
		return fmt.Errorf("%w: departure date is required", ErrInvalidInput)
	}
	return nil
}

// Route returns "ORIGIN-DESTINATION".
func (r SearchRequest) Route() string {
	return r.Origin + "-" + r.Destination
}

// Key identifies the request for caching and logging.
func (r SearchRequest) Key() string {
	return fmt.Sprintf("%s:%s:%s:%d", r.Route(), r.Date.Format(DateLayout), r.Currency, r.MaxStops)
}

// NewQuote returns a quote pre-filled with the request's route, date and currency.
func (r SearchRequest) NewQuote(source string, price decimal.Decimal) Quote {
	return Quote{
		Source:        source,
		Origin:        r.Origin,
		Destination:   r.Destination,
		DepartureDate: r.Date,
		Price:         price,
		Currency:      r.Currency,
	}
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD departure date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: expected YYYY-MM-DD", ErrInvalidInput, s)
	}
	return t, nil
}

// Source is the capability every upstream quote provider implements.
type Source interface {
	// Name returns the unique name of this source
	Name() string

	// Mode reports whether the source is live or synthetic
	Mode() Mode

	// Search returns quotes for one route and date. An empty slice with a nil
	// error means the provider had nothing to offer; failures wrap ErrSourceUnavailable.
	Search(ctx context.Context, req SearchRequest) ([]Quote, error)

	// IsHealthy returns whether the last search succeeded
	IsHealthy() bool

	// LastUpdate returns the timestamp of the last successful search
	LastUpdate() time.Time
}

// SourceFactory is a function that creates a new Source instance
type SourceFactory func(config map[string]interface{}) (Source, error)
