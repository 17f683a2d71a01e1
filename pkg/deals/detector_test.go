package deals

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
	"github.com/San4ouzs/Flight-deals-eu/pkg/store"
)

func day(s string) time.Time {
	d, err := time.Parse(sources.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.DriverSQLite, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func appendQuote(t *testing.T, s *store.Store, source, date string, price int64, observed time.Time) {
	t.Helper()
	q := sources.Quote{
		Source:        source,
		Origin:        "RIX",
		Destination:   "FRA",
		DepartureDate: day(date),
		Currency:      "EUR",
		Price:         decimal.NewFromInt(price),
	}
	require.NoError(t, s.Append(context.Background(), []sources.Quote{q}, observed))
}

func TestFindDeals_MonthlyScenario(t *testing.T) {
	s := newStore(t)
	observed := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)

	dates := []string{"2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01", "2024-05-01", "2024-06-01"}
	prices := []int64{100, 100, 100, 100, 100, 50}
	for i := range dates {
		appendQuote(t, s, "amadeus", dates[i], prices[i], observed)
	}

	avg, ok, err := s.TrailingAverage(context.Background(), "RIX", "FRA", day("2024-06-01"), "EUR")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, avg.Equal(decimal.NewFromInt(100)))

	detector := NewDetector(s, nil)

	found, err := detector.FindDeals(context.Background(), -20, 50)
	require.NoError(t, err)
	require.Len(t, found, 1)
	deal := found[0]
	assert.Equal(t, "RIX", deal.Origin)
	assert.Equal(t, "FRA", deal.Destination)
	assert.True(t, deal.DepartureDate.Equal(day("2024-06-01")))
	assert.Equal(t, "amadeus", deal.Source)
	assert.True(t, deal.Price.Equal(decimal.NewFromInt(50)))
	assert.True(t, deal.Average.Equal(decimal.NewFromInt(100)))
	assert.True(t, deal.Deviation.Equal(decimal.NewFromInt(-50)), "got %s", deal.Deviation)
	assert.True(t, deal.ObservedAt.Equal(observed))

	found, err = detector.FindDeals(context.Background(), -60, 50)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestFindDeals_UsesLatestObservation(t *testing.T) {
	s := newStore(t)
	t1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	appendQuote(t, s, "tequila", "2024-03-01", 200, t1)
	appendQuote(t, s, "tequila", "2024-06-01", 90, t1)
	appendQuote(t, s, "tequila", "2024-06-01", 190, t2)

	found, err := NewDetector(s, nil).FindDeals(context.Background(), -20, 10)
	require.NoError(t, err)
	assert.Empty(t, found, "the newer 190 replaces the 90 snapshot")
}

func TestFindDeals_ThresholdIsInclusive(t *testing.T) {
	s := newStore(t)
	observed := time.Now()
	appendQuote(t, s, "a", "2024-03-01", 200, observed)
	appendQuote(t, s, "a", "2024-06-01", 160, observed)

	found, err := NewDetector(s, nil).FindDeals(context.Background(), -20, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].Deviation.Equal(decimal.NewFromInt(-20)))
}

// fakeHistory serves canned records and averages.
type fakeHistory struct {
	records  []store.PriceRecord
	averages map[string]decimal.Decimal
	err      error
	avgErr   error
}

func (f *fakeHistory) LatestPerCombination(context.Context) ([]store.PriceRecord, error) {
	return f.records, f.err
}

func (f *fakeHistory) TrailingAverage(_ context.Context, origin, destination string, date time.Time, _ string) (decimal.Decimal, bool, error) {
	if f.avgErr != nil {
		return decimal.Decimal{}, false, f.avgErr
	}
	avg, ok := f.averages[origin+destination+date.Format(sources.DateLayout)]
	return avg, ok, nil
}

func record(destination, date string, price int64) store.PriceRecord {
	return store.PriceRecord{
		Source:        "amadeus",
		Origin:        "RIX",
		Destination:   destination,
		DepartureDate: day(date),
		Currency:      "EUR",
		Price:         decimal.NewFromInt(price),
	}
}

func TestFindDeals_OrderingAndLimit(t *testing.T) {
	h := &fakeHistory{averages: map[string]decimal.Decimal{}}
	// five qualifying combinations at -30, -40, -50 (twice) and -25 percent
	for i, p := range []int64{70, 60, 50, 75} {
		dest := fmt.Sprintf("D%c%c", 'A'+i, 'A'+i)
		h.records = append(h.records, record(dest, "2024-06-01", p))
		h.averages["RIX"+dest+"2024-06-01"] = decimal.NewFromInt(100)
	}
	h.records = append(h.records, record("TLL", "2024-06-01", 100))
	h.averages["RIXTLL2024-06-01"] = decimal.NewFromInt(200)

	d := NewDetector(h, nil)

	all, err := d.FindDeals(context.Background(), -20, 50)
	require.NoError(t, err)
	require.Len(t, all, 5)
	var got []string
	for _, deal := range all {
		got = append(got, deal.Destination+"="+deal.Deviation.String())
	}
	// equal deviations are ordered by price
	assert.Equal(t, []string{"DCC=-50", "TLL=-50", "DBB=-40", "DAA=-30", "DDD=-25"}, got)

	one, err := d.FindDeals(context.Background(), -20, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "DCC", one[0].Destination)
}

func TestFindDeals_SkipsMissingAndNonPositiveAverages(t *testing.T) {
	h := &fakeHistory{
		records: []store.PriceRecord{
			record("FRA", "2024-06-01", 10),
			record("TLL", "2024-06-01", 10),
			record("VNO", "2024-06-01", 10),
		},
		averages: map[string]decimal.Decimal{
			"RIXTLL2024-06-01": decimal.Zero,
			"RIXVNO2024-06-01": decimal.NewFromInt(-5),
		},
	}

	found, err := NewDetector(h, nil).FindDeals(context.Background(), 100, 10)
	require.NoError(t, err)
	assert.NotNil(t, found)
	assert.Empty(t, found)
}

func TestFindDeals_Errors(t *testing.T) {
	ctx := context.Background()
	storageErr := fmt.Errorf("%w: disk I/O error", store.ErrStorage)

	_, err := NewDetector(&fakeHistory{}, nil).FindDeals(ctx, -20, 0)
	assert.ErrorIs(t, err, sources.ErrInvalidInput)

	_, err = NewDetector(&fakeHistory{}, nil).FindDeals(ctx, math.NaN(), 10)
	assert.ErrorIs(t, err, sources.ErrInvalidInput)

	_, err = NewDetector(&fakeHistory{err: storageErr}, nil).FindDeals(ctx, -20, 10)
	assert.ErrorIs(t, err, store.ErrStorage)

	h := &fakeHistory{records: []store.PriceRecord{record("FRA", "2024-06-01", 10)}, avgErr: storageErr}
	_, err = NewDetector(h, nil).FindDeals(ctx, -20, 10)
	assert.True(t, errors.Is(err, store.ErrStorage))
}
