package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/San4ouzs/Flight-deals-eu/pkg/aggregator"
	"github.com/San4ouzs/Flight-deals-eu/pkg/deals"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
	"github.com/San4ouzs/Flight-deals-eu/pkg/store"
)

type stubFinder struct {
	deals     []deals.Deal
	err       error
	panics    bool
	threshold float64
	limit     int
}

func (f *stubFinder) FindDeals(_ context.Context, thresholdPct float64, limit int) ([]deals.Deal, error) {
	if f.panics {
		panic("boom")
	}
	f.threshold, f.limit = thresholdPct, limit
	return f.deals, f.err
}

type stubStore struct {
	records []store.PriceRecord
	pingErr error
	histErr error
	asked   []string
}

func (s *stubStore) History(_ context.Context, origin, destination string, date time.Time) ([]store.PriceRecord, error) {
	s.asked = append(s.asked, origin, destination, date.Format(sources.DateLayout))
	return s.records, s.histErr
}

func (s *stubStore) Ping(context.Context) error {
	return s.pingErr
}

func newTestAggregator() *aggregator.Aggregator {
	return aggregator.New([]sources.Source{
		sources.NewSyntheticSource("cheap", 50, 10, nil),
		sources.NewSyntheticSource("dear", 300, 10, nil),
	}, aggregator.Options{RejectCurrencyMismatch: true}, nil)
}

func newTestServer(t *testing.T, finder DealFinder, st PriceStore) *httptest.Server {
	t.Helper()
	srv := NewServer(":0", newTestAggregator(), finder, st, Defaults{Threshold: -20, Limit: 50, Currency: "EUR", MaxStops: 1}, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	st := &stubStore{}
	ts := newTestServer(t, &stubFinder{}, st)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	st.pingErr = fmt.Errorf("%w: connection refused", store.ErrStorage)
	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestDeals(t *testing.T) {
	finder := &stubFinder{deals: []deals.Deal{{
		Origin:        "RIX",
		Destination:   "FRA",
		DepartureDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Source:        "amadeus",
		Currency:      "EUR",
		Price:         decimal.NewFromInt(50),
		Average:       decimal.NewFromInt(100),
		Deviation:     decimal.NewFromInt(-50),
	}}}
	ts := newTestServer(t, finder, &stubStore{})

	var out struct {
		Threshold float64      `json:"threshold"`
		Limit     int          `json:"limit"`
		Count     int          `json:"count"`
		Deals     []deals.Deal `json:"deals"`
	}
	status := getJSON(t, ts.URL+"/v1/deals", &out)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, -20.0, finder.threshold)
	assert.Equal(t, 50, finder.limit)
	assert.Equal(t, 1, out.Count)
	require.Len(t, out.Deals, 1)
	assert.Equal(t, "FRA", out.Deals[0].Destination)
	assert.True(t, out.Deals[0].Deviation.Equal(decimal.NewFromInt(-50)))

	status = getJSON(t, ts.URL+"/v1/deals?threshold=-35.5&limit=3", &out)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, -35.5, finder.threshold)
	assert.Equal(t, 3, finder.limit)
}

func TestDeals_Errors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
	}{
		{"bad threshold", "?threshold=cheap", nil, http.StatusBadRequest},
		{"bad limit", "?limit=many", nil, http.StatusBadRequest},
		{"rejected by detector", "?limit=0", fmt.Errorf("%w: limit", sources.ErrInvalidInput), http.StatusBadRequest},
		{"storage failure", "", fmt.Errorf("%w: disk I/O error", store.ErrStorage), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &stubFinder{err: tt.err}, &stubStore{})
			var out map[string]string
			status := getJSON(t, ts.URL+"/v1/deals"+tt.query, &out)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t, &stubFinder{}, &stubStore{})

	var out struct {
		Quotes  []sources.Quote `json:"quotes"`
		Sources []outcomeData   `json:"sources"`
	}
	status := getJSON(t, ts.URL+"/v1/search?origin=rix&destination=fra&date=2024-06-01", &out)
	require.Equal(t, http.StatusOK, status)

	require.Len(t, out.Quotes, 2)
	assert.Equal(t, "cheap", out.Quotes[0].Source)
	assert.Equal(t, "dear", out.Quotes[1].Source)
	assert.Equal(t, "RIX", out.Quotes[0].Origin)
	assert.Equal(t, "EUR", out.Quotes[0].Currency)
	assert.True(t, out.Quotes[0].Price.LessThan(out.Quotes[1].Price))

	require.Len(t, out.Sources, 2)
	for _, o := range out.Sources {
		assert.Equal(t, string(aggregator.StatusOK), o.Status)
		assert.Equal(t, 1, o.Count)
		assert.Empty(t, o.Error)
	}
}

func TestSearch_BadRequests(t *testing.T) {
	ts := newTestServer(t, &stubFinder{}, &stubStore{})

	for _, query := range []string{
		"origin=RIX&destination=FRA",
		"origin=RIX&destination=FRA&date=01/06/2024",
		"origin=RIX&destination=RIX&date=2024-06-01",
		"origin=RIX&destination=FRA&date=2024-06-01&max_stops=x",
		"origin=RIX&destination=FRA&date=2024-06-01&currency=EURO",
	} {
		t.Run(query, func(t *testing.T) {
			var out map[string]string
			assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/v1/search?"+query, &out))
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestSources(t *testing.T) {
	ts := newTestServer(t, &stubFinder{}, &stubStore{})

	var out []sourceData
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/v1/sources", &out))
	require.Len(t, out, 2)
	assert.Equal(t, "cheap", out[0].Name)
	assert.Equal(t, string(sources.ModeSynthetic), out[0].Mode)
}

func TestHistory(t *testing.T) {
	st := &stubStore{records: []store.PriceRecord{{
		ID:            1,
		ObservedAt:    time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		Source:        "tequila",
		Origin:        "RIX",
		Destination:   "FRA",
		DepartureDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Currency:      "EUR",
		Price:         decimal.NewFromInt(99),
	}}}
	ts := newTestServer(t, &stubFinder{}, st)

	var out []store.PriceRecord
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/v1/history?origin=rix&destination=FRA&date=2024-06-01", &out))
	require.Len(t, out, 1)
	assert.True(t, out[0].Price.Equal(decimal.NewFromInt(99)))
	assert.Equal(t, []string{"RIX", "FRA", "2024-06-01"}, st.asked)

	var errOut map[string]string
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/v1/history?origin=RIGA&destination=FRA&date=2024-06-01", &errOut))

	st.histErr = fmt.Errorf("%w: locked", store.ErrStorage)
	assert.Equal(t, http.StatusInternalServerError, getJSON(t, ts.URL+"/v1/history?origin=RIX&destination=FRA&date=2024-06-01", &errOut))
}

func TestHandler_RecoversFromPanic(t *testing.T) {
	ts := newTestServer(t, &stubFinder{panics: true}, &stubStore{})

	resp, err := http.Get(ts.URL + "/v1/deals")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandler_Compresses(t *testing.T) {
	ts := newTestServer(t, &stubFinder{}, &stubStore{})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/sources", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	zr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	var out []sourceData
	require.NoError(t, json.NewDecoder(zr).Decode(&out))
	assert.Len(t, out, 2)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &stubFinder{}, &stubStore{})

	resp, err := http.Post(ts.URL+"/v1/deals", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRouteLabel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/deals", func(http.ResponseWriter, *http.Request) {})
	mux.HandleFunc("GET /v1/history", func(http.ResponseWriter, *http.Request) {})

	tests := []struct {
		method string
		target string
		want   string
	}{
		{http.MethodGet, "/v1/deals?threshold=-30", "GET /v1/deals"},
		{http.MethodGet, "/v1/history?origin=RIX", "GET /v1/history"},
		{http.MethodGet, "/v1/deals/8f1c2e", unmatchedRoute},
		{http.MethodGet, "/wp-login.php", unmatchedRoute},
		{http.MethodPost, "/v1/deals", unmatchedRoute},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, routeLabel(mux, httptest.NewRequest(tt.method, tt.target, nil)))
		})
	}
}

func TestServer_StopBeforeStart(t *testing.T) {
	srv := NewServer("127.0.0.1:0", newTestAggregator(), &stubFinder{}, &stubStore{}, Defaults{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start kept serving after Stop")
	}
}

func TestServer_StartStop(t *testing.T) {
	srv := NewServer("127.0.0.1:0", newTestAggregator(), &stubFinder{}, &stubStore{}, Defaults{}, nil)

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
