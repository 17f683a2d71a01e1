package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
)

type countingSource struct {
	*sources.BaseSource
	calls int32
	err   error
}

func newCountingSource() *countingSource {
	return &countingSource{BaseSource: sources.NewBaseSource("fake", sources.ModeLive, 3, nil)}
}

func (s *countingSource) Search(_ context.Context, req sources.SearchRequest) ([]sources.Quote, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	q := req.NewQuote(s.Name(), decimal.RequireFromString("123.45"))
	q.Airline = "BT"
	return []sources.Quote{q}, nil
}

func testRequest() sources.SearchRequest {
	return sources.SearchRequest{
		Origin:      "RIX",
		Destination: "FRA",
		Date:        time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Currency:    "EUR",
		MaxStops:    1,
	}
}

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedSource_HitAfterMiss(t *testing.T) {
	mr, client := setup(t)
	inner := newCountingSource()
	cached := Wrap(inner, client, time.Minute, nil)
	req := testRequest()

	first, err := cached.Search(context.Background(), req)
	require.NoError(t, err)
	second, err := cached.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
	require.Len(t, second, 1)
	assert.True(t, first[0].Price.Equal(second[0].Price))
	assert.Equal(t, "BT", second[0].Airline)
	assert.True(t, second[0].DepartureDate.Equal(req.Date))

	assert.Equal(t, "quotes:fake:RIX-FRA:2024-06-01:EUR:1", cached.Key(req))
	assert.True(t, mr.Exists(cached.Key(req)))
	assert.Equal(t, time.Minute, mr.TTL(cached.Key(req)))
}

func TestCachedSource_Expiry(t *testing.T) {
	mr, client := setup(t)
	inner := newCountingSource()
	cached := Wrap(inner, client, time.Minute, nil)

	_, err := cached.Search(context.Background(), testRequest())
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = cached.Search(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))
}

func TestCachedSource_ErrorsAreNotCached(t *testing.T) {
	mr, client := setup(t)
	inner := newCountingSource()
	inner.err = sources.ErrUpstreamServer
	cached := Wrap(inner, client, time.Minute, nil)

	_, err := cached.Search(context.Background(), testRequest())
	assert.ErrorIs(t, err, sources.ErrSourceUnavailable)
	assert.False(t, mr.Exists(cached.Key(testRequest())))
}

func TestCachedSource_RedisDown(t *testing.T) {
	mr, client := setup(t)
	inner := newCountingSource()
	cached := Wrap(inner, client, time.Minute, nil)
	mr.Close()

	quotes, err := cached.Search(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Len(t, quotes, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}

func TestCachedSource_CorruptEntry(t *testing.T) {
	mr, client := setup(t)
	inner := newCountingSource()
	cached := Wrap(inner, client, time.Minute, nil)
	require.NoError(t, mr.Set(cached.Key(testRequest()), "{not json"))

	quotes, err := cached.Search(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Len(t, quotes, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}

func TestCachedSource_DelegatesIdentity(t *testing.T) {
	_, client := setup(t)
	cached := Wrap(newCountingSource(), client, time.Minute, nil)
	assert.Equal(t, "fake", cached.Name())
	assert.Equal(t, sources.ModeLive, cached.Mode())
	assert.True(t, cached.IsHealthy())
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	client, err := NewClient(context.Background(), addr, "", 0)
	require.NoError(t, err)
	_ = client.Close()

	mr.Close()
	_, err = NewClient(context.Background(), addr, "", 0)
	assert.Error(t, err)
}
