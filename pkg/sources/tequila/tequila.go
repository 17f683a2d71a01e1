// Package tequila implements a quote source backed by the Kiwi.com Tequila
// search API.
package tequila

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
	"github.com/San4ouzs/Flight-deals-eu/pkg/version"
)

const (
	SourceType = "tequila"

	DefaultBaseURL = "https://tequila-api.kiwi.com"

	searchPath = "/v2/search"

	// Tequila expects day/month/year
	dateLayout = "02/01/2006"

	searchPageSize = 5

	syntheticBase   = 60
	syntheticSpread = 220
)

// Source fetches one-way itineraries from Tequila using an API key header.
type Source struct {
	*sources.BaseSource

	apiKey   string
	baseURL  string
	client   *http.Client
	attempts int
	backoff  time.Duration
}

var _ sources.Source = (*Source)(nil)

type searchResponse struct {
	Currency string      `json:"currency"`
	Data     []itinerary `json:"data"`
}

type itinerary struct {
	ID       string         `json:"id"`
	Price    json.Number    `json:"price"`
	DeepLink string         `json:"deep_link"`
	Route    []routeSegment `json:"route"`
	BagsFee  map[string]any `json:"bags_price"`
}

type routeSegment struct {
	Airline  string      `json:"airline"`
	FlightNo json.Number `json:"flight_no"`
}

// NewTequilaSourceFromConfig creates the source from a config map. Without an
// api_key (or TEQUILA_API_KEY in the environment) a synthetic source is
// returned instead.
//
// Recognised keys: api_key, base_url, max_results, timeout, retries,
// retry_backoff.
func NewTequilaSourceFromConfig(config map[string]interface{}) (sources.Source, error) {
	name := sources.GetString(config, "name", SourceType)
	logger := sources.GetLoggerFromConfig(config)

	apiKey := sources.GetString(config, "api_key", os.Getenv("TEQUILA_API_KEY"))
	if apiKey == "" {
		logger.Info("Tequila API key not configured, using synthetic quotes", "source", name)
		return sources.NewSyntheticSource(name, syntheticBase, syntheticSpread, logger), nil
	}

	baseURL := strings.TrimRight(sources.GetString(config, "base_url", DefaultBaseURL), "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: base_url: %w", sources.ErrInvalidConfig, err)
	}

	maxResults := sources.GetInt(config, "max_results", sources.DefaultMaxResults)
	if maxResults < 1 {
		return nil, fmt.Errorf("%w: max_results must be positive", sources.ErrInvalidConfig)
	}

	s := &Source{
		BaseSource: sources.NewBaseSource(name, sources.ModeLive, maxResults, logger),
		apiKey:     apiKey,
		baseURL:    baseURL,
		client: &http.Client{
			Timeout: sources.GetDuration(config, "timeout", 20*time.Second),
		},
		attempts: sources.GetInt(config, "retries", 2),
		backoff:  sources.GetDuration(config, "retry_backoff", 500*time.Millisecond),
	}

	s.Logger().Info("Initializing Tequila source", "base_url", baseURL, "max_results", maxResults)
	return s, nil
}

// Search queries itineraries departing on exactly req.Date.
func (s *Source) Search(ctx context.Context, req sources.SearchRequest) ([]sources.Quote, error) {
	var quotes []sources.Quote
	err := sources.FetchWithRetries(ctx, s.Logger(), s.attempts, s.backoff, func(ctx context.Context) error {
		var err error
		quotes, err = s.fetchItineraries(ctx, req)
		return err
	})
	s.MarkResult(err)
	if err != nil {
		s.Logger().Warn("Tequila search failed", "route", req.Route(), "date", req.Date.Format(sources.DateLayout), "error", err)
		return nil, err
	}

	return s.Finalize(quotes, req.MaxStops), nil
}

func (s *Source) fetchItineraries(ctx context.Context, req sources.SearchRequest) ([]sources.Quote, error) {
	day := req.Date.Format(dateLayout)

	params := url.Values{}
	params.Set("fly_from", req.Origin)
	params.Set("fly_to", req.Destination)
	params.Set("date_from", day)
	params.Set("date_to", day)
	params.Set("curr", req.Currency)
	params.Set("adults", "1")
	params.Set("limit", strconv.Itoa(searchPageSize))
	params.Set("max_stopovers", strconv.Itoa(req.MaxStops))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+searchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("apikey", s.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", version.AgentString())

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sources.ErrSourceUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := sources.CheckStatus(resp); err != nil {
		return nil, err
	}

	var data searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %w", sources.ErrInvalidResponse, err)
	}

	quotes := make([]sources.Quote, 0, len(data.Data))
	for _, it := range data.Data {
		price, err := decimal.NewFromString(it.Price.String())
		if err != nil {
			s.Logger().Debug("Skipping itinerary with unparseable price", "itinerary", it.ID, "price", it.Price.String())
			continue
		}
		if price.IsNegative() {
			s.Logger().Debug("Skipping itinerary with negative price", "itinerary", it.ID, "price", it.Price.String())
			continue
		}

		q := req.NewQuote(s.Name(), price)
		if data.Currency != "" {
			q.Currency = data.Currency
		}
		q.DeepLink = it.DeepLink
		if len(it.Route) > 0 {
			q.Stops = len(it.Route) - 1
			q.Airline = it.Route[0].Airline
			if fn := it.Route[0].FlightNo.String(); fn != "" {
				q.FlightNumber = it.Route[0].Airline + fn
			}
		}
		if len(it.BagsFee) > 0 {
			included := false
			if fee, ok := it.BagsFee["1"].(float64); ok && fee == 0 {
				included = true
			}
			q.BaggageIncluded = &included
		}
		quotes = append(quotes, q)
	}

	s.Logger().Debug("Fetched Tequila itineraries", "route", req.Route(), "itineraries", len(data.Data), "quotes", len(quotes))
	return quotes, nil
}
