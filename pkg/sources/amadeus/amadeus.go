// Package amadeus implements a quote source backed by the Amadeus Self-Service
// flight offers search API.
package amadeus

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
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
	"github.com/San4ouzs/Flight-deals-eu/pkg/version"
)

const (
	SourceType = "amadeus"

	DefaultBaseURL = "https://test.api.amadeus.com"

	tokenPath  = "/v1/security/oauth2/token"
	offersPath = "/v2/shopping/flight-offers"

	// upstream page size; the source still returns at most max_results quotes
	offersPageSize = 10

	syntheticBase   = 50
	syntheticSpread = 200
)

// Source fetches one-way offers from Amadeus using OAuth2 client credentials.
type Source struct {
	*sources.BaseSource

	baseURL  string
	client   *http.Client
	attempts int
	backoff  time.Duration
}

var _ sources.Source = (*Source)(nil)

type offersResponse struct {
	Data []offer `json:"data"`
}

type offer struct {
	ID          string      `json:"id"`
	Itineraries []itinerary `json:"itineraries"`
	Price       struct {
		Currency string `json:"currency"`
		Total    string `json:"total"`
	} `json:"price"`
	PricingOptions struct {
		IncludedCheckedBagsOnly *bool `json:"includedCheckedBagsOnly"`
	} `json:"pricingOptions"`
}

type itinerary struct {
	Segments []segment `json:"segments"`
}

type segment struct {
	CarrierCode string `json:"carrierCode"`
	Number      string `json:"number"`
}

// NewAmadeusSourceFromConfig creates the source from a config map. Without
// client_id and client_secret (or AMADEUS_API_KEY and AMADEUS_API_SECRET in the
// environment) a synthetic source is returned instead.
//
// Recognised keys: client_id, client_secret, base_url, max_results, timeout,
// retries, retry_backoff.
func NewAmadeusSourceFromConfig(config map[string]interface{}) (sources.Source, error) {
	name := sources.GetString(config, "name", SourceType)
	logger := sources.GetLoggerFromConfig(config)

	clientID := sources.GetString(config, "client_id", os.Getenv("AMADEUS_API_KEY"))
	clientSecret := sources.GetString(config, "client_secret", os.Getenv("AMADEUS_API_SECRET"))
	if clientID == "" || clientSecret == "" {
		logger.Info("Amadeus credentials not configured, using synthetic quotes", "source", name)
		return sources.NewSyntheticSource(name, syntheticBase, syntheticSpread, logger), nil
	}

	baseURL := strings.TrimRight(sources.GetString(config, "base_url", DefaultBaseURL), "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: base_url: %w", sources.ErrInvalidConfig, err)
	}

	timeout := sources.GetDuration(config, "timeout", 20*time.Second)
	maxResults := sources.GetInt(config, "max_results", sources.DefaultMaxResults)
	if maxResults < 1 {
		return nil, fmt.Errorf("%w: max_results must be positive", sources.ErrInvalidConfig)
	}

	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + tokenPath,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	// The token endpoint shares the request timeout.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	client := cc.Client(tokenCtx)
	client.Timeout = timeout

	s := &Source{
		BaseSource: sources.NewBaseSource(name, sources.ModeLive, maxResults, logger),
		baseURL:    baseURL,
		client:     client,
		attempts:   sources.GetInt(config, "retries", 2),
		backoff:    sources.GetDuration(config, "retry_backoff", 500*time.Millisecond),
	}

	s.Logger().Info("Initializing Amadeus source", "base_url", baseURL, "max_results", maxResults)
	return s, nil
}

// Search queries flight offers for a single route and day.
func (s *Source) Search(ctx context.Context, req sources.SearchRequest) ([]sources.Quote, error) {
	var quotes []sources.Quote
	err := sources.FetchWithRetries(ctx, s.Logger(), s.attempts, s.backoff, func(ctx context.Context) error {
		var err error
		quotes, err = s.fetchOffers(ctx, req)
		return err
	})
	s.MarkResult(err)
	if err != nil {
		s.Logger().Warn("Amadeus search failed", "route", req.Route(), "date", req.Date.Format(sources.DateLayout), "error", err)
		return nil, err
	}

	return s.Finalize(quotes, req.MaxStops), nil
}

func (s *Source) fetchOffers(ctx context.Context, req sources.SearchRequest) ([]sources.Quote, error) {
	params := url.Values{}
	params.Set("originLocationCode", req.Origin)
	params.Set("destinationLocationCode", req.Destination)
	params.Set("departureDate", req.Date.Format(sources.DateLayout))
	params.Set("adults", "1")
	params.Set("currencyCode", req.Currency)
	params.Set("max", strconv.Itoa(offersPageSize))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+offersPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
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

	var data offersResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %w", sources.ErrInvalidResponse, err)
	}

	quotes := make([]sources.Quote, 0, len(data.Data))
	for _, o := range data.Data {
		price, err := decimal.NewFromString(o.Price.Total)
		if err != nil {
			s.Logger().Debug("Skipping offer with unparseable price", "offer", o.ID, "total", o.Price.Total)
			continue
		}
		if price.IsNegative() {
			s.Logger().Debug("Skipping offer with negative price", "offer", o.ID, "total", o.Price.Total)
			continue
		}

		q := req.NewQuote(s.Name(), price)
		if o.Price.Currency != "" {
			q.Currency = o.Price.Currency
		}
		if len(o.Itineraries) > 0 && len(o.Itineraries[0].Segments) > 0 {
			segs := o.Itineraries[0].Segments
			q.Stops = len(segs) - 1
			q.Airline = segs[0].CarrierCode
			if segs[0].Number != "" {
				q.FlightNumber = segs[0].CarrierCode + segs[0].Number
			}
		}
		q.BaggageIncluded = o.PricingOptions.IncludedCheckedBagsOnly
		quotes = append(quotes, q)
	}

	s.Logger().Debug("Fetched Amadeus offers", "route", req.Route(), "offers", len(data.Data), "quotes", len(quotes))
	return quotes, nil
}
