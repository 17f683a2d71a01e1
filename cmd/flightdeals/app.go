package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/San4ouzs/Flight-deals-eu/pkg/aggregator"
	"github.com/San4ouzs/Flight-deals-eu/pkg/config"
	"github.com/San4ouzs/Flight-deals-eu/pkg/logging"
	"github.com/San4ouzs/Flight-deals-eu/pkg/scanner"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources/amadeus"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources/cache"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources/tequila"
	"github.com/San4ouzs/Flight-deals-eu/pkg/store"
)

func newRegistry() *sources.Registry {
	reg := sources.NewRegistry()
	reg.Register(amadeus.SourceType, amadeus.NewAmadeusSourceFromConfig)
	reg.Register(tequila.SourceType, tequila.NewTequilaSourceFromConfig)
	return reg
}

// openStore opens and initializes the price store.
func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*store.Store, error) {
	st, err := store.Open(cfg.Storage.Driver, cfg.Storage.DSN, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Initialize(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// buildSources creates every enabled source in configuration order. When the
// cache is enabled each source is wrapped; the returned func closes the Redis
// client.
func buildSources(ctx context.Context, cfg *config.Config, logger *logging.Logger) ([]sources.Source, func(), error) {
	reg := newRegistry()

	var client *redis.Client
	if cfg.Cache.Enabled {
		c, err := cache.NewClient(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
		if err != nil {
			logger.Warn("Quote cache disabled", "error", err)
		} else {
			client = c
			logger.Info("Quote cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL.ToDuration())
		}
	}
	closeFn := func() {
		if client != nil {
			_ = client.Close()
		}
	}

	var list []sources.Source
	for _, sc := range cfg.Sources {
		if !sc.Enabled {
			continue
		}

		src, err := reg.Create(sc.Type, sc.Name, sc.Config, logger)
		if err != nil {
			logger.Warn("Failed to create source", "type", sc.Type, "name", sc.Name, "error", err)
			continue
		}
		if client != nil {
			src = cache.Wrap(src, client, cfg.Cache.TTL.ToDuration(), logger)
		}

		logger.Info("Source ready", "name", src.Name(), "type", sc.Type, "mode", src.Mode())
		list = append(list, src)
	}

	if len(list) == 0 {
		closeFn()
		return nil, nil, fmt.Errorf("no sources available (registered types: %s)", strings.Join(reg.List(), ", "))
	}
	return list, closeFn, nil
}

func newAggregator(cfg *config.Config, srcs []sources.Source, logger *logging.Logger) *aggregator.Aggregator {
	return aggregator.New(srcs, aggregator.Options{
		SourceTimeout:          cfg.Search.SourceTimeout.ToDuration(),
		Concurrency:            cfg.Search.Concurrency,
		RejectCurrencyMismatch: cfg.Search.RejectMismatch(),
	}, logger)
}

// planFromConfig builds a scan plan from the scanner section. Destinations
// come from the CSV file when one is configured.
func planFromConfig(cfg *config.Config) (scanner.Plan, error) {
	destinations := cfg.Scanner.Destinations
	if cfg.Scanner.DestinationsCSV != "" {
		codes, err := scanner.ReadAirportsCSV(cfg.Scanner.DestinationsCSV)
		if err != nil {
			return scanner.Plan{}, err
		}
		destinations = codes
	}

	normalize := func(codes []string) []string {
		out := make([]string, 0, len(codes))
		for _, c := range codes {
			out = append(out, sources.NormalizeCode(c))
		}
		return out
	}

	return scanner.Plan{
		Origins:      normalize(cfg.Scanner.Origins),
		Destinations: normalize(destinations),
		DaysAhead:    cfg.Scanner.DaysAhead,
		Currency:     cfg.Search.Currency,
		MaxStops:     cfg.Search.MaxStops,
	}, nil
}
