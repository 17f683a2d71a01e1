package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/San4ouzs/Flight-deals-eu/pkg/deals"
	"github.com/San4ouzs/Flight-deals-eu/pkg/metrics"
	"github.com/San4ouzs/Flight-deals-eu/pkg/scanner"
	"github.com/San4ouzs/Flight-deals-eu/pkg/server/api"
	"github.com/San4ouzs/Flight-deals-eu/pkg/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the price stream and periodic scans",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		logger.Info("Starting flightdeals", "version", version.Version, "storage", cfg.Storage.Driver)

		st, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		srcs, closeSources, err := buildSources(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeSources()

		agg := newAggregator(cfg, srcs, logger)
		sc := scanner.New(agg, st, logger)

		server := api.NewServer(cfg.Server.HTTP.Addr, agg, deals.NewDetector(st, logger), st, api.Defaults{
			Threshold: cfg.Deals.Threshold,
			Limit:     cfg.Deals.Limit,
			Currency:  cfg.Search.Currency,
			MaxStops:  cfg.Search.MaxStops,
		}, logger)

		g, gctx := errgroup.WithContext(ctx)

		if cfg.Metrics.Enabled {
			metrics.Init()
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
			g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Addr, cfg.Metrics.Path) })
		}

		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Stop(shutdownCtx)
		})

		if cfg.Server.WebSocket.Enabled {
			ws := api.NewWebSocketServer(cfg.Server.WebSocket.Addr, logger)
			sc.OnRecorded(ws.Publish)
			g.Go(func() error { return ws.Start(gctx) })
		}

		if interval := cfg.Scanner.Interval.ToDuration(); interval > 0 {
			g.Go(func() error {
				err := sc.RunEvery(gctx, interval, func() scanner.Plan {
					plan, err := planFromConfig(cfg)
					if err != nil {
						logger.Warn("Failed to build scan plan", "error", err)
					}
					return plan
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		} else {
			logger.Info("Periodic scans disabled")
		}

		err = g.Wait()
		logger.Info("Shutdown complete")
		return err
	},
}
