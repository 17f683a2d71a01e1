package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/San4ouzs/Flight-deals-eu/pkg/scanner"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Search every route and date once and record the best price of each",
	Example: `  flightdeals scan --origins RIX,TLL --destinations BCN,MAD --days-ahead 14
  flightdeals scan --origins RIX --destinations-csv airports.csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := applyScanFlags(cmd); err != nil {
			return err
		}

		plan, err := planFromConfig(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
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

		sc := scanner.New(newAggregator(cfg, srcs, logger), st, logger)
		summary, err := sc.Run(ctx, plan)
		if summary != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d route/date combinations: %d prices recorded, %d without quotes.\n",
				summary.Scans, summary.Recorded, summary.Empty)
		}
		return err
	},
}

func init() {
	scanCmd.Flags().String("origins", "", "comma separated origin IATA codes")
	scanCmd.Flags().String("destinations", "", "comma separated destination IATA codes")
	scanCmd.Flags().String("destinations-csv", "", "CSV file with an IATA column listing destinations")
	scanCmd.Flags().Int("days-ahead", 0, "scan departures from today through today + N days")
	scanCmd.Flags().String("currency", "", "requested currency code")
	scanCmd.Flags().Int("max-stops", -1, "maximum number of stops")
}

// applyScanFlags overrides the scanner and search sections with the flags the
// operator set.
func applyScanFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()

	if flags.Changed("origins") {
		v, _ := flags.GetString("origins")
		codes, err := sources.ParseCodes(v)
		if err != nil {
			return err
		}
		cfg.Scanner.Origins = codes
	}
	if flags.Changed("destinations") {
		v, _ := flags.GetString("destinations")
		codes, err := sources.ParseCodes(v)
		if err != nil {
			return err
		}
		cfg.Scanner.Destinations = codes
		cfg.Scanner.DestinationsCSV = ""
	}
	if flags.Changed("destinations-csv") {
		cfg.Scanner.DestinationsCSV, _ = flags.GetString("destinations-csv")
	}
	if flags.Changed("days-ahead") {
		cfg.Scanner.DaysAhead, _ = flags.GetInt("days-ahead")
	}
	if flags.Changed("currency") {
		v, _ := flags.GetString("currency")
		cfg.Search.Currency = strings.ToUpper(strings.TrimSpace(v))
	}
	if flags.Changed("max-stops") {
		cfg.Search.MaxStops, _ = flags.GetInt("max-stops")
	}
	return nil
}
