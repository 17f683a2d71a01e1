package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/San4ouzs/Flight-deals-eu/pkg/deals"
	"github.com/San4ouzs/Flight-deals-eu/pkg/report"
)

var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "List routes whose latest price is below the 365-day average",
	Example: `  flightdeals deals --threshold -30 --limit 20
  flightdeals deals --export-csv deals.csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		threshold := cfg.Deals.Threshold
		if flags.Changed("threshold") {
			threshold, _ = flags.GetFloat64("threshold")
		}
		limit := cfg.Deals.Limit
		if flags.Changed("limit") {
			limit, _ = flags.GetInt("limit")
		}
		exportPath := cfg.Deals.ExportCSV
		if flags.Changed("export-csv") {
			exportPath, _ = flags.GetString("export-csv")
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		found, err := deals.NewDetector(st, logger).FindDeals(ctx, threshold, limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(found) == 0 {
			fmt.Fprintln(out, "No deals found.")
		} else {
			report.WriteTable(out, found)
		}

		if exportPath != "" {
			if err := report.ExportCSV(exportPath, found); err != nil {
				return err
			}
			fmt.Fprintf(out, "Exported %d deals to %s\n", len(found), exportPath)
		}
		return nil
	},
}

func init() {
	dealsCmd.Flags().Float64("threshold", deals.DefaultThreshold, "maximum deviation from the average in percent (negative is cheaper)")
	dealsCmd.Flags().Int("limit", deals.DefaultLimit, "maximum number of deals")
	dealsCmd.Flags().String("export-csv", "", "also write the deals to this CSV file")
}
