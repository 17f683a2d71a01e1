package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/San4ouzs/Flight-deals-eu/pkg/deals"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
)

// ErrUsage indicates /deals arguments that could not be parsed.
var ErrUsage = errors.New("usage: /deals <threshold %> <limit>")

const (
	helpText  = "Hi! Send /deals -20 50 to list routes at least 20% cheaper than their 365-day average (up to 50 rows)."
	usageText = "Usage: /deals <threshold %> <limit>. Example: /deals -20 50"
	noDeals   = "No deals found."

	tableHeader = "FROM TO   DATE        PRICE  AVG365  %vsAVG  PROVIDER"
)

// ParseDealsArgs reads "[threshold] [limit]" from the command arguments,
// falling back to the given defaults for missing values. Extra words are ignored.
func ParseDealsArgs(args string, defaultThreshold float64, defaultLimit int) (float64, int, error) {
	threshold, limit := defaultThreshold, defaultLimit
	fields := strings.Fields(args)

	if len(fields) >= 1 {
		v, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "%"), 64)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: threshold %q", ErrUsage, fields[0])
		}
		threshold = v
	}
	if len(fields) >= 2 {
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0, 0, fmt.Errorf("%w: limit %q", ErrUsage, fields[1])
		}
		limit = v
	}
	return threshold, limit, nil
}

// FormatDeals renders ds as a fixed-width table under a title line. The table
// (header included) is cut to maxLines lines.
func FormatDeals(ds []deals.Deal, threshold float64, maxLines int) string {
	lines := make([]string, 0, len(ds)+1)
	lines = append(lines, tableHeader)
	for _, d := range ds {
		lines = append(lines, fmt.Sprintf("%-4s %-4s %s  %5s  %6s  %6s%%  %s",
			d.Origin,
			d.Destination,
			d.DepartureDate.Format(sources.DateLayout),
			d.Price.StringFixed(0),
			d.Average.StringFixed(0),
			d.Deviation.StringFixed(1),
			d.Source,
		))
	}
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}

	title := fmt.Sprintf("Current deals (threshold %s%%):", strconv.FormatFloat(threshold, 'f', -1, 64))
	return title + "\n\n" + strings.Join(lines, "\n")
}
