// Package report renders deals for people: a markdown-style table for the
// terminal and CSV for spreadsheets.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"

	"github.com/San4ouzs/Flight-deals-eu/pkg/deals"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
)

// Header is the column set shared by the table and the CSV export.
var Header = []string{"FROM", "TO", "DATE", "PRICE", "AVG365", "% vs AVG", "PROVIDER"}

// Row formats one deal. Prices keep two decimals, the deviation one.
func Row(d deals.Deal) []string {
	return []string{
		d.Origin,
		d.Destination,
		d.DepartureDate.Format(sources.DateLayout),
		d.Price.StringFixed(2),
		d.Average.StringFixed(2),
		d.Deviation.StringFixed(1),
		d.Source,
	}
}

// Rows formats every deal in order.
func Rows(ds []deals.Deal) [][]string {
	rows := make([][]string, 0, len(ds))
	for _, d := range ds {
		rows = append(rows, Row(d))
	}
	return rows
}

// WriteTable renders ds as a github-flavoured markdown table.
func WriteTable(w io.Writer, ds []deals.Deal) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(Header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
	})
	table.AppendBulk(Rows(ds))
	table.Render()
}

// WriteCSV writes a header line and one line per deal.
func WriteCSV(w io.Writer, ds []deals.Deal) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := cw.WriteAll(Rows(ds)); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}

// ExportCSV writes ds to path, replacing any existing file.
func ExportCSV(path string, ds []deals.Deal) (err error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close CSV file: %w", cerr)
		}
	}()

	return WriteCSV(f, ds)
}
