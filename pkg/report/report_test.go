package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/San4ouzs/Flight-deals-eu/pkg/deals"
)

func sampleDeals() []deals.Deal {
	return []deals.Deal{
		{
			Origin:        "RIX",
			Destination:   "FRA",
			DepartureDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			Source:        "amadeus",
			Currency:      "EUR",
			Price:         decimal.RequireFromString("49.999"),
			Average:       decimal.NewFromInt(100),
			Deviation:     decimal.RequireFromString("-50.001"),
		},
		{
			Origin:        "TLL",
			Destination:   "BCN",
			DepartureDate: time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC),
			Source:        "tequila",
			Currency:      "EUR",
			Price:         decimal.NewFromInt(64),
			Average:       decimal.RequireFromString("91.4285714285714286"),
			Deviation:     decimal.RequireFromString("-30"),
		},
	}
}

func TestRow(t *testing.T) {
	assert.Equal(t,
		[]string{"RIX", "FRA", "2024-06-01", "50.00", "100.00", "-50.0", "amadeus"},
		Row(sampleDeals()[0]))
	assert.Equal(t,
		[]string{"TLL", "BCN", "2024-07-09", "64.00", "91.43", "-30.0", "tequila"},
		Row(sampleDeals()[1]))
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	WriteTable(&buf, sampleDeals())
	out := buf.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4, out)
	assert.Contains(t, lines[0], "% vs AVG")
	assert.Contains(t, lines[0], "PROVIDER")
	assert.True(t, strings.HasPrefix(lines[1], "|-"), lines[1])
	assert.Contains(t, lines[2], "RIX")
	assert.Contains(t, lines[2], "-50.0")
	assert.Contains(t, lines[3], "tequila")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleDeals()))

	want := "FROM,TO,DATE,PRICE,AVG365,% vs AVG,PROVIDER\n" +
		"RIX,FRA,2024-06-01,50.00,100.00,-50.0,amadeus\n" +
		"TLL,BCN,2024-07-09,64.00,91.43,-30.0,tequila\n"
	assert.Equal(t, want, buf.String())
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deals_export.csv")
	require.NoError(t, ExportCSV(path, sampleDeals()[:1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "FROM,TO,DATE,PRICE,AVG365,% vs AVG,PROVIDER\nRIX,FRA,2024-06-01,50.00,100.00,-50.0,amadeus\n", string(data))

	assert.Error(t, ExportCSV(filepath.Join(t.TempDir(), "missing", "x.csv"), nil))
}
