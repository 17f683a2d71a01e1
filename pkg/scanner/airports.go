package scanner

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
)

// AirportColumn is the header of the CSV column holding location codes.
const AirportColumn = "IATA"

// ReadAirportsCSV reads location codes from the IATA column of a CSV file.
func ReadAirportsCSV(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open airports file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	codes, err := ParseAirportsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return codes, nil
}

// ParseAirportsCSV reads location codes from the IATA column. Blank cells are
// skipped, duplicates dropped and the first occurrence order kept.
func ParseAirportsCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty airports file", ErrInvalidPlan)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}

	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")), AirportColumn) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: no %s column", ErrInvalidPlan, AirportColumn)
	}

	var codes []string
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
		}
		if col >= len(record) {
			continue
		}
		code := sources.NormalizeCode(record[col])
		if code == "" || seen[code] {
			continue
		}
		if err := sources.ValidateLocationCode(code); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes, nil
}
