package sources

import (
	"fmt"
	"strings"
)

// NormalizeCode trims and upper-cases a location or currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateLocationCode checks for a 3-letter uppercase IATA-style code.
// Valid: "RIX", "FRA". Invalid: "rix", "RI", "R1X", "".
func ValidateLocationCode(code string) error {
	if !isUpperAlpha(code, 3) {
		return fmt.Errorf("%w: location code %q must be 3 uppercase letters", ErrInvalidInput, code)
	}
	return nil
}

// ValidateCurrency checks for a 3-letter uppercase currency code.
func ValidateCurrency(code string) error {
	if !isUpperAlpha(code, 3) {
		return fmt.Errorf("%w: currency %q must be 3 uppercase letters", ErrInvalidInput, code)
	}
	return nil
}

// ParseCodes splits a comma separated list ("rix, tll,VNO") into normalized
// codes, dropping empty entries and duplicates while keeping order.
func ParseCodes(list string) ([]string, error) {
	var codes []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(list, ",") {
		code := NormalizeCode(part)
		if code == "" || seen[code] {
			continue
		}
		if err := ValidateLocationCode(code); err != nil {
			return nil, err
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes, nil
}

func isUpperAlpha(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
