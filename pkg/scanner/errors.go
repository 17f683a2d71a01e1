// Package scanner runs price scans over origins, destinations and a range of
// departure dates, recording the best quote of each.
package scanner

import (
	"fmt"

	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
)

// ErrInvalidPlan indicates a scan plan that cannot be run.
var ErrInvalidPlan = fmt.Errorf("%w: scan plan", sources.ErrInvalidInput)
