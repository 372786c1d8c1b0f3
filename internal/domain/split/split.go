// Package split plans equal-length parts of a media file.
package split

import (
	"errors"
	"fmt"

	"github.com/forPelevin/takecut/internal/domain/timerange"
)

// MaxParts is the largest accepted split.
const MaxParts = 1000

var ErrInvalidParts = errors.New("invalid number of parts")

// ValidateParts accepts 2..MaxParts.
func ValidateParts(parts int) error {
	switch {
	case parts < 2:
		return fmt.Errorf("%w: need at least 2, got %d", ErrInvalidParts, parts)
	case parts > MaxParts:
		return fmt.Errorf("%w: at most %d, got %d", ErrInvalidParts, MaxParts, parts)
	}
	return nil
}

// PlanEvenSplit divides [0, duration] into parts contiguous ranges. The last
// part always ends exactly on duration so floating point drift is absorbed
// there; zero-length ranges are never emitted.
func PlanEvenSplit(duration float64, parts int) ([]timerange.Range, error) {
	if err := timerange.CheckDuration(duration); err != nil {
		return nil, err
	}
	if err := ValidateParts(parts); err != nil {
		return nil, err
	}

	length := duration / float64(parts)
	var out []timerange.Range
	for i := 0; i < parts; i++ {
		start := float64(i) * length
		end := float64(i+1) * length
		if i == parts-1 {
			end = duration
		}
		if start >= end {
			continue
		}
		out = append(out, timerange.Range{Start: start, End: end})
	}
	return out, nil
}
