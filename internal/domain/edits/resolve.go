// Package edits turns candidate edit ranges into an ordered, padded list of
// segments ready for extraction.
package edits

import (
	"sort"

	"github.com/forPelevin/takecut/internal/domain/timerange"
)

// DefaultBuffer is the padding in seconds added around each candidate so cuts
// do not land mid-word.
const DefaultBuffer = 2.0

// ResolvedSegment is a padded candidate with its 1-based chronological ordinal.
type ResolvedSegment struct {
	timerange.Range
	Ordinal int
	Snippet string
}

// PadAndClamp widens [start, end] by buffer on both sides. A start inside the
// first buffer seconds collapses to 0 and an end inside the last buffer seconds
// extends to duration. ok is false when the result is empty.
func PadAndClamp(start, end, duration, buffer float64) (r timerange.Range, ok bool) {
	if start > buffer {
		start -= buffer
	} else {
		start = 0
	}
	if end < duration-buffer {
		end += buffer
	} else {
		end = duration
	}

	if start < 0 {
		start = 0
	}
	if end > duration {
		end = duration
	}
	if start >= end {
		return timerange.Range{}, false
	}
	return timerange.Range{Start: start, End: end}, true
}

type Resolver struct {
	Buffer float64
}

// Resolve is Resolver{Buffer: DefaultBuffer}.Resolve.
func Resolve(p Payload, duration float64) ([]ResolvedSegment, error) {
	return Resolver{Buffer: DefaultBuffer}.Resolve(p, duration)
}

// Resolve sorts candidates by start (stable), pads each one and numbers the
// survivors densely from 1. Overlap between padded neighbours is kept as is.
// The input payload is not modified.
func (r Resolver) Resolve(p Payload, duration float64) ([]ResolvedSegment, error) {
	if err := timerange.CheckDuration(duration); err != nil {
		return nil, err
	}
	if len(p.Edits) == 0 {
		return nil, nil
	}

	sorted := make([]CandidateEdit, len(p.Edits))
	copy(sorted, p.Edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := make([]ResolvedSegment, 0, len(sorted))
	for _, c := range sorted {
		rng, ok := PadAndClamp(c.Start, c.End, duration, r.Buffer)
		if !ok {
			continue
		}
		out = append(out, ResolvedSegment{Range: rng, Ordinal: len(out) + 1, Snippet: c.Snippet})
	}
	return out, nil
}
