// Package timerange holds the time value primitives shared by every cutting path:
// user timestamp parsing and strict range validation against a media duration.
package timerange

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrEmptyInput         = errors.New("empty timestamp")
	ErrMalformedTimestamp = errors.New("malformed timestamp; use seconds or HH:MM:SS")
	ErrInvalidRange       = errors.New("invalid range")
	ErrEmptyMedia         = errors.New("media has no duration")
)

// Range is a span of media time in seconds.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (r Range) Duration() float64 { return r.End - r.Start }

func (r Range) String() string {
	return fmt.Sprintf("%.3fs-%.3fs", r.Start, r.End)
}

// ParseTimestamp accepts raw seconds ("90", "3.5") or up to three colon
// separated components ("1:30", "01:02:03.5") and returns seconds.
// No bounds are applied here.
func ParseTimestamp(text string) (float64, error) {
	v := strings.TrimSpace(text)
	if v == "" {
		return 0, ErrEmptyInput
	}

	// ParseFloat also takes hex floats ("0x1p3"); only decimal seconds are valid
	if strings.ContainsAny(v, "xX") {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTimestamp, v)
	}

	if sec, err := strconv.ParseFloat(v, 64); err == nil {
		if !finite(sec) {
			return 0, fmt.Errorf("%w: %q", ErrMalformedTimestamp, v)
		}
		return sec, nil
	}

	parts := strings.Split(v, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTimestamp, v)
	}

	var hms [3]float64
	offset := 3 - len(parts)
	for i, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || !finite(n) {
			return 0, fmt.Errorf("%w: %q", ErrMalformedTimestamp, v)
		}
		hms[offset+i] = n
	}
	return hms[0]*3600 + hms[1]*60 + hms[2], nil
}

// CheckDuration rejects media that cannot be cut.
func CheckDuration(duration float64) error {
	if !(duration > 0) {
		return fmt.Errorf("%w (%.3fs)", ErrEmptyMedia, duration)
	}
	return nil
}

// ClampSingleRange validates an explicit user range. Unlike segment padding it
// never adjusts the boundaries: anything outside [0, duration] is rejected.
func ClampSingleRange(start, end, duration float64) (Range, error) {
	if err := CheckDuration(duration); err != nil {
		return Range{}, err
	}
	switch {
	case end <= start:
		return Range{}, fmt.Errorf("%w: end %.3fs must be greater than start %.3fs", ErrInvalidRange, end, start)
	case start < 0:
		return Range{}, fmt.Errorf("%w: start %.3fs is negative", ErrInvalidRange, start)
	case end > duration:
		return Range{}, fmt.Errorf("%w: end %.3fs is past media duration %.3fs", ErrInvalidRange, end, duration)
	}
	return Range{Start: start, End: end}, nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
