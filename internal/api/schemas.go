package api

import (
	"encoding/json"
	"strings"

	"github.com/forPelevin/takecut/internal/domain/timerange"
	"github.com/forPelevin/takecut/internal/store"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Timestamp accepts either a JSON number of seconds or a string in any form
// ParseTimestamp understands.
type Timestamp json.RawMessage

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	*t = append((*t)[:0], b...)
	return nil
}

func (t Timestamp) Seconds() (float64, error) {
	raw := strings.TrimSpace(string(t))
	if raw == "" || raw == "null" {
		return 0, timerange.ErrEmptyInput
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return 0, timerange.ErrMalformedTimestamp
		}
		raw = s
	}
	return timerange.ParseTimestamp(raw)
}

type CutRequest struct {
	Input string    `json:"input"`
	Start Timestamp `json:"start"`
	End   Timestamp `json:"end"`
}

type SplitRequest struct {
	Input string `json:"input"`
	Parts int    `json:"parts"`
}

type EditRequest struct {
	Input string          `json:"input"`
	Edits json.RawMessage `json:"edits"`
}

type ProcessRequest struct {
	Input  string `json:"input"`
	Script string `json:"script"`
}

type RunsResponse struct {
	Runs []*store.Run `json:"runs"`
}
