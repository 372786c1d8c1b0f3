package edits

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/forPelevin/takecut/internal/domain/timerange"
)

var ErrUnrecognizedPayload = errors.New("unrecognized edit payload")

// CandidateEdit is a time range nominated for the final cut. Snippet is a
// label only and never influences cutting.
type CandidateEdit struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Snippet string  `json:"targeted_script_snippet,omitempty"`
}

// UnmarshalJSON accepts numeric seconds or timestamp strings for start/end and
// either "targeted_script_snippet" or "snippet" for the label.
func (c *CandidateEdit) UnmarshalJSON(b []byte) error {
	var raw struct {
		Start    json.RawMessage `json:"start"`
		End      json.RawMessage `json:"end"`
		Targeted string          `json:"targeted_script_snippet"`
		Snippet  string          `json:"snippet"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	start, err := decodeSeconds(raw.Start)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := decodeSeconds(raw.End)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	c.Start, c.End = start, end
	c.Snippet = raw.Targeted
	if c.Snippet == "" {
		c.Snippet = raw.Snippet
	}
	return nil
}

func decodeSeconds(b json.RawMessage) (float64, error) {
	if len(b) == 0 || string(b) == "null" {
		return 0, errors.New("missing value")
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return 0, fmt.Errorf("expected number or timestamp, got %s", string(b))
	}
	return timerange.ParseTimestamp(s)
}

// Shape records which envelope a payload arrived in.
type Shape int

const (
	ShapeBare Shape = iota
	ShapeEditsField
	ShapeContentEditsField
)

func (s Shape) String() string {
	switch s {
	case ShapeBare:
		return "bare"
	case ShapeEditsField:
		return "edits"
	case ShapeContentEditsField:
		return "content.edits"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Payload is a candidate edit list after envelope unwrapping. Whatever shape the
// producer used, Edits is the canonical sequence.
type Payload struct {
	Shape Shape
	Edits []CandidateEdit
}

func Bare(e []CandidateEdit) Payload { return Payload{Shape: ShapeBare, Edits: e} }

func EditsField(e []CandidateEdit) Payload { return Payload{Shape: ShapeEditsField, Edits: e} }

func ContentEditsField(e []CandidateEdit) Payload {
	return Payload{Shape: ShapeContentEditsField, Edits: e}
}

// MarshalJSON always writes the bare array.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.Edits == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.Edits)
}

// DecodePayload resolves the envelope once: a bare array, {"edits": [...]} or
// {"content": {"edits": [...]}}. Anything else is ErrUnrecognizedPayload.
func DecodePayload(b []byte) (Payload, error) {
	t := bytes.TrimSpace(b)
	if len(t) == 0 {
		return Payload{}, fmt.Errorf("%w: empty document", ErrUnrecognizedPayload)
	}

	switch t[0] {
	case '[':
		list, err := decodeList(t)
		if err != nil {
			return Payload{}, err
		}
		return Bare(list), nil
	case '{':
	default:
		return Payload{}, fmt.Errorf("%w: expected array or object, got %q", ErrUnrecognizedPayload, preview(t))
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(t, &obj); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, err)
	}
	if raw, ok := obj["edits"]; ok {
		list, err := decodeList(raw)
		if err != nil {
			return Payload{}, err
		}
		return EditsField(list), nil
	}
	if raw, ok := obj["content"]; ok {
		var content map[string]json.RawMessage
		if err := json.Unmarshal(raw, &content); err == nil {
			if inner, ok := content["edits"]; ok {
				list, err := decodeList(inner)
				if err != nil {
					return Payload{}, err
				}
				return ContentEditsField(list), nil
			}
		}
	}
	return Payload{}, fmt.Errorf("%w: object has no edits or content.edits field", ErrUnrecognizedPayload)
}

func decodeList(b json.RawMessage) ([]CandidateEdit, error) {
	t := bytes.TrimSpace(b)
	if len(t) == 0 || t[0] != '[' {
		return nil, fmt.Errorf("%w: edits must be an array, got %q", ErrUnrecognizedPayload, preview(t))
	}
	var list []CandidateEdit
	if err := json.Unmarshal(t, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, err)
	}
	return list, nil
}

func preview(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return s
}
