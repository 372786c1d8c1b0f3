package types

// Transcript is a word-timestamped transcription. Words may be empty when the
// backend only reports segments; AllWords covers both cases.
type Transcript struct {
	Text     string    `json:"text,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
	Words    []Word    `json:"words,omitempty"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// AllWords returns top-level words, or the words nested in segments when the
// top-level list is empty.
func (t Transcript) AllWords() []Word {
	if len(t.Words) > 0 {
		return t.Words
	}
	var out []Word
	for _, s := range t.Segments {
		out = append(out, s.Words...)
	}
	return out
}

type Manifest struct {
	Kind      string            `json:"kind"`
	Input     string            `json:"input"`
	Duration  float64           `json:"duration_sec"`
	HasAudio  bool              `json:"has_audio"`
	Padding   float64           `json:"padding_sec,omitempty"`
	Segments  []ManifestSegment `json:"segments"`
	Assembled string            `json:"assembled,omitempty"`
	Bundle    string            `json:"bundle,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
}

type ManifestSegment struct {
	Ordinal  int     `json:"ordinal"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
	File     string  `json:"file"`
	Snippet  string  `json:"snippet,omitempty"`
	NoAudio  bool    `json:"no_audio,omitempty"`
}
