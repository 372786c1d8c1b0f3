// Package whispercpp runs a local whisper.cpp binary as the transcription
// backend.
package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/forPelevin/takecut/internal/types"
)

type Adapter struct {
	bin    string
	model  string
	logger zerolog.Logger
}

func New(binPath, modelPath string, logger zerolog.Logger) *Adapter {
	if binPath == "" {
		binPath = "whisper-cli"
	}
	return &Adapter{bin: binPath, model: modelPath, logger: logger.With().Str("component", "whispercpp").Logger()}
}

func (a *Adapter) AudioExt() string { return ".wav" }

func (a *Adapter) Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error) {
	if a.model == "" {
		return types.Transcript{}, fmt.Errorf("whisper.cpp: model path is required")
	}
	outPrefix := filepath.Join(cacheDir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-ojf",
		"-of", outPrefix,
	}
	a.logger.Debug().Strs("args", args).Msg("executing whisper.cpp")
	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, err
	}
	return parseFullJSON(jb)
}

type offsets struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

type fullJSON struct {
	Transcription []struct {
		Offsets offsets `json:"offsets"`
		Text    string  `json:"text"`
		Tokens  []struct {
			Text    string  `json:"text"`
			Offsets offsets `json:"offsets"`
		} `json:"tokens"`
	} `json:"transcription"`
}

// parseFullJSON converts whisper.cpp -ojf output. Tokens are sub-word pieces;
// a leading space starts a new word. Control tokens look like [_BEG_].
func parseFullJSON(b []byte) (types.Transcript, error) {
	var raw fullJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return types.Transcript{}, fmt.Errorf("parse whisper.cpp output: %w", err)
	}

	var tr types.Transcript
	var texts []string
	for _, seg := range raw.Transcription {
		s := types.Segment{
			Start: ms(seg.Offsets.From),
			End:   ms(seg.Offsets.To),
			Text:  strings.TrimSpace(seg.Text),
		}
		for _, tok := range seg.Tokens {
			if strings.HasPrefix(strings.TrimSpace(tok.Text), "[_") || tok.Text == "" {
				continue
			}
			startsWord := strings.HasPrefix(tok.Text, " ") || len(s.Words) == 0
			if startsWord {
				s.Words = append(s.Words, types.Word{
					Start: ms(tok.Offsets.From),
					End:   ms(tok.Offsets.To),
					Word:  strings.TrimSpace(tok.Text),
				})
				continue
			}
			last := &s.Words[len(s.Words)-1]
			last.Word += tok.Text
			last.End = ms(tok.Offsets.To)
		}
		if s.Text != "" {
			texts = append(texts, s.Text)
		}
		if s.End > tr.Duration {
			tr.Duration = s.End
		}
		tr.Segments = append(tr.Segments, s)
	}
	tr.Text = strings.Join(texts, " ")
	return tr, nil
}

func ms(v int64) float64 { return float64(v) / 1000 }
