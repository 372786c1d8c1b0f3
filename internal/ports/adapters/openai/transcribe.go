package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/forPelevin/takecut/internal/types"
)

const transcriptFile = "transcript.json"

// Transcriber uploads compressed audio and asks for word timestamps.
type Transcriber struct {
	cfg    Config
	client openai.Client
	logger zerolog.Logger
}

func NewTranscriber(cfg Config, logger zerolog.Logger, opts ...option.RequestOption) *Transcriber {
	cfg = cfg.withDefaults()
	return &Transcriber{
		cfg:    cfg,
		client: newClient(cfg, opts),
		logger: componentLogger(logger, "openai-asr"),
	}
}

func (t *Transcriber) AudioExt() string { return ".mp3" }

// Transcribe reuses <cacheDir>/transcript.json when present. The raw verbose
// response is written there on success.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, cacheDir string) (types.Transcript, error) {
	cached := filepath.Join(cacheDir, transcriptFile)
	if b, err := os.ReadFile(cached); err == nil {
		if tr, err := parseVerboseTranscript(b); err == nil {
			t.logger.Debug().Str("path", cached).Msg("using cached transcript")
			return tr, nil
		}
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	t.logger.Info().Str("model", t.cfg.TranscribeModel).Str("audio", audioPath).Msg("transcribing")
	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:                   f,
		Model:                  openai.AudioModel(t.cfg.TranscribeModel),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word", "segment"},
	})
	if err != nil {
		return types.Transcript{}, apiError("transcription", t.cfg.APIKey, err)
	}

	raw := []byte(resp.RawJSON())
	tr, err := parseVerboseTranscript(raw)
	if err != nil {
		return types.Transcript{}, err
	}
	if err := os.WriteFile(cached, raw, 0o644); err != nil {
		return types.Transcript{}, fmt.Errorf("write transcript: %w", err)
	}
	return tr, nil
}

func parseVerboseTranscript(b []byte) (types.Transcript, error) {
	var tr types.Transcript
	if err := json.Unmarshal(b, &tr); err != nil {
		return types.Transcript{}, fmt.Errorf("parse transcript: %w", err)
	}
	tr.Text = strings.TrimSpace(tr.Text)
	for i := range tr.Words {
		tr.Words[i].Word = strings.TrimSpace(tr.Words[i].Word)
	}
	for i := range tr.Segments {
		tr.Segments[i].Text = strings.TrimSpace(tr.Segments[i].Text)
	}
	if tr.Text == "" && len(tr.Words) == 0 && len(tr.Segments) == 0 {
		return types.Transcript{}, fmt.Errorf("parse transcript: no text")
	}
	return tr, nil
}
