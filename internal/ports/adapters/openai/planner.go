package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog"

	"github.com/forPelevin/takecut/internal/domain/edits"
	"github.com/forPelevin/takecut/internal/types"
)

var ErrNoScript = errors.New("script is empty")

// Planner asks a chat model to pick one take per script passage.
type Planner struct {
	cfg    Config
	client openai.Client
	logger zerolog.Logger
}

func NewPlanner(cfg Config, logger zerolog.Logger, opts ...option.RequestOption) *Planner {
	cfg = cfg.withDefaults()
	return &Planner{
		cfg:    cfg,
		client: newClient(cfg, opts),
		logger: componentLogger(logger, "openai-planner"),
	}
}

const systemPrompt = "You are a video editor working from a raw recording that contains several takes of a script. " +
	"Use the word timestamps to find, for every passage of the script, the single best take. " +
	"Prefer the last complete, fluent take. Skip false starts, retakes and off-script chatter. " +
	"Return strictly valid JSON, no markdown, in this shape: " +
	`{"edits":[{"start":12.3,"end":18.9,"targeted_script_snippet":"..."}]}` +
	". Times are seconds from the start of the recording. List edits in script order."

type promptWord struct {
	Word  string  `json:"w"`
	Start float64 `json:"s"`
	End   float64 `json:"e"`
}

func (p *Planner) Plan(ctx context.Context, tr types.Transcript, script string) (edits.Payload, error) {
	script = strings.TrimSpace(script)
	if script == "" {
		return edits.Payload{}, ErrNoScript
	}

	userPrompt, err := buildUserPrompt(tr, script)
	if err != nil {
		return edits.Payload{}, err
	}

	p.logger.Info().Str("model", p.cfg.Model).Int("words", len(tr.AllWords())).Msg("planning edits")
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model:       p.cfg.Model,
		Temperature: openai.Float(0.2),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return edits.Payload{}, apiError("plan", p.cfg.APIKey, err)
	}
	if len(resp.Choices) == 0 {
		return edits.Payload{}, errors.New("openai plan: no choices returned")
	}
	return parsePlan(resp.Choices[0].Message.Content)
}

func buildUserPrompt(tr types.Transcript, script string) (string, error) {
	words := tr.AllWords()
	pw := make([]promptWord, 0, len(words))
	for _, w := range words {
		pw = append(pw, promptWord{Word: w.Word, Start: w.Start, End: w.End})
	}
	wb, err := json.Marshal(pw)
	if err != nil {
		return "", fmt.Errorf("marshal prompt words: %w", err)
	}
	return "Script:\n" + script + "\n\nTranscript words JSON (w=word, s=start, e=end):\n" + string(wb), nil
}

func parsePlan(content string) (edits.Payload, error) {
	clean, err := extractJSONObject(content)
	if err != nil {
		return edits.Payload{}, err
	}
	p, err := edits.DecodePayload([]byte(clean))
	if err != nil {
		return edits.Payload{}, fmt.Errorf("openai plan: %w", err)
	}
	return p, nil
}
