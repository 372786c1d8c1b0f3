// Package openai talks to OpenAI-compatible endpoints for transcription and
// edit planning.
package openai

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

const (
	DefaultModel           = "gpt-4.1-mini"
	DefaultTranscribeModel = "whisper-1"

	requestTimeout = 90 * time.Second
)

type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	TranscribeModel string
}

func (c Config) withDefaults() Config {
	c.BaseURL = normalizeBaseURL(c.BaseURL)
	if strings.TrimSpace(c.Model) == "" {
		c.Model = DefaultModel
	}
	if strings.TrimSpace(c.TranscribeModel) == "" {
		c.TranscribeModel = DefaultTranscribeModel
	}
	return c
}

func newClient(cfg Config, extra []option.RequestOption) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL + "/"),
		option.WithRequestTimeout(requestTimeout),
	}
	opts = append(opts, extra...)
	return openai.NewClient(opts...)
}

// apiError hides credentials that some proxies echo back in error bodies.
func apiError(op, apiKey string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai %s: status %d: %s", op, apiErr.StatusCode, truncate(redactSecrets(apiErr.RawJSON(), apiKey), 400))
	}
	return fmt.Errorf("openai %s: %s", op, redactSecrets(err.Error(), apiKey))
}

func componentLogger(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}

// extractJSONObject returns the outermost {...} of a model reply, tolerating
// code fences and chatter around it.
func extractJSONObject(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("openai: empty content")
	}

	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		return t[start : end+1], nil
	}
	return "", fmt.Errorf("openai: could not locate JSON object in: %q", truncate(t, 200))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
