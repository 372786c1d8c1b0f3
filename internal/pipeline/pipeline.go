package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/takecut/internal/config"
	"github.com/forPelevin/takecut/internal/domain/align"
	"github.com/forPelevin/takecut/internal/ports"
	"github.com/forPelevin/takecut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/takecut/internal/ports/adapters/openai"
	"github.com/forPelevin/takecut/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/takecut/internal/store"
	"github.com/forPelevin/takecut/internal/usecase"
)

var (
	ErrInputNotFound = errors.New("input not found")
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY is required for this backend (set it in .env)")
	ErrNoLedger      = errors.New("run ledger is disabled")
)

type Config struct {
	OutDir  string
	Padding float64
	Bundle  bool
	// DBPath empty disables the ledger.
	DBPath string

	FFmpegPath  string
	FFprobePath string

	ASR          string
	WhisperBin   string
	WhisperModel string

	Planner       string
	AlignMinScore float64

	OpenAI             openai.Config
	OpenAIAllowedHosts []string
}

func ConfigFrom(c *config.Config) Config {
	return Config{
		OutDir:        c.OutDir,
		Padding:       c.Padding,
		Bundle:        c.Bundle,
		DBPath:        c.DBPath,
		FFmpegPath:    c.FFmpeg.BinaryPath,
		FFprobePath:   c.FFmpeg.ProbePath,
		ASR:           c.ASR,
		WhisperBin:    c.Whisper.BinaryPath,
		WhisperModel:  c.Whisper.ModelPath,
		Planner:       c.Planner,
		AlignMinScore: c.Align.MinScore,
		OpenAI: openai.Config{
			APIKey:          c.OpenAI.APIKey,
			BaseURL:         c.OpenAI.BaseURL,
			Model:           c.OpenAI.Model,
			TranscribeModel: c.OpenAI.TranscribeModel,
		},
		OpenAIAllowedHosts: c.OpenAI.AllowedHosts,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.OutDir) == "" {
		return errors.New("out dir is empty")
	}
	if err := config.CheckPadding(c.Padding); err != nil {
		return err
	}
	switch c.ASR {
	case config.ASROpenAI:
	case config.ASRWhisperCPP:
		if c.WhisperModel == "" {
			return fmt.Errorf("whisper model path is required")
		}
	default:
		return fmt.Errorf("unknown asr backend %q", c.ASR)
	}
	switch c.Planner {
	case config.PlannerOpenAI, config.PlannerAlign:
	default:
		return fmt.Errorf("unknown planner %q", c.Planner)
	}
	return openai.ValidateBaseURL(c.OpenAI.BaseURL, c.OpenAIAllowedHosts)
}

func (c Config) needsAPIKey() bool {
	return c.ASR == config.ASROpenAI || c.Planner == config.PlannerOpenAI
}

// Runner executes one run at a time against a fixed set of adapters.
type Runner struct {
	cfg    Config
	uc     usecase.Usecase
	store  *store.Store
	logger zerolog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// New validates cfg, checks for ffmpeg and ffprobe, wires the adapters and
// opens the ledger.
func New(cfg Config, logger zerolog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	media := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, logger)
	if err := media.CheckDeps(); err != nil {
		return nil, err
	}

	var asr ports.ASR
	switch cfg.ASR {
	case config.ASRWhisperCPP:
		asr = whispercpp.New(cfg.WhisperBin, cfg.WhisperModel, logger)
	default:
		asr = openai.NewTranscriber(cfg.OpenAI, logger)
	}
	var planner ports.EditPlanner
	switch cfg.Planner {
	case config.PlannerAlign:
		planner = align.Planner{MinScore: cfg.AlignMinScore}
	default:
		planner = openai.NewPlanner(cfg.OpenAI, logger)
	}

	var st *store.Store
	if cfg.DBPath != "" {
		var err error
		if st, err = store.Open(cfg.DBPath, logger); err != nil {
			return nil, err
		}
	}

	deps := usecase.Deps{Media: media, ASR: asr, Planner: planner}
	return NewWithDeps(cfg, deps, st, logger), nil
}

// NewWithDeps skips validation and adapter wiring. st may be nil.
func NewWithDeps(cfg Config, deps usecase.Deps, st *store.Store, logger zerolog.Logger) *Runner {
	logger = logger.With().Str("component", "pipeline").Logger()
	deps.Logger = logger
	return &Runner{
		cfg:    cfg,
		uc:     usecase.New(deps),
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

func (r *Runner) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

// ensure adapters implement ports
var (
	_ ports.MediaTool   = (*ffmpeg.Adapter)(nil)
	_ ports.ASR         = (*whispercpp.Adapter)(nil)
	_ ports.ASR         = (*openai.Transcriber)(nil)
	_ ports.EditPlanner = (*openai.Planner)(nil)
	_ ports.EditPlanner = align.Planner{}
)
