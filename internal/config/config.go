// Package config loads takecut settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ASROpenAI     = "openai"
	ASRWhisperCPP = "whispercpp"

	PlannerOpenAI = "openai"
	PlannerAlign  = "align"
)

type Config struct {
	OutDir  string  `yaml:"out_dir"`
	Padding float64 `yaml:"padding"`
	Bundle  bool    `yaml:"bundle"`
	DBPath  string  `yaml:"db_path"`
	Addr    string  `yaml:"addr"`
	ASR     string  `yaml:"asr"`
	Planner string  `yaml:"planner"`

	FFmpeg  FFmpegConfig  `yaml:"ffmpeg"`
	Whisper WhisperConfig `yaml:"whisper"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Align   AlignConfig   `yaml:"align"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
}

type WhisperConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ModelPath  string `yaml:"model_path"`
}

type OpenAIConfig struct {
	// APIKey only comes from the environment.
	APIKey          string   `yaml:"-"`
	Model           string   `yaml:"model"`
	TranscribeModel string   `yaml:"transcribe_model"`
	BaseURL         string   `yaml:"base_url"`
	AllowedHosts    []string `yaml:"allowed_hosts"`
}

type AlignConfig struct {
	MinScore float64 `yaml:"min_score"`
}

func Default() *Config {
	return &Config{
		OutDir:  "out",
		Padding: 2.0,
		Bundle:  true,
		DBPath:  filepath.Join(homeDir(), ".takecut", "takecut.db"),
		Addr:    "127.0.0.1:8790",
		ASR:     ASROpenAI,
		Planner: PlannerOpenAI,
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
		},
		Whisper: WhisperConfig{
			BinaryPath: "whisper-cli",
			ModelPath:  filepath.Join(".cache", "models", "ggml-base.bin"),
		},
		OpenAI: OpenAIConfig{
			Model:           "gpt-4.1-mini",
			TranscribeModel: "whisper-1",
			BaseURL:         "https://api.openai.com/v1",
		},
		Align: AlignConfig{MinScore: 0.5},
	}
}

// Load reads path, or the first config file found when path is empty, over
// the defaults, then applies environment overrides. An explicit path must
// exist.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	applyEnv(cfg, lookup)
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	set("OPENAI_MODEL", &cfg.OpenAI.Model)
	set("OPENAI_TRANSCRIBE_MODEL", &cfg.OpenAI.TranscribeModel)
	set("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	set("TAKECUT_ASR", &cfg.ASR)
	set("TAKECUT_PLANNER", &cfg.Planner)
	set("TAKECUT_DB", &cfg.DBPath)
	set("TAKECUT_ADDR", &cfg.Addr)
	set("WHISPER_MODEL", &cfg.Whisper.ModelPath)

	if v, ok := lookup("OPENAI_ALLOWED_HOSTS"); ok && strings.TrimSpace(v) != "" {
		cfg.OpenAI.AllowedHosts = nil
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				cfg.OpenAI.AllowedHosts = append(cfg.OpenAI.AllowedHosts, h)
			}
		}
	}
}

func (c *Config) Validate() error {
	if err := CheckPadding(c.Padding); err != nil {
		return err
	}
	switch c.ASR {
	case ASROpenAI, ASRWhisperCPP:
	default:
		return fmt.Errorf("unknown asr backend %q (want %s or %s)", c.ASR, ASROpenAI, ASRWhisperCPP)
	}
	switch c.Planner {
	case PlannerOpenAI, PlannerAlign:
	default:
		return fmt.Errorf("unknown planner %q (want %s or %s)", c.Planner, PlannerOpenAI, PlannerAlign)
	}
	if strings.TrimSpace(c.OutDir) == "" {
		return errors.New("out dir is empty")
	}
	return nil
}

// CheckPadding accepts finite, non-negative seconds. NaN fails every
// comparison, so it is tested explicitly.
func CheckPadding(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return fmt.Errorf("padding must be a finite number >= 0, got %v", p)
	}
	return nil
}

// Save writes the file form of c. The API key is never written.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func findConfigFile() string {
	candidates := []string{
		"./takecut.yaml",
		"./takecut.yml",
		filepath.Join(homeDir(), ".takecut", "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return "."
}
