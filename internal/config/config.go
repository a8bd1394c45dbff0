package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"pdfrag/internal/chunker"
	"pdfrag/internal/domain"
)

// ChunkerConfig configures how documents are split into word windows.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig controls how many chunks a query returns.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// LLMConfig configures the OpenAI-compatible chat endpoint (Ollama by default).
type LLMConfig struct {
	Enabled         bool   `yaml:"enabled"`
	BaseURL         string `yaml:"base_url"`
	APIKeyEnv       string `yaml:"api_key_env"`
	Model           string `yaml:"model"`
	TimeoutSecs     int    `yaml:"timeout_secs"`
	MaxRetries      int    `yaml:"max_retries"`
	MaxContextChars int    `yaml:"max_context_chars"`
}

// SummarizerConfig configures the extractive summary shown after a load.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr             string  `yaml:"addr"`
	ReadTimeoutSecs  int     `yaml:"read_timeout_secs"`
	WriteTimeoutSecs int     `yaml:"write_timeout_secs"`
	MaxUploadMB      int     `yaml:"max_upload_mb"`
	AskRatePerSec    float64 `yaml:"ask_rate_per_sec"`
	AskBurst         int     `yaml:"ask_burst"`
}

// LoggingConfig controls slog level, format and destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	LLM        LLMConfig        `yaml:"llm"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Watch      bool             `yaml:"watch"`
}

// Load reads a config from path. A missing file yields defaults. Environment
// overrides are applied last.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/pdfrag/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, Default()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the retrieval engine cannot run with.
func (c *AppConfig) Validate() error {
	if err := chunker.Validate(c.Chunker.Size, c.Chunker.Overlap); err != nil {
		return fmt.Errorf("chunker: %w", err)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval: %w: top_k %d must be positive", domain.ErrInvalidArgument, c.Retrieval.TopK)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pdfrag", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		Chunker:   ChunkerConfig{Size: 300, Overlap: 50},
		Retrieval: RetrievalConfig{TopK: 3},
		LLM: LLMConfig{
			Enabled:         true,
			BaseURL:         "http://localhost:11434/v1",
			APIKeyEnv:       "OPENAI_API_KEY",
			Model:           "llama3.2",
			TimeoutSecs:     120,
			MaxRetries:      2,
			MaxContextChars: 10000,
		},
		Summarizer: SummarizerConfig{MaxSentences: 5},
		Server: ServerConfig{
			Addr:             ":8080",
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 180,
			MaxUploadMB:      32,
			AskRatePerSec:    1,
			AskBurst:         3,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// applyDefaults fills zero values left by a partial YAML file. Chunk overlap
// is left alone because zero is meaningful.
func applyDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = def.Chunker.Size
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = def.LLM.BaseURL
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = def.LLM.APIKeyEnv
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = def.LLM.TimeoutSecs
	}
	if cfg.LLM.MaxContextChars == 0 {
		cfg.LLM.MaxContextChars = def.LLM.MaxContextChars
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = def.Summarizer.MaxSentences
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.ReadTimeoutSecs == 0 {
		cfg.Server.ReadTimeoutSecs = def.Server.ReadTimeoutSecs
	}
	if cfg.Server.WriteTimeoutSecs == 0 {
		cfg.Server.WriteTimeoutSecs = def.Server.WriteTimeoutSecs
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = def.Server.MaxUploadMB
	}
	if cfg.Server.AskRatePerSec == 0 {
		cfg.Server.AskRatePerSec = def.Server.AskRatePerSec
	}
	if cfg.Server.AskBurst == 0 {
		cfg.Server.AskBurst = def.Server.AskBurst
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
}

// applyEnvOverrides reads PDFRAG_* environment variables.
func applyEnvOverrides(cfg *AppConfig) {
	if v, ok := envInt("PDFRAG_CHUNK_SIZE"); ok {
		cfg.Chunker.Size = v
	}
	if v, ok := envInt("PDFRAG_CHUNK_OVERLAP"); ok {
		cfg.Chunker.Overlap = v
	}
	if v, ok := envInt("PDFRAG_TOP_K"); ok {
		cfg.Retrieval.TopK = v
	}
	if v := os.Getenv("PDFRAG_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("PDFRAG_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("PDFRAG_LLM_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LLM.Enabled = b
		}
	}
	if v := os.Getenv("PDFRAG_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PDFRAG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PDFRAG_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
