package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	AI          AIConfig          `yaml:"ai"`
	Drive       DriveConfig       `yaml:"drive"`
	Paths       PathsConfig       `yaml:"paths"`
	Retry       RetryConfig       `yaml:"retry"`
	Performance PerformanceConfig `yaml:"performance"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	AllowOrigins []string `yaml:"allow_origins"`
	MaxUploadMB  int64    `yaml:"max_upload_mb"`
}

type AIConfig struct {
	Transcriber string       `yaml:"transcriber"` // "gemini" or "whisper"
	Language    string       `yaml:"language"`
	Gemini      GeminiConfig `yaml:"gemini"`
	OpenAI      OpenAIConfig `yaml:"openai"`
}

type GeminiConfig struct {
	APIKeys []string `yaml:"api_keys"`
	Model   string   `yaml:"model"`
}

type OpenAIConfig struct {
	APIKey       string `yaml:"api_key"`
	WhisperModel string `yaml:"whisper_model"`
}

// DriveConfig configures the optional Google Drive upload. All fields empty
// means the feature is disabled, which is not an error.
type DriveConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	TokenFile    string `yaml:"token_file"`
	FolderID     string `yaml:"folder_id"`
}

func (d DriveConfig) Enabled() bool {
	return d.ClientID != "" && d.ClientSecret != ""
}

type PathsConfig struct {
	Data  string `yaml:"data"`
	Watch string `yaml:"watch"` // optional drop folder, empty disables the watcher
}

type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms"`
}

type PerformanceConfig struct {
	MaxConcurrentFrames int `yaml:"max_concurrent_frames"`
	StageTimeoutSeconds int `yaml:"stage_timeout_seconds"`
	SessionTTLMinutes   int `yaml:"session_ttl_minutes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and validates a YAML config file. The Gemini and OpenAI API
// keys may also come from GEMINI_API_KEY / OPENAI_API_KEY so secrets stay
// out of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if env := os.Getenv("GEMINI_API_KEY"); env != "" {
		for _, key := range strings.Split(env, ",") {
			if key = strings.TrimSpace(key); key != "" {
				cfg.AI.Gemini.APIKeys = append(cfg.AI.Gemini.APIKeys, key)
			}
		}
	}
	if env := os.Getenv("OPENAI_API_KEY"); env != "" {
		cfg.AI.OpenAI.APIKey = env
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.AI.Gemini.APIKeys) == 0 {
		return fmt.Errorf("ai.gemini.api_keys is required")
	}
	if c.AI.Transcriber == "" {
		c.AI.Transcriber = "gemini"
	}
	switch c.AI.Transcriber {
	case "gemini":
	case "whisper":
		if c.AI.OpenAI.APIKey == "" {
			return fmt.Errorf("ai.openai.api_key is required for the whisper transcriber")
		}
	default:
		return fmt.Errorf("ai.transcriber must be \"gemini\" or \"whisper\", got %q", c.AI.Transcriber)
	}

	if c.AI.Gemini.Model == "" {
		c.AI.Gemini.Model = "gemini-2.5-flash"
	}
	if c.AI.OpenAI.WhisperModel == "" {
		c.AI.OpenAI.WhisperModel = "whisper-1"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 512
	}
	if c.Paths.Data == "" {
		c.Paths.Data = "data/sessions"
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelayMS == 0 {
		c.Retry.BaseDelayMS = 2000
	}
	if c.Retry.MaxDelayMS == 0 {
		c.Retry.MaxDelayMS = 30000
	}

	if c.Performance.MaxConcurrentFrames == 0 {
		c.Performance.MaxConcurrentFrames = 4
	}
	if c.Performance.StageTimeoutSeconds == 0 {
		c.Performance.StageTimeoutSeconds = 120
	}
	if c.Performance.SessionTTLMinutes == 0 {
		c.Performance.SessionTTLMinutes = 120
	}

	if c.Drive.Enabled() && c.Drive.TokenFile == "" {
		c.Drive.TokenFile = "data/drive_token.json"
	}

	return nil
}
