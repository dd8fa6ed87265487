// Package config provides unified configuration loading for the lyric
// extractor. Supports YAML files, environment variables, and
// programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the lyric extraction pipeline.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Raster        RasterConfig        `yaml:"raster"`
	OCR           OCRConfig           `yaml:"ocr"`
	Layout        LayoutConfig        `yaml:"layout"`
	LLM           LLMConfig           `yaml:"llm"`
	Parser        ParserConfig        `yaml:"parser"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// RasterConfig holds page rendering settings.
type RasterConfig struct {
	DPI      float64 `yaml:"dpi"`
	MaxPages int     `yaml:"max_pages"`
}

// OCRConfig holds Cloud Vision settings.
type OCRConfig struct {
	CredentialsFile string        `yaml:"credentials_file"`
	LanguageHints   []string      `yaml:"language_hints"`
	Concurrency     int           `yaml:"concurrency"`
	RequestsPerSec  float64       `yaml:"requests_per_sec"`
	Timeout         time.Duration `yaml:"timeout"`
}

// LayoutConfig holds reading-order reconstruction settings.
type LayoutConfig struct {
	LineTolerance    int     `yaml:"line_tolerance"`
	TitleRegionRatio float64 `yaml:"title_region_ratio"`
}

// LLMConfig holds transcription model settings.
type LLMConfig struct {
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	Mode      string        `yaml:"mode"` // vision or ocr
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ParserConfig holds lyrics parser settings.
type ParserConfig struct {
	FallbackTitle  string   `yaml:"fallback_title"`
	ExtraNoise     []string `yaml:"extra_noise"`
	ShortLineLimit int      `yaml:"short_line_limit"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     300 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   32 << 20,
		},
		Raster: RasterConfig{
			DPI:      144,
			MaxPages: 20,
		},
		OCR: OCRConfig{
			LanguageHints:  []string{"ko", "en"},
			Concurrency:    4,
			RequestsPerSec: 5,
			Timeout:        30 * time.Second,
		},
		Layout: LayoutConfig{
			LineTolerance:    20,
			TitleRegionRatio: 0.30,
		},
		LLM: LLMConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4.1",
			Mode:      "vision",
			MaxTokens: 4000,
			Timeout:   120 * time.Second,
		},
		Parser: ParserConfig{
			FallbackTitle:  "추출된 가사",
			ShortLineLimit: 50,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "debug",
			LogFormat: "json",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Raster.DPI < 36 || c.Raster.DPI > 600 {
		return fmt.Errorf("raster dpi must be between 36 and 600, got %g", c.Raster.DPI)
	}

	if c.OCR.Concurrency < 1 {
		return fmt.Errorf("ocr concurrency must be at least 1")
	}

	if c.Layout.LineTolerance < 0 {
		return fmt.Errorf("line_tolerance must not be negative")
	}

	if c.Layout.TitleRegionRatio <= 0 || c.Layout.TitleRegionRatio > 1 {
		return fmt.Errorf("title_region_ratio must be in (0, 1], got %g", c.Layout.TitleRegionRatio)
	}

	if c.LLM.Mode != "vision" && c.LLM.Mode != "ocr" {
		return fmt.Errorf("invalid llm mode: %s", c.LLM.Mode)
	}

	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("llm max_tokens must be at least 1")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("LLM_MODE"); v != "" {
		cfg.LLM.Mode = v
	}

	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		cfg.OCR.CredentialsFile = v
	}

	if v := os.Getenv("OCR_LANGUAGE_HINTS"); v != "" {
		cfg.OCR.LanguageHints = strings.Split(v, ",")
	}

	if v := os.Getenv("OCR_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OCR.Concurrency = n
		}
	}

	if v := os.Getenv("RASTER_DPI"); v != "" {
		if dpi, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Raster.DPI = dpi
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
