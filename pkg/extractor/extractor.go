// Package extractor is the public entry point for the lyric
// extraction pipeline.
package extractor

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/cjs1301/lyric-extractor/internal/config"
	"github.com/cjs1301/lyric-extractor/internal/domain"
	"github.com/cjs1301/lyric-extractor/internal/extract"
	"github.com/cjs1301/lyric-extractor/internal/layout"
	"github.com/cjs1301/lyric-extractor/internal/llm"
	"github.com/cjs1301/lyric-extractor/internal/lyrics"
	"github.com/cjs1301/lyric-extractor/internal/observability"
	"github.com/cjs1301/lyric-extractor/internal/ocr"
)

// Re-export the event stream types for the public API.
type (
	StreamEvent      = domain.StreamEvent
	EventType        = domain.EventType
	CompletePayload  = domain.CompletePayload
	StructuredLyrics = domain.StructuredLyrics
	Section          = domain.Section
)

// Event type constants.
const (
	EventStart         = domain.EventStart
	EventPageRendered  = domain.EventPageRendered
	EventOCRComplete   = domain.EventOCRComplete
	EventLLMStreaming  = domain.EventLLMStreaming
	EventLyricsUpdated = domain.EventLyricsUpdated
	EventError         = domain.EventError
	EventComplete      = domain.EventComplete
)

// Client is the main entry point for the lyric extractor library.
type Client struct {
	service *extract.Service
}

// NewClient builds a client from environment variables, loading .env
// when present. OPENAI_API_KEY is required.
func NewClient() (*Client, error) {
	_ = godotenv.Load() // .env is optional

	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, domain.ConfigError("OPENAI_API_KEY not set", nil)
	}

	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	return NewClientWithConfig(cfg)
}

// NewClientWithConfig builds a client from an explicit configuration.
func NewClientWithConfig(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, domain.ConfigError("configuration is required", nil)
	}
	if cfg.LLM.APIKey == "" {
		return nil, domain.ConfigError("llm api key is required", nil)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "lyric-extractor",
	})

	transcriber := llm.NewClient(llm.Options{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout,
		Logger:    logger,
	})

	// The Vision client is only needed in OCR mode; vision mode sends
	// page images straight to the model.
	var batch extract.OCRRunner
	if cfg.LLM.Mode == extract.ModeOCR {
		annotator, err := ocr.NewVisionAnnotator(context.Background(), ocr.Config{
			CredentialsFile: cfg.OCR.CredentialsFile,
			LanguageHints:   cfg.OCR.LanguageHints,
			RequestsPerSec:  cfg.OCR.RequestsPerSec,
			Timeout:         cfg.OCR.Timeout,
		})
		if err != nil {
			return nil, err
		}
		batch = ocr.NewBatch(annotator, cfg.OCR.Concurrency, logger)
	}

	service := extract.NewService(
		extract.Config{
			Mode:           cfg.LLM.Mode,
			DPI:            cfg.Raster.DPI,
			MaxPages:       cfg.Raster.MaxPages,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		},
		transcriber,
		batch,
		layout.New(cfg.Layout.LineTolerance, cfg.Layout.TitleRegionRatio),
		lyrics.NewParser(lyrics.Options{
			FallbackTitle:  cfg.Parser.FallbackTitle,
			ExtraNoise:     cfg.Parser.ExtraNoise,
			ShortLineLimit: cfg.Parser.ShortLineLimit,
		}),
		logger,
	)

	return &Client{service: service}, nil
}

// ProcessPDF extracts lyrics from a PDF document. Events stream on
// the returned channel until a terminal error or complete event.
func (c *Client) ProcessPDF(ctx context.Context, data []byte) (<-chan StreamEvent, error) {
	if len(data) == 0 {
		return nil, domain.ValidationError("empty document", nil)
	}
	return c.service.ExtractPDF(ctx, data), nil
}

// ProcessImages extracts lyrics from one or more page images.
func (c *Client) ProcessImages(ctx context.Context, images [][]byte) (<-chan StreamEvent, error) {
	if len(images) == 0 {
		return nil, domain.ValidationError("no images provided", nil)
	}
	return c.service.ExtractImages(ctx, images), nil
}

// Close releases client resources. Present for API symmetry; the
// pipeline holds no per-client state between requests.
func (c *Client) Close() error {
	return nil
}
