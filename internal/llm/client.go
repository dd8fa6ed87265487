// Package llm streams lyric transcriptions from an OpenAI-compatible
// chat completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cjs1301/lyric-extractor/internal/domain"
	"github.com/cjs1301/lyric-extractor/internal/observability"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "gpt-4.1"
	defaultMaxTokens = 4000

	maxRetries     = 3
	initialBackoff = time.Second
)

// Client handles communication with the chat completions API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *observability.Logger
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Logger    *observability.Logger
}

// Message represents a chat message.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image).
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an inlined image in the message.
type ImageURL struct {
	URL string `json:"url"`
}

// Request represents the API request structure.
type Request struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// Response represents the API response structure.
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// Choice represents a single completion choice.
type Choice struct {
	Delta        Delta  `json:"delta"`
	Message      Delta  `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Delta represents a message delta in a streaming response.
type Delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// NewClient creates a transcription client.
func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.Nop()
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		model:      model,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger.WithStage("llm"),
	}
}

// TranscribeImages submits every page image in one request and streams
// the transcription onto chunks. One call covers the whole document so
// the model can follow songs across page breaks.
func (c *Client) TranscribeImages(ctx context.Context, pages []domain.RasterPage, chunks chan<- string) error {
	if len(pages) == 0 {
		return domain.ValidationError("no pages to transcribe", nil)
	}

	content := []ContentPart{{Type: "text", Text: transcriptionPrompt}}
	for _, p := range pages {
		content = append(content, ContentPart{
			Type: "image_url",
			ImageURL: &ImageURL{
				URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(p.PNG),
			},
		})
	}

	return c.stream(ctx, []Message{{Role: "user", Content: content}}, chunks)
}

// TranscribeText submits reconstructed per-page OCR text instead of
// images. Cheaper than vision mode, at the cost of losing layout cues
// the OCR step could not recover.
func (c *Client) TranscribeText(ctx context.Context, pageTexts []string, chunks chan<- string) error {
	if len(pageTexts) == 0 {
		return domain.ValidationError("no page text to transcribe", nil)
	}

	msg := Message{
		Role:    "user",
		Content: []ContentPart{{Type: "text", Text: buildOCRPrompt(pageTexts)}},
	}
	return c.stream(ctx, []Message{msg}, chunks)
}

// stream sends the request and forwards decoded chunks in emission
// order. Errors before the first byte are TranscriptionErrors; a
// failure once the stream is open is a StreamInterruptedError so the
// caller can preserve accumulated text.
func (c *Client) stream(ctx context.Context, messages []Message, chunks chan<- string) error {
	body, err := json.Marshal(&Request{
		Model:     c.model,
		Messages:  messages,
		Stream:    true,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return domain.TranscriptionError("failed to marshal request", err)
	}

	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return c.httpClient.Do(req)
	})
	if err != nil {
		return domain.TranscriptionError("failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.TranscriptionError(fmt.Sprintf("api returned status %d: %s", resp.StatusCode, payload), nil)
	}

	c.logger.Debug().Str("model", c.model).Msg("transcription stream opened")

	parser := NewStreamParser(resp.Body)
	if err := parser.ParseAll(ctx, chunks); err != nil {
		return domain.StreamInterruptedError("transcription stream failed", err)
	}
	return nil
}

// retryWithBackoff retries transient failures before any bytes have
// been streamed. Client errors other than 429 are not retried.
func (c *Client) retryWithBackoff(ctx context.Context, do func() (*http.Response, error)) (*http.Response, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn().Int("attempt", attempt).Err(lastErr).Msg("retrying transcription request")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		resp, err := do()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}
		return resp, nil
	}

	return nil, fmt.Errorf("all retries failed: %w", lastErr)
}
