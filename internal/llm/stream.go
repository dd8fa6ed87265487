package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// StreamParser decodes a Server-Sent Events chat completion stream.
type StreamParser struct {
	scanner *bufio.Scanner
}

// NewStreamParser creates a parser reading from reader.
func NewStreamParser(reader io.Reader) *StreamParser {
	return &StreamParser{
		scanner: bufio.NewScanner(reader),
	}
}

// StreamChunk is a single decoded fragment of the stream.
type StreamChunk struct {
	Content      string
	FinishReason string
	Done         bool
}

// Next reads the next chunk. Malformed data lines are skipped rather
// than failing the stream; a garbled line near a network hiccup should
// not discard the transcription in flight.
func (p *StreamParser) Next() (*StreamChunk, error) {
	for p.scanner.Scan() {
		line := p.scanner.Text()

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			return &StreamChunk{Done: true}, nil
		}

		var resp Response
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			continue
		}

		if len(resp.Choices) > 0 {
			choice := resp.Choices[0]
			return &StreamChunk{
				Content:      choice.Delta.Content,
				FinishReason: choice.FinishReason,
				Done:         choice.FinishReason != "",
			}, nil
		}
	}

	if err := p.scanner.Err(); err != nil {
		return nil, err
	}

	return &StreamChunk{Done: true}, nil
}

// ParseAll forwards every chunk's content to out in emission order
// until the stream ends, the connection fails, or ctx is cancelled.
func (p *StreamParser) ParseAll(ctx context.Context, out chan<- string) error {
	for {
		chunk, err := p.Next()
		if err != nil {
			return err
		}

		if chunk.Content != "" {
			select {
			case out <- chunk.Content:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if chunk.Done {
			return nil
		}
	}
}
