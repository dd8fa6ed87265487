// Package integration exercises the full extraction pipeline against
// live services. Tests skip unless the required credentials and sample
// inputs are present in the environment.
package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/cjs1301/lyric-extractor/internal/config"
	"github.com/cjs1301/lyric-extractor/internal/domain"
	"github.com/cjs1301/lyric-extractor/pkg/extractor"
)

func init() {
	// Load .env file for testing
	_ = godotenv.Load("../../.env")
}

// liveClient builds a client from the environment, skipping the test
// when no API key is configured.
func liveClient(t *testing.T, mode string) *extractor.Client {
	t.Helper()

	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY not set")
	}
	if mode == "ocr" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("GOOGLE_APPLICATION_CREDENTIALS not set")
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.LLM.Mode = mode

	client, err := extractor.NewClientWithConfig(cfg)
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	return client
}

// samplePDF returns the sample score PDF, skipping when none is set.
func samplePDF(t *testing.T) []byte {
	t.Helper()

	path := os.Getenv("LYRIC_SAMPLE_PDF")
	if path == "" {
		t.Skip("LYRIC_SAMPLE_PDF not set")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample PDF: %v", err)
	}
	return data
}

func TestPDFToLyrics_VisionMode(t *testing.T) {
	client := liveClient(t, "vision")
	defer client.Close()
	data := samplePDF(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	events, err := client.ProcessPDF(ctx, data)
	if err != nil {
		t.Fatalf("start extraction: %v", err)
	}

	var (
		order       []domain.EventType
		chunks      int
		updates     int
		finalLyrics *domain.StructuredLyrics
	)

	for ev := range events {
		order = append(order, ev.Type)
		switch ev.Type {
		case domain.EventLLMStreaming:
			chunks++
		case domain.EventLyricsUpdated:
			updates++
		case domain.EventError:
			t.Fatalf("extraction failed: %v", ev.Payload)
		case domain.EventComplete:
			payload, ok := ev.Payload.(domain.CompletePayload)
			if !ok {
				t.Fatalf("unexpected complete payload %T", ev.Payload)
			}
			finalLyrics = payload.Lyrics
		}
	}

	if len(order) == 0 || order[0] != domain.EventStart {
		t.Fatalf("stream did not begin with start event: %v", order)
	}
	if order[len(order)-1] != domain.EventComplete {
		t.Fatalf("stream did not end with complete event: %v", order)
	}
	if chunks == 0 {
		t.Fatal("no transcription chunks streamed")
	}
	if updates == 0 {
		t.Fatal("no incremental lyric updates emitted")
	}
	if finalLyrics.Empty() {
		t.Fatal("final lyrics are empty")
	}
	if finalLyrics.Title == "" {
		t.Error("final lyrics have no title")
	}

	for _, sec := range finalLyrics.Sections {
		if sec.Label == "" {
			t.Error("section missing label")
		}
		if len(sec.Lines) == 0 {
			t.Errorf("section %q has no lines", sec.Label)
		}
	}
}

func TestPDFToLyrics_OCRMode(t *testing.T) {
	client := liveClient(t, "ocr")
	defer client.Close()
	data := samplePDF(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	events, err := client.ProcessPDF(ctx, data)
	if err != nil {
		t.Fatalf("start extraction: %v", err)
	}

	sawOCR := false
	var finalLyrics *domain.StructuredLyrics

	for ev := range events {
		switch ev.Type {
		case domain.EventOCRComplete:
			sawOCR = true
			payload := ev.Payload.(domain.OCRCompletePayload)
			if payload.Pages == 0 {
				t.Error("OCR reported zero pages")
			}
		case domain.EventError:
			t.Fatalf("extraction failed: %v", ev.Payload)
		case domain.EventComplete:
			payload := ev.Payload.(domain.CompletePayload)
			finalLyrics = payload.Lyrics
		}
	}

	if !sawOCR {
		t.Fatal("no OCR completion event in OCR mode")
	}
	if finalLyrics.Empty() {
		t.Fatal("final lyrics are empty")
	}
}

func TestImagesToLyrics(t *testing.T) {
	path := os.Getenv("LYRIC_SAMPLE_IMAGE")
	if path == "" {
		t.Skip("LYRIC_SAMPLE_IMAGE not set")
	}
	image, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample image: %v", err)
	}

	client := liveClient(t, "vision")
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	events, err := client.ProcessImages(ctx, [][]byte{image})
	if err != nil {
		t.Fatalf("start extraction: %v", err)
	}

	var finalLyrics *domain.StructuredLyrics
	for ev := range events {
		switch ev.Type {
		case domain.EventError:
			t.Fatalf("extraction failed: %v", ev.Payload)
		case domain.EventComplete:
			payload := ev.Payload.(domain.CompletePayload)
			finalLyrics = payload.Lyrics
		}
	}

	if finalLyrics.Empty() {
		t.Fatal("final lyrics are empty")
	}
}
