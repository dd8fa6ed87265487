package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cjs1301/lyric-extractor/internal/domain"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Options{APIKey: "sk-test"})

	if c.baseURL != defaultBaseURL {
		t.Errorf("baseURL = %q, want default", c.baseURL)
	}
	if c.model != defaultModel {
		t.Errorf("model = %q, want default", c.model)
	}
	if c.maxTokens != defaultMaxTokens {
		t.Errorf("maxTokens = %d, want default", c.maxTokens)
	}
}

func sseBody(contents ...string) string {
	var b strings.Builder
	for _, content := range contents {
		payload, _ := json.Marshal(Response{
			Choices: []Choice{{Delta: Delta{Content: content}}},
		})
		fmt.Fprintf(&b, "data: %s\n\n", payload)
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func collect(chunks chan string) []string {
	var out []string
	for c := range chunks {
		out = append(out, c)
	}
	return out
}

func TestTranscribeImages_Streams(t *testing.T) {
	var gotReq Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("auth header = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody("=== 은혜 ===\n", "[1절]\n", "주 은혜 임을\n"))
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4.1"})

	chunks := make(chan string, 16)
	pages := []domain.RasterPage{{Index: 1, PNG: []byte{0x89, 0x50}}}
	if err := c.TranscribeImages(context.Background(), pages, chunks); err != nil {
		t.Fatalf("TranscribeImages: %v", err)
	}
	close(chunks)

	got := strings.Join(collect(chunks), "")
	want := "=== 은혜 ===\n[1절]\n주 은혜 임을\n"
	if got != want {
		t.Errorf("streamed text = %q, want %q", got, want)
	}

	if !gotReq.Stream {
		t.Error("request must set stream=true")
	}
	if gotReq.MaxTokens != defaultMaxTokens {
		t.Errorf("max_tokens = %d", gotReq.MaxTokens)
	}
	if len(gotReq.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(gotReq.Messages))
	}
	parts := gotReq.Messages[0].Content
	if len(parts) != 2 || parts[0].Type != "text" || parts[1].Type != "image_url" {
		t.Errorf("content parts = %+v", parts)
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("image url = %q", parts[1].ImageURL.URL)
	}
}

func TestTranscribeText_BuildsPrompt(t *testing.T) {
	var gotReq Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, sseBody("=== 은혜 ===\n"))
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "sk-test", BaseURL: srv.URL})

	chunks := make(chan string, 4)
	err := c.TranscribeText(context.Background(), []string{"은혜 아니면\n나 서지 못하네", "후렴 가사"}, chunks)
	if err != nil {
		t.Fatalf("TranscribeText: %v", err)
	}

	text := gotReq.Messages[0].Content[0].Text
	if !strings.Contains(text, "--- 1페이지 ---") || !strings.Contains(text, "--- 2페이지 ---") {
		t.Error("prompt must number every page")
	}
	if !strings.Contains(text, "은혜 아니면") {
		t.Error("prompt must include reconstructed page text")
	}
}

func TestStream_APIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "bad", BaseURL: srv.URL})

	chunks := make(chan string, 1)
	err := c.TranscribeImages(context.Background(), []domain.RasterPage{{Index: 1, PNG: []byte{1}}}, chunks)
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.TypeOf(err) != domain.ErrTranscription {
		t.Errorf("error type = %q, want transcription", domain.TypeOf(err))
	}
}

func TestStream_RetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, sseBody("ok\n"))
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "sk-test", BaseURL: srv.URL})

	chunks := make(chan string, 4)
	err := c.TranscribeImages(context.Background(), []domain.RasterPage{{Index: 1, PNG: []byte{1}}}, chunks)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestTranscribe_EmptyInput(t *testing.T) {
	c := NewClient(Options{APIKey: "sk-test"})

	if err := c.TranscribeImages(context.Background(), nil, nil); err == nil {
		t.Error("expected error for zero pages")
	}
	if err := c.TranscribeText(context.Background(), nil, nil); err == nil {
		t.Error("expected error for zero page texts")
	}
}

func TestStreamParser_Next(t *testing.T) {
	body := "event: ping\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"hello\"}}]}\n" +
		"data: not-json\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\" world\"},\"finish_reason\":\"stop\"}]}\n" +
		"data: [DONE]\n"

	p := NewStreamParser(strings.NewReader(body))

	first, err := p.Next()
	if err != nil || first.Content != "hello" || first.Done {
		t.Fatalf("first chunk = %+v, err %v", first, err)
	}

	// The malformed line is skipped, not surfaced as an error.
	second, err := p.Next()
	if err != nil || second.Content != " world" || !second.Done {
		t.Fatalf("second chunk = %+v, err %v", second, err)
	}
}

func TestStreamParser_ParseAll_Cancellation(t *testing.T) {
	body := sseBody("a", "b", "c")
	p := NewStreamParser(strings.NewReader(body))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered channel with no reader: only cancellation can unblock.
	err := p.ParseAll(ctx, make(chan string))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTranscriptionPrompt_Grammar(t *testing.T) {
	for _, marker := range []string{"=== 곡제목 ===", "[1절]", "[후렴]"} {
		if !strings.Contains(transcriptionPrompt, marker) {
			t.Errorf("prompt missing grammar marker %q", marker)
		}
	}
}
