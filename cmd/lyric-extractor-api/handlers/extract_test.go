package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjs1301/lyric-extractor/internal/domain"
	"github.com/cjs1301/lyric-extractor/internal/observability"
)

type fakeExtractor struct {
	events    []domain.StreamEvent
	startErr  error
	gotPDF    []byte
	gotImages [][]byte
}

func (f *fakeExtractor) ProcessPDF(ctx context.Context, data []byte) (<-chan domain.StreamEvent, error) {
	f.gotPDF = data
	return f.stream()
}

func (f *fakeExtractor) ProcessImages(ctx context.Context, images [][]byte) (<-chan domain.StreamEvent, error) {
	f.gotImages = images
	return f.stream()
}

func (f *fakeExtractor) stream() (<-chan domain.StreamEvent, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	ch := make(chan domain.StreamEvent, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func doExtract(t *testing.T, fake *fakeExtractor, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	logger := observability.Nop()
	h := NewExtractHandler(logger, fake, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/lyrics/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Extract(rec, req)
	return rec
}

func TestExtract_StreamsModelOutput(t *testing.T) {
	lyrics := &domain.StructuredLyrics{
		Title:    "은혜",
		Sections: []domain.Section{{Label: "1절", Lines: []string{"주의 은혜라"}}},
	}
	fake := &fakeExtractor{events: []domain.StreamEvent{
		{Type: domain.EventStart, Payload: 1},
		{Type: domain.EventLLMStreaming, Payload: "=== 은혜 ===\n"},
		{Type: domain.EventLLMStreaming, Payload: "[1절]\n주의 은혜라\n"},
		{Type: domain.EventComplete, Payload: domain.CompletePayload{Lyrics: lyrics, Text: "=== 은혜 ===\n[1절]\n주의 은혜라\n"}},
	}}

	body, ct := multipartBody(t, "file", "score.pdf", []byte("%PDF-1.4 fake"))
	rec := doExtract(t, fake, body, ct)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "=== 은혜 ===\n[1절]\n주의 은혜라\n", rec.Body.String())
	assert.Equal(t, []byte("%PDF-1.4 fake"), fake.gotPDF)
}

func TestExtract_ImagesUpload(t *testing.T) {
	fake := &fakeExtractor{events: []domain.StreamEvent{
		{Type: domain.EventLLMStreaming, Payload: "가사\n"},
		{Type: domain.EventComplete, Payload: domain.CompletePayload{}},
	}}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range []string{"page1.png", "page2.png"} {
		part, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(name))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	rec := doExtract(t, fake, &buf, w.FormDataContentType())

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fake.gotImages, 2)
	assert.Equal(t, []byte("page1.png"), fake.gotImages[0])
}

func TestExtract_ValidationErrorReturnsJSON(t *testing.T) {
	fake := &fakeExtractor{events: []domain.StreamEvent{
		{Type: domain.EventError, Payload: domain.ValidationError("not a PDF document", nil)},
	}}

	body, ct := multipartBody(t, "file", "notes.txt", []byte("plain text"))
	rec := doExtract(t, fake, body, ct)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "extraction failed", resp["error"])
	assert.Contains(t, resp["detail"], "not a PDF document")
}

func TestExtract_UpstreamErrorsMapToBadGateway(t *testing.T) {
	fake := &fakeExtractor{events: []domain.StreamEvent{
		{Type: domain.EventError, Payload: domain.OCRError(1, "vision request failed", errors.New("rpc error"))},
	}}

	body, ct := multipartBody(t, "file", "score.pdf", []byte("%PDF-1.4"))
	rec := doExtract(t, fake, body, ct)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestExtract_StartFailureIsBadRequest(t *testing.T) {
	fake := &fakeExtractor{startErr: domain.ValidationError("empty document", nil)}

	body, ct := multipartBody(t, "file", "score.pdf", nil)
	rec := doExtract(t, fake, body, ct)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtract_MissingUpload(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("note", "no file here"))
	require.NoError(t, w.Close())

	rec := doExtract(t, &fakeExtractor{}, &buf, w.FormDataContentType())

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "images")
}

func TestExtract_NotMultipart(t *testing.T) {
	rec := doExtract(t, &fakeExtractor{}, bytes.NewBufferString("raw body"), "application/pdf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.ValidationError("bad upload", nil), http.StatusBadRequest},
		{"rasterization", domain.RasterizationError(2, "render failed", nil), http.StatusBadRequest},
		{"ocr", domain.OCRError(1, "vision failed", nil), http.StatusBadGateway},
		{"transcription", domain.TranscriptionError("api error", nil), http.StatusBadGateway},
		{"interrupted", domain.StreamInterruptedError("connection reset", nil), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}
