// Package handlers provides HTTP handlers for the lyric extractor API.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"

	"github.com/cjs1301/lyric-extractor/internal/domain"
	"github.com/cjs1301/lyric-extractor/internal/observability"
)

// Extractor runs the lyric extraction pipeline for one upload.
type Extractor interface {
	ProcessPDF(ctx context.Context, data []byte) (<-chan domain.StreamEvent, error)
	ProcessImages(ctx context.Context, images [][]byte) (<-chan domain.StreamEvent, error)
}

// ExtractHandler serves lyric extraction requests.
type ExtractHandler struct {
	logger    *observability.Logger
	extractor Extractor
	maxMemory int64
}

// NewExtractHandler creates the handler.
func NewExtractHandler(logger *observability.Logger, extractor Extractor, maxMemory int64) *ExtractHandler {
	if maxMemory <= 0 {
		maxMemory = 32 << 20
	}
	return &ExtractHandler{
		logger:    logger,
		extractor: extractor,
		maxMemory: maxMemory,
	}
}

// Extract handles POST /api/v1/lyrics/extract. The upload is either a
// single "file" part holding a PDF or one or more "images" parts. On
// success the response is a chunked text/plain stream of the raw model
// output; the client re-parses the accumulated text after every
// fragment. Errors before the first streamed byte produce a JSON body;
// later failures surface in-band because headers are committed.
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := uuid.New().String()
	logger := h.logger.With().Str("extraction_id", requestID).Logger()

	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	events, err := h.startExtraction(ctx, r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	flusher, canFlush := w.(http.Flusher)
	streaming := false

	for ev := range events {
		switch ev.Type {
		case domain.EventLLMStreaming:
			chunk, _ := ev.Payload.(string)
			if chunk == "" {
				continue
			}
			if !streaming {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.Header().Set("Cache-Control", "no-cache")
				w.WriteHeader(http.StatusOK)
				streaming = true
			}
			if _, err := io.WriteString(w, chunk); err != nil {
				logger.Warn().Err(err).Msg("client disconnected mid-stream")
				return
			}
			if canFlush {
				flusher.Flush()
			}

		case domain.EventError:
			err, _ := ev.Payload.(error)
			if streaming {
				// Headers are committed; the service has already
				// appended the in-band marker for stream failures.
				logger.Error().Err(err).Msg("extraction failed mid-stream")
				return
			}
			logger.Error().Err(err).Msg("extraction failed")
			h.writeError(w, statusForError(err), "extraction failed", errDetail(err))
			return

		case domain.EventComplete:
			payload, _ := ev.Payload.(domain.CompletePayload)
			if payload.Lyrics != nil {
				logger.Info().
					Str("title", payload.Lyrics.Title).
					Int("sections", len(payload.Lyrics.Sections)).
					Msg("extraction complete")
			}
			if !streaming {
				// A successful stream that produced no text is not an
				// error; the client shows its own empty-result notice.
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusOK)
			}
			return
		}
	}
}

// startExtraction picks the pipeline entry point from the multipart
// payload.
func (h *ExtractHandler) startExtraction(ctx context.Context, r *http.Request) (<-chan domain.StreamEvent, error) {
	if file, _, err := r.FormFile("file"); err == nil {
		data, err := readPart(file)
		if err != nil {
			return nil, err
		}
		return h.extractor.ProcessPDF(ctx, data)
	}

	imageHeaders := r.MultipartForm.File["images"]
	if len(imageHeaders) == 0 {
		return nil, fmt.Errorf("either a file or images part is required")
	}

	images := make([][]byte, 0, len(imageHeaders))
	for _, fh := range imageHeaders {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open image part: %w", err)
		}
		data, err := readPart(f)
		if err != nil {
			return nil, err
		}
		images = append(images, data)
	}
	return h.extractor.ProcessImages(ctx, images)
}

func readPart(f multipart.File) ([]byte, error) {
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}

// statusForError maps pipeline failures to HTTP status codes. Input
// problems are the client's fault; upstream service failures are bad
// gateways.
func statusForError(err error) int {
	switch domain.TypeOf(err) {
	case domain.ErrValidation, domain.ErrRasterization:
		return http.StatusBadRequest
	case domain.ErrOCR, domain.ErrTranscription, domain.ErrStreamInterrupted:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (h *ExtractHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
