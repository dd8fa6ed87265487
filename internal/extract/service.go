// Package extract orchestrates the lyric extraction pipeline: raster,
// OCR, layout reconstruction, streamed transcription and incremental
// parsing.
package extract

import (
	"context"
	"strings"

	"github.com/cjs1301/lyric-extractor/internal/domain"
	"github.com/cjs1301/lyric-extractor/internal/layout"
	"github.com/cjs1301/lyric-extractor/internal/lyrics"
	"github.com/cjs1301/lyric-extractor/internal/observability"
	"github.com/cjs1301/lyric-extractor/internal/pdf"
)

// Transcription modes.
const (
	ModeVision = "vision" // inline page images
	ModeOCR    = "ocr"    // reconstructed OCR text
)

const eventBuffer = 100

// Transcriber streams the model's transcription for a document.
type Transcriber interface {
	TranscribeImages(ctx context.Context, pages []domain.RasterPage, chunks chan<- string) error
	TranscribeText(ctx context.Context, pageTexts []string, chunks chan<- string) error
}

// OCRRunner annotates a batch of pages in original page order.
type OCRRunner interface {
	Run(ctx context.Context, pages []domain.RasterPage) ([]domain.OCRPage, error)
}

// Config tunes one Service instance.
type Config struct {
	Mode           string
	DPI            float64
	MaxPages       int
	MaxUploadBytes int64
}

// Service runs the pipeline for one request at a time. It holds no
// cross-request state; every call owns its own buffers and channels.
type Service struct {
	cfg           Config
	transcriber   Transcriber
	ocr           OCRRunner
	reconstructor *layout.Reconstructor
	parser        *lyrics.Parser
	validator     *pdf.Validator
	logger        *observability.Logger
}

// NewService wires the pipeline stages together.
func NewService(cfg Config, transcriber Transcriber, ocr OCRRunner, reconstructor *layout.Reconstructor, parser *lyrics.Parser, logger *observability.Logger) *Service {
	if cfg.Mode == "" {
		cfg.Mode = ModeVision
	}
	if reconstructor == nil {
		reconstructor = layout.New(0, 0)
	}
	if parser == nil {
		parser = lyrics.NewParser(lyrics.Options{})
	}
	if logger == nil {
		logger = observability.Nop()
	}

	return &Service{
		cfg:           cfg,
		transcriber:   transcriber,
		ocr:           ocr,
		reconstructor: reconstructor,
		parser:        parser,
		validator:     pdf.NewValidator(cfg.MaxUploadBytes),
		logger:        logger.WithStage("extract"),
	}
}

// ExtractPDF runs the pipeline over a PDF document. Events arrive on
// the returned channel; exactly one terminal event (error or complete)
// closes it.
func (s *Service) ExtractPDF(ctx context.Context, data []byte) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent, eventBuffer)

	go func() {
		defer close(events)

		if err := s.validator.ValidatePDF(data); err != nil {
			s.fail(ctx, events, err)
			return
		}

		conv, err := pdf.NewConverter(data, s.cfg.DPI)
		if err != nil {
			s.fail(ctx, events, err)
			return
		}
		defer conv.Close()

		total := conv.PageCount()
		if s.cfg.MaxPages > 0 && total > s.cfg.MaxPages {
			s.fail(ctx, events, domain.ValidationError("document has too many pages", nil))
			return
		}

		s.emit(ctx, events, domain.StreamEvent{Type: domain.EventStart, Payload: total})

		// Sequential rendering bounds peak memory; OCR parallelism
		// comes later in the batch step.
		pages := make([]domain.RasterPage, 0, total)
		for n := 1; n <= total; n++ {
			page, err := conv.RenderPage(ctx, n)
			if err != nil {
				s.fail(ctx, events, err)
				return
			}
			pages = append(pages, page)
			s.emit(ctx, events, domain.StreamEvent{
				Type:    domain.EventPageRendered,
				Payload: domain.PageRenderedPayload{Page: n, Total: total},
			})
		}

		s.run(ctx, events, pages)
	}()

	return events
}

// ExtractImages runs the pipeline over already-rasterized images, in
// submission order.
func (s *Service) ExtractImages(ctx context.Context, images [][]byte) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent, eventBuffer)

	go func() {
		defer close(events)

		if len(images) == 0 {
			s.fail(ctx, events, domain.ValidationError("no images provided", nil))
			return
		}
		if s.cfg.MaxPages > 0 && len(images) > s.cfg.MaxPages {
			s.fail(ctx, events, domain.ValidationError("too many images", nil))
			return
		}

		total := len(images)
		s.emit(ctx, events, domain.StreamEvent{Type: domain.EventStart, Payload: total})

		pages := make([]domain.RasterPage, 0, total)
		for i, data := range images {
			if err := s.validator.ValidateImage(i+1, data); err != nil {
				s.fail(ctx, events, err)
				return
			}
			page, err := pdf.PassThrough(i+1, data)
			if err != nil {
				s.fail(ctx, events, err)
				return
			}
			pages = append(pages, page)
			s.emit(ctx, events, domain.StreamEvent{
				Type:    domain.EventPageRendered,
				Payload: domain.PageRenderedPayload{Page: i + 1, Total: total},
			})
		}

		s.run(ctx, events, pages)
	}()

	return events
}

// run executes OCR, transcription and incremental parsing for a set of
// rendered pages.
func (s *Service) run(ctx context.Context, events chan<- domain.StreamEvent, pages []domain.RasterPage) {
	var pageTexts []string

	if s.cfg.Mode == ModeOCR {
		ocrPages, err := s.ocr.Run(ctx, pages)
		if err != nil {
			s.fail(ctx, events, err)
			return
		}

		blocks := 0
		for _, op := range ocrPages {
			l := s.reconstructor.Reconstruct(op)
			pageTexts = append(pageTexts, layout.Text(l))
			blocks += len(op.Blocks)
		}
		s.emit(ctx, events, domain.StreamEvent{
			Type:    domain.EventOCRComplete,
			Payload: domain.OCRCompletePayload{Pages: len(ocrPages), Blocks: blocks},
		})
	}

	chunks := make(chan string, eventBuffer)
	errCh := make(chan error, 1)
	go func() {
		defer close(chunks)
		if s.cfg.Mode == ModeOCR {
			errCh <- s.transcriber.TranscribeText(ctx, pageTexts, chunks)
		} else {
			errCh <- s.transcriber.TranscribeImages(ctx, pages, chunks)
		}
	}()

	var buf strings.Builder
	streamed := false
	for chunk := range chunks {
		streamed = true
		buf.WriteString(chunk)
		s.emit(ctx, events, domain.StreamEvent{Type: domain.EventLLMStreaming, Payload: chunk})
		s.emit(ctx, events, domain.StreamEvent{
			Type:    domain.EventLyricsUpdated,
			Payload: s.parser.Parse(buf.String()),
		})
	}

	if err := <-errCh; err != nil {
		// A failure after bytes have flowed keeps the accumulated
		// text: the user sees what was produced plus an inline error
		// marker instead of losing progress.
		if streamed && domain.TypeOf(err) == domain.ErrStreamInterrupted {
			marker := "\n\n❌ 오류: " + err.Error()
			buf.WriteString(marker)
			s.emit(ctx, events, domain.StreamEvent{Type: domain.EventLLMStreaming, Payload: marker})
			s.logger.Warn().Err(err).Msg("transcription stream interrupted, keeping partial text")
		} else {
			s.fail(ctx, events, err)
			return
		}
	}

	text := buf.String()
	s.emit(ctx, events, domain.StreamEvent{
		Type: domain.EventComplete,
		Payload: domain.CompletePayload{
			Lyrics: s.parser.ParseFinal(text),
			Text:   text,
		},
	})
}

func (s *Service) fail(ctx context.Context, events chan<- domain.StreamEvent, err error) {
	s.logger.Error().Err(err).Msg("extraction failed")
	s.emit(ctx, events, domain.StreamEvent{Type: domain.EventError, Payload: err})
}

// emit sends an event unless the consumer is gone.
func (s *Service) emit(ctx context.Context, events chan<- domain.StreamEvent, ev domain.StreamEvent) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
