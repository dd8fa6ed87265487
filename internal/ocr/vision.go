// Package ocr submits rendered pages to Cloud Vision document text
// detection and converts the response tree into domain types.
package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/cjs1301/lyric-extractor/internal/domain"
)

const featureDocumentText = "DOCUMENT_TEXT_DETECTION"

// Annotator produces an OCRPage for one raster page.
type Annotator interface {
	Annotate(ctx context.Context, page domain.RasterPage) (domain.OCRPage, error)
}

// Config holds Vision client settings.
type Config struct {
	CredentialsFile string
	LanguageHints   []string
	RequestsPerSec  float64
	Timeout         time.Duration
}

// VisionAnnotator calls the Cloud Vision images:annotate endpoint with
// document-oriented text detection. Sheet music and printed lyrics are
// structured layout, not scene text, so sparse detection is never used.
type VisionAnnotator struct {
	svc           *vision.Service
	languageHints []string
	limiter       *rate.Limiter
	timeout       time.Duration
}

// NewVisionAnnotator builds a Vision client. Credentials fall back to
// application default credentials when no file is configured.
func NewVisionAnnotator(ctx context.Context, cfg Config) (*VisionAnnotator, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, domain.ConfigError("failed to create vision client", err)
	}

	hints := cfg.LanguageHints
	if len(hints) == 0 {
		hints = []string{"ko", "en"}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &VisionAnnotator{
		svc:           svc,
		languageHints: hints,
		limiter:       limiter,
		timeout:       timeout,
	}, nil
}

// Annotate runs document text detection on one page. A page with no
// detected text returns an OCRPage with zero blocks.
func (a *VisionAnnotator) Annotate(ctx context.Context, page domain.RasterPage) (domain.OCRPage, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return domain.OCRPage{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image: &vision.Image{
				Content: base64.StdEncoding.EncodeToString(page.PNG),
			},
			Features: []*vision.Feature{{Type: featureDocumentText}},
			ImageContext: &vision.ImageContext{
				LanguageHints: a.languageHints,
			},
		}},
	}

	resp, err := a.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return domain.OCRPage{}, domain.OCRError(page.Index, "annotate request failed", err)
	}

	if len(resp.Responses) == 0 {
		return domain.OCRPage{}, domain.OCRError(page.Index, "empty annotate response", nil)
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return domain.OCRPage{}, domain.OCRError(page.Index, fmt.Sprintf("vision error: %s", r.Error.Message), nil)
	}

	return convertAnnotation(page, r.FullTextAnnotation), nil
}

// convertAnnotation maps the Vision response tree onto domain types.
// Every level's children default to empty slices so traversal needs no
// nil checks below the page.
func convertAnnotation(page domain.RasterPage, ann *vision.TextAnnotation) domain.OCRPage {
	out := domain.OCRPage{
		Index:  page.Index,
		Width:  page.Width,
		Height: page.Height,
		Blocks: []domain.OCRBlock{},
	}
	if ann == nil {
		return out
	}

	for _, p := range ann.Pages {
		if p.Width > 0 {
			out.Width = int(p.Width)
		}
		if p.Height > 0 {
			out.Height = int(p.Height)
		}
		for _, b := range p.Blocks {
			if b == nil {
				continue
			}
			out.Blocks = append(out.Blocks, convertBlock(b))
		}
	}
	return out
}

func convertBlock(b *vision.Block) domain.OCRBlock {
	block := domain.OCRBlock{
		Box:        boundingRect(b.BoundingBox),
		Paragraphs: []domain.OCRParagraph{},
		Confidence: b.Confidence,
	}

	var paraTexts []string
	for _, p := range b.Paragraphs {
		if p == nil {
			continue
		}
		para := domain.OCRParagraph{
			Words:      []domain.OCRWord{},
			Confidence: p.Confidence,
		}
		var wordTexts []string
		for _, w := range p.Words {
			if w == nil {
				continue
			}
			word := domain.OCRWord{
				Symbols:    []domain.OCRSymbol{},
				Confidence: w.Confidence,
			}
			for _, s := range w.Symbols {
				if s == nil {
					continue
				}
				word.Symbols = append(word.Symbols, domain.OCRSymbol{
					Text:       s.Text,
					Confidence: s.Confidence,
				})
			}
			para.Words = append(para.Words, word)
			wordTexts = append(wordTexts, word.Text())
		}
		block.Paragraphs = append(block.Paragraphs, para)
		paraTexts = append(paraTexts, strings.Join(wordTexts, " "))
	}

	block.Text = strings.Join(paraTexts, " ")
	return block
}

// boundingRect converts a vertex polygon to a left/top/width/height
// rectangle. Vision may omit vertices at image edges; missing values
// read as zero, matching the service's documented behavior.
func boundingRect(poly *vision.BoundingPoly) domain.Rect {
	if poly == nil || len(poly.Vertices) == 0 {
		return domain.Rect{}
	}

	minX, minY := int64(1<<62), int64(1<<62)
	maxX, maxY := int64(-1<<62), int64(-1<<62)
	for _, v := range poly.Vertices {
		if v == nil {
			continue
		}
		if v.X < minX {
			minX = v.X
		}
		if v.X > maxX {
			maxX = v.X
		}
		if v.Y < minY {
			minY = v.Y
		}
		if v.Y > maxY {
			maxY = v.Y
		}
	}
	if maxX < minX || maxY < minY {
		return domain.Rect{}
	}

	return domain.Rect{
		Left:   int(minX),
		Top:    int(minY),
		Width:  int(maxX - minX),
		Height: int(maxY - minY),
	}
}
