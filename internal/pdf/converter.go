// Package pdf renders uploaded documents into OCR-ready page images.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"github.com/cjs1301/lyric-extractor/internal/domain"
	"github.com/gen2brain/go-fitz"
)

// DefaultDPI renders at twice the native 72 dpi page unit, which is
// the sweet spot between OCR accuracy and payload size.
const DefaultDPI = 144

// Converter renders PDF pages to PNG using go-fitz. Pages are rendered
// one at a time so peak memory stays bounded on large documents.
type Converter struct {
	doc *fitz.Document
	dpi float64
}

// NewConverter opens a PDF from memory. A non-positive dpi selects
// DefaultDPI.
func NewConverter(data []byte, dpi float64) (*Converter, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, domain.RasterizationError(0, "failed to open document", err)
	}

	if doc.NumPage() == 0 {
		doc.Close()
		return nil, domain.ValidationError("document has no pages", nil)
	}

	return &Converter{doc: doc, dpi: dpi}, nil
}

// PageCount returns the number of pages in the document.
func (c *Converter) PageCount() int {
	return c.doc.NumPage()
}

// RenderPage renders the 1-based page n as a lossless PNG.
func (c *Converter) RenderPage(ctx context.Context, n int) (domain.RasterPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.RasterPage{}, err
	}

	if n < 1 || n > c.doc.NumPage() {
		return domain.RasterPage{}, domain.RasterizationError(n, "page out of range", nil)
	}

	img, err := c.doc.ImageDPI(n-1, c.dpi)
	if err != nil {
		return domain.RasterPage{}, domain.RasterizationError(n, "failed to render page", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return domain.RasterPage{}, domain.RasterizationError(n, "failed to encode page", err)
	}

	bounds := img.Bounds()
	return domain.RasterPage{
		Index:  n,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		PNG:    buf.Bytes(),
	}, nil
}

// Close releases the underlying document.
func (c *Converter) Close() error {
	if c.doc != nil {
		c.doc.Close()
		c.doc = nil
	}
	return nil
}

// PassThrough wraps an already-rasterized image as a RasterPage without
// rescaling. Dimensions are read from the image header when the format
// is decodable; unknown formats pass through with zero dimensions.
func PassThrough(index int, data []byte) (domain.RasterPage, error) {
	if len(data) == 0 {
		return domain.RasterPage{}, domain.ValidationError(fmt.Sprintf("image %d is empty", index), nil)
	}

	page := domain.RasterPage{Index: index, PNG: data}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		page.Width = cfg.Width
		page.Height = cfg.Height
	}
	return page, nil
}
