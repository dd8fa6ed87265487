package ocr

import (
	"testing"

	vision "google.golang.org/api/vision/v1"

	"github.com/cjs1301/lyric-extractor/internal/domain"
)

func word(texts ...string) *vision.Word {
	w := &vision.Word{}
	for _, t := range texts {
		w.Symbols = append(w.Symbols, &vision.Symbol{Text: t})
	}
	return w
}

func TestConvertAnnotation(t *testing.T) {
	ann := &vision.TextAnnotation{
		Pages: []*vision.Page{{
			Width:  1240,
			Height: 1754,
			Blocks: []*vision.Block{{
				Confidence: 0.97,
				BoundingBox: &vision.BoundingPoly{
					Vertices: []*vision.Vertex{
						{X: 100, Y: 60}, {X: 420, Y: 60},
						{X: 420, Y: 110}, {X: 100, Y: 110},
					},
				},
				Paragraphs: []*vision.Paragraph{{
					Words: []*vision.Word{
						word("은", "혜"),
						word("아", "니", "면"),
					},
				}},
			}},
		}},
	}

	page := domain.RasterPage{Index: 2, Width: 800, Height: 1100}
	got := convertAnnotation(page, ann)

	if got.Index != 2 {
		t.Errorf("Index = %d, want 2", got.Index)
	}
	// Page dimensions from the annotation win over raster dimensions.
	if got.Width != 1240 || got.Height != 1754 {
		t.Errorf("dimensions = %dx%d, want 1240x1754", got.Width, got.Height)
	}
	if len(got.Blocks) != 1 {
		t.Fatalf("Blocks = %d, want 1", len(got.Blocks))
	}

	b := got.Blocks[0]
	if b.Text != "은혜 아니면" {
		t.Errorf("block text = %q, want %q", b.Text, "은혜 아니면")
	}
	want := domain.Rect{Left: 100, Top: 60, Width: 320, Height: 50}
	if b.Box != want {
		t.Errorf("box = %+v, want %+v", b.Box, want)
	}
	if b.Confidence != 0.97 {
		t.Errorf("confidence = %g, want 0.97", b.Confidence)
	}
	if len(b.Paragraphs) != 1 || len(b.Paragraphs[0].Words) != 2 {
		t.Fatalf("paragraph tree = %+v", b.Paragraphs)
	}
	if b.Paragraphs[0].Words[1].Text() != "아니면" {
		t.Errorf("second word = %q", b.Paragraphs[0].Words[1].Text())
	}
}

func TestConvertAnnotation_NilAnnotation(t *testing.T) {
	page := domain.RasterPage{Index: 1, Width: 400, Height: 600}
	got := convertAnnotation(page, nil)

	if got.Blocks == nil {
		t.Error("Blocks must be an empty slice, not nil")
	}
	if len(got.Blocks) != 0 {
		t.Errorf("Blocks = %d, want 0", len(got.Blocks))
	}
	if got.Width != 400 || got.Height != 600 {
		t.Errorf("dimensions = %dx%d, want raster fallback", got.Width, got.Height)
	}
}

func TestBoundingRect(t *testing.T) {
	tests := []struct {
		name string
		poly *vision.BoundingPoly
		want domain.Rect
	}{
		{
			name: "nil polygon",
			poly: nil,
			want: domain.Rect{},
		},
		{
			name: "no vertices",
			poly: &vision.BoundingPoly{},
			want: domain.Rect{},
		},
		{
			name: "unordered vertices",
			poly: &vision.BoundingPoly{Vertices: []*vision.Vertex{
				{X: 50, Y: 80}, {X: 10, Y: 20}, {X: 50, Y: 20}, {X: 10, Y: 80},
			}},
			want: domain.Rect{Left: 10, Top: 20, Width: 40, Height: 60},
		},
		{
			name: "clipped vertex at image edge",
			poly: &vision.BoundingPoly{Vertices: []*vision.Vertex{
				{}, {X: 30, Y: 15},
			}},
			want: domain.Rect{Left: 0, Top: 0, Width: 30, Height: 15},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := boundingRect(tt.poly); got != tt.want {
				t.Errorf("boundingRect() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
