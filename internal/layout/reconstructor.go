// Package layout turns OCR geometry into reading-order text lines.
package layout

import (
	"sort"
	"strings"

	"github.com/cjs1301/lyric-extractor/internal/domain"
)

const (
	// DefaultLineTolerance is the vertical distance in pixels within
	// which two blocks belong to the same line. Tuned against scanned
	// sheet music; override via config.
	DefaultLineTolerance = 20

	// DefaultTitleRegionRatio marks lines in the top fraction of the
	// page's text extent as title candidates.
	DefaultTitleRegionRatio = 0.30
)

// Reconstructor clusters a page's OCR blocks into ordered text lines.
type Reconstructor struct {
	lineTolerance    int
	titleRegionRatio float64
}

// New creates a Reconstructor. Non-positive arguments select the
// defaults.
func New(lineTolerance int, titleRegionRatio float64) *Reconstructor {
	if lineTolerance <= 0 {
		lineTolerance = DefaultLineTolerance
	}
	if titleRegionRatio <= 0 || titleRegionRatio > 1 {
		titleRegionRatio = DefaultTitleRegionRatio
	}
	return &Reconstructor{
		lineTolerance:    lineTolerance,
		titleRegionRatio: titleRegionRatio,
	}
}

// Reconstruct builds the reading-order layout for one OCR page. A page
// with no qualifying blocks yields an empty layout, not an error.
func (r *Reconstructor) Reconstruct(page domain.OCRPage) domain.PageLayout {
	layout := domain.PageLayout{PageIndex: page.Index}

	blocks := qualifyingBlocks(page.Blocks)
	if len(blocks) == 0 {
		return layout
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Box.Top < blocks[j].Box.Top
	})

	// Greedy single-pass clustering. Each block joins the earliest
	// created line whose representative y is within tolerance,
	// otherwise it starts a new line. The representative y is the
	// first block's top, so lines do not drift downward as they grow.
	var lines []domain.TextLine
	for _, b := range blocks {
		joined := false
		for i := range lines {
			if abs(b.Box.Top-lines[i].Y) <= r.lineTolerance {
				lines[i].Blocks = append(lines[i].Blocks, b)
				joined = true
				break
			}
		}
		if !joined {
			lines = append(lines, domain.TextLine{Y: b.Box.Top, Blocks: []domain.OCRBlock{b}})
		}
	}

	for i := range lines {
		sort.SliceStable(lines[i].Blocks, func(a, b int) bool {
			return lines[i].Blocks[a].Box.Left < lines[i].Blocks[b].Box.Left
		})
	}

	layout.Lines = lines

	// Mark title candidates: lines in the top region of the page's
	// text extent.
	extent := 0
	for _, b := range blocks {
		if bottom := b.Box.Bottom(); bottom > extent {
			extent = bottom
		}
	}
	threshold := int(r.titleRegionRatio * float64(extent))
	for i, l := range lines {
		if l.Y <= threshold {
			layout.TitleCandidates = append(layout.TitleCandidates, i)
		}
	}

	return layout
}

// Text renders the layout as newline-joined reading-order text.
func Text(layout domain.PageLayout) string {
	parts := make([]string, 0, len(layout.Lines))
	for _, l := range layout.Lines {
		parts = append(parts, l.Text())
	}
	return strings.Join(parts, "\n")
}

// qualifyingBlocks keeps leaf blocks whose trimmed text is longer than
// one character. Single-character blocks are stray symbols or chord
// fragments, not lyric text.
func qualifyingBlocks(blocks []domain.OCRBlock) []domain.OCRBlock {
	out := make([]domain.OCRBlock, 0, len(blocks))
	for _, b := range blocks {
		trimmed := strings.TrimSpace(b.Text)
		if len([]rune(trimmed)) <= 1 {
			continue
		}
		b.Text = trimmed
		out = append(out, b)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
