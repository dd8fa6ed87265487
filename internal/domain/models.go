package domain

// RasterPage is one source page rendered to a PNG pixel buffer, ready
// for OCR submission. Index is 1-based and preserved through the whole
// pipeline because page order decides title attribution downstream.
type RasterPage struct {
	Index  int
	Width  int
	Height int
	PNG    []byte
}

// Rect is a bounding box in pixel units of the rasterized page.
type Rect struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// Bottom returns the y coordinate of the lower edge.
func (r Rect) Bottom() int {
	return r.Top + r.Height
}

// OCRSymbol is a single detected character.
type OCRSymbol struct {
	Text       string
	Confidence float64
}

// OCRWord groups symbols. Symbols is never nil.
type OCRWord struct {
	Symbols    []OCRSymbol
	Confidence float64
}

// Text concatenates the word's symbols.
func (w OCRWord) Text() string {
	var s string
	for _, sym := range w.Symbols {
		s += sym.Text
	}
	return s
}

// OCRParagraph groups words. Words is never nil.
type OCRParagraph struct {
	Words      []OCRWord
	Confidence float64
}

// OCRBlock is a leaf text block with its geometry. Paragraphs is never
// nil; Text holds the block's collapsed text as reported by the OCR
// service so layout reconstruction does not re-walk the tree.
type OCRBlock struct {
	Text       string
	Box        Rect
	Paragraphs []OCRParagraph
	Confidence float64
}

// OCRPage is the full detection result for one raster page. Blocks is
// never nil; a page with no detected text has zero blocks and is valid.
type OCRPage struct {
	Index  int
	Width  int
	Height int
	Blocks []OCRBlock
}

// TextLine is a reconstructed reading-order row: blocks whose top
// coordinates fall within the clustering tolerance, sorted left to
// right.
type TextLine struct {
	Y      int
	Blocks []OCRBlock
}

// Text joins the line's block texts with single spaces.
func (l TextLine) Text() string {
	var s string
	for i, b := range l.Blocks {
		if i > 0 {
			s += " "
		}
		s += b.Text
	}
	return s
}

// PageLayout is the reconstructed reading-order view of one page.
// TitleCandidates indexes into Lines, marking rows in the top region
// of the page's text extent.
type PageLayout struct {
	PageIndex       int
	Lines           []TextLine
	TitleCandidates []int
}

// Section is one labeled block of lyric lines, e.g. a verse or chorus.
type Section struct {
	Label string   `json:"label"`
	Lines []string `json:"lines"`
}

// StructuredLyrics is the pipeline's terminal artifact: the document
// title and its sections in source order. It is rebuilt from scratch on
// every parse, never mutated in place.
type StructuredLyrics struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Empty reports whether no sections were extracted.
func (s *StructuredLyrics) Empty() bool {
	return s == nil || len(s.Sections) == 0
}
