// Package lyrics re-derives structured lyrics from the accumulated
// model output stream. The parser is pure and rebuilds the whole
// structure on every call, so the streaming view only ever grows and
// never contradicts an earlier parse.
package lyrics

import (
	"regexp"
	"strings"

	"github.com/cjs1301/lyric-extractor/internal/domain"
)

const defaultFallbackTitle = "추출된 가사"

var (
	// songMarkerPattern matches a title line wrapped in equals runs,
	// e.g. "=== 은혜 아니면 ===".
	songMarkerPattern = regexp.MustCompile(`^=+\s*([^=].*?)\s*=+$`)

	// headingMarkerPattern matches markdown-style headings some models
	// emit instead of the requested grammar.
	headingMarkerPattern = regexp.MustCompile(`^#{2,}\s*(.+?)\s*$`)

	// sectionLabelPattern matches a bracketed section label, e.g.
	// "[1절]" or "[후렴]".
	sectionLabelPattern = regexp.MustCompile(`^\[(.+?)\]$`)

	// contentPattern requires at least one alphanumeric or Hangul
	// character for a line to count as lyric content.
	contentPattern = regexp.MustCompile(`[0-9A-Za-z\x{AC00}-\x{D7AF}]`)
)

// Parser turns accumulated stream text into StructuredLyrics.
type Parser struct {
	fallbackTitle string
	noise         *NoiseFilter
}

// Options tunes the parser. The zero value selects the defaults.
type Options struct {
	FallbackTitle  string
	ExtraNoise     []string
	ShortLineLimit int
}

// NewParser creates a parser with the given options.
func NewParser(opts Options) *Parser {
	fallback := opts.FallbackTitle
	if fallback == "" {
		fallback = defaultFallbackTitle
	}
	return &Parser{
		fallbackTitle: fallback,
		noise:         NewNoiseFilter(opts.ExtraNoise, opts.ShortLineLimit),
	}
}

// Parse rebuilds the full structure from text. A final segment not
// terminated by a newline is an incomplete chunk tail and is dropped;
// it reappears once the next chunk completes it. Parse never panics;
// malformed input degrades to fewer sections.
func (p *Parser) Parse(text string) *domain.StructuredLyrics {
	out := &domain.StructuredLyrics{Title: p.fallbackTitle}

	lines := strings.Split(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		lines = lines[:len(lines)-1]
	}

	titleSet := false
	var openLabel string
	var openLines []string
	sectionOpen := false

	flush := func() {
		if sectionOpen && len(openLines) > 0 {
			out.Sections = append(out.Sections, domain.Section{
				Label: openLabel,
				Lines: openLines,
			})
		}
		openLines = nil
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if title, ok := matchSongMarker(line); ok {
			flush()
			if !titleSet {
				out.Title = title
				titleSet = true
			}
			openLabel = title
			sectionOpen = true
			continue
		}

		if label, ok := matchSectionLabel(line); ok {
			flush()
			openLabel = label
			sectionOpen = true
			continue
		}

		// A heading rejected as a marker is an instruction echo.
		if strings.HasPrefix(line, "##") {
			continue
		}

		if p.noise.Matches(line) {
			continue
		}

		// Text before any marker is preamble, not lyrics.
		if !sectionOpen {
			continue
		}

		if len([]rune(line)) > 1 && contentPattern.MatchString(line) {
			openLines = append(openLines, line)
		}
	}

	flush()
	return out
}

// ParseFinal parses the complete accumulated text at end of stream. It
// terminates the last line so a stream that ends without a trailing
// newline still contributes its final line.
func (p *Parser) ParseFinal(text string) *domain.StructuredLyrics {
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return p.Parse(text)
}

// matchSongMarker extracts the title from a song marker line. Heading
// style markers that echo the instructions are rejected.
func matchSongMarker(line string) (string, bool) {
	if m := songMarkerPattern.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	if m := headingMarkerPattern.FindStringSubmatch(line); m != nil {
		title := m[1]
		lower := strings.ToLower(title)
		if strings.Contains(title, "규칙") || strings.Contains(lower, "instructions") {
			return "", false
		}
		return title, true
	}
	return "", false
}

func matchSectionLabel(line string) (string, bool) {
	if m := sectionLabelPattern.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", false
}
