package lyrics

import (
	"regexp"
	"strings"
)

// dividerPattern matches decoration-only lines the model emits between
// sections.
var dividerPattern = regexp.MustCompile(`^[-_=]{2,}$`)

// Phrases the model leaks when it narrates its own output instead of
// transcribing. Matched case-insensitively as substrings. The lists
// track observed leakage and grow as upstream models change.
var defaultEnglishMeta = []string{
	"sure",
	"here's",
	"according to",
	"organized",
	"instructions",
	"specified",
	"i have",
	"the text",
	"cleaned",
}

var defaultKoreanMeta = []string{
	"이 가사는",
	"정리한 것입니다",
	"여기서 다른 요청으로",
	"규칙에 따라",
	"형식으로",
}

// Status lines injected by the surrounding app rather than the model,
// including the inline stream-failure marker.
var defaultStatusPhrases = []string{
	"📖",
	"처리 중",
	"완료",
	"❌ 오류",
}

// Tokens that flag a short English line as a leaked formatting
// instruction rather than a lyric.
var formattingTokens = []string{
	"text",
	"rules",
	"format",
}

// NoiseFilter decides whether a trimmed line is non-lyric noise. The
// zero value is not usable; construct with NewNoiseFilter.
type NoiseFilter struct {
	phrases        []string
	shortLineLimit int
}

// NewNoiseFilter builds a filter from the built-in denylist plus any
// extra phrases. shortLineLimit bounds the instruction-echo heuristic;
// zero selects the default of 50 characters.
func NewNoiseFilter(extra []string, shortLineLimit int) *NoiseFilter {
	if shortLineLimit <= 0 {
		shortLineLimit = 50
	}

	phrases := make([]string, 0, len(defaultStatusPhrases)+len(defaultEnglishMeta)+len(defaultKoreanMeta)+len(extra))
	phrases = append(phrases, defaultStatusPhrases...)
	phrases = append(phrases, defaultEnglishMeta...)
	phrases = append(phrases, defaultKoreanMeta...)
	phrases = append(phrases, extra...)

	return &NoiseFilter{
		phrases:        phrases,
		shortLineLimit: shortLineLimit,
	}
}

// Matches reports whether line is noise. line must already be trimmed.
func (f *NoiseFilter) Matches(line string) bool {
	if dividerPattern.MatchString(line) {
		return true
	}

	lower := strings.ToLower(line)
	for _, phrase := range f.phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	// Short pure-ASCII lines mentioning formatting are leaked
	// instruction echoes, not lyrics.
	if len(line) < f.shortLineLimit && isASCII(line) {
		for _, tok := range formattingTokens {
			if strings.Contains(lower, tok) {
				return true
			}
		}
	}

	return false
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}
