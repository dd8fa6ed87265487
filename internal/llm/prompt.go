package llm

import (
	"fmt"
	"strings"
)

// transcriptionPrompt instructs the model to emit the exact output
// grammar the lyrics parser consumes: a title marker per song followed
// by bracketed section labels. Chords, repeat marks and running
// headers are excluded by instruction; the parser applies its own
// filtering as a second pass since model compliance is advisory.
const transcriptionPrompt = `당신은 악보와 가사 프린트에서 가사를 추출하는 전문가입니다. 제공된 페이지에서 가사만 추출하여 아래 형식으로 정리해 주세요.

출력 형식:
=== 곡제목 ===

[1절]
가사 내용

[후렴]
가사 내용

규칙:
- 코드(C, G, Am, F#m 등), 반복 기호, 다 카포, 세뇨 표시는 제외합니다.
- 페이지 머리글, 바닥글, 쪽 번호, 저작권 표시는 제외합니다.
- 설명이나 인사말 없이 가사만 출력합니다.
- 악보에 여러 곡이 있으면 각 곡마다 === 곡제목 === 형식을 반복합니다.
- 페이지를 넘어 이어지는 가사는 같은 곡으로 이어서 정리합니다.
- 절 구분이 없으면 [1절]로 표기합니다.`

// ocrPromptHeader introduces reconstructed OCR text in text-only mode.
const ocrPromptHeader = `아래는 악보 이미지에서 OCR로 추출한 페이지별 텍스트입니다. 줄 순서는 원본 배치를 따릅니다.`

// buildOCRPrompt appends every page's reconstructed text to the
// instruction, page-numbered so the model can track page breaks.
func buildOCRPrompt(pageTexts []string) string {
	var b strings.Builder
	b.WriteString(transcriptionPrompt)
	b.WriteString("\n\n")
	b.WriteString(ocrPromptHeader)
	for i, text := range pageTexts {
		b.WriteString(fmt.Sprintf("\n\n--- %d페이지 ---\n", i+1))
		b.WriteString(text)
	}
	return b.String()
}
