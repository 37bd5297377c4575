package util

import (
	"strings"
	"unicode/utf8"
)

const (
	KakaoSeeMorePadding = 500
	KakaoZeroWidthSpace = "\u200b"

	// KakaoTalk folds a bubble after roughly this many lines or runes.
	KakaoFoldLines = 12
	KakaoFoldRunes = 480
)

// NeedsSeeMore reports whether KakaoTalk would fold text behind '전체보기'.
func NeedsSeeMore(text string) bool {
	return strings.Count(text, "\n")+1 > KakaoFoldLines || utf8.RuneCountInString(text) > KakaoFoldRunes
}

// ApplyKakaoSeeMorePadding puts instruction on the first line and pushes the
// body behind the fold with zero-width spaces, so the preview stays short.
func ApplyKakaoSeeMorePadding(text, instruction string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	instruction = strings.TrimSpace(instruction)

	var b strings.Builder
	b.Grow(len(instruction) + KakaoSeeMorePadding*len(KakaoZeroWidthSpace) + len(text) + 1)
	b.WriteString(instruction)
	b.WriteString(strings.Repeat(KakaoZeroWidthSpace, KakaoSeeMorePadding))
	if !strings.HasPrefix(text, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(text)
	return b.String()
}

// StripLeadingHeader removes header and the line breaks after it when text
// starts with it.
func StripLeadingHeader(text, header string) string {
	if strings.TrimSpace(header) == "" || !strings.HasPrefix(text, header) {
		return text
	}
	return strings.TrimLeft(strings.TrimPrefix(text, header), "\r\n")
}

// FoldWithHeader moves header into the see-more preview line when text is
// long enough to be folded, and returns text unchanged otherwise.
func FoldWithHeader(text, header, suffix string) string {
	if !NeedsSeeMore(text) {
		return text
	}
	return ApplyKakaoSeeMorePadding(StripLeadingHeader(text, header), strings.TrimSpace(header)+suffix)
}
