package util

import (
	"strings"
	"testing"
)

func TestFoldWithHeaderShortText(t *testing.T) {
	text := "📊 현재 순위\n1. A"
	if got := FoldWithHeader(text, "📊 현재 순위", " (전체보기)"); got != text {
		t.Fatalf("short text changed: %q", got)
	}
}

func TestFoldWithHeaderLongText(t *testing.T) {
	header := "📊 현재 순위"
	var lines []string
	lines = append(lines, header)
	for i := 0; i < 20; i++ {
		lines = append(lines, "row")
	}
	got := FoldWithHeader(strings.Join(lines, "\n"), header, " (전체보기)")

	if !strings.HasPrefix(got, header+" (전체보기)"+KakaoZeroWidthSpace) {
		t.Fatalf("preview line missing: %q", got[:40])
	}
	if strings.Count(got, KakaoZeroWidthSpace) != KakaoSeeMorePadding {
		t.Fatalf("padding count = %d", strings.Count(got, KakaoZeroWidthSpace))
	}
	if strings.Count(got, header) != 1 {
		t.Fatalf("header duplicated")
	}
}

func TestStripLeadingHeader(t *testing.T) {
	if got := StripLeadingHeader("H\r\n\r\nbody", "H"); got != "body" {
		t.Fatalf("got %q", got)
	}
	if got := StripLeadingHeader("body", "H"); got != "body" {
		t.Fatalf("got %q", got)
	}
}

func TestApplyPaddingEmpty(t *testing.T) {
	if ApplyKakaoSeeMorePadding("  ", "x") != "  " {
		t.Fatalf("blank text should pass through")
	}
}
