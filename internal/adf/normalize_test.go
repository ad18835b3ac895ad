package adf

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNormalizeSummaryWithinLimit(t *testing.T) {
	n := NewNormalizer(nil)
	s := "A perfectly reasonable summary"
	if got := n.NormalizeSummary(s); got != s {
		t.Errorf("short summary changed: %q", got)
	}
}

func TestNormalizeSummaryEmpty(t *testing.T) {
	n := NewNormalizer(nil)
	if got := n.NormalizeSummary(""); got != "No summary provided" {
		t.Errorf("empty summary = %q", got)
	}
}

func TestNormalizeSummaryTruncates(t *testing.T) {
	n := NewNormalizer(nil)
	long := strings.Repeat("x", 300)
	got := n.NormalizeSummary(long)

	if len([]rune(got)) != MaxSummaryLength {
		t.Errorf("truncated length = %d, want %d", len([]rune(got)), MaxSummaryLength)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got[len(got)-10:])
	}
}

func TestNormalizeSummaryIdempotent(t *testing.T) {
	n := NewNormalizer(nil)
	long := strings.Repeat("y", 400)
	once := n.NormalizeSummary(long)
	twice := n.NormalizeSummary(once)
	if once != twice {
		t.Errorf("not idempotent: %q != %q", once, twice)
	}
}

func TestNormalizeSummaryMultibyte(t *testing.T) {
	n := NewNormalizer(nil)
	long := strings.Repeat("日", 300)
	got := n.NormalizeSummary(long)
	if count := len([]rune(got)); count != MaxSummaryLength {
		t.Errorf("rune count = %d, want %d", count, MaxSummaryLength)
	}
}

func TestFormatBodyTruncates(t *testing.T) {
	n := NewNormalizer(nil)
	long := strings.Repeat("z", MaxBodyLength+5000)
	doc := n.FormatBody(long)

	text := doc.PlainText()
	if len([]rune(text)) > MaxBodyLength {
		t.Errorf("body still exceeds limit: %d runes", len([]rune(text)))
	}
	if !strings.Contains(text, "[Content truncated due to size limits]") {
		t.Error("expected truncation notice in body")
	}
}

func TestFormatBodyEmptyPlaceholder(t *testing.T) {
	n := NewNormalizer(nil)
	doc := n.FormatBody("")
	if got := doc.PlainText(); got != "No description provided." {
		t.Errorf("empty body = %q", got)
	}
}

func TestFormatCommentEmptyPlaceholder(t *testing.T) {
	n := NewNormalizer(nil)
	doc := n.FormatComment("")
	if got := doc.PlainText(); got != "No comment text" {
		t.Errorf("empty comment = %q", got)
	}
}

func TestNormalizeDescriptionPassesThroughDocument(t *testing.T) {
	n := NewNormalizer(nil)
	raw := json.RawMessage(`{"type":"doc","version":1,"content":[{"type":"paragraph","content":[{"type":"text","text":"kept as-is"}]}]}`)

	doc := n.NormalizeDescription(raw)
	if got := doc.PlainText(); got != "kept as-is" {
		t.Errorf("passthrough content = %q", got)
	}
}

func TestNormalizeDescriptionPlainString(t *testing.T) {
	n := NewNormalizer(nil)
	doc := n.NormalizeDescription(json.RawMessage(`"legacy plain text"`))

	if doc.Type != "doc" {
		t.Fatalf("expected restructured document, got %q", doc.Type)
	}
	if got := doc.PlainText(); got != "legacy plain text" {
		t.Errorf("content = %q", got)
	}
}

func TestNormalizeDescriptionAbsent(t *testing.T) {
	n := NewNormalizer(nil)
	doc := n.NormalizeDescription(nil)
	if got := doc.PlainText(); got != "No description provided." {
		t.Errorf("absent description = %q", got)
	}
}
