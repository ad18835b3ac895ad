package adf

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// Jira Cloud API limits, in characters.
const (
	MaxSummaryLength = 255
	MaxBodyLength    = 32767

	// truncationReserve leaves room for the truncation notice when a body
	// exceeds MaxBodyLength.
	truncationReserve = 100
)

const (
	summaryPlaceholder = "No summary provided"
	bodyPlaceholder    = "No description provided."
	commentPlaceholder = "No comment text"
	truncationNotice   = "\n\n[Content truncated due to size limits]"
	summaryEllipsis    = "..."
)

// Normalizer converts source content into destination-safe form, reporting
// truncations through its logger. The zero value is usable and silent.
type Normalizer struct {
	Logger *slog.Logger
}

// NewNormalizer creates a Normalizer that reports truncations to logger.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	return &Normalizer{Logger: logger}
}

// NormalizeSummary truncates a summary to MaxSummaryLength characters,
// appending an ellipsis that still fits inside the limit. Empty input yields
// a fixed placeholder, never an empty field. The operation is idempotent:
// normalizing an already-normalized summary returns it unchanged.
func (n *Normalizer) NormalizeSummary(summary string) string {
	if summary == "" {
		return summaryPlaceholder
	}

	runes := []rune(summary)
	if len(runes) <= MaxSummaryLength {
		return summary
	}

	truncated := string(runes[:MaxSummaryLength-len(summaryEllipsis)]) + summaryEllipsis
	n.warn("summary truncated", "from", len(runes), "to", MaxSummaryLength)
	return truncated
}

// FormatBody wraps plain text in the minimal ADF envelope, truncating first
// when the text exceeds MaxBodyLength so the truncation notice always fits.
func (n *Normalizer) FormatBody(text string) *Document {
	return n.format(text, bodyPlaceholder)
}

// FormatComment is FormatBody with the comment placeholder. Comments share
// the same size limit as descriptions.
func (n *Normalizer) FormatComment(text string) *Document {
	return n.format(text, commentPlaceholder)
}

func (n *Normalizer) format(text, placeholder string) *Document {
	if text == "" {
		return fromText(placeholder)
	}

	runes := []rune(text)
	if len(runes) > MaxBodyLength {
		n.warn("content truncated", "from", len(runes), "to", MaxBodyLength)
		text = string(runes[:MaxBodyLength-truncationReserve]) + truncationNotice
	}
	return fromText(text)
}

// NormalizeDescription converts a raw source description (ADF, JSON string,
// or absent) into a destination-safe document. Already-structured input
// passes through unchanged; everything else is extracted to plain text and
// restructured under the size limit.
func (n *Normalizer) NormalizeDescription(raw json.RawMessage) *Document {
	if IsDocument(raw) {
		if doc, err := Parse(raw); err == nil {
			return doc
		}
	}
	return n.FormatBody(TextFromRaw(raw))
}

// MergeProvenance prepends a bold provenance paragraph referencing the
// original issue ahead of the body content.
func (n *Normalizer) MergeProvenance(originalKey string, body *Document) *Document {
	header := Paragraph(BoldText(fmt.Sprintf("Original issue: %s", originalKey)))
	merged := make([]Node, 0, len(body.Content)+1)
	merged = append(merged, header)
	merged = append(merged, body.Content...)
	return NewDocument(merged...)
}

func (n *Normalizer) warn(msg string, args ...any) {
	if n.Logger != nil {
		n.Logger.Warn(msg, args...)
	}
}
