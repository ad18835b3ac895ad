// Package adf builds and normalizes Atlassian Document Format content.
//
// Jira Cloud's v3 API requires descriptions and comment bodies as ADF
// documents and enforces hard size limits on summaries and rich-text fields.
// This package converts plain text into the minimal ADF envelope (document ->
// paragraphs -> text runs with hard breaks) and applies deterministic
// truncation so payloads always fit.
package adf

import (
	"encoding/json"
	"errors"
	"strings"
)

// errNotDocument is returned by Parse for JSON that lacks the ADF envelope.
var errNotDocument = errors.New("not an ADF document")

// Node types used by the minimal envelope.
const (
	nodeDoc       = "doc"
	nodeParagraph = "paragraph"
	nodeText      = "text"
	nodeHardBreak = "hardBreak"
	markStrong    = "strong"
)

// Mark is a formatting mark on a text node.
type Mark struct {
	Type string `json:"type"`
}

// Node is a single ADF content node. Text is set on "text" nodes; Content on
// container nodes such as paragraphs.
type Node struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Marks   []Mark `json:"marks,omitempty"`
	Content []Node `json:"content,omitempty"`
}

// Document is a complete ADF document (version 1).
type Document struct {
	Version int    `json:"version"`
	Type    string `json:"type"`
	Content []Node `json:"content"`
}

// NewDocument creates a version-1 ADF document from the given top-level nodes.
func NewDocument(nodes ...Node) *Document {
	return &Document{Version: 1, Type: nodeDoc, Content: nodes}
}

// Paragraph creates a paragraph node with the given inline children.
func Paragraph(children ...Node) Node {
	return Node{Type: nodeParagraph, Content: children}
}

// Text creates a plain text node.
func Text(s string) Node {
	return Node{Type: nodeText, Text: s}
}

// BoldText creates a text node with a strong mark.
func BoldText(s string) Node {
	return Node{Type: nodeText, Text: s, Marks: []Mark{{Type: markStrong}}}
}

// HardBreak creates a hard line break node.
func HardBreak() Node {
	return Node{Type: nodeHardBreak}
}

// IsDocument reports whether raw JSON already carries the ADF envelope
// marker ("type": "doc"). Plain JSON strings and null return false.
func IsDocument(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.Type == nodeDoc
}

// Parse decodes raw JSON into a Document. It only succeeds when the input
// carries the ADF envelope marker.
func Parse(raw json.RawMessage) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Type != nodeDoc {
		return nil, errNotDocument
	}
	return &doc, nil
}

// PlainText extracts the text content of a document, joining paragraphs with
// newlines and honoring hard breaks.
func (d *Document) PlainText() string {
	var blocks []string
	for _, block := range d.Content {
		var sb strings.Builder
		flattenText(block, &sb)
		if sb.Len() > 0 {
			blocks = append(blocks, sb.String())
		}
	}
	return strings.Join(blocks, "\n")
}

func flattenText(n Node, sb *strings.Builder) {
	switch n.Type {
	case nodeText:
		sb.WriteString(n.Text)
	case nodeHardBreak:
		sb.WriteString("\n")
	}
	for _, child := range n.Content {
		flattenText(child, sb)
	}
}

// TextFromRaw extracts plain text from a raw description/body value, which
// may be an ADF document, a JSON string, or absent. Jira v3 returns ADF;
// older data can still be a bare string.
func TextFromRaw(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	if doc, err := Parse(raw); err == nil {
		return doc.PlainText()
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// fromText structures plain text into paragraphs and hard breaks. Paragraphs
// split on blank lines; single newlines become hard breaks within a
// paragraph. Blank-only paragraphs are dropped.
func fromText(text string) *Document {
	var content []Node
	for _, para := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		var children []Node
		for i, line := range lines {
			children = append(children, Text(line))
			if i < len(lines)-1 {
				children = append(children, HardBreak())
			}
		}
		content = append(content, Paragraph(children...))
	}
	return NewDocument(content...)
}
