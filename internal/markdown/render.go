package markdown

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Document is a document prepared for display. It is never saved; the
// stored form is always the raw text.
type Document struct {
	Frontmatter *Frontmatter `json:"frontmatter"`
	Body        string       `json:"body"`
}

// Process runs the display pipeline: split the frontmatter off raw, resolve
// relative images against docPath and normalize editor artifacts.
func Process(raw, docPath string, r URLResolver) Document {
	fm, body := SplitFrontmatter(raw)
	body = ResolveRelativeImages(body, docPath, r)
	return Document{Frontmatter: fm, Body: NormalizeRenderArtifacts(body)}
}

// engine is stateless and safe for concurrent use.
var engine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
		extension.TaskList,
	),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// Render converts a processed body to HTML. Raw HTML in the body is omitted.
func Render(body string) (string, error) {
	var buf bytes.Buffer
	if err := engine.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("markdown: render: %w", err)
	}
	return buf.String(), nil
}
