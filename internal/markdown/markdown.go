// Package markdown converts Markdown bodies into HTML fragments using
// goldmark with GFM extensions, syntax highlighting and mermaid support.
package markdown

import (
	"bytes"

	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Converter renders Markdown to HTML. Construct once per build and reuse;
// goldmark instances are safe for repeated Convert calls.
type Converter struct {
	md goldmark.Markdown
}

// New builds a Converter with the given chroma highlight style.
func New(highlightStyle string) *Converter {
	if highlightStyle == "" {
		highlightStyle = "monokai"
	}
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,         // tables, strikethrough, autolinks, task lists
			extension.Typographer, // smart quotes and dashes
			highlighting.NewHighlighting(
				highlighting.WithStyle(highlightStyle),
				highlighting.WithWrapperRenderer(diagramWrapper()),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(), // posts embed raw HTML snippets
		),
	)
	return &Converter{md: md}
}

// Convert renders a Markdown body (frontmatter already removed) to HTML.
func (c *Converter) Convert(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.md.Convert(body, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
