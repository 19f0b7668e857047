// Package minify implements lossless HTML compression: the document is
// parsed into a DOM and re-serialized with inter-tag whitespace collapsed.
// Because the transform operates on the parsed tree, the DOM a browser
// constructs from the output is identical to the one it would construct
// from the input.
package minify

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTML compresses an HTML document. Text inside whitespace-significant
// elements (pre, textarea, script, style) is preserved verbatim.
func HTML(input []byte) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}

	collapse(doc, false)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// preserveWhitespace reports whether the subtree below n keeps its text
// untouched. Diagram containers are included: their text content is the
// diagram source, where line breaks are significant.
func preserveWhitespace(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Pre, atom.Textarea, atom.Script, atom.Style, atom.Code:
		return true
	}
	for _, attr := range n.Attr {
		if attr.Key == "class" && strings.Contains(attr.Val, "mermaid") {
			return true
		}
	}
	return false
}

// collapse rewrites text nodes so that every run of whitespace shrinks to
// a single space. Nodes are never dropped: a whitespace-only text node
// between inline elements still separates words, so removing it would not
// be lossless. Comments are stripped; they have no rendered effect.
func collapse(n *html.Node, preserve bool) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode && !preserve {
			c.Data = collapseSpaces(c.Data)
		} else if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			collapse(c, preserve || preserveWhitespace(c))
		}
		c = next
	}
}

func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
