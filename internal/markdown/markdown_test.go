package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertBasicConstructs(t *testing.T) {
	c := New("monokai")
	src := "# Title\n\nSome *text* with a [link](https://example.com).\n\n- one\n- two\n"

	out, err := c.Convert([]byte(src))
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, `<h1 id="title">Title</h1>`)
	assert.Contains(t, html, "<em>text</em>")
	assert.Contains(t, html, `<a href="https://example.com">link</a>`)
	assert.Contains(t, html, "<li>one</li>")
}

func TestConvertGFMTable(t *testing.T) {
	c := New("")
	src := "| a | b |\n|---|---|\n| 1 | 2 |\n"

	out, err := c.Convert([]byte(src))
	require.NoError(t, err)
	assert.Contains(t, string(out), "<table>")
	assert.Contains(t, string(out), "<td>1</td>")
}

func TestConvertMermaidFenceBecomesDiagramDiv(t *testing.T) {
	c := New("monokai")
	src := "```mermaid\ngraph TD;\n  A-->B;\n```\n"

	out, err := c.Convert([]byte(src))
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, `<div class="mermaid">`)
	assert.Contains(t, html, "A--&gt;B;")
	assert.NotContains(t, html, "<pre><code")
}

func TestConvertHighlightedFence(t *testing.T) {
	c := New("monokai")
	src := "```go\npackage main\n```\n"

	out, err := c.Convert([]byte(src))
	require.NoError(t, err)
	// Chroma emits an inline-styled block rather than bare <pre><code>.
	assert.Contains(t, string(out), "<pre")
	assert.Contains(t, string(out), "style=")
}

func TestConvertUnknownFenceKeepsCodeBlock(t *testing.T) {
	c := New("monokai")
	src := "```notalanguage\nplain text\n```\n"

	out, err := c.Convert([]byte(src))
	require.NoError(t, err)
	assert.Contains(t, string(out), `<pre><code class="language-notalanguage">`)
}

func TestConvertRawHTMLPassthrough(t *testing.T) {
	c := New("monokai")
	src := "before\n\n<div class=\"custom\">kept</div>\n\nafter\n"

	out, err := c.Convert([]byte(src))
	require.NoError(t, err)
	assert.Contains(t, string(out), `<div class="custom">kept</div>`)
}
