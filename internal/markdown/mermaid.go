package markdown

import (
	"bytes"
	"strings"

	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/util"
)

// DiagramClass is the marker class carried by emitted diagram containers.
// It is the entire build-time half of the contract with the client
// enhancement script, which selects elements by this class at page load.
const DiagramClass = "mermaid"

const diagramLanguage = "mermaid"

// diagramWrapper returns a wrapper renderer that converts ```mermaid fences
// into divs the client-side renderer can hydrate, while delegating to the
// default <pre><code> fallback for other non-highlighted code blocks.
func diagramWrapper() highlighting.WrapperRenderer {
	return func(w util.BufWriter, ctx highlighting.CodeBlockContext, entering bool) {
		if ctx.Highlighted() {
			// The highlighter writes its own wrappers.
			return
		}

		lang, _ := ctx.Language()
		normalized := strings.TrimSpace(strings.ToLower(string(lang)))
		if normalized == diagramLanguage {
			if entering {
				_, _ = w.WriteString(`<div class="` + DiagramClass + `">`)
			} else {
				_, _ = w.WriteString("</div>\n")
			}
			return
		}

		if entering {
			_, _ = w.WriteString("<pre><code")
			if len(bytes.TrimSpace(lang)) > 0 {
				_, _ = w.WriteString(` class="language-`)
				_, _ = w.Write(util.EscapeHTML(lang))
				_, _ = w.WriteString(`"`)
			}
			_, _ = w.WriteString(">")
			return
		}
		_, _ = w.WriteString("</code></pre>\n")
	}
}
