// Package layout resolves and applies the layout chain that wraps a
// document's rendered HTML. Layouts are html/template files in _layouts/;
// a layout's own front matter may name a parent layout, applied
// recursively. Built-in fallbacks cover default, post and page when the
// site ships no layout files of its own.
package layout

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	gerrors "github.com/milkyware/glacier/internal/errors"
	"github.com/milkyware/glacier/internal/frontmatter"
)

// PageContext is the data a layout template renders against.
type PageContext struct {
	Title   string
	Date    string // formatted publish date, empty for pages
	Content template.HTML
	Page    map[string]any // merged front matter
	Site    map[string]any // site configuration view
	Skin    string
	URL     string // site-relative URL of the page
}

type layoutEntry struct {
	name   string
	parent string
	tmpl   *template.Template
}

// Engine holds the parsed layout set for one build.
type Engine struct {
	layouts map[string]*layoutEntry
}

// NewEngine loads every *.html file in layoutsDir, fills in built-in
// fallbacks, and validates the whole parent graph up front so cyclic or
// dangling references fail before any page is emitted.
func NewEngine(layoutsDir string) (*Engine, error) {
	e := &Engine{layouts: map[string]*layoutEntry{}}

	if entries, err := os.ReadDir(layoutsDir); err == nil {
		for _, de := range entries {
			if de.IsDir() || !strings.HasSuffix(de.Name(), ".html") {
				continue
			}
			name := strings.TrimSuffix(de.Name(), ".html")
			raw, err := os.ReadFile(filepath.Join(layoutsDir, de.Name()))
			if err != nil {
				return nil, gerrors.Wrap(err, gerrors.CategoryLayout, gerrors.SeverityFatal,
					fmt.Sprintf("read layout %s", de.Name()))
			}
			entry, err := parseLayout(name, raw)
			if err != nil {
				return nil, err
			}
			e.layouts[name] = entry
		}
	}

	for name, src := range builtinLayouts {
		if _, ok := e.layouts[name]; ok {
			continue
		}
		entry, err := parseLayout(name, []byte(src))
		if err != nil {
			return nil, err
		}
		e.layouts[name] = entry
	}

	if err := e.validateChains(); err != nil {
		return nil, err
	}
	return e, nil
}

// parseLayout splits optional front matter (carrying the parent reference)
// from the template source and parses the remainder.
func parseLayout(name string, raw []byte) (*layoutEntry, error) {
	fmBytes, body, _, err := frontmatter.Split(raw)
	if err != nil {
		return nil, gerrors.WrapConfig(err, fmt.Sprintf("layout %q: malformed front matter", name))
	}
	fields, err := frontmatter.ParseYAML(fmBytes)
	if err != nil {
		return nil, gerrors.WrapConfig(err, fmt.Sprintf("layout %q: invalid front matter YAML", name))
	}

	parent := ""
	if v, ok := fields["layout"]; ok {
		if s, ok := v.(string); ok {
			parent = s
		}
	}

	tmpl, err := template.New(name).Parse(string(body))
	if err != nil {
		return nil, gerrors.WrapConfig(err, fmt.Sprintf("layout %q: template parse error", name))
	}
	return &layoutEntry{name: name, parent: parent, tmpl: tmpl}, nil
}

// validateChains walks every layout's parent chain, rejecting unknown
// parents and cycles. Cyclic references are a fatal configuration error
// detected here, before emission.
func (e *Engine) validateChains() error {
	for name := range e.layouts {
		if _, err := e.Chain(name); err != nil {
			return err
		}
	}
	return nil
}

// Chain returns the layout chain for name, innermost first.
func (e *Engine) Chain(name string) ([]string, error) {
	var chain []string
	seen := map[string]bool{}
	for current := name; current != ""; {
		if seen[current] {
			return nil, gerrors.NewConfig(
				fmt.Sprintf("cyclic layout reference: %s -> %s", strings.Join(chain, " -> "), current))
		}
		seen[current] = true
		entry, ok := e.layouts[current]
		if !ok {
			return nil, gerrors.NewConfig(fmt.Sprintf("layout %q not found (referenced from %q)", current, name))
		}
		chain = append(chain, current)
		current = entry.parent
	}
	return chain, nil
}

// Has reports whether a layout with the given name exists.
func (e *Engine) Has(name string) bool {
	_, ok := e.layouts[name]
	return ok
}

// Render wraps content in the named layout and its ancestors. Each link of
// the chain receives the previous stage's output as .Content.
func (e *Engine) Render(name string, ctx PageContext) ([]byte, error) {
	chain, err := e.Chain(name)
	if err != nil {
		return nil, err
	}

	content := ctx.Content
	for _, layoutName := range chain {
		entry := e.layouts[layoutName]
		stage := ctx
		stage.Content = content

		var buf bytes.Buffer
		if err := entry.tmpl.Execute(&buf, stage); err != nil {
			return nil, gerrors.Wrap(err, gerrors.CategoryLayout, gerrors.SeverityFatal,
				fmt.Sprintf("execute layout %q", layoutName))
		}
		content = template.HTML(buf.String()) // #nosec G203 -- layout output feeds the next layout
	}
	return []byte(content), nil
}
