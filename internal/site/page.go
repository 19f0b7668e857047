// Package site assembles transformed documents into the full set of
// rendered pages: document pages, archives, pagination, feed and sitemap.
package site

import (
	"html/template"
	"time"

	"github.com/milkyware/glacier/internal/config"
	"github.com/milkyware/glacier/internal/content"
	"github.com/milkyware/glacier/internal/layout"
)

// DateFormat is the human-readable publish date format used in layouts.
const DateFormat = "2 January 2006"

// Page is one output artifact: a final HTML document at an output path.
type Page struct {
	OutputPath string // output-relative file path, e.g. "blog/2024/01/02/hello/index.html"
	URL        string // site-relative URL, e.g. "/blog/2024/01/02/hello/"
	HTML       []byte
	Lastmod    time.Time // zero means "omit from sitemap lastmod"
	InSitemap  bool
	Source     string // source path for diagnostics; empty for generated indexes
}

// RenderedDoc pairs a source document with its resolved URL and its HTML
// fragment (before layout wrapping).
type RenderedDoc struct {
	Doc        content.Document
	URL        string
	OutputPath string
	Body       template.HTML
}

// Model is the assembled site view handed to generated-index producers.
type Model struct {
	Cfg     *config.Config
	Posts   []RenderedDoc // newest first
	Pages   []RenderedDoc
	Layouts *layout.Engine
}

// SiteContext builds the "site" half of template and token contexts from
// the configuration. It contains no clock reads; builds are deterministic.
func SiteContext(cfg *config.Config) map[string]any {
	return map[string]any{
		"title":       cfg.Title,
		"description": cfg.Description,
		"url":         cfg.URL,
		"skin":        string(cfg.Skin),
		"author": map[string]any{
			"name":  cfg.Author.Name,
			"email": cfg.Author.Email,
		},
		"analytics": map[string]any{
			"provider": cfg.Analytics.Provider,
		},
	}
}

// PageTokenContext builds the "page" half of the token context for a
// document: its merged front matter plus the resolved url and date.
func PageTokenContext(doc content.Document, url string) map[string]any {
	page := make(map[string]any, len(doc.FrontMatter)+3)
	for k, v := range doc.FrontMatter {
		page[k] = v
	}
	page["title"] = doc.Title
	page["url"] = url
	if !doc.Date.IsZero() {
		page["date"] = doc.Date.Format("2006-01-02")
	}
	return page
}

// layoutContext assembles the html/template context for wrapping a
// rendered body in a layout chain.
func layoutContext(cfg *config.Config, doc content.Document, url string, body template.HTML) layout.PageContext {
	date := ""
	if doc.Collection == content.CollectionPosts && !doc.Date.IsZero() {
		date = doc.Date.Format(DateFormat)
	}
	return layout.PageContext{
		Title:   doc.Title,
		Date:    date,
		Content: body,
		Page:    doc.FrontMatter,
		Site:    SiteContext(cfg),
		Skin:    string(cfg.Skin),
		URL:     url,
	}
}
