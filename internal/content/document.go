// Package content discovers and loads the source documents of the site:
// posts, standalone pages and copy-through assets.
package content

import (
	"strings"
	"time"
)

// Collection names the structural grouping a document belongs to.
type Collection string

const (
	CollectionPosts Collection = "posts"
	CollectionPages Collection = "pages"
)

// Document represents one loaded source file plus its merged metadata.
// A document is immutable during a build.
type Document struct {
	SourcePath   string         // path relative to the source root
	Collection   Collection     // posts or pages
	FrontMatter  map[string]any // merged view: scoped defaults < own front matter
	RawBody      []byte         // Markdown body, frontmatter removed
	Title        string
	Slug         string
	Date         time.Time
	Categories   []string
	Tags         []string
	Layout       string
	Draft        bool
	Excerpt      string
	LastModified time.Time // source file mtime, used for sitemap lastmod
}

// Asset is a non-Markdown source file copied through unchanged.
type Asset struct {
	SourcePath string // absolute path on disk
	RelPath    string // path relative to the source root, reused as output path
}

// stringField reads a string value from front matter.
func stringField(fm map[string]any, key string) string {
	if v, ok := fm[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// boolField reads a bool value from front matter.
func boolField(fm map[string]any, key string) bool {
	if v, ok := fm[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// listField reads a list of strings from front matter. A bare scalar is
// treated as a single-element list, and a space-separated string is split,
// matching the loose metadata style blogs accumulate over years.
func listField(fm map[string]any, key string) []string {
	v, ok := fm[key]
	if !ok || v == nil {
		return nil
	}
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		fields := strings.Fields(x)
		if len(fields) == 0 {
			return nil
		}
		return fields
	default:
		return nil
	}
}
