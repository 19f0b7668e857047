package site

import (
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/milkyware/glacier/internal/content"
)

var lowercaser = cases.Lower(language.Und)

// Slugify produces a URL-safe slug: casefolded, with every run of
// non-alphanumeric characters collapsed to a single hyphen.
func Slugify(s string) string {
	s = lowercaser.String(strings.TrimSpace(s))
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ExpandPermalink substitutes document metadata into the permalink
// pattern, returning a clean site-relative URL ending in "/". The result
// is a pure function of the pattern and the document's metadata: identical
// input always produces the identical path.
func ExpandPermalink(pattern string, doc content.Document) string {
	segments := strings.Split(pattern, "/")
	out := make([]string, 0, len(segments))

	for _, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			if seg != "" {
				out = append(out, seg)
			}
			continue
		}
		switch strings.TrimPrefix(seg, ":") {
		case "categories":
			for _, c := range doc.Categories {
				if s := Slugify(c); s != "" {
					out = append(out, s)
				}
			}
		case "year":
			out = append(out, doc.Date.Format("2006"))
		case "month":
			out = append(out, doc.Date.Format("01"))
		case "day":
			out = append(out, doc.Date.Format("02"))
		case "title", "slug":
			out = append(out, Slugify(doc.Slug))
		}
	}

	return "/" + path.Join(out...) + "/"
}

// PageURL returns the site-relative URL for a standalone page, mirroring
// its source location as a pretty URL ("about.md" -> "/about/",
// "docs/setup.md" -> "/docs/setup/"). An "index.md" maps to its directory.
func PageURL(doc content.Document) string {
	rel := strings.TrimSuffix(doc.SourcePath, path.Ext(doc.SourcePath))
	if path.Base(rel) == "index" {
		rel = path.Dir(rel)
		if rel == "." {
			return "/"
		}
	}
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = Slugify(p)
	}
	return "/" + path.Join(parts...) + "/"
}

// OutputPathForURL maps a site-relative URL to the output file path that
// serves it (pretty URLs: every page is a directory index).
func OutputPathForURL(url string) string {
	trimmed := strings.Trim(url, "/")
	if trimmed == "" {
		return "index.html"
	}
	return path.Join(trimmed, "index.html")
}
