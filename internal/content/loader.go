package content

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/milkyware/glacier/internal/config"
	gerrors "github.com/milkyware/glacier/internal/errors"
	"github.com/milkyware/glacier/internal/frontmatter"
)

// postFilePattern matches the conventional post filename:
// YYYY-MM-DD-some-slug.md
var postFilePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})-(.+)\.(md|markdown)$`)

// Options controls content discovery.
type Options struct {
	IncludeDrafts bool
	IncludeFuture bool
	// SkipInvalid excludes documents with content errors instead of
	// failing the build, reporting each exclusion as a warning.
	SkipInvalid bool
	// Now anchors future-post filtering; zero means time.Now().
	Now time.Time
	// ExcludePaths names directories and files the walk must skip even
	// when they would otherwise be discovered, such as an output directory
	// placed inside the source tree at a non-underscore path.
	ExcludePaths []string
}

// Result is the outcome of a discovery pass.
type Result struct {
	Posts    []Document
	Pages    []Document
	Assets   []Asset
	Excluded []ExcludedDocument
}

// ExcludedDocument records a source skipped in skip-invalid mode.
type ExcludedDocument struct {
	SourcePath string
	Reason     error
}

// All returns posts then pages as a single slice.
func (r *Result) All() []Document {
	out := make([]Document, 0, len(r.Posts)+len(r.Pages))
	out = append(out, r.Posts...)
	out = append(out, r.Pages...)
	return out
}

// Loader walks a source tree and produces Documents with merged metadata.
type Loader struct {
	cfg      *config.Config
	root     string
	opts     Options
	excluded map[string]bool
}

// NewLoader creates a Loader for the given source root.
func NewLoader(cfg *config.Config, sourceRoot string, opts Options) *Loader {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	excluded := map[string]bool{}
	for _, p := range opts.ExcludePaths {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			excluded[abs] = true
		}
	}
	return &Loader{cfg: cfg, root: filepath.Clean(sourceRoot), opts: opts, excluded: excluded}
}

// Load walks the source tree once and classifies entries:
// _posts/*.md are posts, other .md files outside underscore-prefixed
// directories are pages, everything else outside those directories is an
// asset. Walk order is deterministic (WalkDir is lexical), so repeated
// loads of unchanged input yield identical results.
func (l *Loader) Load() (*Result, error) {
	res := &Result{}

	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(l.root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if abs, absErr := filepath.Abs(path); absErr == nil && l.excluded[abs] {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if skipDir(rel) {
				return fs.SkipDir
			}
			return nil
		}

		switch {
		case strings.HasPrefix(rel, "_posts/"):
			if !isMarkdown(rel) {
				return nil
			}
			doc, derr := l.loadPost(path, rel)
			if derr != nil {
				return l.handleContentError(res, rel, derr)
			}
			if doc != nil {
				res.Posts = append(res.Posts, *doc)
			}
		case strings.HasPrefix(rel, "_"), strings.Contains(rel, "/_"):
			// Underscore directories (layouts, drafts folders, the output
			// staging area) are not site content.
			return nil
		case isMarkdown(rel):
			doc, derr := l.loadPage(path, rel)
			if derr != nil {
				return l.handleContentError(res, rel, derr)
			}
			if doc != nil {
				res.Pages = append(res.Pages, *doc)
			}
		case isIgnoredFile(rel):
			return nil
		default:
			res.Assets = append(res.Assets, Asset{SourcePath: path, RelPath: rel})
		}
		return nil
	})
	if err != nil {
		if gerrors.HasCategory(err, gerrors.CategoryContent) {
			return nil, err
		}
		return nil, gerrors.Wrap(err, gerrors.CategoryContent, gerrors.SeverityFatal, "walk source tree")
	}

	// Posts newest-first; stable tiebreak on path for same-day posts.
	sort.SliceStable(res.Posts, func(i, j int) bool {
		if !res.Posts[i].Date.Equal(res.Posts[j].Date) {
			return res.Posts[i].Date.After(res.Posts[j].Date)
		}
		return res.Posts[i].SourcePath < res.Posts[j].SourcePath
	})
	sort.SliceStable(res.Pages, func(i, j int) bool {
		return res.Pages[i].SourcePath < res.Pages[j].SourcePath
	})

	res.Posts = l.filterPosts(res.Posts)
	return res, nil
}

// handleContentError applies the skip-invalid policy to a per-document error.
func (l *Loader) handleContentError(res *Result, rel string, derr error) error {
	if l.opts.SkipInvalid {
		slog.Warn("Excluding invalid document", "path", rel, "error", derr)
		res.Excluded = append(res.Excluded, ExcludedDocument{SourcePath: rel, Reason: derr})
		return nil
	}
	return derr
}

func (l *Loader) loadPost(path, rel string) (*Document, error) {
	name := filepath.Base(rel)
	m := postFilePattern.FindStringSubmatch(name)
	if m == nil {
		return nil, gerrors.NewContent(gerrors.SeverityFatal,
			fmt.Sprintf("%s: post filename must look like YYYY-MM-DD-title.md", rel))
	}

	doc, err := l.loadDocument(path, rel, CollectionPosts)
	if err != nil {
		return nil, err
	}

	// Filename date and slug are the fallback; front matter wins.
	fileDate, err := time.Parse("2006-01-02", fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3]))
	if err != nil {
		return nil, gerrors.WrapContent(err, gerrors.SeverityFatal, fmt.Sprintf("%s: invalid date in filename", rel))
	}
	if doc.Date.IsZero() {
		doc.Date = fileDate
	}
	if doc.Slug == "" {
		doc.Slug = m[4]
	}
	if doc.Title == "" {
		doc.Title = titleFromSlug(m[4])
	}
	return doc, nil
}

func (l *Loader) loadPage(path, rel string) (*Document, error) {
	doc, err := l.loadDocument(path, rel, CollectionPages)
	if err != nil {
		return nil, err
	}
	if doc.Slug == "" {
		base := filepath.Base(rel)
		doc.Slug = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if doc.Title == "" {
		doc.Title = titleFromSlug(doc.Slug)
	}
	return doc, nil
}

func (l *Loader) loadDocument(path, rel string, coll Collection) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, gerrors.WrapContent(err, gerrors.SeverityFatal, fmt.Sprintf("read %s", rel))
	}

	fmBytes, body, _, err := frontmatter.Split(raw)
	if err != nil {
		return nil, gerrors.WrapContent(err, gerrors.SeverityFatal, fmt.Sprintf("%s: malformed front matter", rel))
	}
	own, err := frontmatter.ParseYAML(fmBytes)
	if err != nil {
		return nil, gerrors.WrapContent(err, gerrors.SeverityFatal, fmt.Sprintf("%s: invalid front matter YAML", rel))
	}

	merged := l.cfg.EffectiveFrontMatter(string(coll), rel, own)

	doc := &Document{
		SourcePath:  rel,
		Collection:  coll,
		FrontMatter: merged,
		RawBody:     body,
		Title:       stringField(merged, "title"),
		Slug:        stringField(merged, "slug"),
		Layout:      stringField(merged, "layout"),
		Draft:       boolField(merged, "draft"),
		Categories:  listField(merged, "categories"),
		Tags:        listField(merged, "tags"),
		Excerpt:     stringField(merged, "excerpt"),
	}
	if cat := stringField(merged, "category"); cat != "" {
		doc.Categories = append(doc.Categories, cat)
	}
	if d := parseDateField(merged["date"]); !d.IsZero() {
		doc.Date = d
	}
	if doc.Excerpt == "" {
		doc.Excerpt = firstParagraph(body)
	}
	if info, statErr := os.Stat(path); statErr == nil {
		doc.LastModified = info.ModTime()
	}
	return doc, nil
}

// filterPosts drops drafts and future-dated posts unless requested.
func (l *Loader) filterPosts(posts []Document) []Document {
	out := posts[:0]
	for _, p := range posts {
		if p.Draft && !l.opts.IncludeDrafts {
			slog.Debug("Skipping draft", "path", p.SourcePath)
			continue
		}
		if p.Date.After(l.opts.Now) && !l.opts.IncludeFuture {
			slog.Debug("Skipping future-dated post", "path", p.SourcePath, "date", p.Date)
			continue
		}
		out = append(out, p)
	}
	return out
}

func skipDir(rel string) bool {
	base := filepath.Base(rel)
	if base == "_posts" {
		return false
	}
	return strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".")
}

func isMarkdown(rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	return ext == ".md" || ext == ".markdown"
}

// isIgnoredFile filters generator-owned files out of the asset copy.
func isIgnoredFile(rel string) bool {
	base := filepath.Base(rel)
	switch base {
	case "site.yaml", ".glacier-cache.db", ".env", ".env.local":
		return true
	}
	return strings.HasPrefix(base, ".")
}

// parseDateField accepts the date representations YAML produces.
func parseDateField(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, x); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func titleFromSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// firstParagraph extracts the leading prose paragraph for use as excerpt.
func firstParagraph(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" || strings.HasPrefix(para, "#") || strings.HasPrefix(para, "```") {
			continue
		}
		return strings.Join(strings.Fields(para), " ")
	}
	return ""
}
