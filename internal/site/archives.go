package site

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"

	gerrors "github.com/milkyware/glacier/internal/errors"
	"github.com/milkyware/glacier/internal/layout"
)

// postListTemplate renders the body of every generated list page
// (archives and pagination). Kept minimal; the surrounding chrome comes
// from the default layout.
var postListTemplate = template.Must(template.New("postlist").Parse(`<h1>{{ .Heading }}</h1>
<ul class="post-list">
{{ range .Posts }}<li>
<a href="{{ .URL }}">{{ .Title }}</a>
<time>{{ .Date }}</time>
{{ if .Excerpt }}<p class="excerpt">{{ .Excerpt }}</p>{{ end }}
</li>
{{ end }}</ul>
{{ if or .PrevURL .NextURL }}<nav class="pagination">
{{ if .PrevURL }}<a class="prev" href="{{ .PrevURL }}">Newer</a>{{ end }}
{{ if .NextURL }}<a class="next" href="{{ .NextURL }}">Older</a>{{ end }}
</nav>
{{ end }}`))

type postListItem struct {
	URL     string
	Title   string
	Date    string
	Excerpt string
}

type postListData struct {
	Heading string
	Posts   []postListItem
	PrevURL string
	NextURL string
}

// renderListPage builds a generated-index page: the post list body wrapped
// in the default layout.
func renderListPage(m *Model, title, url string, data postListData) (Page, error) {
	var body bytes.Buffer
	if err := postListTemplate.Execute(&body, data); err != nil {
		return Page{}, gerrors.Wrap(err, gerrors.CategoryInternal, gerrors.SeverityFatal,
			fmt.Sprintf("render list page %s", url))
	}

	full, err := m.Layouts.Render("default", layout.PageContext{
		Title:   title,
		Content: template.HTML(body.String()), // #nosec G203 -- template output
		Page:    map[string]any{"title": title},
		Site:    SiteContext(m.Cfg),
		Skin:    string(m.Cfg.Skin),
		URL:     url,
	})
	if err != nil {
		return Page{}, err
	}

	return Page{
		OutputPath: OutputPathForURL(url),
		URL:        url,
		HTML:       full,
		InSitemap:  true,
	}, nil
}

func listItems(posts []RenderedDoc) []postListItem {
	items := make([]postListItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, postListItem{
			URL:     p.URL,
			Title:   p.Doc.Title,
			Date:    p.Doc.Date.Format(DateFormat),
			Excerpt: p.Doc.Excerpt,
		})
	}
	return items
}

// archivesProducer emits one archive page per distinct category and per
// distinct tag. A post with N tags appears in exactly the N matching tag
// archives.
type archivesProducer struct{}

func (archivesProducer) Name() string { return "archives" }

func (archivesProducer) Produce(m *Model, _ []Page) ([]Page, error) {
	var pages []Page

	categories := groupPosts(m.Posts, func(d RenderedDoc) []string { return d.Doc.Categories })
	tags := groupPosts(m.Posts, func(d RenderedDoc) []string { return d.Doc.Tags })

	emit := func(kind string, groups map[string][]RenderedDoc) error {
		names := make([]string, 0, len(groups))
		for name := range groups {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			url := fmt.Sprintf("/%s/%s/", kind, Slugify(name))
			title := fmt.Sprintf("%s: %s", headingFor(kind), name)
			page, err := renderListPage(m, title, url, postListData{
				Heading: title,
				Posts:   listItems(groups[name]),
			})
			if err != nil {
				return err
			}
			pages = append(pages, page)
		}
		return nil
	}

	if err := emit("categories", categories); err != nil {
		return nil, err
	}
	if err := emit("tags", tags); err != nil {
		return nil, err
	}
	return pages, nil
}

// groupPosts buckets posts by each value of a metadata set, preserving the
// model's newest-first order inside every bucket.
func groupPosts(posts []RenderedDoc, keys func(RenderedDoc) []string) map[string][]RenderedDoc {
	groups := map[string][]RenderedDoc{}
	for _, p := range posts {
		seen := map[string]bool{}
		for _, key := range keys(p) {
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			groups[key] = append(groups[key], p)
		}
	}
	return groups
}

func headingFor(kind string) string {
	if kind == "tags" {
		return "Tag"
	}
	return "Category"
}
