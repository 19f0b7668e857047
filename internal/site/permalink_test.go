package site

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/milkyware/glacier/internal/content"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"Go  &  Markdown!", "go-markdown"},
		{"  trimmed  ", "trimmed"},
		{"Ünicode Köln", "nicode-k-ln"},
		{"already-slugged", "already-slugged"},
		{"2024 Review", "2024-review"},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "Slugify(%q)", tt.in)
	}
}

func TestExpandPermalink(t *testing.T) {
	doc := content.Document{
		Slug:       "first-post",
		Date:       time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
		Categories: []string{"Tech", "Go Lang"},
	}

	tests := []struct {
		pattern string
		want    string
	}{
		{"/:categories/:year/:month/:day/:title/", "/tech/go-lang/2024/03/07/first-post/"},
		{"/:year/:title/", "/2024/first-post/"},
		{"/blog/:slug/", "/blog/first-post/"},
		{"/posts/:year/:month/", "/posts/2024/03/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandPermalink(tt.pattern, doc), "pattern %q", tt.pattern)
	}
}

func TestExpandPermalinkNoCategories(t *testing.T) {
	doc := content.Document{
		Slug: "hello",
		Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	// :categories expands to nothing when the post has none.
	assert.Equal(t, "/2024/01/02/hello/",
		ExpandPermalink("/:categories/:year/:month/:day/:title/", doc))
}

func TestPageURL(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"about.md", "/about/"},
		{"docs/setup.md", "/docs/setup/"},
		{"index.md", "/"},
		{"docs/index.md", "/docs/"},
		{"My Page.md", "/my-page/"},
	}
	for _, tt := range tests {
		doc := content.Document{SourcePath: tt.source}
		assert.Equal(t, tt.want, PageURL(doc), "source %q", tt.source)
	}
}

func TestOutputPathForURL(t *testing.T) {
	assert.Equal(t, "index.html", OutputPathForURL("/"))
	assert.Equal(t, "about/index.html", OutputPathForURL("/about/"))
	assert.Equal(t, "tech/2024/03/07/first/index.html", OutputPathForURL("/tech/2024/03/07/first/"))
}
