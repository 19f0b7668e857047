package content

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milkyware/glacier/internal/config"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
title: Test
url: https://example.com
defaults:
  - scope: {collection: posts}
    values: {layout: post}
`))
	require.NoError(t, err)
	return cfg
}

func TestLoadClassifiesSources(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "_posts/2024-03-01-first.md", "---\ntitle: First\ntags: [go, blog]\n---\nBody one.\n")
	writeFile(t, root, "_posts/2024-04-01-second.md", "---\ntitle: Second\ncategories: [devops]\n---\nBody two.\n")
	writeFile(t, root, "about.md", "---\ntitle: About\nlayout: page\n---\nAbout me.\n")
	writeFile(t, root, "assets/css/site.css", "body {}\n")
	writeFile(t, root, "_layouts/post.html", "<main>{{.Content}}</main>")
	writeFile(t, root, "site.yaml", "title: Test\n")

	loader := NewLoader(testConfig(t), root, Options{Now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)})
	res, err := loader.Load()
	require.NoError(t, err)

	require.Len(t, res.Posts, 2)
	require.Len(t, res.Pages, 1)
	require.Len(t, res.Assets, 1)

	// Newest first.
	assert.Equal(t, "Second", res.Posts[0].Title)
	assert.Equal(t, "First", res.Posts[1].Title)

	first := res.Posts[1]
	assert.Equal(t, CollectionPosts, first.Collection)
	assert.Equal(t, "first", first.Slug)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, []string{"go", "blog"}, first.Tags)
	assert.Equal(t, "post", first.Layout, "collection default applied")
	assert.Equal(t, "Body one.", first.Excerpt)

	assert.Equal(t, "assets/css/site.css", res.Assets[0].RelPath)
	assert.Equal(t, "page", res.Pages[0].Layout, "page front matter overrides nothing but is kept")
}

func TestLoadSkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "about.md", "---\ntitle: About\n---\nAbout me.\n")
	writeFile(t, root, "public/index.html", "<html>built</html>")
	writeFile(t, root, "public/assets/css/site.css", "body {}\n")

	opts := Options{
		Now:          time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		ExcludePaths: []string{filepath.Join(root, "public")},
	}
	res, err := NewLoader(testConfig(t), root, opts).Load()
	require.NoError(t, err)

	require.Len(t, res.Pages, 1)
	assert.Empty(t, res.Assets, "emitted output must not be rediscovered as assets")
}

func TestLoadDraftAndFutureFiltering(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "_posts/2024-01-01-live.md", "---\ntitle: Live\n---\nx\n")
	writeFile(t, root, "_posts/2024-01-02-draft.md", "---\ntitle: Draft\ndraft: true\n---\nx\n")
	writeFile(t, root, "_posts/2030-01-01-future.md", "---\ntitle: Future\n---\nx\n")

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	res, err := NewLoader(testConfig(t), root, Options{Now: now}).Load()
	require.NoError(t, err)
	require.Len(t, res.Posts, 1)
	assert.Equal(t, "Live", res.Posts[0].Title)

	res, err = NewLoader(testConfig(t), root, Options{Now: now, IncludeDrafts: true, IncludeFuture: true}).Load()
	require.NoError(t, err)
	assert.Len(t, res.Posts, 3)
}

func TestLoadInvalidFrontMatterFailsFast(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "_posts/2024-01-01-bad.md", "---\ntitle: [unclosed\n---\nx\n")

	_, err := NewLoader(testConfig(t), root, Options{}).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2024-01-01-bad.md")
}

func TestLoadSkipInvalidExcludesAndReports(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "_posts/2024-01-01-good.md", "---\ntitle: Good\n---\nx\n")
	writeFile(t, root, "_posts/2024-01-02-bad.md", "---\ntitle: [unclosed\n---\nx\n")

	res, err := NewLoader(testConfig(t), root, Options{SkipInvalid: true, Now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}).Load()
	require.NoError(t, err)
	require.Len(t, res.Posts, 1)
	assert.Equal(t, "Good", res.Posts[0].Title)
	require.Len(t, res.Excluded, 1)
	assert.Equal(t, "_posts/2024-01-02-bad.md", res.Excluded[0].SourcePath)
}

func TestLoadBadPostFilename(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "_posts/not-dated.md", "---\ntitle: X\n---\nx\n")

	_, err := NewLoader(testConfig(t), root, Options{}).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestLoadFrontMatterDateOverridesFilename(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "_posts/2024-01-01-x.md", "---\ntitle: X\ndate: 2024-02-15\n---\nx\n")

	res, err := NewLoader(testConfig(t), root, Options{Now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}).Load()
	require.NoError(t, err)
	require.Len(t, res.Posts, 1)
	assert.Equal(t, 2, int(res.Posts[0].Date.Month()))
}

func TestLoadScalarCategoryJoinsList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "_posts/2024-01-01-x.md", "---\ntitle: X\ncategory: integration\ncategories: [azure]\n---\nx\n")

	res, err := NewLoader(testConfig(t), root, Options{Now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}).Load()
	require.NoError(t, err)
	require.Len(t, res.Posts, 1)
	assert.ElementsMatch(t, []string{"azure", "integration"}, res.Posts[0].Categories)
}

func TestExcerptFallsBackToFirstParagraph(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "_posts/2024-01-01-x.md", "---\ntitle: X\n---\n# Heading\n\nThe real excerpt\nspans lines.\n\nSecond paragraph.\n")

	res, err := NewLoader(testConfig(t), root, Options{Now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}).Load()
	require.NoError(t, err)
	require.Len(t, res.Posts, 1)
	assert.Equal(t, "The real excerpt spans lines.", res.Posts[0].Excerpt)
}
