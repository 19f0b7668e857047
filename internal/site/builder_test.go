package site

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milkyware/glacier/internal/config"
	"github.com/milkyware/glacier/internal/metrics"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

func buildSite(t *testing.T, configYAML string, files map[string]string) (*Report, error, string) {
	t.Helper()
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	out := filepath.Join(tmp, "out")
	writeTree(t, src, files)

	cfg, err := config.Parse([]byte(configYAML))
	require.NoError(t, err)

	report, buildErr := NewBuilder(cfg, src, out, Options{}).Build(context.Background())
	return report, buildErr, out
}

func readOutput(t *testing.T, outDir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(outDir, filepath.FromSlash(rel)))
	require.NoError(t, err, "expected output file %s", rel)
	return string(data)
}

const minimalConfig = "title: My Blog\nurl: https://blog.example.com\nskin: mint\n"

func fullSiteFiles() map[string]string {
	return map[string]string{
		"_posts/2024-03-07-first-light.md": `---
title: First Light
tags: [go, beginnings]
categories: [journal]
---
Welcome to {{ site.title }}.

` + "```mermaid\ngraph TD; A-->B;\n```\n",
		"_posts/2024-03-01-older.md": `---
title: Older Entry
tags: [go]
---
An earlier note.
`,
		"about.md": `---
title: About
layout: page
---
All about this site.
`,
		"assets/img/photo.txt": "not really a photo\n",
	}
}

func TestBuildProducesCompleteSite(t *testing.T) {
	report, err, out := buildSite(t, minimalConfig, fullSiteFiles())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, report.Outcome)
	assert.Equal(t, 2, report.Posts)
	assert.Equal(t, 1, report.Pages)

	post := readOutput(t, out, "journal/2024/03/07/first-light/index.html")
	assert.Contains(t, post, "Welcome to My Blog.")
	assert.Contains(t, post, `<div class="mermaid">`)
	assert.Contains(t, post, "graph TD")
	assert.Contains(t, post, `window.glacierSkin = "mint"`)
	assert.Contains(t, post, `class="skin-mint"`)
	assert.Contains(t, post, "/assets/js/diagrams.js")

	index := readOutput(t, out, "posts/index.html")
	assert.Contains(t, index, "First Light")
	assert.Contains(t, index, "Older Entry")

	about := readOutput(t, out, "about/index.html")
	assert.Contains(t, about, "All about this site.")

	// Generated indexes from the default plugin set.
	assert.Contains(t, readOutput(t, out, "tags/go/index.html"), "First Light")
	assert.Contains(t, readOutput(t, out, "tags/beginnings/index.html"), "First Light")
	assert.Contains(t, readOutput(t, out, "categories/journal/index.html"), "First Light")
	assert.Contains(t, readOutput(t, out, "feed.xml"), "https://blog.example.com/journal/2024/03/07/first-light/")

	sitemap := readOutput(t, out, "sitemap.xml")
	assert.Contains(t, sitemap, "https://blog.example.com/about/")
	assert.NotContains(t, sitemap, "feed.xml")

	// Client assets: copied-through plus generator-owned.
	assert.Contains(t, readOutput(t, out, "assets/img/photo.txt"), "not really a photo")
	assert.Contains(t, readOutput(t, out, "assets/js/diagrams.js"), `"mint": "forest"`)
	assert.Contains(t, readOutput(t, out, "assets/css/site.css"), "skin-dark")

	// Report is persisted beside the output, never inside it.
	_, statErr := os.Stat(out + ".report.json")
	assert.NoError(t, statErr)
}

func TestBuildTagArchiveMembership(t *testing.T) {
	_, err, out := buildSite(t, minimalConfig, fullSiteFiles())
	require.NoError(t, err)

	// A post with N tags appears in exactly its N tag archives.
	goArchive := readOutput(t, out, "tags/go/index.html")
	assert.Contains(t, goArchive, "First Light")
	assert.Contains(t, goArchive, "Older Entry")

	beginnings := readOutput(t, out, "tags/beginnings/index.html")
	assert.Contains(t, beginnings, "First Light")
	assert.NotContains(t, beginnings, "Older Entry")
}

func TestBuildRebuildIsByteIdentical(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	out := filepath.Join(tmp, "out")
	writeTree(t, src, fullSiteFiles())

	cfg, err := config.Parse([]byte(minimalConfig))
	require.NoError(t, err)

	_, err = NewBuilder(cfg, src, out, Options{}).Build(context.Background())
	require.NoError(t, err)
	first := snapshotTree(t, out)

	_, err = NewBuilder(cfg, src, out, Options{}).Build(context.Background())
	require.NoError(t, err)
	second := snapshotTree(t, out)

	require.Equal(t, first, second)
}

func snapshotTree(t *testing.T, root string) map[string]string {
	t.Helper()
	tree := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		tree[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return tree
}

func TestBuildPaginatesTwelvePosts(t *testing.T) {
	files := map[string]string{}
	for i := 1; i <= 12; i++ {
		files[fmt.Sprintf("_posts/2024-01-%02d-entry.md", i)] = "---\ntitle: Entry\n---\nBody.\n"
	}

	_, err, out := buildSite(t, minimalConfig, files)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(out, "posts/index.html"))
	assert.FileExists(t, filepath.Join(out, "posts/page/2/index.html"))
	assert.FileExists(t, filepath.Join(out, "posts/page/3/index.html"))
	assert.NoFileExists(t, filepath.Join(out, "posts/page/4/index.html"))

	// Explicit page-1 address redirects to the canonical root.
	stub := readOutput(t, out, "posts/page/1/index.html")
	assert.Contains(t, stub, `http-equiv="refresh"`)
	assert.Contains(t, stub, "url=/posts/")
}

func TestBuildRawRegionPassesThrough(t *testing.T) {
	files := map[string]string{
		"_posts/2024-04-01-tokens.md": `---
title: Tokens
---
Literal: {% raw %}{{ site.title }}{% endraw %}
`,
	}
	_, err, out := buildSite(t, minimalConfig, files)
	require.NoError(t, err)

	post := readOutput(t, out, "2024/04/01/tokens/index.html")
	assert.Contains(t, post, "{{ site.title }}")
	assert.NotContains(t, post, "raw %}")
}

func TestBuildUnresolvedTokenFails(t *testing.T) {
	files := map[string]string{
		"_posts/2024-04-01-bad.md": "---\ntitle: Bad\n---\nOops {{ site.nonexistent }}.\n",
	}
	report, err, out := buildSite(t, minimalConfig, files)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, report.Outcome)

	// The failed build must leave no servable output behind.
	assert.NoDirExists(t, out)
	assert.NoDirExists(t, out+"_stage")
}

func TestBuildSkipInvalidExcludesAndContinues(t *testing.T) {
	files := map[string]string{
		"_posts/2024-04-01-bad.md":  "---\ntitle: Bad\n---\nOops {{ site.nonexistent }}.\n",
		"_posts/2024-04-02-good.md": "---\ntitle: Good\n---\nFine.\n",
	}
	cfgYAML := minimalConfig + "build:\n  skip_invalid: true\n"

	report, err, out := buildSite(t, cfgYAML, files)
	require.NoError(t, err)
	assert.Equal(t, OutcomePartial, report.Outcome)
	assert.Equal(t, 1, report.Posts)
	assert.Equal(t, 1, report.Excluded)

	assert.FileExists(t, filepath.Join(out, "2024/04/02/good/index.html"))
	assert.NoDirExists(t, filepath.Join(out, "2024/04/01/bad"))
}

func TestBuildCollisionAbortsNamingBothSources(t *testing.T) {
	files := map[string]string{
		"_posts/2024-01-02-hello.md":       "---\ntitle: A\n---\nOne.\n",
		"_posts/2024-01-02-hello.markdown": "---\ntitle: B\n---\nTwo.\n",
	}
	report, err, out := buildSite(t, minimalConfig, files)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Contains(t, err.Error(), "_posts/2024-01-02-hello.md")
	assert.Contains(t, err.Error(), "_posts/2024-01-02-hello.markdown")

	// Atomicity: the staged partial output is discarded, nothing published.
	assert.NoDirExists(t, out)
	assert.NoDirExists(t, out+"_stage")
}

func TestBuildCollisionPreservesPreviousOutput(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	out := filepath.Join(tmp, "out")
	writeTree(t, src, map[string]string{
		"_posts/2024-01-02-hello.md": "---\ntitle: A\n---\nOne.\n",
	})

	cfg, err := config.Parse([]byte(minimalConfig))
	require.NoError(t, err)
	_, err = NewBuilder(cfg, src, out, Options{}).Build(context.Background())
	require.NoError(t, err)
	before := snapshotTree(t, out)

	// Introduce a collision and rebuild; the published site must survive.
	writeTree(t, src, map[string]string{
		"_posts/2024-01-02-hello.markdown": "---\ntitle: B\n---\nTwo.\n",
	})
	_, err = NewBuilder(cfg, src, out, Options{}).Build(context.Background())
	require.Error(t, err)
	require.Equal(t, before, snapshotTree(t, out))
}

func TestBuildCompressHTML(t *testing.T) {
	files := map[string]string{
		"_posts/2024-04-01-squeeze.md": "---\ntitle: Squeeze\n---\nSome    text.\n",
	}
	cfgYAML := minimalConfig + "build:\n  compress_html: true\n"

	_, err, out := buildSite(t, cfgYAML, files)
	require.NoError(t, err)

	post := readOutput(t, out, "2024/04/01/squeeze/index.html")
	assert.NotContains(t, post, "\n\n")
	assert.Contains(t, post, "Some text.")
}

func TestBuildCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	out := filepath.Join(tmp, "out")
	writeTree(t, src, fullSiteFiles())

	cfg, err := config.Parse([]byte(minimalConfig))
	require.NoError(t, err)

	report, buildErr := NewBuilder(cfg, src, out, Options{}).Build(ctx)
	require.Error(t, buildErr)
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.NoDirExists(t, out)
}

func TestBuildCacheSkipsUnchangedRebuild(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	out := filepath.Join(tmp, "out")
	writeTree(t, src, fullSiteFiles())

	cfgYAML := minimalConfig + "build:\n  cache: true\n"
	cfg, err := config.Parse([]byte(cfgYAML))
	require.NoError(t, err)

	first, err := NewBuilder(cfg, src, out, Options{}).Build(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Unchanged)

	second, err := NewBuilder(cfg, src, out, Options{}).Build(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Unchanged)

	// Touching a source file invalidates the snapshot.
	writeTree(t, src, map[string]string{"about.md": "---\ntitle: About\n---\nChanged.\n"})
	third, err := NewBuilder(cfg, src, out, Options{}).Build(context.Background())
	require.NoError(t, err)
	assert.False(t, third.Unchanged)
}

// spyRecorder counts metrics calls for assertions.
type spyRecorder struct {
	durations int
	outcomes  []metrics.OutcomeLabel
	pages     int
}

func (r *spyRecorder) ObserveBuildDuration(time.Duration) { r.durations++ }
func (r *spyRecorder) IncBuildOutcome(o metrics.OutcomeLabel) {
	r.outcomes = append(r.outcomes, o)
}
func (r *spyRecorder) AddPagesRendered(n int) { r.pages += n }
func (r *spyRecorder) IncWatchRebuild()       {}

func TestBuildCachedSkipRecordsMetrics(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	out := filepath.Join(tmp, "out")
	writeTree(t, src, fullSiteFiles())

	cfg, err := config.Parse([]byte(minimalConfig + "build:\n  cache: true\n"))
	require.NoError(t, err)

	first, err := NewBuilder(cfg, src, out, Options{}).Build(context.Background())
	require.NoError(t, err)
	require.False(t, first.Unchanged)

	spy := &spyRecorder{}
	second, err := NewBuilder(cfg, src, out, Options{}).SetRecorder(spy).Build(context.Background())
	require.NoError(t, err)
	require.True(t, second.Unchanged)

	assert.Equal(t, 1, spy.durations, "cached build still observes duration")
	assert.Equal(t, []metrics.OutcomeLabel{metrics.OutcomeSuccess}, spy.outcomes)
}

func TestBuildCacheHitsWithOutputInsideSource(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(src, "public")
	writeTree(t, src, fullSiteFiles())

	cfg, err := config.Parse([]byte(minimalConfig + "build:\n  cache: true\n"))
	require.NoError(t, err)

	first, err := NewBuilder(cfg, src, out, Options{}).Build(context.Background())
	require.NoError(t, err)
	require.False(t, first.Unchanged)
	assert.Equal(t, 1, first.Pages, "emitted pages must not be rediscovered")

	second, err := NewBuilder(cfg, src, out, Options{}).Build(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Unchanged, "output written inside the source tree must not invalidate the snapshot")
}
