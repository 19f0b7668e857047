package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestTakeIsDeterministic(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "_posts/2024-01-01-a.md", "alpha")
	writeSource(t, root, "about.md", "beta")

	s1, err := Take(root, "cfg")
	require.NoError(t, err)
	s2, err := Take(root, "cfg")
	require.NoError(t, err)

	assert.Equal(t, s1.Aggregate, s2.Aggregate)
	assert.Len(t, s1.Files, 2)
}

func TestTakeSensitivity(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "about.md", "beta")

	base, err := Take(root, "cfg")
	require.NoError(t, err)

	// Content change changes the aggregate.
	writeSource(t, root, "about.md", "gamma")
	changed, err := Take(root, "cfg")
	require.NoError(t, err)
	assert.NotEqual(t, base.Aggregate, changed.Aggregate)

	// Config change changes the aggregate too.
	other, err := Take(root, "other-config")
	require.NoError(t, err)
	assert.NotEqual(t, changed.Aggregate, other.Aggregate)
}

func TestTakeSkipsOutputAndHiddenDirs(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "about.md", "beta")
	writeSource(t, root, "_site/index.html", "built output")
	writeSource(t, root, ".git/config", "git")

	snap, err := Take(root, "cfg")
	require.NoError(t, err)
	assert.Len(t, snap.Files, 1)
	_, ok := snap.Files["about.md"]
	assert.True(t, ok)
}

func TestTakeExcludesWriteDirs(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "about.md", "beta")
	writeSource(t, root, "public/index.html", "built output")

	snap, err := Take(root, "cfg", filepath.Join(root, "public"))
	require.NoError(t, err)
	assert.Len(t, snap.Files, 1)
	_, ok := snap.Files["about.md"]
	assert.True(t, ok)

	// A build writing into the excluded tree leaves the aggregate stable.
	writeSource(t, root, "public/posts/index.html", "more output")
	again, err := Take(root, "cfg", filepath.Join(root, "public"))
	require.NoError(t, err)
	assert.Equal(t, snap.Aggregate, again.Aggregate)
}

func TestStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "about.md", "beta")

	snap, err := Take(root, "cfg")
	require.NoError(t, err)

	store, err := Open(filepath.Join(root, "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	assert.False(t, store.Unchanged(snap), "empty cache never matches")
	require.NoError(t, store.Record(snap))
	assert.True(t, store.Unchanged(snap))

	// A different snapshot misses.
	writeSource(t, root, "about.md", "gamma")
	changed, err := Take(root, "cfg")
	require.NoError(t, err)
	assert.False(t, store.Unchanged(changed))

	// Recording the new snapshot supersedes the old one.
	require.NoError(t, store.Record(changed))
	assert.True(t, store.Unchanged(changed))
	assert.False(t, store.Unchanged(snap))
}

func TestTryOpenRecreatesCorruptCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o644))

	store := TryOpen(path)
	if store == nil {
		t.Skip("sqlite driver accepted no recreation path")
	}
	defer store.Close()

	snap := &Snapshot{Aggregate: "abc", Files: map[string]string{}}
	require.NoError(t, store.Record(snap))
	assert.True(t, store.Unchanged(snap))
}
