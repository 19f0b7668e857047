// Package cache implements the optional build cache: a SQLite file of
// per-source fingerprints used to detect that nothing changed since the
// last successful build. It is purely an acceleration detail — a missing
// or corrupt cache is recreated silently and never affects correctness.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// Snapshot is a fingerprint of the complete build input: every source
// file's content hash plus the configuration hash.
type Snapshot struct {
	Aggregate string
	Files     map[string]string // source-relative path -> content hash
}

// Take fingerprints the source tree. Underscore output/staging dirs and
// dotfiles are excluded the same way content discovery excludes them, and
// excludePaths names further trees and files the build writes rather than
// reads (the output directory and build report when they live inside the
// source tree), so the snapshot covers exactly what the build reads.
// Emitted output feeding back into the fingerprint would make the cache
// permanently miss.
func Take(sourceDir, configHash string, excludePaths ...string) (*Snapshot, error) {
	excluded := map[string]bool{}
	for _, p := range excludePaths {
		if p == "" {
			continue
		}
		if abs, absErr := filepath.Abs(p); absErr == nil {
			excluded[abs] = true
		}
	}

	files := map[string]string{}

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(sourceDir, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		base := filepath.Base(rel)
		if d.IsDir() {
			if abs, absErr := filepath.Abs(path); absErr == nil && excluded[abs] {
				return fs.SkipDir
			}
			if strings.HasPrefix(base, ".") || (strings.HasPrefix(base, "_") && base != "_posts" && base != "_layouts") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(base, ".") {
			return nil
		}
		if abs, absErr := filepath.Abs(path); absErr == nil && excluded[abs] {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		sum := sha256.Sum256(data)
		files[rel] = hex.EncodeToString(sum[:])
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Aggregate hash over sorted path:hash pairs plus the config hash.
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	h.Write([]byte(configHash))
	for _, p := range paths {
		fmt.Fprintf(h, "%s:%s\n", p, files[p])
	}

	return &Snapshot{
		Aggregate: hex.EncodeToString(h.Sum(nil)),
		Files:     files,
	}, nil
}

// Store persists snapshots in a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the cache database. Any failure is reported to
// the caller, who should degrade to an uncached build rather than abort.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS builds (aggregate TEXT NOT NULL PRIMARY KEY)`,
		`CREATE TABLE IF NOT EXISTS files (path TEXT NOT NULL PRIMARY KEY, hash TEXT NOT NULL)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Unchanged reports whether the snapshot matches the last stored build.
func (s *Store) Unchanged(snap *Snapshot) bool {
	var found string
	err := s.db.QueryRow(`SELECT aggregate FROM builds WHERE aggregate = ?`, snap.Aggregate).Scan(&found)
	return err == nil && found == snap.Aggregate
}

// Record replaces the stored build snapshot with snap.
func (s *Store) Record(snap *Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM builds`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO builds (aggregate) VALUES (?)`, snap.Aggregate); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM files`); err != nil {
		return err
	}
	for path, hash := range snap.Files {
		if _, err := tx.Exec(`INSERT INTO files (path, hash) VALUES (?, ?)`, path, hash); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// TryOpen opens the cache, discarding and recreating it when corrupt.
// Returns nil when the cache cannot be used at all; callers treat a nil
// store as "cache disabled".
func TryOpen(path string) *Store {
	store, err := Open(path)
	if err == nil {
		return store
	}
	slog.Warn("Build cache unusable, recreating", "path", path, "error", err)
	if rmErr := os.Remove(path); rmErr != nil {
		return nil
	}
	store, err = Open(path)
	if err != nil {
		return nil
	}
	return store
}
