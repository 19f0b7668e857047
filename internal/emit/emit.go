// Package emit writes the assembled site to disk. Builds land in an
// isolated staging directory and are promoted to the final output location
// with a rename swap, so a failed build never leaves a half-written tree
// in a servable state.
package emit

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	gerrors "github.com/milkyware/glacier/internal/errors"
)

// Staging manages the staged output directory for one build.
type Staging struct {
	outputDir string
	stageDir  string
}

// NewStaging prepares a Staging rooted at the final output directory.
func NewStaging(outputDir string) *Staging {
	return &Staging{outputDir: filepath.Clean(outputDir)}
}

// Begin creates the staging directory as a sibling of the output
// directory (<output>_stage).
func (s *Staging) Begin() error {
	stage := s.outputDir + "_stage"
	// A stale stage dir from a crashed build is discarded.
	if err := os.RemoveAll(stage); err != nil {
		return gerrors.Wrap(err, gerrors.CategoryEmit, gerrors.SeverityFatal, "clear stale staging directory")
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return gerrors.Wrap(err, gerrors.CategoryEmit, gerrors.SeverityFatal, "create staging directory")
	}
	s.stageDir = stage
	slog.Debug("Initialized staging directory", "staging", stage, "final", s.outputDir)
	return nil
}

// Dir returns the active staging directory.
func (s *Staging) Dir() string { return s.stageDir }

// WriteFile writes a file at the given output-relative path inside the
// staging directory, creating parent directories as needed.
func (s *Staging) WriteFile(relPath string, data []byte) error {
	if s.stageDir == "" {
		return gerrors.New(gerrors.CategoryEmit, gerrors.SeverityFatal, "staging not initialized")
	}
	dest := filepath.Join(s.stageDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return gerrors.Wrap(err, gerrors.CategoryEmit, gerrors.SeverityFatal,
			fmt.Sprintf("create directory for %s", relPath))
	}
	// #nosec G306 -- emitted site files are public
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return gerrors.Wrap(err, gerrors.CategoryEmit, gerrors.SeverityFatal,
			fmt.Sprintf("write %s", relPath))
	}
	return nil
}

// CopyFile copies a source file byte-for-byte to an output-relative path.
func (s *Staging) CopyFile(srcPath, relPath string) error {
	if s.stageDir == "" {
		return gerrors.New(gerrors.CategoryEmit, gerrors.SeverityFatal, "staging not initialized")
	}
	src, err := os.Open(srcPath)
	if err != nil {
		return gerrors.Wrap(err, gerrors.CategoryEmit, gerrors.SeverityFatal,
			fmt.Sprintf("open asset %s", srcPath))
	}
	defer src.Close()

	dest := filepath.Join(s.stageDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return gerrors.Wrap(err, gerrors.CategoryEmit, gerrors.SeverityFatal,
			fmt.Sprintf("create directory for %s", relPath))
	}
	out, err := os.Create(dest)
	if err != nil {
		return gerrors.Wrap(err, gerrors.CategoryEmit, gerrors.SeverityFatal,
			fmt.Sprintf("create %s", relPath))
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return gerrors.Wrap(err, gerrors.CategoryEmit, gerrors.SeverityFatal,
			fmt.Sprintf("copy %s", relPath))
	}
	return nil
}

// Finalize promotes the staging directory to the final output location:
// the existing output (if any) moves aside to <output>.prev, staging is
// renamed into place, then the backup is removed.
func (s *Staging) Finalize() error {
	if s.stageDir == "" {
		return gerrors.New(gerrors.CategoryEmit, gerrors.SeverityFatal, "no staging directory initialized")
	}
	if _, err := os.Stat(s.stageDir); err != nil {
		return gerrors.Wrap(err, gerrors.CategoryEmit, gerrors.SeverityFatal, "staging directory missing")
	}

	prev := s.outputDir + ".prev"
	if err := os.RemoveAll(prev); err != nil {
		return gerrors.Wrap(err, gerrors.CategoryEmit, gerrors.SeverityFatal, "remove previous backup")
	}
	if _, err := os.Stat(s.outputDir); err == nil {
		if err := os.Rename(s.outputDir, prev); err != nil {
			return gerrors.Wrap(err, gerrors.CategoryEmit, gerrors.SeverityFatal, "backup existing output")
		}
	}
	if err := os.Rename(s.stageDir, s.outputDir); err != nil {
		// Best effort restore of the previous output.
		if _, statErr := os.Stat(prev); statErr == nil {
			_ = os.Rename(prev, s.outputDir)
		}
		return gerrors.Wrap(err, gerrors.CategoryEmit, gerrors.SeverityFatal, "promote staging")
	}
	s.stageDir = ""
	if err := os.RemoveAll(prev); err != nil {
		slog.Warn("Failed to remove previous backup", "path", prev, "error", err)
	}
	slog.Info("Promoted staging directory", "output", s.outputDir)
	return nil
}

// Abort removes the staging directory after a failed build, leaving any
// previously published output untouched.
func (s *Staging) Abort() {
	if s.stageDir == "" {
		return
	}
	dir := s.stageDir
	s.stageDir = "" // prevent double cleanup
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("Failed to remove staging directory after abort", "staging", dir, "error", err)
	} else {
		slog.Debug("Removed staging directory after abort", "staging", dir)
	}
}
