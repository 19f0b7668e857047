// Package watch rebuilds the site when source files change. File events
// are debounced so an editor save burst triggers a single rebuild. An
// optional periodic rebuild catches time-driven changes that no file
// event announces, such as a future-dated post crossing its publish time.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"github.com/milkyware/glacier/internal/metrics"
)

// DefaultDebounce is the quiet period after the last file event before a
// rebuild starts.
const DefaultDebounce = 500 * time.Millisecond

// RebuildFunc runs one full site build.
type RebuildFunc func(ctx context.Context) error

// Watcher monitors a source tree and triggers rebuilds.
type Watcher struct {
	sourceDir string
	rebuild   RebuildFunc
	debounce  time.Duration
	interval  time.Duration // 0 disables the periodic rebuild
	recorder  metrics.Recorder

	watcher   *fsnotify.Watcher
	scheduler gocron.Scheduler
	trigger   chan struct{}
}

// Config carries the optional knobs for NewWatcher.
type Config struct {
	Debounce time.Duration
	// Interval enables a scheduled rebuild independent of file events.
	// Zero disables it.
	Interval time.Duration
	Recorder metrics.Recorder
}

// NewWatcher creates a watcher over sourceDir. Call Run to start it.
func NewWatcher(sourceDir string, rebuild RebuildFunc, cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to resolve source path: %w", err)
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}

	w := &Watcher{
		sourceDir: abs,
		rebuild:   rebuild,
		debounce:  cfg.Debounce,
		interval:  cfg.Interval,
		recorder:  cfg.Recorder,
		watcher:   fsw,
		trigger:   make(chan struct{}, 1),
	}
	if err := w.addRecursive(abs); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addRecursive watches dir and every content subdirectory below it.
// Special directories the build never reads are not watched.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && ignoredDir(filepath.Base(path)) {
			return fs.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// ignoredDir filters directories whose churn must not trigger rebuilds.
// The content conventions _posts and _layouts are the two underscore
// directories the build does read.
func ignoredDir(base string) bool {
	if base == "_posts" || base == "_layouts" {
		return false
	}
	return strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".")
}

// Run blocks until ctx is canceled, rebuilding on debounced file events
// and, when configured, on the periodic schedule.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if w.interval > 0 {
		s, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		if _, err := s.NewJob(
			gocron.DurationJob(w.interval),
			gocron.NewTask(w.fire),
			gocron.WithName("scheduled-rebuild"),
		); err != nil {
			return fmt.Errorf("failed to schedule periodic rebuild: %w", err)
		}
		w.scheduler = s
		s.Start()
		defer func() {
			if err := s.Shutdown(); err != nil {
				slog.Warn("Failed to shut down scheduler", "error", err)
			}
		}()
	}

	go w.eventLoop(ctx)

	slog.Info("Watching for changes", "source", w.sourceDir, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Watcher stopping")
			return nil
		case <-w.trigger:
			w.recorder.IncWatchRebuild()
			if err := w.rebuild(ctx); err != nil {
				// A broken edit state is normal mid-session; keep
				// watching and let the next save fix it.
				slog.Error("Rebuild failed", "error", err)
			}
		}
	}
}

// eventLoop translates raw file events into debounced triggers.
func (w *Watcher) eventLoop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			// New directories must be picked up for future events.
			if event.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					w.maybeWatchDir(event.Name)
				}
			}
			slog.Debug("Source change detected", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			w.fire()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("File watcher error", "error", err)
		}
	}
}

// fire requests a rebuild; a pending request is not duplicated.
func (w *Watcher) fire() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	rel, err := filepath.Rel(w.sourceDir, event.Name)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if ignoredDir(part) {
			return false
		}
	}
	// Ignore hidden files (editor swap files, the cache database).
	return !strings.HasPrefix(filepath.Base(event.Name), ".")
}

func (w *Watcher) maybeWatchDir(path string) {
	if ignoredDir(filepath.Base(path)) {
		return
	}
	if err := w.watcher.Add(path); err == nil {
		slog.Debug("Watching new directory", "path", path)
	}
}
