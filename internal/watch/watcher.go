// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce lets an editor's write-then-rename settle into one callback.
const defaultDebounce = 500 * time.Millisecond

// defaultIgnores are base-name patterns for editor swap and backup files
// that sit next to watched files.
var defaultIgnores = []string{
	"*.swp",
	"*.swo",
	"*~",
	".#*",
	"*.tmp",
	".DS_Store",
}

var (
	// ErrNothingToWatch is returned by New when neither Paths nor Dirs is set.
	ErrNothingToWatch = errors.New("watch: no paths or directories to watch")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watch: Run called more than once")
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Paths are files whose changes trigger the callback. Their parent
		// directories are watched so that rename-over-write saves are seen.
		// A path need not exist yet.
		Paths []string

		// Dirs are directories whose entries matching Patterns trigger the
		// callback.
		Dirs []string

		// Patterns are doublestar globs matched against the base name of
		// entries in Dirs ("*.cue"). An empty slice matches every entry.
		Patterns []string

		// Ignore are additional base-name globs merged with the defaults.
		Ignore []string

		// Debounce is the quiet period after the last event before the
		// callback fires. Zero or negative values fall back to defaultDebounce.
		Debounce time.Duration

		// OnChange receives the deduplicated, sorted absolute paths that
		// changed. A nil callback is a no-op.
		OnChange func(ctx context.Context, changed []string) error

		// Logger receives watcher diagnostics. nil means log.Default().
		Logger *log.Logger
	}

	// Watcher monitors files and fires a debounced callback when they
	// change. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		logger   *log.Logger
		ignores  []string
		debounce time.Duration
		files    map[string]struct{}
		dirs     map[string]struct{}
		started  atomic.Bool
	}
)

// New resolves the configured paths, validates the patterns and registers
// the directories with fsnotify.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Paths) == 0 && len(cfg.Dirs) == 0 {
		return nil, ErrNothingToWatch
	}
	if err := validatePatterns(cfg.Patterns, "watch"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	files := make(map[string]struct{}, len(cfg.Paths))
	watchDirs := make(map[string]struct{})
	for _, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %q: %w", p, err)
		}
		files[abs] = struct{}{}
		watchDirs[filepath.Dir(abs)] = struct{}{}
	}
	patternDirs := make(map[string]struct{}, len(cfg.Dirs))
	for _, d := range cfg.Dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %q: %w", d, err)
		}
		patternDirs[abs] = struct{}{}
		watchDirs[abs] = struct{}{}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	ignores := make([]string, 0, len(defaultIgnores)+len(cfg.Ignore))
	ignores = append(ignores, defaultIgnores...)
	ignores = append(ignores, cfg.Ignore...)

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		logger:   logger,
		ignores:  ignores,
		debounce: debounce,
		files:    files,
		dirs:     patternDirs,
	}

	for _, dir := range slices.Sorted(maps.Keys(watchDirs)) {
		if addErr := fsw.Add(dir); addErr != nil {
			if closeErr := fsw.Close(); closeErr != nil {
				logger.Warn("watch: close after init failure", "error", closeErr)
			}
			return nil, fmt.Errorf("watch: add directory %q: %w", dir, addErr)
		}
	}

	return w, nil
}

// WatchList returns the directories registered with fsnotify.
func (w *Watcher) WatchList() []string {
	list := w.fsw.WatchList()
	slices.Sort(list)
	return list
}

// Run blocks until ctx is cancelled, processing filesystem events and
// dispatching debounced callbacks. It returns nil on cancellation and
// propagates fatal watcher errors.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire may be scheduled by time.AfterFunc after ctx is cancelled; the
	// callback also receives ctx. At most one callback runs at a time.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("watch: callback still running, retrying later")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("watch: callback failed", "error", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		localTimer := timer
		mu.Unlock()
		if localTimer != nil {
			localTimer.Stop()
		}
		if closeErr := w.fsw.Close(); closeErr != nil {
			w.logger.Warn("watch: close fsnotify", "error", closeErr)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
				continue
			}

			path := filepath.Clean(evt.Name)
			if !w.relevant(path) {
				continue
			}

			mu.Lock()
			pending[path] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			// isFatalFsnotifyError is platform-specific (see watcher_fatal_*.go).
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("watch: fsnotify error", "error", err)
		}
	}
}

// relevant reports whether an event on path should schedule the callback.
func (w *Watcher) relevant(path string) bool {
	base := filepath.Base(path)
	if isIgnored(w.ignores, base) {
		return false
	}
	if _, ok := w.files[path]; ok {
		return true
	}
	if _, ok := w.dirs[filepath.Dir(path)]; ok {
		return matchesPatterns(w.cfg.Patterns, base)
	}
	return false
}

func isIgnored(patterns []string, base string) bool {
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, base); err == nil && matched {
			return true
		}
	}
	return false
}

func matchesPatterns(patterns []string, base string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, base); err == nil && matched {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

// validatePatterns checks that every pattern is a valid doublestar glob.
func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if pat == "" || !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q", label, pat)
		}
	}
	return nil
}
