package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiet period a Watcher waits for after the last
// event before it triggers a run.
const DefaultDebounce = 200 * time.Millisecond

// Watcher triggers a run when files below its roots change.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	match    func(path string) bool
	log      zerolog.Logger
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets the quiet period after the last event.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithMatch restricts the events that trigger a run to the paths match
// accepts.
func WithMatch(match func(path string) bool) WatchOption {
	return func(w *Watcher) { w.match = match }
}

// WithWatchLogger sets the logger of the watcher.
func WithWatchLogger(l zerolog.Logger) WatchOption {
	return func(w *Watcher) { w.log = l }
}

// NewWatcher watches every directory below roots. Hidden directories are
// not watched.
func NewWatcher(roots []string, opts ...WatchOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fsw:      fsw,
		debounce: DefaultDebounce,
		match:    func(string) bool { return true },
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run calls run after every burst of matching events until ctx is done.
// Errors of run are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context, run func(context.Context) error) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.log.Warn().Err(err).Str("path", ev.Name).Msg("watch new directory")
					}
					continue
				}
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) || !w.match(ev.Name) {
				continue
			}
			w.log.Debug().Str("path", ev.Name).Stringer("op", ev.Op).Msg("change")
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch")
		case <-timer.C:
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.log.Error().Err(err).Msg("rebuild")
			}
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error { return w.fsw.Close() }
