package build

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/syssam/cppgen"
)

// snapshotVersion is the format version of persisted snapshots. A
// snapshot of another version is discarded.
const snapshotVersion = 1

// Cache backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Snapshot is the persisted modification-time state of a build.
type Snapshot struct {
	Version int `msgpack:"version"`
	// RunID identifies the run that saved the snapshot.
	RunID string `msgpack:"run_id"`
	// Good maps a target path to its last-known-good time in Unix
	// nanoseconds.
	Good map[string]int64 `msgpack:"good"`
}

// Store loads and saves snapshots.
type Store interface {
	// Load returns the saved snapshot, or an empty one if none was saved.
	// An unreadable snapshot is a CacheError.
	Load(ctx context.Context) (*Snapshot, error)
	// Save replaces the saved snapshot.
	Save(ctx context.Context, s *Snapshot) error
	Close() error
}

// OpenStore opens the snapshot store of backend in dir. An empty backend
// is BackendFile.
func OpenStore(ctx context.Context, dir, backend string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(filepath.Join(dir, "mtimes.msgpack")), nil
	case BackendSQLite:
		return OpenSQLiteStore(ctx, filepath.Join(dir, "mtimes.db"))
	default:
		return nil, cppgen.NewConfigurationError("config", "cache_backend", fmt.Sprintf("unknown cache backend %q", backend))
	}
}

// Cache holds the last-known-good times of the targets of one run. The
// zero value is not usable; a nil *Cache records nothing.
type Cache struct {
	mu    sync.Mutex
	store Store
	good  map[string]int64
	prev  string
	run   uuid.UUID
	dirty bool
	log   zerolog.Logger
}

// OpenCache loads the snapshot of store. A corrupt snapshot is logged and
// the cache starts empty. A nil store gives a cache that is never saved.
func OpenCache(ctx context.Context, store Store, log zerolog.Logger) (*Cache, error) {
	c := &Cache{
		store: store,
		good:  make(map[string]int64),
		run:   uuid.New(),
		log:   log,
	}
	if store == nil {
		return c, nil
	}
	s, err := store.Load(ctx)
	switch {
	case cppgen.IsCacheError(err):
		log.Warn().Err(err).Msg("discard modification-time snapshot")
		c.dirty = true
		return c, nil
	case err != nil:
		return nil, err
	case s.Version != snapshotVersion && len(s.Good) > 0:
		log.Warn().Int("version", s.Version).Msg("discard snapshot of another format version")
		c.dirty = true
		return c, nil
	}
	c.prev = s.RunID
	for k, v := range s.Good {
		c.good[k] = v
	}
	log.Debug().Str("run", c.run.String()).Str("previous", c.prev).Int("targets", len(c.good)).Msg("cache opened")
	return c, nil
}

// RunID returns the id of the current run.
func (c *Cache) RunID() uuid.UUID {
	if c == nil {
		return uuid.Nil
	}
	return c.run
}

// PreviousRunID returns the id of the run that saved the loaded snapshot,
// or "" if there was none.
func (c *Cache) PreviousRunID() string {
	if c == nil {
		return ""
	}
	return c.prev
}

// Good returns the last-known-good time of target, or the zero time.
func (c *Cache) Good(target string) time.Time {
	if c == nil {
		return time.Time{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ns, ok := c.good[target]
	if !ok {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// SetGood advances the last-known-good time of target to t. An earlier
// time is ignored.
func (c *Cache) SetGood(target string, t time.Time) {
	if c == nil || t.IsZero() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ns := t.UnixNano(); ns > c.good[target] {
		c.good[target] = ns
		c.dirty = true
	}
}

// Forget drops the last-known-good time of target.
func (c *Cache) Forget(target string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.good[target]; ok {
		delete(c.good, target)
		c.dirty = true
	}
}

// Snapshot returns a copy of the current state.
func (c *Cache) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &Snapshot{Version: snapshotVersion, RunID: c.run.String(), Good: make(map[string]int64, len(c.good))}
	for k, v := range c.good {
		s.Good[k] = v
	}
	return s
}

// Close saves the state to the store and closes it. The snapshot is
// saved on every run so that it records the id of the last run.
func (c *Cache) Close(ctx context.Context) error {
	if c == nil || c.store == nil {
		return nil
	}
	err := c.store.Save(ctx, c.Snapshot())
	if cerr := c.store.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		c.log.Debug().Str("run", c.run.String()).Bool("changed", c.dirty).Msg("cache saved")
	}
	return err
}
