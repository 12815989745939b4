package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cppgen"
	"github.com/syssam/cppgen/internal/logging"
)

func testLogger(t *testing.T) zerolog.Logger {
	return logging.DefaultConfig(logging.ProfileTest).Logger(zerolog.NewTestWriter(t))
}

func TestCacheGood(t *testing.T) {
	c := newCache(t)
	assert.True(t, c.Good("a.h").IsZero())
	c.SetGood("a.h", base)
	c.SetGood("a.h", base.Add(-time.Hour))
	assert.True(t, c.Good("a.h").Equal(base), "earlier times are ignored")
	c.SetGood("a.h", base.Add(time.Hour))
	assert.True(t, c.Good("a.h").Equal(base.Add(time.Hour)))
	c.Forget("a.h")
	assert.True(t, c.Good("a.h").IsZero())

	var nilCache *Cache
	nilCache.SetGood("a.h", base)
	assert.True(t, nilCache.Good("a.h").IsZero())
	assert.NoError(t, nilCache.Close(context.Background()))
}

func TestStores(t *testing.T) {
	for _, backend := range []string{BackendFile, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()

			store, err := OpenStore(ctx, dir, backend)
			require.NoError(t, err)
			c, err := OpenCache(ctx, store, testLogger(t))
			require.NoError(t, err)
			assert.Empty(t, c.PreviousRunID())
			c.SetGood("out/acme/shop.h", base)
			first := c.RunID()
			require.NoError(t, c.Close(ctx))

			store, err = OpenStore(ctx, dir, backend)
			require.NoError(t, err)
			c, err = OpenCache(ctx, store, testLogger(t))
			require.NoError(t, err)
			assert.Equal(t, first.String(), c.PreviousRunID())
			assert.NotEqual(t, first, c.RunID())
			assert.True(t, c.Good("out/acme/shop.h").Equal(base))
			require.NoError(t, c.Close(ctx))
		})
	}
}

func TestSQLiteStoreMerges(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mtimes.db")
	store, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(ctx, &Snapshot{Version: snapshotVersion, RunID: "one", Good: map[string]int64{"a.h": 20, "b.h": 5}}))
	require.NoError(t, store.Save(ctx, &Snapshot{Version: snapshotVersion, RunID: "two", Good: map[string]int64{"a.h": 10, "b.h": 30}}))
	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", snap.RunID)
	assert.Equal(t, map[string]int64{"a.h": 20, "b.h": 30}, snap.Good)
}

func TestCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "mtimes.msgpack")
	require.NoError(t, os.WriteFile(path, []byte{0xc1, 0x00, 0xff}, 0o644))

	store := NewFileStore(path)
	_, err := store.Load(ctx)
	require.Error(t, err)
	assert.True(t, cppgen.IsCacheError(err))

	c, err := OpenCache(ctx, store, testLogger(t))
	require.NoError(t, err, "a corrupt snapshot is not fatal")
	assert.True(t, c.Good("a.h").IsZero())
	require.NoError(t, c.Close(ctx))

	snap, err := store.Load(ctx)
	require.NoError(t, err, "the snapshot is rewritten")
	assert.Equal(t, c.RunID().String(), snap.RunID)
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	_, err := OpenStore(context.Background(), t.TempDir(), "redis")
	require.Error(t, err)
	assert.True(t, cppgen.IsConfigurationError(err))
}
