package load

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
	"github.com/syssam/cppgen/compiler/build"
	"github.com/syssam/cppgen/internal/logging"
	"github.com/syssam/cppgen/schema"
)

func testLogger(t *testing.T) zerolog.Logger {
	return logging.DefaultConfig(logging.ProfileTest).Logger(zerolog.NewTestWriter(t))
}

// copySchema copies a testdata schema into dir with an old modification
// time.
func copySchema(t *testing.T, dir, name string) string {
	t.Helper()
	src, err := os.ReadFile(filepath.Join("testdata", "acme", name))
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, src, 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	return path
}

func TestLoaderWithoutCache(t *testing.T) {
	l := NewLoader()
	assert.Nil(t, l.Rule("x.yaml"))
	pkgs, err := l.LoadAll(context.Background(), []string{
		filepath.Join("testdata", "acme", "common.yaml"),
		filepath.Join("testdata", "acme", "shop.yaml"),
	})
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.Equal(t, "acme.common", pkgs[0].Name)
	assert.Equal(t, Stats{Parsed: 2}, l.Stats())
}

func TestLoaderCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	path := copySchema(t, dir, "shop.yaml")

	l := NewLoader(WithCache(cacheDir, nil), WithLogger(testLogger(t)))
	pkg, err := l.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, Stats{Parsed: 1}, l.Stats())
	_, err = os.Stat(BlobPath(cacheDir, path))
	require.NoError(t, err, "blob written")

	// A second run decodes the blob without invoking the parser.
	parses := 0
	counting := ParserFunc(func(path string, src []byte) (*schema.Package, error) {
		parses++
		return YAMLParser{}.Parse(path, src)
	})
	l = NewLoader(WithCache(cacheDir, nil), WithParser(counting), WithLogger(testLogger(t)))
	cached, err := l.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 0, parses)
	assert.Equal(t, Stats{Decoded: 1}, l.Stats())
	assert.Equal(t, pkg.Name, cached.Name)
	assert.Equal(t, len(pkg.AllMessages()), len(cached.AllMessages()))
	assert.Same(t, cached.Messages[1], cached.Messages[1].Messages[0].Parent(), "decoded packages are numbered")
	assert.Equal(t, pkg.Messages[0].Fields[1].Options, cached.Messages[0].Fields[1].Options)
	assert.Equal(t, pkg.Pos, cached.Pos)

	// Touching the schema forces a reparse.
	now := time.Now()
	require.NoError(t, os.Chtimes(path, now, now))
	l = NewLoader(WithCache(cacheDir, nil), WithParser(counting))
	_, err = l.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, parses)
}

func TestLoaderCorruptBlob(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	path := copySchema(t, dir, "common.yaml")

	_, err := NewLoader(WithCache(cacheDir, nil)).Load(ctx, path)
	require.NoError(t, err)
	blobPath := BlobPath(cacheDir, path)
	require.NoError(t, os.WriteFile(blobPath, []byte("not msgpack"), 0o644))
	_, err = decodeBlob(blobPath, path)
	require.Error(t, err)
	assert.True(t, cppgen.IsCacheError(err))

	l := NewLoader(WithCache(cacheDir, nil), WithLogger(testLogger(t)))
	pkg, err := l.Load(ctx, path)
	require.NoError(t, err, "a corrupt blob falls back to parsing")
	assert.Equal(t, "acme.common", pkg.Name)
	assert.Equal(t, Stats{Parsed: 1, Corrupt: 1}, l.Stats())

	_, err = decodeBlob(blobPath, path)
	require.NoError(t, err, "the blob is rewritten")
}

func TestLoaderBlobOfOtherPath(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	path := copySchema(t, dir, "common.yaml")
	_, err := NewLoader(WithCache(cacheDir, nil)).Load(context.Background(), path)
	require.NoError(t, err)
	_, err = decodeBlob(BlobPath(cacheDir, path), filepath.Join(dir, "other.yaml"))
	require.Error(t, err)
	assert.True(t, cppgen.IsCacheError(err))
}

func TestLoaderErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("messages: []\n"), 0o644))
	good := copySchema(t, dir, "common.yaml")

	c, err := build.OpenCache(context.Background(), nil, testLogger(t))
	require.NoError(t, err)
	l := NewLoader(WithCache(filepath.Join(dir, "cache"), c))
	pkgs, err := l.LoadAll(context.Background(), []string{bad, good})
	require.Error(t, err)
	assert.True(t, cppgen.IsConfigurationError(err))
	require.Len(t, pkgs, 1)
	assert.Equal(t, "acme.common", pkgs[0].Name)
	_, err = os.Stat(BlobPath(filepath.Join(dir, "cache"), bad))
	assert.True(t, os.IsNotExist(err), "no blob for a failing schema")
}
