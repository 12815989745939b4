package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func touch(t *testing.T, path string, at time.Time) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(filepath.Base(path)), 0o644))
	}
	require.NoError(t, os.Chtimes(path, at, at))
}

func mtime(t *testing.T, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.ModTime()
}

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache(context.Background(), nil, testLogger(t))
	require.NoError(t, err)
	return c
}

func TestNeedsUpdate(t *testing.T) {
	dir := t.TempDir()
	dep := filepath.Join(dir, "shop.yaml")
	target := filepath.Join(dir, "out", "shop.h")
	touch(t, dep, base)
	r := &Rule{Target: target, Deps: []Dep{FileDep(dep)}, Cache: newCache(t)}

	stale, err := r.NeedsUpdate()
	require.NoError(t, err)
	assert.True(t, stale, "absent target")

	touch(t, target, base.Add(time.Minute))
	stale, err = r.NeedsUpdate()
	require.NoError(t, err)
	assert.False(t, stale, "target newer than dependency")

	touch(t, dep, base.Add(2*time.Minute))
	stale, err = r.NeedsUpdate()
	require.NoError(t, err)
	assert.True(t, stale, "dependency newer than target")

	r.Cache.SetGood(target, base.Add(2*time.Minute))
	stale, err = r.NeedsUpdate()
	require.NoError(t, err)
	assert.False(t, stale, "last-known-good time covers the dependency")

	r.Deps = append(r.Deps, FileDep(filepath.Join(dir, "missing.yaml")))
	stale, err = r.NeedsUpdate()
	require.NoError(t, err)
	assert.True(t, stale, "missing dependency")
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dep := filepath.Join(dir, "shop.yaml")
	target := filepath.Join(dir, "out", "acme", "shop.h")
	touch(t, dep, base)

	var (
		renders int
		content = "class First {};\n"
	)
	r := &Rule{
		Target: target,
		Deps:   []Dep{FileDep(dep)},
		Render: func() ([]byte, error) {
			renders++
			return []byte(content), nil
		},
		Cache: newCache(t),
	}

	res, err := r.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, Written, res)
	b, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, content, string(b))

	res, err = r.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, Fresh, res)
	assert.Equal(t, 1, renders)

	// Same output for a newer dependency: the file keeps its time.
	written := base.Add(time.Hour)
	touch(t, target, written)
	touch(t, dep, base.Add(2*time.Hour))
	res, err = r.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res)
	assert.Equal(t, 2, renders)
	assert.True(t, mtime(t, target).Equal(written))
	assert.True(t, r.Cache.Good(target).Equal(base.Add(2*time.Hour)))

	res, err = r.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, Fresh, res)
	assert.Equal(t, 2, renders)

	content = "class First {};\nclass Second {};\n"
	touch(t, dep, base.Add(3*time.Hour))
	res, err = r.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, Written, res)
	b, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, content, string(b))
}

func TestGenerateRenderError(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "shop.h")
	r := &Rule{
		Target: target,
		Render: func() ([]byte, error) { return nil, assert.AnError },
	}
	_, err := r.Generate(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestRuleDep(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "shop.yaml")
	touch(t, src, base)
	cache := newCache(t)

	blob := &Rule{
		Target: filepath.Join(dir, "cache", "shop.msgpack"),
		Deps:   []Dep{FileDep(src)},
		Render: func() ([]byte, error) { return []byte("blob"), nil },
		Cache:  cache,
	}
	header := &Rule{
		Target: filepath.Join(dir, "out", "shop.h"),
		Deps:   []Dep{RuleDep{blob}},
		Render: func() ([]byte, error) { return []byte("header"), nil },
		Cache:  cache,
	}
	res, err := header.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, Written, res)
	_, err = os.Stat(blob.Target)
	require.NoError(t, err, "nested rule generated first")

	touch(t, blob.Target, base.Add(time.Hour))
	touch(t, header.Target, base.Add(2*time.Hour))
	stale, err := header.NeedsUpdate()
	require.NoError(t, err)
	assert.False(t, stale)

	// A newer nested target makes the depending rule stale.
	touch(t, blob.Target, base.Add(3*time.Hour))
	stale, err = header.NeedsUpdate()
	require.NoError(t, err)
	assert.True(t, stale)
	assert.Equal(t, "rule "+blob.Target, RuleDep{blob}.String())
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "c.h")
	require.NoError(t, WriteFile(path, []byte("one")))
	require.NoError(t, WriteFile(path, []byte("two")))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(b))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files left behind")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "fresh", Fresh.String())
	assert.Equal(t, "written", Written.String())
	assert.Equal(t, "Result(9)", Result(9).String())
}
