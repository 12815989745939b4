package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cppgen"
	"github.com/syssam/cppgen/compiler/build"
	"github.com/syssam/cppgen/compiler/options"
	"github.com/syssam/cppgen/internal/logging"
)

const (
	commonSchema = `package: acme.common
messages:
  - name: Money
    fields:
      - {name: units, type: int64, label: required, number: 1}
`
	shopSchema = `package: acme.shop
imports: [acme.common]
messages:
  - name: First
    fields:
      - {name: a, type: int32, label: required, number: 1}
      - {name: b, type: Second, label: optional, number: 2}
  - name: Second
    fields:
      - {name: first, type: First, label: optional, number: 1}
      - {name: total, type: acme.common.Money, label: required, number: 2}
services:
  - name: Checkout
    options: {class_name: CheckoutService}
    commands:
      - {name: Place, id: 1, request: First, response: Second}
`
	brokenSchema = `package: acme.broken
messages:
  - name: Bad
    fields:
      - {name: n, type: int32, number: 1, options: {datatype: cow_string}}
`
)

type workspace struct {
	dir     string
	schemas string
	out     string
	cache   string
}

func newWorkspace(t *testing.T, files map[string]string) *workspace {
	t.Helper()
	dir := t.TempDir()
	w := &workspace{
		dir:     dir,
		schemas: filepath.Join(dir, "schemas"),
		out:     filepath.Join(dir, "out"),
		cache:   filepath.Join(dir, ".cppgen"),
	}
	past := time.Now().Add(-time.Hour)
	for name, src := range files {
		w.write(t, name, src, past)
	}
	return w
}

func (w *workspace) write(t *testing.T, name, src string, at time.Time) {
	t.Helper()
	path := filepath.Join(w.schemas, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	require.NoError(t, os.Chtimes(path, at, at))
}

func (w *workspace) config(t *testing.T) *Config {
	return &Config{
		Roots:    []string{w.schemas},
		Target:   w.out,
		CacheDir: w.cache,
		Logger:   logging.DefaultConfig(logging.ProfileTest).Logger(zerolog.NewTestWriter(t)),
	}
}

func (w *workspace) read(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(w.out, name))
	require.NoError(t, err)
	return string(b)
}

func outcome(t *testing.T, s *build.Summary, target string) build.Outcome {
	t.Helper()
	for _, o := range s.Outcomes {
		if o.Target == target {
			return o
		}
	}
	t.Fatalf("no outcome for %s", target)
	return build.Outcome{}
}

var artifacts = []string{
	"acme/common.cc",
	"acme/common.h",
	"acme/shop.cc",
	"acme/shop.h",
	"descriptor_set.cc",
	"descriptor_set.h",
}

func TestGenerateIdempotent(t *testing.T) {
	ctx := context.Background()
	w := newWorkspace(t, map[string]string{"acme/common.yaml": commonSchema, "acme/shop.yaml": shopSchema})

	res, err := Generate(ctx, w.config(t))
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, 2, res.Packages)
	assert.Equal(t, build.ExitWritten, res.ExitCode())
	assert.Equal(t, len(artifacts), res.Summary.Count(build.Written))
	first := make(map[string]string)
	for _, name := range artifacts {
		first[name] = w.read(t, name)
	}
	assert.Contains(t, first["acme/shop.h"], "struct CheckoutService {")
	assert.Contains(t, first["acme/shop.h"], `#include "acme/common.h"`)

	res, err = Generate(ctx, w.config(t))
	require.NoError(t, err)
	assert.Equal(t, build.ExitClean, res.ExitCode())
	assert.Equal(t, len(artifacts), res.Summary.Count(build.Fresh))

	// A touched schema renders the same bytes and writes nothing.
	w.write(t, "acme/shop.yaml", shopSchema, time.Now().Add(time.Minute))
	res, err = Generate(ctx, w.config(t))
	require.NoError(t, err)
	assert.Equal(t, build.ExitClean, res.ExitCode())
	assert.Zero(t, res.Summary.Count(build.Written))
	assert.Equal(t, build.Unchanged, outcome(t, res.Summary, filepath.Join(w.out, "acme", "shop.h")).Result)
	assert.Equal(t, build.Fresh, outcome(t, res.Summary, filepath.Join(w.out, "acme", "common.h")).Result)
	for _, name := range artifacts {
		assert.Equal(t, first[name], w.read(t, name), name)
	}

	// A changed schema rewrites its own artifacts and the descriptor set.
	changed := shopSchema + "enums:\n  - name: Color\n    values: [{name: RED, number: 0}]\n"
	w.write(t, "acme/shop.yaml", changed, time.Now().Add(2*time.Minute))
	res, err = Generate(ctx, w.config(t))
	require.NoError(t, err)
	assert.Equal(t, build.ExitWritten, res.ExitCode())
	assert.Equal(t, build.Written, outcome(t, res.Summary, filepath.Join(w.out, "acme", "shop.h")).Result)
	assert.Equal(t, build.Fresh, outcome(t, res.Summary, filepath.Join(w.out, "acme", "common.h")).Result)
	assert.Contains(t, w.read(t, "acme/shop.h"), "enum class Color : int32_t {")
}

func TestGenerateWithoutCache(t *testing.T) {
	w := newWorkspace(t, map[string]string{"acme/common.yaml": commonSchema, "acme/shop.yaml": shopSchema})
	cfg := w.config(t)
	cfg.CacheDir = ""
	cfg.Workers = 4
	res, err := Generate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, build.ExitWritten, res.ExitCode())
	_, err = os.Stat(w.cache)
	assert.True(t, os.IsNotExist(err))

	res, err = Generate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, build.ExitClean, res.ExitCode())
}

func TestGenerateRemovedSchema(t *testing.T) {
	for _, cached := range []bool{true, false} {
		t.Run(fmt.Sprintf("cached=%t", cached), func(t *testing.T) {
			ctx := context.Background()
			w := newWorkspace(t, map[string]string{"acme/common.yaml": commonSchema, "acme/shop.yaml": shopSchema})
			cfg := w.config(t)
			if !cached {
				cfg.CacheDir = ""
			}
			res, err := Generate(ctx, cfg)
			require.NoError(t, err)
			require.Equal(t, build.ExitWritten, res.ExitCode())
			require.Contains(t, w.read(t, "descriptor_set.h"), "kAcmeShopBase")

			require.NoError(t, os.Remove(filepath.Join(w.schemas, "acme", "shop.yaml")))
			res, err = Generate(ctx, cfg)
			require.NoError(t, err)
			require.NoError(t, res.Err())
			assert.Equal(t, build.ExitWritten, res.ExitCode())
			assert.Equal(t, []string{"acme/shop.cc", "acme/shop.h"}, res.Removed)
			for _, name := range res.Removed {
				_, err := os.Stat(filepath.Join(w.out, filepath.FromSlash(name)))
				assert.True(t, os.IsNotExist(err), name)
			}
			assert.Equal(t, build.Written, outcome(t, res.Summary, filepath.Join(w.out, "descriptor_set.h")).Result)
			assert.Equal(t, build.Written, outcome(t, res.Summary, filepath.Join(w.out, "descriptor_set.cc")).Result)
			assert.Equal(t, build.Fresh, outcome(t, res.Summary, filepath.Join(w.out, "acme", "common.h")).Result)
			dh, dc := w.read(t, "descriptor_set.h"), w.read(t, "descriptor_set.cc")
			assert.NotContains(t, dh, "kAcmeShopBase")
			assert.Contains(t, dh, "kMessageCount = 1,")
			assert.NotContains(t, dc, `#include "acme/shop.h"`)
			assert.NotContains(t, dc, "::acme::shop::")

			res, err = Generate(ctx, cfg)
			require.NoError(t, err)
			assert.Equal(t, build.ExitClean, res.ExitCode())
			assert.Empty(t, res.Removed)
		})
	}
}

func TestGenerateKeepsArtifactsOfFailedPackage(t *testing.T) {
	ctx := context.Background()
	w := newWorkspace(t, map[string]string{"acme/common.yaml": commonSchema, "acme/shop.yaml": shopSchema})
	_, err := Generate(ctx, w.config(t))
	require.NoError(t, err)

	// A planning error keeps the last good output of the package.
	w.write(t, "acme/shop.yaml", brokenSchema, time.Now().Add(time.Minute))
	res, err := Generate(ctx, w.config(t))
	require.NoError(t, err)
	assert.Equal(t, build.ExitFailed, res.ExitCode())
	assert.Empty(t, res.Removed)
	assert.Contains(t, w.read(t, "acme/shop.h"), "class First {")

	// Once the schema is gone, so are its artifacts.
	require.NoError(t, os.Remove(filepath.Join(w.schemas, "acme", "shop.yaml")))
	res, err = Generate(ctx, w.config(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/shop.cc", "acme/shop.h"}, res.Removed)
}

func TestGeneratePlanningError(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"acme/common.yaml": commonSchema,
		"acme/broken.yaml": brokenSchema,
	})
	res, err := Generate(context.Background(), w.config(t))
	require.NoError(t, err)
	assert.Equal(t, build.ExitFailed, res.ExitCode())
	require.Error(t, res.Err())
	assert.True(t, cppgen.IsPlanningError(res.Err()))

	_, err = os.Stat(filepath.Join(w.out, "acme", "common.h"))
	require.NoError(t, err, "other packages are generated")
	_, err = os.Stat(filepath.Join(w.out, "acme", "broken.h"))
	assert.True(t, os.IsNotExist(err))
	assert.NotContains(t, w.read(t, "descriptor_set.cc"), "Bad")
}

func TestGenerateLoadError(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"acme/common.yaml": commonSchema,
		"acme/bad.yaml":    "messages: [\n",
	})
	res, err := Generate(context.Background(), w.config(t))
	require.NoError(t, err)
	assert.Equal(t, build.ExitFailed, res.ExitCode())
	assert.True(t, cppgen.IsConfigurationError(res.Err()))
	assert.Equal(t, 1, res.Packages)
}

func TestGenerateFeatureChange(t *testing.T) {
	ctx := context.Background()
	w := newWorkspace(t, map[string]string{"acme/common.yaml": commonSchema, "acme/shop.yaml": shopSchema})
	res, err := Generate(ctx, w.config(t))
	require.NoError(t, err)
	require.Equal(t, build.ExitWritten, res.ExitCode())

	cfg := w.config(t)
	cfg.Features = map[string]bool{"reflection": false}
	res, err = Generate(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, build.ExitWritten, res.ExitCode(), "a new setting regenerates")
	assert.NotContains(t, w.read(t, "acme/shop.h"), "GetMessageDescriptor")
	assert.NotContains(t, w.read(t, "acme/shop.h"), "CheckoutService")
	_, err = os.Stat(filepath.Join(w.out, "descriptor_set.h"))
	assert.True(t, os.IsNotExist(err), "descriptor set removed")
}

func TestGenerateOptions(t *testing.T) {
	w := newWorkspace(t, map[string]string{"acme/common.yaml": commonSchema})
	path := filepath.Join(w.dir, "cppgen.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache_backend = "sqlite"
workers = 2

[features]
separate-inlines = true

[packages."acme.common"]
namespace = "money"
`), 0o644))
	cfg := w.config(t)
	cfg.OptionsFile = path
	res, err := Generate(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	h := w.read(t, "acme/common.h")
	assert.Contains(t, h, "namespace money {")
	assert.Contains(t, h, "inline int64_t Money::GetUnits() const {")
	_, err = os.Stat(filepath.Join(w.cache, "mtimes.db"))
	require.NoError(t, err, "sqlite snapshot store")

	_, err = Generate(context.Background(), &Config{Roots: []string{w.schemas}, Target: w.out, OptionsFile: filepath.Join(w.dir, "missing.toml")})
	require.Error(t, err)

	_, err = Generate(context.Background(), &Config{Roots: []string{w.schemas}, Target: w.out, Options: &options.Config{Features: map[string]bool{"holograms": true}}})
	require.Error(t, err)
	assert.True(t, cppgen.IsConfigurationError(err))
}

func TestClean(t *testing.T) {
	w := newWorkspace(t, map[string]string{"acme/common.yaml": commonSchema})
	_, err := Generate(context.Background(), w.config(t))
	require.NoError(t, err)
	_, err = os.Stat(w.cache)
	require.NoError(t, err)
	require.NoError(t, Clean(w.cache))
	_, err = os.Stat(w.cache)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, Clean(""))
}
