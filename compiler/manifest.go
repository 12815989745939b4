package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/cppgen"
	"github.com/syssam/cppgen/compiler/build"
	"github.com/syssam/cppgen/compiler/gen"
	"github.com/syssam/cppgen/schema"
)

const (
	// manifestFile records the outputs of the last pass in the cache
	// directory. The descriptor set depends on it.
	manifestFile = "manifest.msgpack"
	// targetManifestFile is used in the target directory when there is no
	// cache directory.
	targetManifestFile = ".cppgen-manifest.msgpack"
)

// manifest lists the packages a pass generated and the packages laid out
// in the descriptor set.
type manifest struct {
	Layout   []string          `msgpack:"layout"`
	Packages []manifestPackage `msgpack:"packages"`
}

type manifestPackage struct {
	Name      string   `msgpack:"name"`
	Schema    string   `msgpack:"schema"`
	Artifacts []string `msgpack:"artifacts"`
}

func manifestPath(cfg *Config) string {
	if cfg.CacheDir != "" {
		return filepath.Join(cfg.CacheDir, manifestFile)
	}
	return filepath.Join(cfg.Target, targetManifestFile)
}

// newManifest returns the manifest of the artifacts of g.
func newManifest(g *gen.Generator, set *schema.Set) *manifest {
	m := &manifest{}
	if l := g.Layout(); l != nil {
		for _, p := range l.Packages() {
			m.Layout = append(m.Layout, p.Name)
		}
	}
	for _, a := range g.Artifacts() {
		if a.Package == "" {
			continue
		}
		i := slices.IndexFunc(m.Packages, func(p manifestPackage) bool { return p.Name == a.Package })
		if i < 0 {
			pkg, _ := set.Package(a.Package)
			m.Packages = append(m.Packages, manifestPackage{Name: a.Package, Schema: pkg.Path})
			i = len(m.Packages) - 1
		}
		m.Packages[i].Artifacts = append(m.Packages[i].Artifacts, a.Path)
	}
	return m
}

// readManifest reads the manifest at path. A missing file is an empty
// manifest; an undecodable one is a CacheError.
func readManifest(path string) (*manifest, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &manifest{}, nil
	}
	if err != nil {
		return nil, cppgen.NewCacheError(path, "read manifest", err)
	}
	m := &manifest{}
	if err := msgpack.Unmarshal(b, m); err != nil {
		return nil, cppgen.NewCacheError(path, "decode manifest", err)
	}
	return m, nil
}

// merge carries over the packages of old that were not generated this
// pass although their schema file still exists, e.g. after a planning
// error, so that their artifacts are removed once the schema is.
func (m *manifest) merge(old *manifest, schemas []string) {
	for _, op := range old.Packages {
		generated := slices.ContainsFunc(m.Packages, func(p manifestPackage) bool {
			return p.Name == op.Name || p.Schema == op.Schema
		})
		if !generated && slices.Contains(schemas, op.Schema) {
			m.Packages = append(m.Packages, op)
		}
	}
}

func (m *manifest) artifacts() []string {
	var paths []string
	for _, p := range m.Packages {
		paths = append(paths, p.Artifacts...)
	}
	return paths
}

// removeStale deletes the artifacts of old that m no longer lists and
// drops their last-known-good times. It returns the removed paths.
func removeStale(target string, old, m *manifest, cache *build.Cache, log zerolog.Logger) ([]string, error) {
	keep := m.artifacts()
	var removed []string
	for _, a := range old.artifacts() {
		if slices.Contains(keep, a) {
			continue
		}
		path := filepath.Join(target, filepath.FromSlash(a))
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove stale artifact: %w", err)
		}
		cache.Forget(path)
		removed = append(removed, a)
		log.Info().Str("target", path).Msg("removed artifact of deleted schema")
	}
	return removed, nil
}

// writeManifest writes m to path when its content changed.
func writeManifest(path string, m *manifest) error {
	b, err := msgpack.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, b) {
		return nil
	}
	if err := build.WriteFile(path, b); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// updateManifest records the outputs of g, removes the artifacts of
// packages whose schema files are gone and returns the manifest path and
// the removed artifacts.
func updateManifest(cfg *Config, g *gen.Generator, set *schema.Set, schemas []string, cache *build.Cache, log zerolog.Logger) (string, []string, error) {
	path := manifestPath(cfg)
	old, err := readManifest(path)
	if err != nil {
		log.Warn().Err(err).Msg("ignore manifest")
		old = &manifest{}
	}
	m := newManifest(g, set)
	m.merge(old, schemas)
	removed, err := removeStale(cfg.Target, old, m, cache, log)
	if err != nil {
		return "", removed, err
	}
	if err := writeManifest(path, m); err != nil {
		return "", removed, err
	}
	return path, removed, nil
}
