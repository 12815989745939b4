package load

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/cppgen"
	"github.com/syssam/cppgen/compiler/build"
	"github.com/syssam/cppgen/schema"
)

// blobVersion is the format version of schema blobs. Blobs of another
// version are reparsed.
const blobVersion = 1

// blob is the cached form of one parsed schema file.
type blob struct {
	Version int             `msgpack:"version"`
	Path    string          `msgpack:"path"`
	MTime   int64           `msgpack:"mtime"`
	Package *schema.Package `msgpack:"package"`
}

// Loader parses schema files, through the schema cache when it has a
// cache directory.
type Loader struct {
	parser   Parser
	cacheDir string
	cache    *build.Cache
	log      zerolog.Logger

	mu     sync.Mutex
	rules  map[string]*build.Rule
	parsed map[string]*schema.Package
	stats  Stats
}

// Stats counts how the packages of a loader were obtained.
type Stats struct {
	Parsed  int
	Decoded int
	// Corrupt counts blobs that failed to decode.
	Corrupt int
}

// Option configures a Loader.
type Option func(*Loader)

// WithParser sets the schema parser. The default is YAMLParser.
func WithParser(p Parser) Option {
	return func(l *Loader) { l.parser = p }
}

// WithCache enables the schema cache in dir. The last-known-good times of
// the blobs are kept in c, which may be nil.
func WithCache(dir string, c *build.Cache) Option {
	return func(l *Loader) { l.cacheDir, l.cache = dir, c }
}

// WithLogger sets the logger of the loader.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// NewLoader returns a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		parser: YAMLParser{},
		log:    zerolog.Nop(),
		rules:  make(map[string]*build.Rule),
		parsed: make(map[string]*schema.Package),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Stats returns the counters of the loader.
func (l *Loader) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// BlobPath returns the path of the schema blob of path: the hex SHA-1 of
// the path under <cache>/schemas.
func BlobPath(cacheDir, path string) string {
	sum := sha1.Sum([]byte(path))
	return filepath.Join(cacheDir, "schemas", hex.EncodeToString(sum[:])+".msgpack")
}

// Rule returns the rule guarding the schema blob of path, or nil without
// a cache directory. Artifacts generated from path depend on it.
func (l *Loader) Rule(path string) *build.Rule {
	if l.cacheDir == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rules[path]
	if !ok {
		r = &build.Rule{
			Target: BlobPath(l.cacheDir, path),
			Deps:   []build.Dep{build.FileDep(path)},
			Render: func() ([]byte, error) { return l.render(path) },
			Cache:  l.cache,
		}
		l.rules[path] = r
	}
	return r
}

// render parses path and encodes its blob. The parsed package is kept for
// the Load call that triggered the rule.
func (l *Loader) render(path string) ([]byte, error) {
	pkg, mtime, err := l.parse(path)
	if err != nil {
		return nil, err
	}
	b, err := msgpack.Marshal(&blob{Version: blobVersion, Path: path, MTime: mtime.UnixNano(), Package: pkg})
	if err != nil {
		return nil, fmt.Errorf("load: encode %s: %w", path, err)
	}
	l.mu.Lock()
	l.parsed[path] = pkg
	l.mu.Unlock()
	return b, nil
}

func (l *Loader) parse(path string) (*schema.Package, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load: %w", err)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load: %w", err)
	}
	pkg, err := l.parser.Parse(path, src)
	if err != nil {
		return nil, time.Time{}, err
	}
	l.mu.Lock()
	l.stats.Parsed++
	l.mu.Unlock()
	l.log.Debug().Str("path", path).Str("package", pkg.Name).Msg("parsed schema")
	return pkg, info.ModTime(), nil
}

// Load returns the package of the schema file at path. With a cache, a
// fresh blob is decoded instead of parsing the file.
func (l *Loader) Load(ctx context.Context, path string) (*schema.Package, error) {
	r := l.Rule(path)
	if r == nil {
		pkg, _, err := l.parse(path)
		return pkg, err
	}
	if _, err := r.Generate(ctx); err != nil {
		return nil, err
	}
	l.mu.Lock()
	pkg, ok := l.parsed[path]
	delete(l.parsed, path)
	l.mu.Unlock()
	if ok {
		return pkg, nil
	}
	pkg, err := decodeBlob(r.Target, path)
	if err == nil {
		l.mu.Lock()
		l.stats.Decoded++
		l.mu.Unlock()
		return pkg, nil
	}
	if !cppgen.IsCacheError(err) {
		return nil, err
	}
	l.log.Warn().Err(err).Str("path", path).Msg("reparse schema")
	l.mu.Lock()
	l.stats.Corrupt++
	l.mu.Unlock()
	b, err := l.render(path)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	pkg = l.parsed[path]
	delete(l.parsed, path)
	l.mu.Unlock()
	if err := build.WriteFile(r.Target, b); err != nil {
		l.log.Warn().Err(err).Str("blob", r.Target).Msg("rewrite schema blob")
	}
	return pkg, nil
}

// LoadAll loads every path. Failing files are skipped and their errors
// joined.
func (l *Loader) LoadAll(ctx context.Context, paths []string) ([]*schema.Package, error) {
	var (
		pkgs []*schema.Package
		errs []error
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return pkgs, err
		}
		pkg, err := l.Load(ctx, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, errors.Join(errs...)
}

// decodeBlob decodes the blob at blobPath of the schema file path. Every
// decoding failure is a CacheError.
func decodeBlob(blobPath, path string) (*schema.Package, error) {
	b, err := os.ReadFile(blobPath)
	if err != nil {
		return nil, cppgen.NewCacheError(blobPath, "read schema blob", err)
	}
	var bl blob
	if err := msgpack.Unmarshal(b, &bl); err != nil {
		return nil, cppgen.NewCacheError(blobPath, "decode schema blob", err)
	}
	switch {
	case bl.Version != blobVersion:
		return nil, cppgen.NewCacheError(blobPath, fmt.Sprintf("blob version %d", bl.Version), nil)
	case bl.Path != path:
		return nil, cppgen.NewCacheError(blobPath, fmt.Sprintf("blob of %s", bl.Path), nil)
	case bl.Package == nil:
		return nil, cppgen.NewCacheError(blobPath, "empty schema blob", nil)
	}
	bl.Package.Number()
	return bl.Package, nil
}
