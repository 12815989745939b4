package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Result is the outcome of generating one rule.
type Result uint8

// Results of Rule.Generate.
const (
	// Fresh means the target was up to date and nothing was rendered.
	Fresh Result = iota
	// Unchanged means the target was rendered with the bytes already on
	// disk. Only the last-known-good time moved.
	Unchanged
	// Written means the target was created or replaced.
	Written
	// Skipped means the rule did not run because the build was canceled.
	Skipped
)

var resultNames = [...]string{
	Fresh:     "fresh",
	Unchanged: "unchanged",
	Written:   "written",
	Skipped:   "skipped",
}

func (r Result) String() string {
	if int(r) < len(resultNames) {
		return resultNames[r]
	}
	return fmt.Sprintf("Result(%d)", r)
}

// Dep is a dependency of a rule.
type Dep interface {
	// ModTime returns the time of the dependency, or false if it does
	// not exist.
	ModTime() (time.Time, bool, error)
	fmt.Stringer
}

// FileDep is a dependency on a file path.
type FileDep string

// ModTime returns the modification time of the file.
func (d FileDep) ModTime() (time.Time, bool, error) {
	return statTime(string(d))
}

func (d FileDep) String() string { return string(d) }

// RuleDep is a dependency on the target of another rule. The nested rule
// is generated before the depending rule checks its freshness, and its
// time is the effective time of the nested target.
type RuleDep struct{ Rule *Rule }

// ModTime returns the effective time of the nested target.
func (d RuleDep) ModTime() (time.Time, bool, error) { return d.Rule.Effective() }

func (d RuleDep) String() string { return "rule " + d.Rule.Target }

// Rule produces Target from Deps with Render.
type Rule struct {
	// Target is the path of the generated file.
	Target string
	// Deps are the inputs of Render.
	Deps []Dep
	// Render produces the content of the target.
	Render func() ([]byte, error)
	// Cache holds the last-known-good times. A nil Cache only uses the
	// modification time on disk.
	Cache *Cache

	mu sync.Mutex
}

// Effective returns the time the target is considered current at: the
// later of its modification time and its last-known-good time. It returns
// false if the target does not exist.
func (r *Rule) Effective() (time.Time, bool, error) {
	t, ok, err := statTime(r.Target)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	if good := r.Cache.Good(r.Target); good.After(t) {
		t = good
	}
	return t, true, nil
}

// NeedsUpdate reports if the target is absent, a dependency is missing,
// or a dependency is newer than the target.
func (r *Rule) NeedsUpdate() (bool, error) {
	_, stale, err := r.check()
	return stale, err
}

// check returns the newest dependency time and whether the target is
// stale.
func (r *Rule) check() (time.Time, bool, error) {
	var newest time.Time
	missing := false
	for _, d := range r.Deps {
		t, ok, err := d.ModTime()
		if err != nil {
			return time.Time{}, false, fmt.Errorf("dependency %s: %w", d, err)
		}
		if !ok {
			missing = true
			continue
		}
		if t.After(newest) {
			newest = t
		}
	}
	target, ok, err := r.Effective()
	if err != nil {
		return time.Time{}, false, err
	}
	return newest, missing || !ok || newest.After(target), nil
}

// Generate brings the target up to date. Nested rules are generated first.
// A stale target is rendered and written only if its bytes changed.
func (r *Rule) Generate(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.Deps {
		if nested, ok := d.(RuleDep); ok {
			if _, err := nested.Rule.Generate(ctx); err != nil {
				return Fresh, fmt.Errorf("dependency %s: %w", nested.Rule.Target, err)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return Skipped, err
	}
	newest, stale, err := r.check()
	if err != nil || !stale {
		return Fresh, err
	}
	b, err := r.Render()
	if err != nil {
		return Fresh, err
	}
	old, err := os.ReadFile(r.Target)
	switch {
	case err == nil && bytes.Equal(old, b):
		r.Cache.SetGood(r.Target, newest)
		return Unchanged, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return Fresh, err
	}
	if err := WriteFile(r.Target, b); err != nil {
		return Fresh, err
	}
	return Written, nil
}

// WriteFile writes data to a temporary file next to path and renames it
// over path, creating the parent directories.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmp := f.Name()
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, 0o644)
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func statTime(path string) (time.Time, bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, err
	}
	return info.ModTime(), true, nil
}
