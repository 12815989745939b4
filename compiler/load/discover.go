package load

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultExtensions are the schema file extensions Discover looks for.
var DefaultExtensions = []string{".yaml", ".yml"}

// Discover returns the schema files below roots, sorted and without
// duplicates. A root naming a file is returned as is. Hidden directories
// are skipped.
func Discover(roots []string, exts ...string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	var paths []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("load: discover %s: %w", root, err)
		}
		if !info.IsDir() {
			paths = append(paths, filepath.Clean(root))
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("load: discover %s: %w", root, err)
		}
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}
