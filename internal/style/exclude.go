// exclude.go implements path filtering against the configured exclusion
// globs. The lint command pre-filters the source tree with an Excluder
// and hands the surviving files to the external checker, so the checker
// never sees excluded paths regardless of its own exclusion support.
package style

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Excluder matches filesystem paths against a set of exclusion globs.
//
// A pattern excludes a path when it matches the path's base name or any
// individual path segment. This gives bare directory names like ".git"
// subtree semantics while still supporting file globs like "*_generated.go".
type Excluder struct {
	patterns []string
}

// NewExcluder creates an Excluder from the given glob patterns.
// Returns an error if any pattern has invalid glob syntax.
func NewExcluder(patterns []string) (*Excluder, error) {
	for _, pattern := range patterns {
		if _, err := filepath.Match(pattern, "probe"); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	return &Excluder{patterns: append([]string(nil), patterns...)}, nil
}

// Match reports whether the given slash- or OS-separated relative path
// is excluded. Every path segment is tested against every pattern, so
// a file inside an excluded directory is itself excluded.
func (e *Excluder) Match(path string) bool {
	segments := strings.Split(filepath.ToSlash(path), "/")
	for _, segment := range segments {
		if segment == "" || segment == "." {
			continue
		}
		for _, pattern := range e.patterns {
			// Pattern syntax was validated at construction time, so the
			// error return can be ignored here.
			if ok, _ := filepath.Match(pattern, segment); ok {
				return true
			}
		}
	}
	return false
}

// Collect walks the tree rooted at root and returns the relative paths
// of all regular files that survive the exclusion globs and match one of
// the given suffixes (e.g., ".py"). An empty suffix list matches every
// file. Excluded directories are pruned without descending into them.
//
// The returned paths are sorted for deterministic checker invocations.
func (e *Excluder) Collect(root string, suffixes []string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		if e.Match(rel) {
			if d.IsDir() {
				// Prune the whole subtree.
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		if matchesSuffix(rel, suffixes) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// matchesSuffix reports whether the path ends with one of the suffixes.
// An empty suffix list matches everything.
func matchesSuffix(path string, suffixes []string) bool {
	if len(suffixes) == 0 {
		return true
	}
	for _, suffix := range suffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
