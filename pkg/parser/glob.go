package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ExpandGlobs expands a list of file paths and glob patterns into a deduplicated
// list of paths. Patterns keep their command-line order; the matches of one
// pattern are ordered by name with JVM rotation suffixes compared numerically
// (gc.log.2 before gc.log.10). Patterns that match nothing and StdinPath are
// returned as-is so the caller reports file-not-found errors.
func ExpandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	for _, pattern := range patterns {
		if pattern == StdinPath {
			add(pattern)
			continue
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			add(pattern)
			continue
		}

		sort.Slice(matches, func(i, j int) bool {
			return rotationLess(matches[i], matches[j])
		})
		for _, m := range matches {
			add(m)
		}
	}

	return result, nil
}

// rotationLess orders gc.log, gc.log.0, gc.log.1, ..., gc.log.10 and their
// compressed forms.
func rotationLess(a, b string) bool {
	baseA, nA := rotation(a)
	baseB, nB := rotation(b)
	if baseA != baseB {
		return baseA < baseB
	}
	if nA != nB {
		return nA < nB
	}
	return a < b
}

// rotation splits a path into its base name and rotation index. Paths
// without a numeric suffix have index -1.
func rotation(path string) (string, int) {
	trimmed := path
	for _, ext := range []string{".gz", ".lz4"} {
		trimmed = strings.TrimSuffix(trimmed, ext)
	}

	dot := strings.LastIndexByte(trimmed, '.')
	if dot < 0 {
		return trimmed, -1
	}
	n, err := strconv.Atoi(trimmed[dot+1:])
	if err != nil || n < 0 {
		return trimmed, -1
	}
	return trimmed[:dot], n
}
