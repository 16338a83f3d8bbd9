package util

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// NormalizePatternPath cleans a path for glob and gitignore matching:
// forward slashes, no leading "./", and "" for the root itself.
func NormalizePatternPath(s string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	clean := path.Clean(trimmed)
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// UniqueSorted trims every value and returns the non-empty ones, deduplicated
// and sorted.
func UniqueSorted(values ...[]string) []string {
	seen := make(map[string]struct{})
	for _, group := range values {
		for _, v := range group {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			seen[v] = struct{}{}
		}
	}
	return SortedStringKeys(seen)
}

// ProjectSlug names a project directory for output files. The root of a
// relative scan ("." or "") resolves to its absolute base name.
func ProjectSlug(dir string) string {
	clean := filepath.Clean(dir)
	if abs, err := filepath.Abs(clean); err == nil {
		clean = abs
	}
	base := filepath.Base(clean)
	if base == string(filepath.Separator) || base == "." || base == "" {
		return "root"
	}
	return base
}

// WriteFileWithDirs creates parent directories (0755) and writes the file with perm.
func WriteFileWithDirs(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, perm)
}
