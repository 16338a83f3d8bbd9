package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relPaths(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestScanner_Glob(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{
		"Package.swift",
		"Package@swift-5.9.swift",
		"Sources/A/A.swift",
		"Sources/A/Gen.generated.swift",
		"Sources/B/Deep/B.swift",
		"Sub/Package.swift",
		".build/checkouts/Dep/Package.swift",
		"Pods/X/X.swift",
		"Generated/Out.swift",
		"README.md",
	} {
		writeFile(t, filepath.Join(root, filepath.FromSlash(p)), "x")
	}
	writeFile(t, filepath.Join(root, ".gitignore"), "Generated/\n")

	s, err := NewScanner(ScanOptions{
		ExcludeDirs:  []string{".build", "Pods"},
		ExcludeFiles: []string{"*.generated.swift"},
		UseGitignore: true,
	})
	require.NoError(t, err)

	tests := []struct {
		pattern string
		want    []string
	}{
		{"Package*.swift", []string{"Package.swift", "Package@swift-5.9.swift"}},
		{"**/Package*.swift", []string{"Package.swift", "Package@swift-5.9.swift", "Sub/Package.swift"}},
		{"**/*.swift", []string{
			"Package.swift",
			"Package@swift-5.9.swift",
			"Sources/A/A.swift",
			"Sources/B/Deep/B.swift",
			"Sub/Package.swift",
		}},
		{"Sources/*/*.swift", []string{"Sources/A/A.swift"}},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := s.Glob(root, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, relPaths(t, root, got))
		})
	}
}

func TestScanner_GitignoreDisabled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Generated", "Out.swift"), "x")
	writeFile(t, filepath.Join(root, ".gitignore"), "Generated/\n")

	s, err := NewScanner(ScanOptions{})
	require.NoError(t, err)
	got, err := s.Glob(root, "**/*.swift")
	require.NoError(t, err)
	assert.Equal(t, []string{"Generated/Out.swift"}, relPaths(t, root, got))
}

func TestScanner_BuildMapsBelowExcludedRoot(t *testing.T) {
	root := t.TempDir()
	build := filepath.Join(root, ".build")
	writeFile(t, filepath.Join(build, "x86_64-unknown-linux-gnu", "debug", "A.build", "output-file-map.json"), "{}")
	writeFile(t, filepath.Join(build, "x86_64-unknown-linux-gnu", "release", "A.build", "output-file-map.json"), "{}")

	s, err := NewScanner(ScanOptions{ExcludeDirs: []string{".build"}})
	require.NoError(t, err)

	got, err := s.Glob(build, outputMapPattern)
	require.NoError(t, err)
	assert.Equal(t, []string{"x86_64-unknown-linux-gnu/debug/A.build/output-file-map.json"}, relPaths(t, build, got))

	got, err = s.Glob(filepath.Join(root, "missing"), outputMapPattern)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewScanner_RejectsBadPattern(t *testing.T) {
	_, err := NewScanner(ScanOptions{ExcludeDirs: []string{"[unclosed"}})
	require.Error(t, err)

	s, err := NewScanner(ScanOptions{})
	require.NoError(t, err)
	_, err = s.Glob(t.TempDir(), "[unclosed")
	require.Error(t, err)
}
