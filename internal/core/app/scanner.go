package app

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"swiftslice/internal/shared/util"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"
)

// ScanOptions control which directories and files a Scanner visits.
type ScanOptions struct {
	ExcludeDirs  []string
	ExcludeFiles []string
	UseGitignore bool
}

// Scanner implements ports.FileScanner over the local filesystem. Patterns
// are matched against slash-separated paths relative to the walk root; "*"
// stays within one segment and "**" spans any number of them.
type Scanner struct {
	dirGlobs     []glob.Glob
	fileGlobs    []glob.Glob
	useGitignore bool
}

func NewScanner(opts ScanOptions) (*Scanner, error) {
	dirGlobs, err := compileGlobs(opts.ExcludeDirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	fileGlobs, err := compileGlobs(opts.ExcludeFiles, "exclude file")
	if err != nil {
		return nil, err
	}
	return &Scanner{
		dirGlobs:     dirGlobs,
		fileGlobs:    fileGlobs,
		useGitignore: opts.UseGitignore,
	}, nil
}

func compileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", label, p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// compilePattern compiles a path pattern. A leading "**/" also matches at
// the root, so "**/Package.swift" finds ./Package.swift.
func compilePattern(pattern string) ([]glob.Glob, error) {
	pattern = util.NormalizePatternPath(pattern)
	variants := []string{pattern}
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		variants = append(variants, rest)
	}
	out := make([]glob.Glob, 0, len(variants))
	for _, v := range variants {
		g, err := glob.Compile(v, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid scan pattern %q: %w", pattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Glob returns the sorted paths below root matching pattern. A missing root
// yields no paths.
func (s *Scanner) Glob(root, pattern string) ([]string, error) {
	matchers, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var gi *ignore.GitIgnore
	if s.useGitignore {
		gi = loadGitignore(root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			slog.Debug("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		base := d.Name()

		if d.IsDir() {
			if matchesAny(s.dirGlobs, base) {
				return filepath.SkipDir
			}
			if gi != nil && (gi.MatchesPath(rel) || gi.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		if matchesAny(s.fileGlobs, base) {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if matchesAny(matchers, rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func matchesAny(globs []glob.Glob, value string) bool {
	for _, g := range globs {
		if g.Match(value) {
			return true
		}
	}
	return false
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
