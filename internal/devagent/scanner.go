// Package devagent implements the dev agent (spec §4.5): it walks a target
// directory, filters to the configured extensions while skipping excluded
// paths, batches files, hands each batch to a parser, and forwards the
// parsed output to the indexer. File-walk and ignore-pattern handling is
// adapted from the teacher's scanner configuration idiom.
package devagent

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ScannerConfig controls which files a scan visits.
type ScannerConfig struct {
	Extensions     []string
	IgnorePatterns []string
	MaxWorkers     int
}

// DefaultIgnorePatterns mirrors the teacher's scanner defaults: version
// control, dependency, build and cache directories nobody wants indexed.
var DefaultIgnorePatterns = []string{
	".git", "node_modules", "dist", "build", "out", "coverage",
	".cache", ".venv", "venv", "__pycache__", "vendor", ".next", ".turbo",
}

// DefaultScannerConfig clamps worker count to the host's CPU count, the way
// the teacher's scanner config does, so a big batch doesn't oversubscribe a
// small box.
func DefaultScannerConfig(extensions, ignorePatterns []string) ScannerConfig {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	if workers > 8 {
		workers = 8
	}
	patterns := append([]string{}, DefaultIgnorePatterns...)
	patterns = append(patterns, ignorePatterns...)
	return ScannerConfig{Extensions: extensions, IgnorePatterns: patterns, MaxWorkers: workers}
}

// isIgnoredRel reports whether rel (a slash-separated path relative to the
// scan root) matches one of cfg's ignore patterns. A pattern matches if any
// path segment equals it exactly, if filepath.Match succeeds against the
// full relative path or the base name (single-segment `*`/`?` globs), or if
// the pattern contains `**` and globMatch resolves it across segments
// (spec §4.5's "user patterns supporting `**` and `*` globs").
func isIgnoredRel(rel string, patterns []string) bool {
	relSlash := filepath.ToSlash(rel)
	segments := strings.Split(relSlash, "/")
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		for _, p := range patterns {
			if seg == p {
				return true
			}
		}
	}
	base := filepath.Base(rel)
	for _, p := range patterns {
		if strings.Contains(p, "**") {
			if globMatch(p, relSlash) {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(p, relSlash); ok {
			return true
		}
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// globMatch matches a slash-separated path against a slash-separated glob
// pattern where `**` stands for zero or more whole path segments and `*`/
// `?`/`[...]` match within a single segment via filepath.Match. Go's
// stdlib filepath.Match has no `**` semantics of its own, so recursive
// directory patterns like `**/generated/**` are resolved here by trying
// every way `**` can consume path segments.
func globMatch(pattern, path string) bool {
	return matchGlobSegments(strings.Split(pattern, "/"), strings.Split(path, "/"))
}

func matchGlobSegments(pat, path []string) bool {
	if len(pat) == 0 {
		return len(path) == 0
	}
	if pat[0] == "**" {
		if matchGlobSegments(pat[1:], path) {
			return true
		}
		if len(path) > 0 {
			return matchGlobSegments(pat, path[1:])
		}
		return false
	}
	if len(path) == 0 {
		return false
	}
	if ok, _ := filepath.Match(pat[0], path[0]); !ok {
		return false
	}
	return matchGlobSegments(pat[1:], path[1:])
}

// Walk enumerates every regular file under root whose extension is in
// cfg.Extensions, skipping symlinks, hidden (dot-prefixed) directories at
// any depth and anything matched by cfg.IgnorePatterns. Hidden files are
// not skipped unless an ignore pattern matches them.
func Walk(root string, cfg ScannerConfig) ([]string, error) {
	extSet := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		extSet[strings.ToLower(e)] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			name := d.Name()
			if name != "." && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			if isIgnoredRel(rel, cfg.IgnorePatterns) {
				return fs.SkipDir
			}
			return nil
		}

		if isIgnoredRel(rel, cfg.IgnorePatterns) {
			return nil
		}
		if !extSet[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, statErr := d.Info()
		if statErr == nil && info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
