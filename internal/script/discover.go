package script

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/match"
)

// Directory-tree discovery. Module-resolution scope is threaded through
// the recursion as an accumulated, copy-on-append parameter: a subtree's
// library patterns are visible exactly while that subtree is on the
// recursion stack and never leak into sibling subtrees or outlive the
// traversal.

// reservedLibPattern marks directories that hold shared guest modules.
// Matching is case-insensitive and by substring, so "Libs", "corelibs",
// and "libs-v2" all qualify.
const reservedLibPattern = "*libs*"

// isReservedLibDir reports whether a directory name carries the reserved
// library marker.
func isReservedLibDir(name string) bool {
	return match.Match(strings.ToLower(name), reservedLibPattern)
}

// libPatterns returns paths extended with a "<dir>/<libsdir>/?.<ext>"
// resolution pattern for every reserved library child of dir. The input
// slice is never mutated; branches of the traversal cannot observe each
// other's appends.
func libPatterns(paths []string, dir string, entries []os.DirEntry, ext string) []string {
	scoped := paths[:len(paths):len(paths)]
	for _, e := range entries {
		if e.IsDir() && isReservedLibDir(e.Name()) {
			scoped = append(scoped, filepath.Join(dir, e.Name(), "?"+ext))
		}
	}
	return scoped
}

// findScript locates "<name><ext>" in a depth-first search below dir,
// skipping reserved library directories. On success it returns the source
// path together with the module patterns in scope for that file: the
// library paths of its own directory and of every ancestor on the search
// path down from the root.
func findScript(dir, name, ext string, paths []string) (string, []string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil, false
	}

	scoped := libPatterns(paths, dir, entries, ext)

	target := name + ext
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), target) {
			return filepath.Join(dir, e.Name()), scoped, true
		}
	}

	for _, e := range entries {
		if !e.IsDir() || isReservedLibDir(e.Name()) {
			continue
		}
		if path, modPaths, ok := findScript(filepath.Join(dir, e.Name()), name, ext, scoped); ok {
			return path, modPaths, true
		}
	}

	return "", nil, false
}

// walkScripts performs a full discovery pass below dir, invoking visit
// for every qualifying source file with the module patterns in scope at
// that point. Files inside reserved library directories are resolvable
// dependencies, not scripts, and are never visited.
func walkScripts(dir, ext string, paths []string, visit func(sourcePath string, modPaths []string)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	scoped := libPatterns(paths, dir, entries, ext)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ext) {
			visit(filepath.Join(dir, e.Name()), scoped)
		}
	}

	for _, e := range entries {
		if e.IsDir() && !isReservedLibDir(e.Name()) {
			// Subtree read failures are already reported per directory.
			_ = walkScripts(filepath.Join(dir, e.Name()), ext, scoped, visit)
		}
	}

	return nil
}
