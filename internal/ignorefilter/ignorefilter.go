// Package ignorefilter classifies book-root-relative paths as ignored or
// kept against the .gitignore files found at and below the book root.
package ignorefilter

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Filter classifies paths under a single book root against a loaded
// .gitignore. A Filter with no loaded patterns classifies everything as
// kept, matching spec.md's "failures to read the ignore file are logged
// and treated as 'no ignore file'".
type Filter struct {
	root    string
	matcher gitignore.Matcher
}

// Load reads the .gitignore at root and those in its subdirectories and
// parses them. Ignore files in directories above root are not read.
// A missing or unreadable ignore file is not an error: it yields a
// Filter that ignores nothing.
func Load(root string) *Filter {
	fs := osfs.New(root)
	patterns, err := gitignore.ReadPatterns(fs, nil)
	if err != nil {
		slog.Warn("failed to read .gitignore, treating as absent", "root", root, "error", err)
		return &Filter{root: root}
	}
	if len(patterns) == 0 {
		return &Filter{root: root}
	}
	return &Filter{root: root, matcher: gitignore.NewMatcher(patterns)}
}

// IsIgnored reports whether absPath, an absolute filesystem path, is
// ignored. Paths outside the book root are never ignored — they are
// explicit "extra watch" inputs per spec.md §4.1.
func (f *Filter) IsIgnored(absPath string) bool {
	if f.matcher == nil {
		return false
	}
	rel, err := filepath.Rel(f.root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	isDir := false
	if info, err := os.Stat(absPath); err == nil {
		isDir = info.IsDir()
	}
	return f.matcher.Match(parts, isDir)
}
