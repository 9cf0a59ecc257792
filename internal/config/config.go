// Package config loads and validates book.toml, the book-configuration
// file spec.md names as an external collaborator (§1) but which a
// complete repository needs a concrete loader for.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Book is the typed model of book.toml.
type Book struct {
	Book         BookTable                    `toml:"book"`
	Build        BuildTable                   `toml:"build"`
	Output       OutputTable                   `toml:"output"`
	Preprocessor map[string]map[string]any     `toml:"preprocessor"`
	ExtraWatchDirs []string                    `toml:"extra-watch-dirs"`
}

// BookTable is book.toml's [book] section.
type BookTable struct {
	Title    string `toml:"title"`
	Authors  []string `toml:"authors"`
	Src      string `toml:"src"`
	Language string `toml:"language"`
}

// BuildTable is book.toml's [build] section.
type BuildTable struct {
	BuildDir string `toml:"build-dir"`
}

// OutputTable is book.toml's [output] section; only [output.html] matters
// to this preview engine.
type OutputTable struct {
	HTML HTMLTable `toml:"html"`
}

// HTMLTable is book.toml's [output.html] section.
type HTMLTable struct {
	Theme             string            `toml:"theme"`
	AdditionalCSS     []string          `toml:"additional-css"`
	AdditionalJS      []string          `toml:"additional-js"`
	Input404          string            `toml:"input-404"`
	SmartPunctuation  bool              `toml:"smart-punctuation"`
	Playground        PlaygroundTable   `toml:"playground"`
	Code              CodeTable         `toml:"code"`
	Search            SearchTable       `toml:"search"`
	Print             PrintTable        `toml:"print"`
	Redirect          map[string]string `toml:"redirect"`
}

type PlaygroundTable struct {
	Editable bool `toml:"editable"`
}

type CodeTable struct {
	CopyButton bool `toml:"copy-button"`
}

type SearchTable struct {
	Enable bool `toml:"enable"`
}

type PrintTable struct {
	Enable bool `toml:"enable"`
}

// DefaultBook returns the configuration mdBook applies when a field is
// absent from book.toml.
func DefaultBook() Book {
	b := Book{}
	b.Book.Src = "src"
	b.Book.Language = "en"
	b.Build.BuildDir = "book"
	b.Output.HTML.Input404 = "404.md"
	b.Output.HTML.Code.CopyButton = true
	b.Output.HTML.Search.Enable = true
	return b
}

// Load parses book.toml at path, applying defaults for any field not
// present in the file, and validates the result.
func Load(path string) (*Book, error) {
	cfg := DefaultBook()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parse book config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants Load cannot express through defaults alone.
func (b *Book) Validate() error {
	if b.Book.Src == "" {
		return fmt.Errorf("book.src must not be empty")
	}
	return nil
}

// SrcDir returns the absolute source directory for a book rooted at root.
func (b *Book) SrcDir(root string) string {
	return filepath.Join(root, b.Book.Src)
}

// ThemeDir returns the absolute theme directory for a book rooted at
// root, or "" if no theme override is configured.
func (b *Book) ThemeDir(root string) string {
	if b.Output.HTML.Theme == "" {
		return ""
	}
	return filepath.Join(root, b.Output.HTML.Theme)
}

// BuildDir returns the absolute build (scratch) output directory.
func (b *Book) BuildDir(root string) string {
	return filepath.Join(root, b.Build.BuildDir)
}

// SummaryPath returns the absolute path to SUMMARY.md for this book.
func (b *Book) SummaryPath(root string) string {
	return filepath.Join(b.SrcDir(root), "SUMMARY.md")
}

// ExtraWatchDirsAbs canonicalizes every configured extra-watch directory
// against root. Per spec.md §4.2, a failure to canonicalize any of these
// is fatal during watcher setup, so this returns an error rather than
// silently skipping.
func (b *Book) ExtraWatchDirsAbs(root string) ([]string, error) {
	out := make([]string, 0, len(b.ExtraWatchDirs))
	for _, d := range b.ExtraWatchDirs {
		abs := filepath.Join(root, d)
		resolved, err := filepath.Abs(abs)
		if err != nil {
			return nil, fmt.Errorf("canonicalize extra-watch-dir %q: %w", d, err)
		}
		if _, err := os.Stat(resolved); err != nil {
			return nil, fmt.Errorf("extra-watch-dir %q: %w", d, err)
		}
		out = append(out, resolved)
	}
	return out, nil
}
