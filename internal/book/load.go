package book

import (
	"fmt"
	"os"
	"path/filepath"
)

// Load reads SUMMARY.md from srcDir and loads each referenced chapter's
// raw Markdown content from disk. Draft chapters (no source path) are
// left with empty content. Paths in SUMMARY.md are resolved relative to
// srcDir.
func Load(srcDir string) (*Book, error) {
	summaryPath := filepath.Join(srcDir, "SUMMARY.md")
	data, err := os.ReadFile(summaryPath)
	if err != nil {
		return nil, fmt.Errorf("read SUMMARY.md: %w", err)
	}

	b, err := ParseSummary(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse SUMMARY.md: %w", err)
	}

	for _, ch := range b.Chapters() {
		if ch.IsDraft() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(srcDir, ch.SourcePath))
		if err != nil {
			return nil, fmt.Errorf("read chapter %q: %w", ch.SourcePath, err)
		}
		ch.Content = string(content)
	}
	return b, nil
}
