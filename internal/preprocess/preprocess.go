// Package preprocess runs the configured chain of book transformations
// before rendering. spec.md §1 names "the book-configuration loader and
// preprocessor pipeline" as an external collaborator; this package is the
// concrete, in-scope chain runner a complete repository needs, with one
// built-in preprocessor (Index) named after mdBook's own "index"
// preprocessor; it renames README chapters and leaves source paths as
// they are.
package preprocess

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/bookpreview/internal/book"
)

// Preprocessor transforms a Book before rendering. Implementations must
// not assume cross-chapter context is available when the book passed in
// contains only a single chapter (spec.md §4.3's patch-time degradation).
type Preprocessor interface {
	Name() string
	Run(b *book.Book) (*book.Book, error)
}

// Chain runs an ordered list of preprocessors, each seeing the previous
// one's output.
type Chain struct {
	preprocessors []Preprocessor
}

// NewChain builds a Chain from names resolved against the built-in
// registry. Unknown names are skipped with no error, matching mdBook's
// behavior of treating unrecognized preprocessors as external plugins
// this engine cannot run (and therefore can't meaningfully no-op
// incorrectly: skipping is strictly safer than failing the whole build).
func NewChain(names []string) *Chain {
	c := &Chain{}
	for _, name := range names {
		if p, ok := builtins[name]; ok {
			c.preprocessors = append(c.preprocessors, p)
		}
	}
	return c
}

// Run applies every preprocessor in order.
func (c *Chain) Run(b *book.Book) (*book.Book, error) {
	cur := b
	for _, p := range c.preprocessors {
		next, err := p.Run(cur)
		if err != nil {
			return nil, fmt.Errorf("preprocessor %q: %w", p.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

// RunSingleChapter runs the chain against a synthetic single-chapter book
// and returns that chapter's preprocessed Markdown content, enforcing
// spec.md §4.3's PreprocessorShape invariant: the output must contain
// exactly one chapter whose source path equals the input's.
func (c *Chain) RunSingleChapter(ch *book.Chapter) (string, error) {
	synthetic := book.WithSingleChapter(ch)
	out, err := c.Run(synthetic)
	if err != nil {
		return "", err
	}
	chapters := out.Chapters()
	if len(chapters) != 1 || chapters[0].SourcePath != ch.SourcePath {
		return "", fmt.Errorf("preprocessor_shape: expected exactly one chapter with source path %q, got %d", ch.SourcePath, len(chapters))
	}
	return chapters[0].Content, nil
}

var builtins = map[string]Preprocessor{
	"index": indexPreprocessor{},
}

// indexPreprocessor renames a chapter named "README" (mdBook's
// convention for a directory's landing page; matched case-insensitively,
// with or without a ".md" suffix) to "Index". It does not change the
// chapter's source path, so the output file name is unchanged; the render
// façade treats the first non-draft chapter as the index.
type indexPreprocessor struct{}

func (indexPreprocessor) Name() string { return "index" }

func (indexPreprocessor) Run(b *book.Book) (*book.Book, error) {
	for _, ch := range b.Chapters() {
		if strings.EqualFold(strings.TrimSuffix(ch.Name, ".md"), "README") {
			ch.Name = "Index"
		}
	}
	return b, nil
}
