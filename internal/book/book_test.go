package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSummaryFlatChapters(t *testing.T) {
	src := "# Summary\n\n[Introduction](./intro.md)\n\n- [Chapter 1](./chapter_1.md)\n- [Chapter 2](./chapter_2.md)\n"
	b, err := ParseSummary(src)
	require.NoError(t, err)

	chapters := b.Chapters()
	require.Len(t, chapters, 3)
	assert.Equal(t, "Introduction", chapters[0].Name)
	assert.Equal(t, "./intro.md", chapters[0].SourcePath)
	assert.Equal(t, "Chapter 1", chapters[1].Name)
	assert.Equal(t, "Chapter 2", chapters[2].Name)
}

func TestParseSummaryNesting(t *testing.T) {
	src := "# Summary\n\n- [Chapter 1](./chapter_1.md)\n  - [Chapter 1.1](./chapter_1_1.md)\n  - [Chapter 1.2](./chapter_1_2.md)\n- [Chapter 2](./chapter_2.md)\n"
	b, err := ParseSummary(src)
	require.NoError(t, err)
	require.Len(t, b.Items, 2)

	ch1 := b.Items[0].Chapter
	require.NotNil(t, ch1)
	require.Len(t, ch1.SubItems, 2)
	assert.Equal(t, "Chapter 1.1", ch1.SubItems[0].Chapter.Name)
	assert.Equal(t, "Chapter 1.2", ch1.SubItems[1].Chapter.Name)

	all := b.Chapters()
	require.Len(t, all, 4)
}

func TestParseSummaryDraftChapter(t *testing.T) {
	src := "# Summary\n\n- [Draft Chapter]()\n- [Real Chapter](./real.md)\n"
	b, err := ParseSummary(src)
	require.NoError(t, err)

	chapters := b.Chapters()
	require.Len(t, chapters, 2)
	assert.True(t, chapters[0].IsDraft())
	assert.False(t, chapters[1].IsDraft())
}

func TestParseSummarySeparatorAndPartTitle(t *testing.T) {
	src := "# Summary\n\n[Introduction](./intro.md)\n\n---\n\n# User Guide\n\n- [Installation](./install.md)\n"
	b, err := ParseSummary(src)
	require.NoError(t, err)
	require.Len(t, b.Items, 4)
	assert.Equal(t, KindChapter, b.Items[0].Kind)
	assert.Equal(t, KindSeparator, b.Items[1].Kind)
	assert.Equal(t, KindPartTitle, b.Items[2].Kind)
	assert.Equal(t, "User Guide", b.Items[2].PartTitleText)
	assert.Equal(t, KindChapter, b.Items[3].Kind)
	assert.Equal(t, "Installation", b.Items[3].Chapter.Name)
}

func TestIndexChapterSkipsDrafts(t *testing.T) {
	b := &Book{Items: []Item{
		{Kind: KindChapter, Chapter: &Chapter{Name: "Draft"}},
		{Kind: KindChapter, Chapter: &Chapter{Name: "Real", SourcePath: "real.md"}},
	}}
	idx := b.IndexChapter()
	require.NotNil(t, idx)
	assert.Equal(t, "Real", idx.Name)
}

func TestChapterBySourcePath(t *testing.T) {
	b := &Book{Items: []Item{
		{Kind: KindChapter, Chapter: &Chapter{Name: "A", SourcePath: "a.md"}},
	}}
	assert.NotNil(t, b.ChapterBySourcePath("a.md"))
	assert.Nil(t, b.ChapterBySourcePath("missing.md"))
	assert.Nil(t, b.ChapterBySourcePath(""))
}

func TestWithSingleChapter(t *testing.T) {
	c := &Chapter{Name: "Solo", SourcePath: "solo.md"}
	single := WithSingleChapter(c)
	require.Len(t, single.Chapters(), 1)
	assert.Same(t, c, single.Chapters()[0])
}
