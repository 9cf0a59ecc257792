package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderToHTMLBasic(t *testing.T) {
	html, err := RenderToHTML("# Hello\n\nWorld", Options{})
	require.NoError(t, err)
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "Hello")
	assert.Contains(t, html, "<p>World</p>")
}

func TestRenderToHTMLAutoHeadingID(t *testing.T) {
	html, err := RenderToHTML("# My Heading", Options{})
	require.NoError(t, err)
	assert.Contains(t, html, `id="my-heading"`)
}

func TestRenderToHTMLSmartPunctuation(t *testing.T) {
	html, err := RenderToHTML(`"quoted" -- text`, Options{SmartPunctuation: true})
	require.NoError(t, err)
	assert.Contains(t, html, "“quoted”")
}

func TestRenderToHTMLTableExtension(t *testing.T) {
	html, err := RenderToHTML("| a | b |\n|---|---|\n| 1 | 2 |\n", Options{})
	require.NoError(t, err)
	assert.Contains(t, html, "<table>")
}

func TestPostProcessNoopWithoutConfig(t *testing.T) {
	frag := "<pre><code class=\"language-rust\">fn main() {}</code></pre>"
	got := PostProcess(frag, PostProcessConfig{})
	assert.Equal(t, frag, got)
}

func TestPostProcessAddsCopyButton(t *testing.T) {
	frag := "<pre><code>plain</code></pre>"
	got := PostProcess(frag, PostProcessConfig{CopyButtons: true})
	assert.Contains(t, got, "clip-button")
	assert.Contains(t, got, "plain")
}

func TestPostProcessMarksRustPlayground(t *testing.T) {
	frag := `<pre><code class="language-rust">fn main() {}</code></pre>`
	got := PostProcess(frag, PostProcessConfig{Playground: true})
	assert.Contains(t, got, "playground-wrapper playground")
}

func TestPostProcessLeavesNonRustWithoutPlaygroundClass(t *testing.T) {
	frag := `<pre><code class="language-python">pass</code></pre>`
	got := PostProcess(frag, PostProcessConfig{Playground: true})
	assert.NotContains(t, got, "playground-wrapper playground")
	assert.Contains(t, got, "playground-wrapper")
}

func TestPostProcessHandlesMultipleBlocks(t *testing.T) {
	frag := "<pre><code>one</code></pre><p>text</p><pre><code>two</code></pre>"
	got := PostProcess(frag, PostProcessConfig{CopyButtons: true})
	assert.Equal(t, 2, countOccurrences(got, "clip-button"))
}

func countOccurrences(haystack, needle string) int {
	count := 0
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			count++
		}
	}
	return count
}
