// Package markdown renders chapter Markdown bodies to HTML and applies the
// post-processing transforms mdBook-style renderers apply after Handlebars
// has produced the surrounding page chrome.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Options controls how a chapter body is parsed and rendered.
type Options struct {
	// SmartPunctuation enables curly quotes, en/em dashes, and ellipses,
	// mirroring HbsState.SmartPunctuation in the render context.
	SmartPunctuation bool
}

// RenderToHTML renders a single chapter's Markdown body to an HTML fragment.
// It does not include any page chrome; the fragment is what replaces the
// `<main>` element both for a full render and for a live patch.
func RenderToHTML(body string, opts Options) (string, error) {
	extensions := []goldmark.Extender{extension.GFM}
	if opts.SmartPunctuation {
		extensions = append(extensions, extension.Typographer)
	}

	md := goldmark.New(
		goldmark.WithExtensions(extensions...),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PostProcess applies the playground/code/editor-button transforms mdBook's
// HTML renderer runs over a rendered chapter before it is ever shown: turning
// fenced ```rust blocks into the interactive playground markup and adding the
// "copy to clipboard" affordance to every code block.
func PostProcess(htmlFragment string, cfg PostProcessConfig) string {
	if !cfg.Playground && !cfg.CopyButtons {
		return htmlFragment
	}

	var out strings.Builder
	rest := htmlFragment
	for {
		start := strings.Index(rest, "<pre><code")
		if start == -1 {
			out.WriteString(rest)
			break
		}
		codeStart := start + len("<pre>")
		closeTag := strings.Index(rest[codeStart:], ">")
		if closeTag == -1 {
			out.WriteString(rest)
			break
		}
		closeTag += codeStart
		end := strings.Index(rest[closeTag:], "</code></pre>")
		if end == -1 {
			out.WriteString(rest)
			break
		}
		end += closeTag

		out.WriteString(rest[:start])
		openTag := rest[codeStart : closeTag+1]
		body := rest[closeTag+1 : end]

		out.WriteString(decoratePre(openTag, body, cfg))
		rest = rest[end+len("</code></pre>"):]
	}
	return out.String()
}

// PostProcessConfig mirrors the subset of book.toml's [output.html] table
// that affects chapter post-processing.
type PostProcessConfig struct {
	Playground  bool
	CopyButtons bool
}

func decoratePre(openTag, body string, cfg PostProcessConfig) string {
	classes := ""
	if cfg.Playground && strings.Contains(openTag, "language-rust") {
		classes = " playground"
	}
	var b strings.Builder
	b.WriteString(`<pre class="playground-wrapper` + classes + `">`)
	if cfg.CopyButtons {
		b.WriteString(`<button class="fa fa-copy clip-button" title="Copy to clipboard"><i class="tooltiptext"></i></button>`)
	}
	b.WriteString(openTag)
	b.WriteString(body)
	b.WriteString(`</code></pre>`)
	return b.String()
}
