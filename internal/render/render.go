// Package render implements the renderer façade of spec.md §4.3: the
// full-book render and the per-chapter patch render, bridging the book
// tree, the Handlebars page chrome, and the Markdown body fragment.
package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/aymerick/raymond"

	"git.home.luguber.info/inful/bookpreview/internal/book"
	"git.home.luguber.info/inful/bookpreview/internal/config"
	"git.home.luguber.info/inful/bookpreview/internal/markdown"
)

// LivePatchScriptPath is the well-known URL path the full render injects
// as an additional JavaScript reference (spec.md §4.3 step 5). It is
// served from internal/assets, never copied to disk.
const LivePatchScriptPath = "/__mdbook_incremental_preview/websocket_live_patch.js"

// ChapterInfo is the per-chapter bookkeeping HbsState retains for patching.
type ChapterInfo struct {
	Name       string
	ContentLen int
}

// HbsState is the intermediate state of a full render kept for patching
// (spec.md §3).
type HbsState struct {
	PathToChapter    map[string]ChapterInfo
	SmartPunctuation bool
	IndexSourcePath  string
}

// Context holds the immutable inputs a single chapter needs to produce
// its HTML page (spec.md §3 "Render Context").
type Context struct {
	Templates *Templates
	BaseData  map[string]any
	DestDir   string
	Config    *config.Book
	RootDir   string
}

// Templates are the compiled Handlebars page-chrome templates.
type Templates struct {
	Page *raymond.Template
}

// CompileTemplates parses a page-chrome template from its Handlebars
// source text; callers pass the source directly.
func CompileTemplates(source string) (*Templates, error) {
	tpl, err := raymond.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("compile page template: %w", err)
	}
	return &Templates{Page: tpl}, nil
}

// FullRender implements spec.md §4.3's full render operation: it removes
// stale content from the destination directory, renders each non-draft
// chapter to its HTML file, renders the 404 page, injects the live-patch
// script reference, and returns the fresh HbsState.
func FullRender(ctx *Context, b *book.Book) (*HbsState, error) {
	if err := resetDestDir(ctx.DestDir); err != nil {
		return nil, err
	}

	state := &HbsState{
		PathToChapter:    make(map[string]ChapterInfo),
		SmartPunctuation: ctx.Config.Output.HTML.SmartPunctuation,
	}

	indexSet := false
	for _, ch := range b.Chapters() {
		if ch.IsDraft() {
			continue
		}
		absSrc := filepath.Join(ctx.RootDir, ctx.Config.Book.Src, ch.SourcePath)
		state.PathToChapter[absSrc] = ChapterInfo{Name: ch.Name, ContentLen: len(ch.Content)}
		if !indexSet {
			state.IndexSourcePath = ch.SourcePath
			indexSet = true
		}

		relHTML := toHTMLPath(ch.SourcePath)
		if err := renderChapterFile(ctx, ch, relHTML, relHTML == toHTMLPath(state.IndexSourcePath)); err != nil {
			return nil, fmt.Errorf("render chapter %q: %w", ch.SourcePath, err)
		}
	}

	if err := render404(ctx); err != nil {
		return nil, err
	}

	return state, nil
}

func renderChapterFile(ctx *Context, ch *book.Chapter, relHTMLPath string, isIndex bool) error {
	frag, err := renderFragment(ch.Content, ctx.Config)
	if err != nil {
		return err
	}

	page, err := renderPage(ctx, ch.Name, frag, isIndex)
	if err != nil {
		return err
	}

	dest := filepath.Join(ctx.DestDir, relHTMLPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(page), 0o640)
}

func renderFragment(md string, cfg *config.Book) (string, error) {
	frag, err := markdown.RenderToHTML(md, markdown.Options{SmartPunctuation: cfg.Output.HTML.SmartPunctuation})
	if err != nil {
		return "", err
	}
	return markdown.PostProcess(frag, markdown.PostProcessConfig{
		Playground:  cfg.Output.HTML.Playground.Editable,
		CopyButtons: cfg.Output.HTML.Code.CopyButton,
	}), nil
}

func renderPage(ctx *Context, title, bodyFragment string, isIndex bool) (string, error) {
	data := map[string]any{
		"title":            title,
		"content":          raymond.SafeString(bodyFragment),
		"is_index":         isIndex,
		"additional_js":    append(append([]string{}, ctx.Config.Output.HTML.AdditionalJS...), LivePatchScriptPath),
		"additional_css":   ctx.Config.Output.HTML.AdditionalCSS,
		"book_title":       ctx.Config.Book.Title,
		"language":         ctx.Config.Book.Language,
	}
	for k, v := range ctx.BaseData {
		if _, exists := data[k]; !exists {
			data[k] = v
		}
	}
	return ctx.Templates.Page.Exec(data)
}

func render404(ctx *Context) error {
	frag, err := renderFragment("# Page not found", ctx.Config)
	if err != nil {
		return err
	}
	page, err := renderPage(ctx, "Page not found", frag, false)
	if err != nil {
		return err
	}
	name := ctx.Config.Output.HTML.Input404
	if name == "" {
		name = "404.md"
	}
	dest := filepath.Join(ctx.DestDir, toHTMLPath(name))
	return os.WriteFile(dest, []byte(page), 0o640)
}

// MakeRenderFunc builds a registry.RenderFunc-compatible closure that
// renders preprocessed Markdown to a post-processed HTML fragment using
// ctx's configuration, for the Patch Registry to call on NewPatch.
func MakeRenderFunc(ctx *Context) func(markdown string) (string, error) {
	return func(md string) (string, error) {
		return renderFragment(md, ctx.Config)
	}
}

// LoadChapterContent loads a chapter's on-disk content for a patch,
// per spec.md §4.3: the buffer is sized to twice the previously observed
// content length (an amortization heuristic for editors that tend to
// grow files), and a leading UTF-8 BOM is stripped if present.
func LoadChapterContent(absPath string, previousLen int) (string, error) {
	capacity := previousLen * 2
	if capacity <= 0 {
		capacity = 4096
	}
	f, err := os.Open(absPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := bytes.NewBuffer(make([]byte, 0, capacity))
	if _, err := buf.ReadFrom(f); err != nil {
		return "", err
	}
	content := buf.Bytes()
	if len(content) >= 3 && content[0] == 0xEF && content[1] == 0xBB && content[2] == 0xBF {
		content = content[3:]
	}
	if !utf8.Valid(content) {
		return "", fmt.Errorf("chapter content is not valid UTF-8: %s", absPath)
	}
	return string(content), nil
}

func toHTMLPath(sourcePath string) string {
	if sourcePath == "" {
		return ""
	}
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ".html"
}

// ToHTMLPath exposes toHTMLPath for callers outside this package (the
// Rebuilder needs it to map a changed chapter source path to its
// relative HTML path for the registry).
func ToHTMLPath(sourcePath string) string { return toHTMLPath(sourcePath) }

func resetDestDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o750)
}
