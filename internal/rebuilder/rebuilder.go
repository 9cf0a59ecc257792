// Package rebuilder implements the Rebuilder state machine of spec.md
// §4.5: the single-consumer actor that decides between a full rebuild, a
// watcher reload, a server reconfiguration, or a per-chapter patch, and
// coalesces concurrent work.
package rebuilder

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/bookpreview/internal/book"
	"git.home.luguber.info/inful/bookpreview/internal/bookerrors"
	"git.home.luguber.info/inful/bookpreview/internal/config"
	"git.home.luguber.info/inful/bookpreview/internal/ignorefilter"
	"git.home.luguber.info/inful/bookpreview/internal/logfields"
	"git.home.luguber.info/inful/bookpreview/internal/metrics"
	"git.home.luguber.info/inful/bookpreview/internal/preprocess"
	"git.home.luguber.info/inful/bookpreview/internal/registry"
	"git.home.luguber.info/inful/bookpreview/internal/render"
	"git.home.luguber.info/inful/bookpreview/internal/retry"
	"git.home.luguber.info/inful/bookpreview/internal/serveinfo"
	"git.home.luguber.info/inful/bookpreview/internal/watch"
)

// Deps are the Rebuilder's external collaborators, injected so the
// actor's own state machine stays unit-testable.
type Deps struct {
	Root               string
	Registry           *registry.Registry
	Recorder           metrics.Recorder
	RetryPolicy        retry.Policy
	ReloadWatcher      func(watch.Config) error
	ServeInfoChanged   func(serveinfo.ServeInfo)
	RenderContextReady func(*render.Context)
	OpenBrowser        func(relPath string)
}

// message is the Rebuilder inbox's closed set of variants.
type message interface{ isMessage() }

type msgRebuild struct{ reloadEnv bool }
type msgNewBook struct {
	book      *book.Book
	cfg       *config.Book
	state     *render.HbsState
	templates *render.Templates
	reloadEnv bool
	err       error
}
type msgChangedPaths struct{ paths []string }
type msgModifiedContent struct {
	path string
	text string
}
type msgOpenBrowser struct{ path string }
type msgPatchDone struct {
	path  string
	token *patchTask
}

func (msgRebuild) isMessage()         {}
func (msgNewBook) isMessage()         {}
func (msgChangedPaths) isMessage()    {}
func (msgModifiedContent) isMessage() {}
func (msgOpenBrowser) isMessage()     {}
func (msgPatchDone) isMessage()       {}

// Rebuilder is the actor. Construct with New, run with Run in its own
// goroutine, and drive it through the exported methods from any
// goroutine.
type Rebuilder struct {
	deps  Deps
	inbox chan message
}

// New constructs a Rebuilder with a 64-capacity inbox, per spec.md §5's
// guidance for the higher-traffic actor.
func New(deps Deps) *Rebuilder {
	if deps.Recorder == nil {
		deps.Recorder = metrics.NoopRecorder{}
	}
	return &Rebuilder{deps: deps, inbox: make(chan message, 64)}
}

// Rebuild requests a full rebuild, optionally reconsidering watcher and
// server settings.
func (r *Rebuilder) Rebuild(reloadEnv bool) { r.inbox <- msgRebuild{reloadEnv: reloadEnv} }

// ChangedPaths delivers a debounced batch of absolute paths from the
// watcher.
func (r *Rebuilder) ChangedPaths(paths []string) { r.inbox <- msgChangedPaths{paths: paths} }

// ModifiedContent delivers editor-supplied buffer content for a tracked
// chapter, already version-ordered by the Previewer.
func (r *Rebuilder) ModifiedContent(path, text string) {
	r.inbox <- msgModifiedContent{path: path, text: text}
}

// OpenBrowser requests the browser open at path once the first rebuild
// lands.
func (r *Rebuilder) OpenBrowser(path string) { r.inbox <- msgOpenBrowser{path: path} }

// Close shuts the inbox down; Run returns once drained.
func (r *Rebuilder) Close() { close(r.inbox) }

// patchTask identifies one in-flight patch render so msgPatchDone can
// tell whether it is clearing the slot it started, or a stale
// completion superseded by a newer task for the same path.
type patchTask struct {
	cancel context.CancelFunc
}

// actorState is the Rebuilder's mutable, actor-local state (spec.md §3
// RebuilderState), owned exclusively by the Run loop.
type actorState struct {
	book        *book.Book
	cfg         *config.Book
	ignore      *ignorefilter.Filter
	summaryPath string
	themeDir    string
	hbs         *render.HbsState
	serveInfo   serveinfo.ServeInfo

	rebuildCancel context.CancelFunc
	patchCancel   map[string]*patchTask

	pendingOpenBrowser string
	firstRebuildDone   bool
}

// Run processes the inbox until closed. It must run in its own
// goroutine.
func (r *Rebuilder) Run(ctx context.Context) {
	st := &actorState{patchCancel: make(map[string]*patchTask)}

	for {
		select {
		case <-ctx.Done():
			if st.rebuildCancel != nil {
				st.rebuildCancel()
			}
			for _, task := range st.patchCancel {
				task.cancel()
			}
			return
		case msg, ok := <-r.inbox:
			if !ok {
				return
			}
			r.handle(ctx, st, msg)
		}
	}
}

func (r *Rebuilder) handle(ctx context.Context, st *actorState, msg message) {
	switch m := msg.(type) {
	case msgRebuild:
		r.startFullRebuild(ctx, st, m.reloadEnv)

	case msgNewBook:
		r.onNewBook(st, m)

	case msgChangedPaths:
		r.onChangedPaths(ctx, st, m.paths)

	case msgModifiedContent:
		r.onModifiedContent(ctx, st, m.path, m.text)

	case msgOpenBrowser:
		if st.firstRebuildDone {
			if r.deps.OpenBrowser != nil {
				r.deps.OpenBrowser(m.path)
			}
		} else {
			st.pendingOpenBrowser = m.path
		}

	case msgPatchDone:
		// Only clear the slot if it still holds the cancel func this
		// task registered; a newer patch for the same path may have
		// already replaced it.
		if cur, ok := st.patchCancel[m.path]; ok && cur == m.token {
			delete(st.patchCancel, m.path)
		}
	}
}

func (r *Rebuilder) onChangedPaths(ctx context.Context, st *actorState, paths []string) {
	if st.ignore != nil && containsPath(paths, filepath.Join(r.deps.Root, ".gitignore")) {
		st.ignore = ignorefilter.Load(r.deps.Root)
		return
	}
	if st.summaryPath != "" && containsPath(paths, r.bookConfigPath()) {
		r.startFullRebuild(ctx, st, true)
		return
	}
	if st.summaryPath != "" && containsPath(paths, st.summaryPath) || pathUnderDir(paths, st.themeDir) {
		r.startFullRebuild(ctx, st, false)
		return
	}

	for _, p := range paths {
		if st.ignore != nil && st.ignore.IsIgnored(p) {
			continue
		}
		rel, ok := st.relSourcePath(r.deps.Root, p)
		if !ok {
			continue
		}
		if st.hbs == nil {
			continue
		}
		if _, known := st.hbs.PathToChapter[p]; !known {
			continue
		}
		r.spawnPatch(ctx, st, p, rel, "")
	}
}

func (r *Rebuilder) onModifiedContent(ctx context.Context, st *actorState, path, text string) {
	if st.hbs == nil {
		return
	}
	if _, known := st.hbs.PathToChapter[path]; !known {
		return
	}
	rel, ok := st.relSourcePath(r.deps.Root, path)
	if !ok {
		return
	}
	r.spawnPatch(ctx, st, path, rel, text)
}

// spawnPatch starts a background patch render. All actor state it needs
// is snapshotted onto the goroutine's stack before it starts; the
// goroutine never touches st directly (it is owned by Run's goroutine),
// and reports completion back through the inbox via msgPatchDone so the
// patchCancel bookkeeping stays single-threaded.
func (r *Rebuilder) spawnPatch(ctx context.Context, st *actorState, absPath, relSourcePath, editorText string) {
	if prev, ok := st.patchCancel[absPath]; ok {
		prev.cancel()
	}
	patchCtx, cancel := context.WithCancel(ctx)
	task := &patchTask{cancel: cancel}
	st.patchCancel[absPath] = task

	chapterInfo := st.hbs.PathToChapter[absPath]
	chain := preprocess.NewChain(preprocessorNames(st.cfg))
	reg := r.deps.Registry
	recorder := r.deps.Recorder
	retryPolicy := r.deps.RetryPolicy

	go func() {
		defer func() {
			r.inbox <- msgPatchDone{path: absPath, token: task}
		}()

		start := time.Now()
		var renderErr error
		for attempt := 0; attempt <= retryPolicy.MaxRetries; attempt++ {
			if patchCtx.Err() != nil {
				return
			}
			renderErr = runPatch(chapterInfo, chain, reg, absPath, relSourcePath, editorText)
			if renderErr == nil {
				recorder.ObservePatchDuration(time.Since(start), metrics.PatchOutcomeSuccess)
				return
			}
			if bookerrors.Is(renderErr, bookerrors.KindPreprocessorShape) {
				break
			}
			recorder.IncPatchRetry()
			if attempt < retryPolicy.MaxRetries {
				select {
				case <-time.After(retryPolicy.Delay(attempt + 1)):
				case <-patchCtx.Done():
					return
				}
			}
		}

		slog.Warn("patch failed, falling back to full rebuild", logfields.Path(absPath), logfields.Error(renderErr))
		recorder.ObservePatchDuration(time.Since(start), metrics.PatchOutcomeFellBackToRebuild)
		r.Rebuild(false)
	}()
}

// runPatch renders a single chapter. Callers (onChangedPaths,
// onModifiedContent) already reject paths outside the source directory
// via relSourcePath before reaching here, so relSourcePath is always
// non-empty.
func runPatch(existing render.ChapterInfo, chain *preprocess.Chain, reg *registry.Registry, absPath, relSourcePath, editorText string) error {
	content := editorText
	if content == "" {
		loaded, err := render.LoadChapterContent(absPath, existing.ContentLen)
		if err != nil {
			return bookerrors.Wrap(bookerrors.KindRenderFailure, "load chapter content", err)
		}
		content = loaded
	}

	ch := &book.Chapter{Name: existing.Name, SourcePath: relSourcePath, Content: content}
	markdownBody, err := chain.RunSingleChapter(ch)
	if err != nil {
		return bookerrors.Wrap(bookerrors.KindPreprocessorShape, "single-chapter preprocess", err)
	}

	relHTML := render.ToHTMLPath(relSourcePath)
	reg.NewPatch(relHTML, markdownBody)
	return nil
}

func (r *Rebuilder) startFullRebuild(ctx context.Context, st *actorState, reloadEnv bool) {
	if st.rebuildCancel != nil {
		return // single in-flight full rebuild, per spec.md §4.5 concurrency policy
	}
	rebuildCtx, cancel := context.WithCancel(ctx)
	st.rebuildCancel = cancel
	root := r.deps.Root

	go func() {
		start := time.Now()
		result := doFullRebuild(rebuildCtx, root)
		r.deps.Recorder.ObserveRebuildDuration(time.Since(start), outcomeFor(result.err))
		r.inbox <- msgNewBook{book: result.book, cfg: result.cfg, state: result.state, templates: result.templates, reloadEnv: reloadEnv, err: result.err}
	}()
}

func outcomeFor(err error) metrics.RebuildOutcome {
	if err != nil {
		return metrics.RebuildOutcomeFailure
	}
	return metrics.RebuildOutcomeSuccess
}

type rebuildResult struct {
	book      *book.Book
	cfg       *config.Book
	state     *render.HbsState
	templates *render.Templates
	err       error
}

func doFullRebuild(ctx context.Context, root string) rebuildResult {
	cfgPath := filepath.Join(root, "book.toml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return rebuildResult{err: bookerrors.Wrap(bookerrors.KindConfigLoad, "load book.toml", err)}
	}

	b, err := book.Load(cfg.SrcDir(root))
	if err != nil {
		return rebuildResult{err: err}
	}

	chain := preprocess.NewChain(preprocessorNames(cfg))
	b, err = chain.Run(b)
	if err != nil {
		return rebuildResult{err: err}
	}

	// A theme override directory only supplies static assets today; the
	// page-chrome template itself is always the built-in default until
	// internal/assets grows a per-theme index.hbs loader.
	templates, err := render.CompileTemplates(defaultPageTemplate)
	if err != nil {
		return rebuildResult{err: bookerrors.Wrap(bookerrors.KindRenderFailure, "compile templates", err)}
	}

	renderCtx := &render.Context{
		Templates: templates,
		DestDir:   cfg.BuildDir(root),
		Config:    cfg,
		RootDir:   root,
	}
	if ctx.Err() != nil {
		return rebuildResult{err: ctx.Err()}
	}

	state, err := render.FullRender(renderCtx, b)
	if err != nil {
		return rebuildResult{err: bookerrors.Wrap(bookerrors.KindRenderFailure, "full render", err)}
	}

	return rebuildResult{book: b, cfg: cfg, state: state, templates: templates}
}

const defaultPageTemplate = `<!DOCTYPE html>
<html lang="{{language}}">
<head><meta charset="utf-8"><title>{{title}}</title></head>
<body><main>{{{content}}}</main>
{{#each additional_js}}<script src="{{this}}"></script>{{/each}}
</body>
</html>
`

func (r *Rebuilder) onNewBook(st *actorState, m msgNewBook) {
	st.rebuildCancel = nil

	if m.err != nil {
		slog.Error("rebuild failed, serving stale output", logfields.Error(m.err))
		return
	}

	inFlightPaths := make([]string, 0, len(st.patchCancel))
	for p := range st.patchCancel {
		inFlightPaths = append(inFlightPaths, p)
	}

	indexHTML := render.ToHTMLPath(m.state.IndexSourcePath)
	renderCtx := &render.Context{Config: m.cfg, RootDir: r.deps.Root, DestDir: m.cfg.BuildDir(r.deps.Root), Templates: m.templates}
	r.deps.Registry.Rebuild(indexHTML, render.MakeRenderFunc(renderCtx))
	if r.deps.RenderContextReady != nil {
		r.deps.RenderContextReady(renderCtx)
	}

	if m.reloadEnv {
		newInfo := serveinfo.ServeInfo{
			SourceDir:     m.cfg.SrcDir(r.deps.Root),
			ThemeDir:      m.cfg.ThemeDir(r.deps.Root),
			AdditionalJS:  m.cfg.Output.HTML.AdditionalJS,
			AdditionalCSS: m.cfg.Output.HTML.AdditionalCSS,
			Input404Path:  m.cfg.Output.HTML.Input404,
		}
		watcherChanged := newInfo.SourceDir != st.serveInfo.SourceDir || newInfo.ThemeDir != st.serveInfo.ThemeDir
		if watcherChanged && r.deps.ReloadWatcher != nil {
			extras, _ := m.cfg.ExtraWatchDirsAbs(r.deps.Root)
			_ = r.deps.ReloadWatcher(watch.Config{
				SourceDir:      newInfo.SourceDir,
				ThemeDir:       newInfo.ThemeDir,
				ConfigFile:     filepath.Join(r.deps.Root, "book.toml"),
				ExtraWatchDirs: extras,
			})
		}
		if !newInfo.Equal(st.serveInfo) && r.deps.ServeInfoChanged != nil {
			r.deps.ServeInfoChanged(newInfo)
		}
		st.serveInfo = newInfo
		st.themeDir = newInfo.ThemeDir
	}

	st.book = m.book
	st.cfg = m.cfg
	st.hbs = m.state
	st.summaryPath = m.cfg.SummaryPath(r.deps.Root)
	if st.ignore == nil {
		st.ignore = ignorefilter.Load(r.deps.Root)
	}

	if !st.firstRebuildDone {
		st.firstRebuildDone = true
		if st.pendingOpenBrowser != "" && r.deps.OpenBrowser != nil {
			r.deps.OpenBrowser(st.pendingOpenBrowser)
		}
	}

	for _, p := range inFlightPaths {
		r.ChangedPaths([]string{p})
	}
}

func (s *actorState) relSourcePath(root, absPath string) (string, bool) {
	if s.cfg == nil {
		return "", false
	}
	srcDir := s.cfg.SrcDir(root)
	rel, err := filepath.Rel(srcDir, absPath)
	if err != nil || len(rel) >= 2 && rel[:2] == ".." {
		return "", false
	}
	return rel, true
}

func (r *Rebuilder) bookConfigPath() string {
	return filepath.Join(r.deps.Root, "book.toml")
}

func preprocessorNames(cfg *config.Book) []string {
	names := make([]string, 0, len(cfg.Preprocessor))
	for name := range cfg.Preprocessor {
		names = append(names, name)
	}
	return names
}

func containsPath(paths []string, target string) bool {
	if target == "" {
		return false
	}
	for _, p := range paths {
		if p == target {
			return true
		}
	}
	return false
}

func pathUnderDir(paths []string, dir string) bool {
	if dir == "" {
		return false
	}
	for _, p := range paths {
		rel, err := filepath.Rel(dir, p)
		if err == nil && !(len(rel) >= 2 && rel[:2] == "..") {
			return true
		}
	}
	return false
}
