// Package previewer implements the top-level supervising actor of
// spec.md §4.7: it owns the scratch build directory, the listening
// socket, the editor-version map, and the shared ignored-paths set, and
// starts/stops the Rebuilder, Patch Registry, and HTTP server as a unit.
package previewer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/bookpreview/internal/bookerrors"
	"git.home.luguber.info/inful/bookpreview/internal/config"
	"git.home.luguber.info/inful/bookpreview/internal/httpserver"
	"git.home.luguber.info/inful/bookpreview/internal/logfields"
	"git.home.luguber.info/inful/bookpreview/internal/metrics"
	"git.home.luguber.info/inful/bookpreview/internal/openbrowser"
	"git.home.luguber.info/inful/bookpreview/internal/rebuilder"
	"git.home.luguber.info/inful/bookpreview/internal/registry"
	"git.home.luguber.info/inful/bookpreview/internal/retry"
	"git.home.luguber.info/inful/bookpreview/internal/watch"
	"git.home.luguber.info/inful/bookpreview/internal/workspace"
)

// Options configures a Previewer. Hostname/Port name the socket the web
// server listens on; Port 0 lets the kernel pick a free one.
type Options struct {
	Root     string
	Hostname string
	Recorder metrics.Recorder
	Port     int

	// MetricsHandler, if set, is served at /metrics by the subsystem's
	// HTTP server (see internal/httpserver.Server.MetricsHandler).
	MetricsHandler http.Handler
}

// ignoredPathSet is the shared mutable resource spec.md §5 calls out by
// name: "the ignored-paths set is read by the watcher callback and
// written by the Previewer — protected by a reader-writer lock." It
// realizes "pause watching" for files an editor currently has open
// (spec.md §9 Open Question (b)).
type ignoredPathSet struct {
	mu    sync.RWMutex
	paths map[string]struct{}
}

func newIgnoredPathSet() *ignoredPathSet {
	return &ignoredPathSet{paths: make(map[string]struct{})}
}

func (s *ignoredPathSet) add(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[path] = struct{}{}
}

func (s *ignoredPathSet) remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, path)
}

func (s *ignoredPathSet) contains(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.paths[path]
	return ok
}

// message is the Previewer inbox's closed set of variants (spec.md
// §4.7's message table).
type message interface{ isMessage() }

type msgBookRoot struct{ root string }
type msgOpenPreview struct {
	address   string
	browserAt string
}
type msgStopPreview struct{}
type msgOpened struct {
	path    string
	version int64
}
type msgModifiedContent struct {
	path    string
	version int64
	text    string
}
type msgClosed struct{ path string }

func (msgBookRoot) isMessage()         {}
func (msgOpenPreview) isMessage()      {}
func (msgStopPreview) isMessage()      {}
func (msgOpened) isMessage()           {}
func (msgModifiedContent) isMessage()  {}
func (msgClosed) isMessage()           {}

// Previewer is the actor. Construct with New, run with Run in its own
// goroutine, and drive it through the exported methods from any
// goroutine (typically the CLI and the LSP façade).
type Previewer struct {
	opts  Options
	inbox chan message
	done  chan struct{}
}

// New constructs a Previewer with a 16-capacity inbox, per spec.md §5's
// guidance for a control-plane actor.
func New(opts Options) *Previewer {
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Hostname == "" {
		opts.Hostname = "localhost"
	}
	return &Previewer{opts: opts, inbox: make(chan message, 16), done: make(chan struct{})}
}

// BookRoot requests a book-root change.
func (p *Previewer) BookRoot(root string) { p.inbox <- msgBookRoot{root: root} }

// OpenPreview starts the subsystem if it is not already running, or
// forwards an open-browser request to the running Rebuilder. address, if
// non-empty, overrides the configured listen address for this start only
// (spec.md §4.7's `OpenPreview{address?, browser_at?}`); it has no effect
// if the subsystem is already running.
func (p *Previewer) OpenPreview(address, browserAt string) {
	p.inbox <- msgOpenPreview{address: address, browserAt: browserAt}
}

// StopPreview shuts the running subsystem down, if any.
func (p *Previewer) StopPreview() { p.inbox <- msgStopPreview{} }

// Opened records that an editor has a chapter open at the given version.
func (p *Previewer) Opened(path string, version int64) {
	p.inbox <- msgOpened{path: path, version: version}
}

// ModifiedContent delivers an editor buffer edit, version-stamped so
// out-of-order delivery can be detected and dropped.
func (p *Previewer) ModifiedContent(path string, version int64, text string) {
	p.inbox <- msgModifiedContent{path: path, version: version, text: text}
}

// Closed records that an editor has closed a chapter.
func (p *Previewer) Closed(path string) { p.inbox <- msgClosed{path: path} }

// Close shuts the inbox down; Run returns once drained.
func (p *Previewer) Close() { close(p.inbox) }

// Done is closed once Run has finished tearing down any running
// subsystem, for callers that need to wait out a graceful shutdown.
func (p *Previewer) Done() <-chan struct{} { return p.done }

// actorState is the Previewer's mutable, actor-local state (spec.md §3
// EditorState plus the running subsystem handle), owned exclusively by
// the Run loop except for the ignoredPathSet (see its doc comment).
type actorState struct {
	root     string
	sub      *subsystem
	versions map[string]int64
	ignored  *ignoredPathSet
}

// Run processes the inbox until closed or ctx is cancelled. It must run
// in its own goroutine.
func (p *Previewer) Run(ctx context.Context) {
	st := &actorState{
		root:     p.opts.Root,
		versions: make(map[string]int64),
		ignored:  newIgnoredPathSet(),
	}
	defer close(p.done)

	for {
		select {
		case <-ctx.Done():
			if st.sub != nil {
				st.sub.stop()
			}
			return
		case msg, ok := <-p.inbox:
			if !ok {
				if st.sub != nil {
					st.sub.stop()
				}
				return
			}
			p.handle(ctx, st, msg)
		}
	}
}

func (p *Previewer) handle(ctx context.Context, st *actorState, msg message) {
	switch m := msg.(type) {
	case msgBookRoot:
		p.onBookRoot(ctx, st, m.root)

	case msgOpenPreview:
		p.onOpenPreview(ctx, st, m.address, m.browserAt)

	case msgStopPreview:
		if st.sub != nil {
			st.sub.stop()
			st.sub = nil
		}

	case msgOpened:
		if cur, ok := st.versions[m.path]; !ok || m.version > cur {
			st.versions[m.path] = m.version
		}
		st.ignored.add(m.path)

	case msgModifiedContent:
		cur, known := st.versions[m.path]
		if known && m.version <= cur {
			slog.Warn("dropped out-of-order edit",
				logfields.Path(m.path), logfields.Version(m.version),
				logfields.Error(bookerrors.New(bookerrors.KindEditorOutOfOrder, m.path)))
			return
		}
		st.versions[m.path] = m.version
		if st.sub != nil {
			st.sub.reb.ModifiedContent(m.path, m.text)
		}

	case msgClosed:
		delete(st.versions, m.path)
		st.ignored.remove(m.path)
	}
}

func (p *Previewer) onBookRoot(ctx context.Context, st *actorState, root string) {
	if root == st.root {
		return
	}
	wasRunning := st.sub != nil
	if st.sub != nil {
		st.sub.stop()
		st.sub = nil
	}
	st.root = root
	if wasRunning {
		sub, err := p.startSubsystem(ctx, st, "")
		if err != nil {
			slog.Error("failed to restart preview subsystem for new book root", logfields.Path(root), logfields.Error(err))
			return
		}
		st.sub = sub
	}
}

func (p *Previewer) onOpenPreview(ctx context.Context, st *actorState, address, browserAt string) {
	if st.sub == nil {
		sub, err := p.startSubsystem(ctx, st, address)
		if err != nil {
			slog.Error("failed to start preview subsystem", logfields.Path(st.root), logfields.Error(err))
			return
		}
		st.sub = sub
		if browserAt != "" {
			sub.reb.OpenBrowser(browserAt)
		}
		return
	}
	// Already running; spec.md §4.7 only forwards OpenBrowser in this
	// case, so a later address is not applied to a live subsystem.
	if browserAt != "" {
		st.sub.reb.OpenBrowser(browserAt)
	}
}

// subsystem bundles one running instance of the Rebuilder/Registry/HTTP
// server trio, plus the resources the Previewer must release on
// shutdown (spec.md §4.7's "owns the temporary build directory").
type subsystem struct {
	cancel       context.CancelFunc
	reg          *registry.Registry
	reb          *rebuilder.Rebuilder
	http         *http.Server
	workspaceMgr *workspace.Manager
	listenAddr   string

	ignored *ignoredPathSet

	mu            sync.Mutex
	watcher       *watch.Watcher
	watcherCancel context.CancelFunc
}

func (p *Previewer) startSubsystem(parentCtx context.Context, st *actorState, addressOverride string) (*subsystem, error) {
	root := st.root
	cfgPath := filepath.Join(root, "book.toml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, bookerrors.Wrap(bookerrors.KindConfigLoad, "load book.toml", err)
	}
	wc, err := watchConfigFor(root, cfg, cfgPath)
	if err != nil {
		return nil, bookerrors.Wrap(bookerrors.KindWatcherSetup, "extra-watch-dirs", err)
	}

	mgr := workspace.NewManagerAt(cfg.BuildDir(root))
	if err := mgr.Create(); err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", listenAddrFor(p.opts, addressOverride))
	if err != nil {
		_ = mgr.Cleanup()
		return nil, fmt.Errorf("listen: %w", err)
	}

	reg := registry.New(p.opts.Recorder)
	go reg.Run()

	srv := httpserver.New(reg, p.opts.Recorder)
	srv.MetricsHandler = p.opts.MetricsHandler

	sub := &subsystem{reg: reg, workspaceMgr: mgr, listenAddr: ln.Addr().String(), ignored: st.ignored}

	deps := rebuilder.Deps{
		Root:             root,
		Registry:         reg,
		Recorder:         p.opts.Recorder,
		RetryPolicy:      retry.NewPolicy(retry.BackoffLinear, time.Second, 30*time.Second, 1),
		ServeInfoChanged: srv.UpdateServeInfo,
		RenderContextReady: srv.UpdateRenderContext,
		ReloadWatcher: func(wc watch.Config) error {
			return sub.reloadWatcher(parentCtx, wc)
		},
		OpenBrowser: func(relPath string) {
			p.openBrowserAt(sub.listenAddr, relPath)
		},
	}
	reb := rebuilder.New(deps)
	sub.reb = reb
	srv.RequestRebuild = reb.Rebuild

	ctx, cancel := context.WithCancel(parentCtx)
	sub.cancel = cancel
	go reb.Run(ctx)

	if err := sub.reloadWatcher(ctx, wc); err != nil {
		cancel()
		reb.Close()
		reg.Close()
		_ = ln.Close()
		_ = mgr.Cleanup()
		return nil, bookerrors.Wrap(bookerrors.KindWatcherSetup, "initial watcher setup", err)
	}

	sub.http = &http.Server{Handler: srv}
	go func() {
		if err := sub.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server stopped", logfields.Error(err))
		}
	}()

	reb.Rebuild(true)

	return sub, nil
}

// listenAddrFor resolves the TCP address to bind for one subsystem start.
// override, if non-empty, is the LSP-supplied socket-address string
// (spec.md §4.7/§4.8); a bare hostname overrides only the host and keeps
// opts.Port, while a "host:port" pair overrides both.
func listenAddrFor(opts Options, override string) string {
	if override == "" {
		return fmt.Sprintf("%s:%d", opts.Hostname, opts.Port)
	}
	if host, port, err := net.SplitHostPort(override); err == nil {
		return net.JoinHostPort(host, port)
	}
	return net.JoinHostPort(override, fmt.Sprintf("%d", opts.Port))
}

func watchConfigFor(root string, cfg *config.Book, cfgPath string) (watch.Config, error) {
	extras, err := cfg.ExtraWatchDirsAbs(root)
	if err != nil {
		return watch.Config{}, err
	}
	return watch.Config{
		SourceDir:      cfg.SrcDir(root),
		ThemeDir:       cfg.ThemeDir(root),
		ConfigFile:     cfgPath,
		ExtraWatchDirs: extras,
	}, nil
}

// reloadWatcher replaces the running watcher with one bound to cfg,
// stopping the previous watcher first. Called both for the initial
// setup and whenever a config reload changes the source or theme
// directory (rebuilder.Deps.ReloadWatcher).
func (s *subsystem) reloadWatcher(parentCtx context.Context, cfg watch.Config) error {
	w, err := watch.New(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.watcherCancel != nil {
		s.watcherCancel()
	}
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	watchCtx, cancel := context.WithCancel(parentCtx)
	s.watcher = w
	s.watcherCancel = cancel
	reb := s.reb
	ignored := s.ignored
	s.mu.Unlock()

	go w.Run(watchCtx)
	go forwardBatches(watchCtx, w, reb, ignored)

	return nil
}

// forwardBatches delivers debounced watcher batches to the Rebuilder,
// dropping any path currently paused by an open editor buffer
// (spec.md §4.1's "ignore correctness" extended to editor state, and
// §9 Open Question (b)'s "pause watching" realized via the shared
// ignored-paths set).
func forwardBatches(ctx context.Context, w *watch.Watcher, reb *rebuilder.Rebuilder, ignored *ignoredPathSet) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Batches:
			if !ok {
				return
			}
			kept := make([]string, 0, len(batch))
			for _, p := range batch {
				if !ignored.contains(p) {
					kept = append(kept, p)
				}
			}
			if len(kept) > 0 {
				reb.ChangedPaths(kept)
			}
		}
	}
}

func (p *Previewer) openBrowserAt(listenAddr, relPath string) {
	url := fmt.Sprintf("http://%s/%s", listenAddr, strings.TrimPrefix(relPath, "/"))
	if err := openbrowser.Open(url); err != nil {
		slog.Warn("failed to open browser", logfields.Path(url), logfields.Error(err))
	}
}

// stop tears subsystems down in spec.md §4.7's order: server, then
// Rebuilder, then Patch Registry, then the scratch build directory.
func (s *subsystem) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown error", logfields.Error(err))
	}

	s.mu.Lock()
	if s.watcherCancel != nil {
		s.watcherCancel()
	}
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	s.mu.Unlock()

	s.cancel()
	s.reb.Close()
	s.reg.Close()

	if err := s.workspaceMgr.Cleanup(); err != nil {
		slog.Warn("workspace cleanup failed", logfields.Error(err))
	}
}
