// Package registry implements the Patch Registry actor of spec.md §4.4:
// a per-relative-HTML-path cache of the latest rendered HTML body
// fragment, with a change-notifier each browser tab's WebSocket handler
// subscribes to.
//
// Per spec.md §9 Open Question (c), the notifier carries a tagged union
// (Body) instead of a raw string with a magic "__RELOAD" literal, so a
// legitimate chapter body that happens to equal that literal can never be
// confused with an actual reload instruction. The WebSocket wire format
// in spec.md §6 is unaffected: internal/httpserver still writes the
// literal text "__RELOAD" for a BodyReload value.
package registry

import (
	"log/slog"

	"git.home.luguber.info/inful/bookpreview/internal/logfields"
	"git.home.luguber.info/inful/bookpreview/internal/metrics"
)

// BodyKind discriminates the two shapes a notifier value can take.
type BodyKind int

const (
	BodyHTML BodyKind = iota
	BodyReload
)

// Body is the value carried by an entry's change-notifier.
type Body struct {
	Kind BodyKind
	HTML string
}

// RenderFunc renders and post-processes preprocessed Markdown into an
// HTML body fragment, standing in for spec.md §4.3's "render
// configuration" (the renderer façade is injected so the registry stays
// decoupled from internal/render).
type RenderFunc func(markdown string) (string, error)

const subscriberBuffer = 16

type entry struct {
	lastMarkdown string
	body         Body
	subs         map[int]chan Body
	nextSubID    int
}

func newEntry() *entry {
	return &entry{subs: make(map[int]chan Body)}
}

func (e *entry) publish(b Body) {
	e.body = b
	for _, ch := range e.subs {
		select {
		case ch <- b:
		default:
			// Drain the stale value and retry once; a live-reload
			// subscriber only ever cares about the latest body.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- b:
			default:
			}
		}
	}
}

// Subscription is returned by Watch: C delivers the current value
// immediately followed by every subsequent publish. Unsubscribe must be
// called when the caller is done (e.g. WebSocket connection closed).
type Subscription struct {
	C           <-chan Body
	Unsubscribe func()
}

type request interface{ isRequest() }

type reqNewPatch struct {
	path     string
	markdown string
}

type reqRebuild struct {
	indexPath string
	render    RenderFunc
}

type reqClear struct{}

type reqWatch struct {
	path  string
	reply chan Subscription
}

type reqHasPatch struct {
	path  string
	reply chan bool
}

type reqUnsubscribe struct {
	path string
	id   int
}

func (reqNewPatch) isRequest()    {}
func (reqRebuild) isRequest()     {}
func (reqClear) isRequest()       {}
func (reqWatch) isRequest()       {}
func (reqHasPatch) isRequest()    {}
func (reqUnsubscribe) isRequest() {}

// Registry is the single-owner actor. Construct with New and call Run in
// its own goroutine; every other method sends a message to its inbox.
type Registry struct {
	inbox chan request
	rec   metrics.Recorder
}

// New constructs a Registry with a 32-capacity inbox (spec.md §5
// recommends 8-64).
func New(rec metrics.Recorder) *Registry {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Registry{inbox: make(chan request, 32), rec: rec}
}

// Run processes the inbox until it is closed (Close). It must run in its
// own goroutine.
func (r *Registry) Run() {
	entries := make(map[string]*entry)
	var indexPath string
	var render RenderFunc

	resolve := func(path string) string {
		if path == "" {
			return indexPath
		}
		return path
	}

	for req := range r.inbox {
		switch m := req.(type) {
		case reqNewPatch:
			e, ok := entries[m.path]
			if !ok {
				e = newEntry()
				entries[m.path] = e
			}
			if e.lastMarkdown == m.markdown {
				continue
			}
			e.lastMarkdown = m.markdown
			if render == nil {
				continue
			}
			html, err := render(m.markdown)
			if err != nil {
				slog.Warn("patch render failed", logfields.RelPath(m.path), logfields.Error(err))
				continue
			}
			e.publish(Body{Kind: BodyHTML, HTML: html})
			r.rec.SetRegistryEntries(len(entries))

		case reqRebuild:
			for _, e := range entries {
				e.publish(Body{Kind: BodyReload})
			}
			entries = make(map[string]*entry)
			indexPath = m.indexPath
			render = m.render
			r.rec.SetRegistryEntries(0)

		case reqClear:
			entries = make(map[string]*entry)
			r.rec.SetRegistryEntries(0)

		case reqWatch:
			path := resolve(m.path)
			e, ok := entries[path]
			if !ok {
				e = newEntry()
				entries[path] = e
			}
			id := e.nextSubID
			e.nextSubID++
			ch := make(chan Body, subscriberBuffer)
			ch <- e.body
			e.subs[id] = ch
			r.rec.SetRegistryEntries(len(entries))
			m.reply <- Subscription{
				C: ch,
				Unsubscribe: func() {
					r.inbox <- reqUnsubscribe{path: path, id: id}
				},
			}

		case reqHasPatch:
			path := resolve(m.path)
			_, ok := entries[path]
			m.reply <- ok

		case reqUnsubscribe:
			if e, ok := entries[m.path]; ok {
				delete(e.subs, m.id)
			}
		}
	}
}

// Close shuts the actor's inbox; Run returns once drained.
func (r *Registry) Close() {
	close(r.inbox)
}

// NewPatch publishes newly preprocessed Markdown for a chapter's
// relative HTML path (fire-and-forget).
func (r *Registry) NewPatch(relHTMLPath, markdown string) {
	r.inbox <- reqNewPatch{path: relHTMLPath, markdown: markdown}
}

// Rebuild forces a reload on every existing entry, then clears the
// entry set and replaces the stored index path and render function
// (fire-and-forget).
func (r *Registry) Rebuild(indexPath string, render RenderFunc) {
	r.inbox <- reqRebuild{indexPath: indexPath, render: render}
}

// Clear discards all entries without publishing, for graceful shutdown.
func (r *Registry) Clear() {
	r.inbox <- reqClear{}
}

// Watch subscribes to relHTMLPath (or the stored index path, if empty).
func (r *Registry) Watch(relHTMLPath string) Subscription {
	reply := make(chan Subscription, 1)
	r.inbox <- reqWatch{path: relHTMLPath, reply: reply}
	return <-reply
}

// HasPatch reports whether an entry currently exists for relHTMLPath (or
// the stored index path, if empty).
func (r *Registry) HasPatch(relHTMLPath string) bool {
	reply := make(chan bool, 1)
	r.inbox <- reqHasPatch{path: relHTMLPath, reply: reply}
	return <-reply
}

