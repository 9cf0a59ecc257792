// Package lsp implements the editor-facing façade of spec.md §4.8: it
// translates Language Server Protocol lifecycle notifications and
// workspace/executeCommand requests into calls on a Previewer handle.
//
// Per spec.md §1's external-collaborator carve-out, this package does not
// implement JSON-RPC framing or a stdio/socket transport. It is handed a
// Conn — whatever the embedding process already uses to write responses
// and notifications back to the client — and plain structs mirroring the
// LSP specification's JSON shapes. Wiring a framing library is out of
// scope (see DESIGN.md).
package lsp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"git.home.luguber.info/inful/bookpreview/internal/logfields"
)

// Conn is the minimal surface the façade needs from its transport: send a
// server-to-client notification, and respond to a request by ID.
type Conn interface {
	Notify(method string, params any) error
	Respond(id json.RawMessage, result any, err error) error
}

// PreviewerHandle is the subset of *previewer.Previewer the façade drives.
// Declared locally (rather than imported) so this package has no
// dependency on internal/previewer's actor internals, matching spec.md
// §4.8's description of the façade as a thin translation layer.
type PreviewerHandle interface {
	OpenPreview(address, browserAt string)
	StopPreview()
	Opened(path string, version int64)
	ModifiedContent(path string, version int64, text string)
	Closed(path string)
}

// Server adapts LSP lifecycle events to PreviewerHandle calls.
type Server struct {
	preview PreviewerHandle
	conn    Conn
}

// New constructs a façade bound to preview and conn.
func New(preview PreviewerHandle, conn Conn) *Server {
	return &Server{preview: preview, conn: conn}
}

// ServerCapabilities is the subset of the LSP InitializeResult this
// façade advertises: full-document sync, and the two executeCommand
// names it understands.
type ServerCapabilities struct {
	TextDocumentSync int      `json:"textDocumentSync"`
	ExecuteCommands  []string `json:"executeCommandProvider"`
}

// TextDocumentSyncFull is the LSP TextDocumentSyncKind value for "always
// send the complete buffer" (spec.md §4.8's sync-mode requirement).
const TextDocumentSyncFull = 1

// Capabilities returns the server's fixed InitializeResult payload.
func (s *Server) Capabilities() ServerCapabilities {
	return ServerCapabilities{
		TextDocumentSync: TextDocumentSyncFull,
		ExecuteCommands:  []string{CommandOpenPreview, CommandStopPreview},
	}
}

// TextDocumentItem mirrors the LSP shape carried by didOpen.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int64  `json:"version"`
	Text       string `json:"text"`
}

// DidOpenTextDocumentParams mirrors textDocument/didOpen's params.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// VersionedTextDocumentIdentifier mirrors the LSP shape carried by
// didChange and didClose.
type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int64  `json:"version"`
}

// TextDocumentContentChangeEvent mirrors one element of didChange's
// contentChanges array under full-document sync (no range).
type TextDocumentContentChangeEvent struct {
	Text string `json:"text"`
}

// DidChangeTextDocumentParams mirrors textDocument/didChange's params.
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// TextDocumentIdentifier mirrors the LSP shape carried by didClose.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// DidCloseTextDocumentParams mirrors textDocument/didClose's params.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// ExecuteCommandParams mirrors workspace/executeCommand's params.
type ExecuteCommandParams struct {
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments"`
}

const (
	// CommandOpenPreview is the executeCommand name that starts a preview
	// session (or, if one is running, only opens the browser), with
	// optional positional arguments [socketAddress, openBrowserAt].
	CommandOpenPreview = "open_preview"
	// CommandStopPreview is the executeCommand name that stops the
	// running preview session. It takes no arguments.
	CommandStopPreview = "stop_preview"
)

const markdownLanguageID = "markdown"
const fileURIScheme = "file"

// DidOpen handles textDocument/didOpen: a markdown file:// buffer opens
// under editor control and is forwarded as Previewer.Opened.
func (s *Server) DidOpen(p DidOpenTextDocumentParams) {
	if p.TextDocument.LanguageID != markdownLanguageID {
		return
	}
	path, ok := filePathFromURI(p.TextDocument.URI)
	if !ok {
		slog.Warn("didOpen: non-file URI ignored", logfields.Path(p.TextDocument.URI))
		return
	}
	s.preview.Opened(path, p.TextDocument.Version)
}

// DidChange handles textDocument/didChange: under full-document sync the
// buffer's complete text is the last element of contentChanges. More
// than one element is unexpected under that sync mode and is logged.
func (s *Server) DidChange(p DidChangeTextDocumentParams) {
	if len(p.ContentChanges) == 0 {
		return
	}
	if len(p.ContentChanges) > 1 {
		slog.Warn("didChange: more than one content change under full-document sync",
			logfields.Path(p.TextDocument.URI))
	}
	path, ok := filePathFromURI(p.TextDocument.URI)
	if !ok {
		slog.Warn("didChange: non-file URI ignored", logfields.Path(p.TextDocument.URI))
		return
	}
	last := p.ContentChanges[len(p.ContentChanges)-1]
	s.preview.ModifiedContent(path, p.TextDocument.Version, last.Text)
}

// DidClose handles textDocument/didClose.
func (s *Server) DidClose(p DidCloseTextDocumentParams) {
	path, ok := filePathFromURI(p.TextDocument.URI)
	if !ok {
		slog.Warn("didClose: non-file URI ignored", logfields.Path(p.TextDocument.URI))
		return
	}
	s.preview.Closed(path)
}

// ExecuteCommand handles workspace/executeCommand, dispatching to
// OpenPreview or StopPreview. id is the JSON-RPC request ID to respond to.
func (s *Server) ExecuteCommand(id json.RawMessage, p ExecuteCommandParams) error {
	switch p.Command {
	case CommandOpenPreview:
		address, err := stringArg(p.Arguments, 0)
		if err != nil {
			return s.conn.Respond(id, nil, err)
		}
		browserAt, err := stringArg(p.Arguments, 1)
		if err != nil {
			return s.conn.Respond(id, nil, err)
		}
		s.preview.OpenPreview(address, browserAt)
		return s.conn.Respond(id, nil, nil)

	case CommandStopPreview:
		s.preview.StopPreview()
		return s.conn.Respond(id, nil, nil)

	default:
		return s.conn.Respond(id, nil, fmt.Errorf("unknown command %q", p.Command))
	}
}

// stringArg decodes the positional argument at index, returning "" if
// args is too short (the argument is optional).
func stringArg(args []json.RawMessage, index int) (string, error) {
	if index >= len(args) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(args[index], &s); err != nil {
		return "", fmt.Errorf("argument %d: %w", index, err)
	}
	return s, nil
}

// filePathFromURI extracts the filesystem path from a file:// URI, the
// only scheme spec.md §4.8 names.
func filePathFromURI(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != fileURIScheme {
		return "", false
	}
	if u.Path == "" {
		return "", false
	}
	return u.Path, true
}
