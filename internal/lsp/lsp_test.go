package lsp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePreviewer struct {
	opened         []string
	openedVersion  int64
	modifiedPath   string
	modifiedVer    int64
	modifiedText   string
	closedPath     string
	openAddress    string
	openBrowserAt  string
	openCalls      int
	stopCalls      int
}

func (f *fakePreviewer) OpenPreview(address, browserAt string) {
	f.openCalls++
	f.openAddress = address
	f.openBrowserAt = browserAt
}
func (f *fakePreviewer) StopPreview() { f.stopCalls++ }
func (f *fakePreviewer) Opened(path string, version int64) {
	f.opened = append(f.opened, path)
	f.openedVersion = version
}
func (f *fakePreviewer) ModifiedContent(path string, version int64, text string) {
	f.modifiedPath, f.modifiedVer, f.modifiedText = path, version, text
}
func (f *fakePreviewer) Closed(path string) { f.closedPath = path }

type fakeConn struct {
	notifications []string
	respondedID   json.RawMessage
	respondedErr  error
}

func (f *fakeConn) Notify(method string, params any) error {
	f.notifications = append(f.notifications, method)
	return nil
}

func (f *fakeConn) Respond(id json.RawMessage, result any, err error) error {
	f.respondedID = id
	f.respondedErr = err
	return nil
}

func TestDidOpenForwardsMarkdownFiles(t *testing.T) {
	prev := &fakePreviewer{}
	s := New(prev, &fakeConn{})

	s.DidOpen(DidOpenTextDocumentParams{TextDocument: TextDocumentItem{
		URI: "file:///book/src/intro.md", LanguageID: "markdown", Version: 3, Text: "# Hi",
	}})

	require.Len(t, prev.opened, 1)
	assert.Equal(t, "/book/src/intro.md", prev.opened[0])
	assert.Equal(t, int64(3), prev.openedVersion)
}

func TestDidOpenIgnoresNonMarkdown(t *testing.T) {
	prev := &fakePreviewer{}
	s := New(prev, &fakeConn{})

	s.DidOpen(DidOpenTextDocumentParams{TextDocument: TextDocumentItem{
		URI: "file:///book/book.toml", LanguageID: "toml", Version: 1,
	}})

	assert.Empty(t, prev.opened)
}

func TestDidChangeUsesLastContentChange(t *testing.T) {
	prev := &fakePreviewer{}
	s := New(prev, &fakeConn{})

	s.DidChange(DidChangeTextDocumentParams{
		TextDocument: VersionedTextDocumentIdentifier{URI: "file:///book/src/intro.md", Version: 7},
		ContentChanges: []TextDocumentContentChangeEvent{
			{Text: "stale"},
			{Text: "current"},
		},
	})

	assert.Equal(t, "/book/src/intro.md", prev.modifiedPath)
	assert.Equal(t, int64(7), prev.modifiedVer)
	assert.Equal(t, "current", prev.modifiedText)
}

func TestDidCloseForwardsPath(t *testing.T) {
	prev := &fakePreviewer{}
	s := New(prev, &fakeConn{})

	s.DidClose(DidCloseTextDocumentParams{TextDocument: TextDocumentIdentifier{URI: "file:///book/src/intro.md"}})

	assert.Equal(t, "/book/src/intro.md", prev.closedPath)
}

func TestExecuteCommandOpenPreviewWithBrowserArg(t *testing.T) {
	prev := &fakePreviewer{}
	conn := &fakeConn{}
	s := New(prev, conn)

	addr, _ := json.Marshal("127.0.0.1:3000")
	browserAt, _ := json.Marshal("intro.html")

	err := s.ExecuteCommand(json.RawMessage(`1`), ExecuteCommandParams{
		Command:   CommandOpenPreview,
		Arguments: []json.RawMessage{addr, browserAt},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, prev.openCalls)
	assert.Equal(t, "127.0.0.1:3000", prev.openAddress)
	assert.Equal(t, "intro.html", prev.openBrowserAt)
	assert.NoError(t, conn.respondedErr)
}

func TestExecuteCommandStopPreview(t *testing.T) {
	prev := &fakePreviewer{}
	conn := &fakeConn{}
	s := New(prev, conn)

	err := s.ExecuteCommand(json.RawMessage(`2`), ExecuteCommandParams{Command: CommandStopPreview})

	require.NoError(t, err)
	assert.Equal(t, 1, prev.stopCalls)
}

func TestExecuteCommandUnknownRespondsWithError(t *testing.T) {
	prev := &fakePreviewer{}
	conn := &fakeConn{}
	s := New(prev, conn)

	err := s.ExecuteCommand(json.RawMessage(`3`), ExecuteCommandParams{Command: "nonsense"})

	require.NoError(t, err)
	assert.Error(t, conn.respondedErr)
}

func TestCapabilitiesAdvertisesFullSyncAndCommands(t *testing.T) {
	s := New(&fakePreviewer{}, &fakeConn{})
	caps := s.Capabilities()
	assert.Equal(t, TextDocumentSyncFull, caps.TextDocumentSync)
	assert.ElementsMatch(t, []string{CommandOpenPreview, CommandStopPreview}, caps.ExecuteCommands)
}
