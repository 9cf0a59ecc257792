// Package assets embeds the built-in theme's static files (stylesheet and
// the live-patch WebSocket client) so a preview session never depends on
// files existing outside the scratch build directory (spec.md §4.6.5).
package assets

import (
	"embed"
	"io/fs"
)

//go:embed static
var embedded embed.FS

// LivePatchScriptRoute is the URL path the full render injects as an
// additional JavaScript reference; it must stay in sync with
// internal/render.LivePatchScriptPath.
const LivePatchScriptRoute = "/__mdbook_incremental_preview/websocket_live_patch.js"

// FS returns the embedded static tree rooted at "static", ready to be
// served directly via http.FileServer(http.FS(FS())).
func FS() fs.FS {
	sub, err := fs.Sub(embedded, "static")
	if err != nil {
		// embed.FS is compiled in; a missing "static" directory is a
		// build-time error, never a runtime one.
		panic(err)
	}
	return sub
}
