package assets

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSContainsLivePatchScript(t *testing.T) {
	data, err := fs.ReadFile(FS(), "js/websocket_live_patch.js")
	require.NoError(t, err)
	assert.Contains(t, string(data), "WebSocket")
}

func TestFSContainsBaseStylesheet(t *testing.T) {
	data, err := fs.ReadFile(FS(), "css/base.css")
	require.NoError(t, err)
	assert.Contains(t, string(data), "font-family")
}
