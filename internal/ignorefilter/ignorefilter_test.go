package ignorefilter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNoGitignoreIgnoresNothing(t *testing.T) {
	root := t.TempDir()
	f := Load(root)
	assert.False(t, f.IsIgnored(filepath.Join(root, "src", "scratch", "ignored.md")))
}

func TestIsIgnoredMatchesPattern(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("scratch/\n"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "scratch"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "scratch", "ignored.md"), []byte("x"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "kept.md"), []byte("x"), 0o600))

	f := Load(root)
	assert.True(t, f.IsIgnored(filepath.Join(root, "src", "scratch", "ignored.md")))
	assert.False(t, f.IsIgnored(filepath.Join(root, "src", "kept.md")))
}

func TestIsIgnoredOutsideRootNeverIgnored(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*\n"), 0o600))

	f := Load(root)
	outside := t.TempDir()
	assert.False(t, f.IsIgnored(filepath.Join(outside, "anything.md")))
}
