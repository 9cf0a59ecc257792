package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherEmitsBatchOnWrite(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "intro.md"), []byte("# Hi"), 0o600))

	w, err := New(Config{SourceDir: src})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(src, "intro.md"), []byte("# Hi there"), 0o600))

	select {
	case batch := <-w.Batches:
		assert.Contains(t, batch, filepath.Join(src, "intro.md"))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
	}
}

func TestWatcherMissingSourceDirIsFatal(t *testing.T) {
	_, err := New(Config{SourceDir: filepath.Join(t.TempDir(), "does-not-exist")})
	assert.Error(t, err)
}

func TestWatcherMissingThemeDirIsNotFatal(t *testing.T) {
	src := t.TempDir()
	_, err := New(Config{SourceDir: src, ThemeDir: filepath.Join(t.TempDir(), "no-theme")})
	assert.NoError(t, err)
}

func TestWatcherCoalescesBurstIntoOneBatch(t *testing.T) {
	src := t.TempDir()
	w, err := New(Config{SourceDir: src})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(10 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(src, "a.md"), []byte("x"), 0o600))
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case batch := <-w.Batches:
		assert.NotEmpty(t, batch)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
	}

	select {
	case batch := <-w.Batches:
		t.Fatalf("expected burst to coalesce into one batch, got extra batch: %v", batch)
	case <-time.After(100 * time.Millisecond):
	}
}
