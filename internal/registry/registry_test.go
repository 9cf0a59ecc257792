package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New(nil)
	go r.Run()
	t.Cleanup(r.Close)
	return r
}

func upperRender(markdown string) (string, error) {
	return fmt.Sprintf("<p>%s</p>", markdown), nil
}

func TestWatchCreatesEntryIdempotently(t *testing.T) {
	r := newTestRegistry(t)

	sub1 := r.Watch("intro.html")
	sub2 := r.Watch("intro.html")

	assert.True(t, r.HasPatch("intro.html"))
	sub1.Unsubscribe()
	sub2.Unsubscribe()
}

func TestNewPatchDeliversRenderedHTML(t *testing.T) {
	r := newTestRegistry(t)
	r.Rebuild("", upperRender)

	sub := r.Watch("intro.html")
	defer sub.Unsubscribe()

	// drain the initial empty value
	select {
	case <-sub.C:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial value")
	}

	r.NewPatch("intro.html", "# Hi")

	select {
	case body := <-sub.C:
		assert.Equal(t, BodyHTML, body.Kind)
		assert.Equal(t, "<p># Hi</p>", body.HTML)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for patch")
	}
}

func TestIdempotentPatchSkipsIdenticalMarkdown(t *testing.T) {
	r := newTestRegistry(t)
	r.Rebuild("", upperRender)

	sub := r.Watch("intro.html")
	defer sub.Unsubscribe()
	<-sub.C // initial empty

	r.NewPatch("intro.html", "# Hi")
	<-sub.C // first render

	r.NewPatch("intro.html", "# Hi") // identical; must not publish again

	select {
	case body := <-sub.C:
		t.Fatalf("expected no further publish for identical markdown, got %+v", body)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestRebuildSendsReloadToExistingSubscribers(t *testing.T) {
	r := newTestRegistry(t)
	r.Rebuild("", upperRender)

	sub := r.Watch("intro.html")
	defer sub.Unsubscribe()
	<-sub.C // initial

	r.Rebuild("intro.html", upperRender)

	select {
	case body := <-sub.C:
		assert.Equal(t, BodyReload, body.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reload sentinel")
	}

	assert.False(t, r.HasPatch("intro.html"))
}

func TestWatchEmptyPathResolvesToIndex(t *testing.T) {
	r := newTestRegistry(t)
	r.Rebuild("intro.html", upperRender)

	r.NewPatch("intro.html", "# Hi")

	assert.True(t, r.HasPatch(""))
	assert.True(t, r.HasPatch("intro.html"))

	sub := r.Watch("")
	defer sub.Unsubscribe()
	require.NotNil(t, sub.C)
}

func TestClearDiscardsWithoutPublishing(t *testing.T) {
	r := newTestRegistry(t)
	r.Rebuild("", upperRender)

	sub := r.Watch("intro.html")
	defer sub.Unsubscribe()
	<-sub.C

	r.Clear()

	select {
	case body := <-sub.C:
		t.Fatalf("expected no publish on Clear, got %+v", body)
	case <-time.After(150 * time.Millisecond):
	}
	assert.False(t, r.HasPatch("intro.html"))
}
