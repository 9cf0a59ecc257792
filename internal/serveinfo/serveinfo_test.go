package serveinfo

import "testing"

func TestServeInfoEqual(t *testing.T) {
	a := ServeInfo{SourceDir: "src", ThemeDir: "theme", AdditionalJS: []string{"a.js"}, AdditionalCSS: []string{"a.css"}, Input404Path: "404.html"}
	b := a
	if !a.Equal(b) {
		t.Fatal("expected identical ServeInfo values to be equal")
	}

	b.ThemeDir = "other-theme"
	if a.Equal(b) {
		t.Fatal("expected differing ThemeDir to be unequal")
	}
}

func TestServeInfoEqualDetectsSliceDifferences(t *testing.T) {
	a := ServeInfo{AdditionalJS: []string{"a.js", "b.js"}}
	b := ServeInfo{AdditionalJS: []string{"a.js"}}
	if a.Equal(b) {
		t.Fatal("expected differing slice length to be unequal")
	}

	c := ServeInfo{AdditionalCSS: []string{"a.css"}}
	d := ServeInfo{AdditionalCSS: []string{"b.css"}}
	if c.Equal(d) {
		t.Fatal("expected differing slice contents to be unequal")
	}
}
