// Package serveinfo defines ServeInfo, the snapshot the web server needs
// whenever its inputs change (spec.md §3). It has no dependencies on
// either the Rebuilder or the HTTP server so both can import it without
// creating a cycle (spec.md §9's "cycles" note).
package serveinfo

// ServeInfo is the web server's configuration snapshot.
type ServeInfo struct {
	SourceDir     string
	ThemeDir      string
	AdditionalJS  []string
	AdditionalCSS []string
	Input404Path  string
}

// Equal reports whether two snapshots carry the same values, used by the
// Rebuilder to decide whether a new ServeInfo needs to be emitted.
func (s ServeInfo) Equal(other ServeInfo) bool {
	if s.SourceDir != other.SourceDir || s.ThemeDir != other.ThemeDir || s.Input404Path != other.Input404Path {
		return false
	}
	return stringSliceEqual(s.AdditionalJS, other.AdditionalJS) && stringSliceEqual(s.AdditionalCSS, other.AdditionalCSS)
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
