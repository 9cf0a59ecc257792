// Package logfields provides canonical log field names and helpers for structured logging in bookpreview.
package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyChapter    = "chapter"
	KeyPath       = "path"
	KeyRelPath    = "rel_path"
	KeySourcePath = "source_path"
	KeyVersion    = "version"
	KeyError      = "error"
	KeyWorker     = "worker"
	KeyMethod     = "method"
	KeyRemoteAddr = "remote_addr"
	KeyStatus     = "status"
	KeyDurationMS = "duration_ms"
	KeyReloadEnv  = "reload_env"
	KeyBuildID    = "build_id"
	KeyClients    = "clients"
)

// Chapter returns a slog.Attr for a chapter name.
func Chapter(name string) slog.Attr { return slog.String(KeyChapter, name) }

// Path returns a slog.Attr for a generic path.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// RelPath returns a slog.Attr for a relative HTML path.
func RelPath(p string) slog.Attr { return slog.String(KeyRelPath, p) }

// SourcePath returns a slog.Attr for an absolute chapter source path.
func SourcePath(p string) slog.Attr { return slog.String(KeySourcePath, p) }

// Version returns a slog.Attr for an editor document version.
func Version(v int64) slog.Attr { return slog.Int64(KeyVersion, v) }

// Worker returns a slog.Attr for a worker/component name.
func Worker(id string) slog.Attr { return slog.String(KeyWorker, id) }

// Method returns a slog.Attr for an HTTP method.
func Method(m string) slog.Attr { return slog.String(KeyMethod, m) }

// RemoteAddr returns a slog.Attr for a remote address.
func RemoteAddr(a string) slog.Attr { return slog.String(KeyRemoteAddr, a) }

// Status returns a slog.Attr for an HTTP status code.
func Status(code int) slog.Attr { return slog.Int(KeyStatus, code) }

// DurationMS returns a slog.Attr for a duration in milliseconds.
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// ReloadEnv returns a slog.Attr recording whether a rebuild reconsiders the environment.
func ReloadEnv(b bool) slog.Attr { return slog.Bool(KeyReloadEnv, b) }

// BuildID returns a slog.Attr for a rebuild identifier.
func BuildID(id string) slog.Attr { return slog.String(KeyBuildID, id) }

// Clients returns a slog.Attr for a subscriber/connection count.
func Clients(n int) slog.Attr { return slog.Int(KeyClients, n) }

// Error returns a slog.Attr for an error, or an empty string if nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
