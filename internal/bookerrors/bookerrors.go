// Package bookerrors implements the error-kind taxonomy of the preview
// engine's failure semantics: every error raised by a core component is
// classified into one of the Kinds below so that callers (the CLI, the
// Rebuilder's fallback logic, the HTTP error responses) can react
// consistently instead of inspecting error strings.
package bookerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for routing and exit-code purposes.
type Kind string

const (
	// KindConfigLoad is raised by book.toml parsing/loading failures.
	KindConfigLoad Kind = "config_load"
	// KindPreprocessorShape is raised when a single-chapter preprocess
	// run returns zero or more than one chapter.
	KindPreprocessorShape Kind = "preprocessor_shape"
	// KindRenderFailure is raised by Handlebars/Markdown render errors.
	KindRenderFailure Kind = "render_failure"
	// KindWatcherSetup is raised when a required directory cannot be watched.
	KindWatcherSetup Kind = "watcher_setup"
	// KindInvalidPath is raised when a chapter path does not resolve under
	// the source directory.
	KindInvalidPath Kind = "invalid_path"
	// KindServerPanic marks a panic recovered from a server task.
	KindServerPanic Kind = "server_panic"
	// KindEditorOutOfOrder is raised when ModifiedContent arrives with a
	// non-increasing version.
	KindEditorOutOfOrder Kind = "editor_out_of_order"
	// KindChannelClosed is raised when a peer actor's inbox is gone.
	KindChannelClosed Kind = "channel_closed"
)

// Error is a classified error with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a classified error around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or something it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

// ExitCode maps a Kind to the CLI's process exit code. Only KindWatcherSetup
// and KindConfigLoad are reachable as startup failures (the spec's other
// kinds are always handled internally and never abort the process); any
// other error falls back to a generic nonzero code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var be *Error
	if errors.As(err, &be) {
		switch be.Kind {
		case KindConfigLoad:
			return 2
		case KindWatcherSetup:
			return 3
		default:
			return 1
		}
	}
	return 1
}
