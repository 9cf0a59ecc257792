// Package openbrowser launches the system's default web browser at a
// given URL, for the CLI's --open flag and the Previewer's
// OpenPreview{browser_at} message (spec.md §4.7).
package openbrowser

import (
	"os/exec"
	"runtime"
)

// Open launches url in the default browser for the current platform.
func Open(url string) error {
	switch runtime.GOOS {
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		return exec.Command("open", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
