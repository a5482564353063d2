package dispatch

import (
	"strings"

	"al.essio.dev/pkg/shellescape"
)

// Escape quotes s for safe use as a single shell word. Strings made only of
// safe characters are returned unchanged; the empty string becomes ''.
func Escape(s string) string {
	return shellescape.Quote(s)
}

// Render expands a command template: $@ becomes the escaped watch path,
// then $# the escaped file name, and $$ becomes a literal $ last.
func Render(template, escapedPath, escapedFile string) string {
	out := strings.ReplaceAll(template, "$@", escapedPath)
	out = strings.ReplaceAll(out, "$#", escapedFile)
	return strings.ReplaceAll(out, "$$", "$")
}
