package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	textPolicy   = bluemonday.UGCPolicy()
)

// SanitizeTitle strips every HTML tag from a single-line title and returns
// plain text; templates escape it on output.
func SanitizeTitle(input string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(input)))
}

// SanitizeText cleans post bodies, keeping basic user formatting. The result
// is safe to render as HTML.
func SanitizeText(input string) string {
	return strings.TrimSpace(textPolicy.Sanitize(input))
}
