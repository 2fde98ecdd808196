package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richText  = bluemonday.UGCPolicy()
	plainText = bluemonday.StrictPolicy()
)

// Sanitize cleans rich text (descriptions, bios) to prevent XSS attacks.
func Sanitize(input string) string {
	return strings.TrimSpace(richText.Sanitize(input))
}

// StripTags removes all markup, for single-line fields like titles and names.
// Entities are decoded back since the value is served as JSON, not HTML.
func StripTags(input string) string {
	return strings.TrimSpace(html.UnescapeString(plainText.Sanitize(input)))
}
