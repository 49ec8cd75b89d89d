package page

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Slugify derives the base slug for a title: runs of non-alphanumeric
// characters collapse to a single dash, lowercased, trimmed. Uniqueness
// is resolved separately with numeric suffixes.
func Slugify(title string) string {
	slug := nonAlphanumeric.ReplaceAllString(title, "-")
	return strings.Trim(strings.ToLower(slug), "-")
}
