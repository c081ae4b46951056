package service

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lower-cases value, strips accents and collapses every run of
// other characters into one hyphen. An empty result becomes "untitled".
func slugify(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, value)
	if err != nil {
		stripped = value
	}
	slug := nonAlnumRun.ReplaceAllString(strings.ToLower(stripped), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}
