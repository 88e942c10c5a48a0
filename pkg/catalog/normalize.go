package catalog

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	folder = cases.Fold()
	titler = cases.Title(language.Und)
)

// IdentityKey canonicalizes a name for matching: trimmed and case-folded.
func IdentityKey(name string) string {
	return folder.String(strings.TrimSpace(name))
}

// UnescapeName decodes HTML entities in a provider-reported name.
func UnescapeName(raw string) string {
	return strings.TrimSpace(html.UnescapeString(raw))
}

// DisplayName title-cases a name for presentation.
func DisplayName(name string) string {
	return titler.String(strings.TrimSpace(name))
}

// Letter returns the uppercased first rune of the name, used for sectioning.
func Letter(name string) string {
	name = strings.TrimSpace(name)
	r, _ := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return NotAvailable
	}
	return string(unicode.ToUpper(r))
}

var cleanRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bseason\s*\d+\b`),
	regexp.MustCompile(`(?i)\b\d+(st|nd|rd|th)\s+season\b`),
	regexp.MustCompile(`(?i)\bs\d+\b`),
	regexp.MustCompile(`(?i)\bpart\s*\d+\b`),
	regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`),
}

var spaces = regexp.MustCompile(`\s+`)

// CleanName strips season/part suffixes and bracketed qualifiers so lookups
// match the base title.
func CleanName(name string) string {
	for _, re := range cleanRules {
		name = re.ReplaceAllString(name, " ")
	}
	name = strings.NewReplacer(":", " ", "-", " ").Replace(name)
	return strings.TrimSpace(spaces.ReplaceAllString(name, " "))
}
