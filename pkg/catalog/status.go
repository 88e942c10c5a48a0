package catalog

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	StatusUnknown  = "Unknown"
	StatusCurrent  = "Current"
	StatusFinished = "Finished"
	StatusUpcoming = "Upcoming"
)

// NormalizeStatus maps provider-native status strings onto the catalog vocabulary.
// Unrecognized values are kept, capitalized.
func NormalizeStatus(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || s == NotAvailable {
		return StatusUnknown
	}
	switch strings.ToLower(strings.ReplaceAll(s, "_", " ")) {
	case "finished", "finished airing", "completed":
		return StatusFinished
	case "current", "currently airing", "releasing", "airing":
		return StatusCurrent
	case "upcoming", "not yet aired", "not yet released", "tba":
		return StatusUpcoming
	case "unknown":
		return StatusUnknown
	}
	s = strings.ReplaceAll(s, "_", " ")
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// ValidateAiring forces the airing flag to agree with the status.
// Finished means not airing, Current means airing; other statuses keep the flag.
func ValidateAiring(status string, airing bool) bool {
	switch NormalizeStatus(status) {
	case StatusFinished:
		return false
	case StatusCurrent:
		return true
	}
	return airing
}

// Consistent reports whether the status and airing flag agree.
func Consistent(status string, airing bool) bool {
	return ValidateAiring(status, airing) == airing
}
