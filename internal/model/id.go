package model

import (
	"regexp"
	"strings"
)

// Notion identifiers are 32 hex digits, optionally written as a dashed UUID.
var rawIDRegex = regexp.MustCompile(`^[0-9a-f]{32}$`)

// IsRawID reports whether s is already a remote identifier. Dashes are
// ignored wherever they appear and case does not matter.
func IsRawID(s string) bool {
	cleaned := strings.ToLower(strings.ReplaceAll(s, "-", ""))
	return rawIDRegex.MatchString(cleaned)
}
