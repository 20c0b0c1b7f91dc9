// Package phone holds the canonical phone format shared by the dashboard and
// the webhook ingestion path. Both must produce byte-identical output.
package phone

import (
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D`)

// Normalize converts a raw phone number to the canonical international form:
//
//	10 digits            -> "+1" + digits
//	11 digits, leading 1 -> "+" + digits
//	starts with "+"      -> unchanged
//	anything else        -> "+1" + digits
//
// Empty input yields "".
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	digits := nonDigits.ReplaceAllString(raw, "")

	if len(digits) == 10 {
		return "+1" + digits
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		return "+" + digits
	}
	if strings.HasPrefix(raw, "+") {
		return raw
	}
	return "+1" + digits
}
