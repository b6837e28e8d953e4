package deviceid

import (
	"regexp"
	"strings"
)

var serialPattern = regexp.MustCompile(`(?i)^[A-Z0-9]{4,}$`)

// ValidateSerialNumber trims raw and requires four or more ASCII letters or
// digits. Inner separators such as hyphens are not stripped and fail.
func ValidateSerialNumber(raw string) bool {
	return serialPattern.MatchString(strings.TrimSpace(raw))
}

func normalizeSerial(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
