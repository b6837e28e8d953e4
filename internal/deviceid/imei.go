// Package deviceid validates and formats the identifiers technicians scan
// or type when a device is booked in for repair.
package deviceid

import "strings"

const imeiLength = 15

// ValidateIMEI reports whether raw holds exactly 15 digits (separators are
// ignored) whose last digit is the Luhn check digit of the first 14.
func ValidateIMEI(raw string) bool {
	digits := digitsOnly(raw)
	if len(digits) != imeiLength {
		return false
	}

	sum := 0
	for i := 0; i < imeiLength-1; i++ {
		d := int(digits[i] - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}

	check := (10 - sum%10) % 10
	return check == int(digits[imeiLength-1]-'0')
}

// FormatIMEI groups the digits of raw as 2-6-6-1 for display. The checksum
// is not re-validated. When raw does not carry exactly 15 digits it is
// returned unchanged with ok=false.
func FormatIMEI(raw string) (formatted string, ok bool) {
	digits := digitsOnly(raw)
	if len(digits) != imeiLength {
		return raw, false
	}
	return digits[0:2] + " " + digits[2:8] + " " + digits[8:14] + " " + digits[14:], true
}

func digitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
