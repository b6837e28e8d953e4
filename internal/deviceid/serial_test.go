package deviceid

import "testing"

func TestValidateSerialNumber(t *testing.T) {
	cases := map[string]bool{
		"AB12":         true,
		"AB1":          false,
		"ab-12":        false,
		"  c02xk1abjg": true,
		"C02XK1ABJG  ": true,
		"":             false,
		"    ":         false,
		"AB 12":        false,
		"ÄB12":         false,
	}
	for raw, want := range cases {
		if got := ValidateSerialNumber(raw); got != want {
			t.Fatalf("ValidateSerialNumber(%q) = %v, want %v", raw, got, want)
		}
	}
}
