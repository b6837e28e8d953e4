package deviceid

import "testing"

func TestValidateIMEI(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{name: "known valid", raw: "490154203237518", want: true},
		{name: "wrong check digit", raw: "490154203237519", want: false},
		{name: "too short", raw: "12345", want: false},
		{name: "too long", raw: "1234567890123456", want: false},
		{name: "separators", raw: "49-0154 2032 37518", want: true},
		{name: "another valid", raw: "352099001761481", want: true},
		{name: "empty", raw: "", want: false},
		{name: "letters only", raw: "not-an-imei", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateIMEI(tc.raw); got != tc.want {
				t.Fatalf("ValidateIMEI(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestValidateIMEIIgnoresSeparators(t *testing.T) {
	if ValidateIMEI("49-0154 2032 37518") != ValidateIMEI("490154203237518") {
		t.Fatalf("expected separators to be ignored")
	}
}

func TestFormatIMEI(t *testing.T) {
	got, ok := FormatIMEI("490154203237518")
	if !ok || got != "49 015420 323751 8" {
		t.Fatalf("unexpected format result %q ok=%v", got, ok)
	}

	got, ok = FormatIMEI("35-209900-176148-1")
	if !ok || got != "35 209900 176148 1" {
		t.Fatalf("expected separators to be regrouped, got %q ok=%v", got, ok)
	}
}

func TestFormatIMEIReturnsInputWhenNotFifteenDigits(t *testing.T) {
	got, ok := FormatIMEI("12-345")
	if ok {
		t.Fatalf("expected ok=false for short input")
	}
	if got != "12-345" {
		t.Fatalf("expected raw input back, got %q", got)
	}
}

func TestFormatIMEIDoesNotCheckLuhn(t *testing.T) {
	got, ok := FormatIMEI("490154203237519")
	if !ok || got != "49 015420 323751 9" {
		t.Fatalf("expected formatting regardless of checksum, got %q ok=%v", got, ok)
	}
}
