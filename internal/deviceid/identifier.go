package deviceid

import "strings"

type Kind string

const (
	KindIMEI    Kind = "imei"
	KindSerial  Kind = "serial"
	KindUnknown Kind = "unknown"
)

// ParseKind maps a user supplied identifier type. An empty string yields
// KindUnknown, which Check resolves through Classify.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "imei":
		return KindIMEI, true
	case "serial", "serial_number", "sn":
		return KindSerial, true
	case "":
		return KindUnknown, true
	default:
		return KindUnknown, false
	}
}

type Identifier struct {
	Kind    Kind   `json:"type"`
	Raw     string `json:"raw"`
	Value   string `json:"value"`
	Display string `json:"display"`
	Valid   bool   `json:"valid"`
}

// Classify decides whether raw looks like an IMEI or a serial number and
// validates it accordingly. Only inputs made of digits and the usual
// spacing characters with exactly 15 digits are treated as IMEIs, so a
// serial that happens to embed 15 digits among letters stays a serial.
func Classify(raw string) Identifier {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Identifier{Kind: KindUnknown, Raw: raw}
	}
	if looksNumeric(trimmed) && len(digitsOnly(trimmed)) == imeiLength {
		return Check(KindIMEI, raw)
	}
	return Check(KindSerial, raw)
}

// Check validates raw as the given kind. KindUnknown falls back to Classify.
func Check(kind Kind, raw string) Identifier {
	switch kind {
	case KindIMEI:
		id := Identifier{Kind: KindIMEI, Raw: raw, Value: digitsOnly(raw), Valid: ValidateIMEI(raw)}
		if display, ok := FormatIMEI(raw); ok {
			id.Display = display
		} else {
			id.Display = strings.TrimSpace(raw)
		}
		return id
	case KindSerial:
		value := normalizeSerial(raw)
		return Identifier{Kind: KindSerial, Raw: raw, Value: value, Display: value, Valid: ValidateSerialNumber(raw)}
	default:
		return Classify(raw)
	}
}

func looksNumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == ' ' || r == '-' || r == '.' || r == '/':
		default:
			return false
		}
	}
	return true
}
