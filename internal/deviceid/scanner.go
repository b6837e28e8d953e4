package deviceid

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultScanMaxGap    = 50 * time.Millisecond
	DefaultScanMinLength = 4
)

type Keystroke struct {
	Key string
	At  time.Time
}

// WedgeCapture reassembles codes typed by a keyboard-wedge barcode scanner.
// Scanners emit the whole code as a fast burst followed by Enter; keys that
// arrive further apart than MaxGap are treated as human typing and restart
// the buffer. A WedgeCapture is not safe for concurrent use.
type WedgeCapture struct {
	MaxGap    time.Duration
	MinLength int

	buf  strings.Builder
	size int
	last time.Time
}

func NewWedgeCapture(maxGap time.Duration, minLength int) *WedgeCapture {
	if maxGap <= 0 {
		maxGap = DefaultScanMaxGap
	}
	if minLength < 1 {
		minLength = DefaultScanMinLength
	}
	return &WedgeCapture{MaxGap: maxGap, MinLength: minLength}
}

// Feed consumes one key event and returns the captured code when the event
// completes a scan.
func (c *WedgeCapture) Feed(key string, at time.Time) (string, bool) {
	if isTerminator(key) {
		defer c.Reset()
		if c.size < c.MinLength || at.Sub(c.last) > c.MaxGap {
			return "", false
		}
		return c.buf.String(), true
	}

	r, ok := printableRune(key)
	if !ok {
		// modifier keys (Shift for upper case) are part of the burst
		return "", false
	}

	if c.size > 0 && at.Sub(c.last) > c.MaxGap {
		c.Reset()
	}
	c.buf.WriteRune(r)
	c.size++
	c.last = at
	return "", false
}

func (c *WedgeCapture) Reset() {
	c.buf.Reset()
	c.size = 0
	c.last = time.Time{}
}

// CaptureAll replays a recorded keystroke sequence and returns every code
// it produced, in order.
func (c *WedgeCapture) CaptureAll(keystrokes []Keystroke) []string {
	codes := make([]string, 0, 1)
	for _, ks := range keystrokes {
		if code, ok := c.Feed(ks.Key, ks.At); ok {
			codes = append(codes, code)
		}
	}
	return codes
}

func isTerminator(key string) bool {
	switch key {
	case "Enter", "enter", "\n", "\r", "\r\n":
		return true
	}
	return false
}

func printableRune(key string) (rune, bool) {
	if utf8.RuneCountInString(key) != 1 {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(key)
	if !unicode.IsPrint(r) || unicode.IsSpace(r) {
		return 0, false
	}
	return r, true
}
