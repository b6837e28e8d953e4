package xid

import (
	"strings"
	"testing"
	"time"
)

func TestNewUsesPrefixAndIsUnique(t *testing.T) {
	a := New("repair")
	b := New("repair")
	if !strings.HasPrefix(a, "repair-") {
		t.Fatalf("expected repair- prefix, got %s", a)
	}
	if a == b {
		t.Fatalf("expected unique ids, got %s twice", a)
	}
}

func TestJobNumberFormat(t *testing.T) {
	at := time.Date(2026, 10, 19, 15, 4, 0, 0, time.UTC)
	got := JobNumber(at)
	if !strings.HasPrefix(got, "RJ-20261019-") {
		t.Fatalf("unexpected job number prefix: %s", got)
	}
	if len(got) != len("RJ-20261019-")+6 {
		t.Fatalf("unexpected job number length: %s", got)
	}
}
