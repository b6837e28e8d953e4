package xid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// JobNumber returns the human-facing repair ticket number printed on
// customer receipts, e.g. RJ-20261019-4F1A9C.
func JobNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("RJ-%s-%s", at.UTC().Format("20060102"), suffix)
}
