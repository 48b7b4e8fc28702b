package runstore

import (
	"fmt"
	"time"
)

// NewRunID returns a monotonic, lexicographically sortable run identifier
// derived from a high-resolution wall clock reading. now is injected so
// callers (and tests) control the clock rather than reaching for time.Now
// themselves.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("run-%s-%09d", now.UTC().Format("20060102T150405"), now.Nanosecond())
}
