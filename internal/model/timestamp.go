package model

import (
	"strings"
	"time"
)

// CompareTimestamps orders two RFC 3339 timestamps chronologically. RFC3339Nano
// drops trailing zero fractions, so the strings do not sort lexically. Values
// that fail to parse compare as strings.
func CompareTimestamps(a, b string) int {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return ta.Compare(tb)
}
