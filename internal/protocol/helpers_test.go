package protocol

import "time"

// fixedTime returns a stable timestamp for records built in tests; the
// timestamp value itself is never asserted on.
func fixedTime() time.Time {
	return time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
}
