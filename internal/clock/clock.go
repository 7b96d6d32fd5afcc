package clock

import "time"

// Clock abstracts time retrieval so idempotency timestamps are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the current UTC wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
