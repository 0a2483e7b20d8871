package clock

import "time"

// Clock supplies the current time. Billing date arithmetic reads "now" only
// through this interface so it can be pinned in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// New returns a Clock backed by the wall clock, normalized to UTC.
func New() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
