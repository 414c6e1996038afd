package clock

import "time"

// Clock abstracts wall-clock time so expiry logic is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// NewSystem returns the production clock (UTC).
func NewSystem() Clock {
	return systemClock{}
}
