package service

import "time"

// Clock abstracts wall-clock reads so time-driven behavior is testable
// without real waits.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
