// Package system supplies wall-clock time to the engine. Records and progress
// events carry UTC timestamps so downstream stores never see a local zone.
package system

import "time"

// Clock is the production crawler.Clock.
type Clock struct{}

// New returns the wall clock.
func New() *Clock {
	return &Clock{}
}

// Now reports the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
