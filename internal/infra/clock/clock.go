// Package clock abstracts time for components that sleep or cache by age,
// so tests can run without real delays.
package clock

import "time"

type Clock interface {
	Now() time.Time
	// After behaves like time.After; select it against ctx.Done() for a
	// cancellable sleep.
	After(d time.Duration) <-chan time.Time
}

type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }
