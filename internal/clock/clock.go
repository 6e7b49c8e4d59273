// Package clock abstracts time for the engine and its periodic loops.
// Everything that sleeps or fires on a schedule goes through a Clock so
// tests can drive time manually.
package clock

import (
	"context"
	"time"
)

// Clock provides the time primitives used by the engine.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until ctx is cancelled, whichever comes
	// first. Returns ctx.Err() on early wake, nil otherwise.
	Sleep(ctx context.Context, d time.Duration) error
}

// System is the wall-clock implementation of Clock.
type System struct{}

// NewSystem returns the wall-clock Clock.
func NewSystem() *System { return &System{} }

func (*System) Now() time.Time { return time.Now() }

func (*System) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
