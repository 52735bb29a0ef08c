// Package poll implements adaptive status polling for orchestrator jobs.
//
// clock.go - Time source abstraction
//
// The watcher never reads time directly; it goes through Clock so tests
// can drive the loop without waiting on real timers.

package poll

import "time"

// Clock is the watcher's time source
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time                         { return time.Now() }
func (wallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// WallClock returns the real-time clock
func WallClock() Clock {
	return wallClock{}
}
