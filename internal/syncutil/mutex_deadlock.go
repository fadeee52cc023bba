//go:build deadlock

package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex detects deadlocks when built with -tags=deadlock.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex detects deadlocks when built with -tags=deadlock.
type RWMutex struct {
	deadlock.RWMutex
}
