//go:build !deadlock

// Package syncutil holds the lock types used by long-lived shared state.
// Building with -tags=deadlock swaps them for github.com/sasha-s/go-deadlock
// implementations that report lock-order inversions and stuck waiters.
package syncutil

import "sync"

// Mutex is a plain sync.Mutex in regular builds.
type Mutex struct {
	sync.Mutex
}

// RWMutex is a plain sync.RWMutex in regular builds.
type RWMutex struct {
	sync.RWMutex
}
