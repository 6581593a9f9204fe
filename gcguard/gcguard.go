// Package gcguard implements the process-wide disable_gc counter: a
// counted guard that disables garbage collection while at least one
// guard-enabled packer or reader session is open, and restores whatever
// GC policy was in effect before the first one started once the count
// returns to zero.
package gcguard

import (
	"runtime/debug"
	"sync"
)

var (
	mu           sync.Mutex
	active       int
	previousPct  int
	wasDisabled  bool
)

// Acquire increments the process-wide counter, disabling garbage
// collection on the 0→1 transition. It returns a release function that
// must be called exactly once, typically via defer, when the owning
// session closes. Safe to call from overlapping or nested sessions: GC
// policy is restored only when the last holder releases.
func Acquire() (release func()) {
	mu.Lock()
	if active == 0 {
		previousPct = debug.SetGCPercent(-1)
		wasDisabled = true
	}
	active++
	mu.Unlock()

	var released bool
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if released {
			return
		}
		released = true
		active--
		if active == 0 && wasDisabled {
			debug.SetGCPercent(previousPct)
			wasDisabled = false
		}
	}
}

// Active reports how many sessions currently hold the guard, for tests
// and diagnostics.
func Active() int {
	mu.Lock()
	defer mu.Unlock()
	return active
}
