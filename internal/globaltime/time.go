// Package globaltime is the process clock. Tests freeze or step it.
package globaltime

import (
	"sync/atomic"
	"time"
)

// frozen holds the mocked instant; nil means the wall clock.
var frozen atomic.Pointer[time.Time]

func Now() time.Time {
	if t := frozen.Load(); t != nil {
		return *t
	}
	return time.Now()
}

func UTC() time.Time {
	return Now().UTC()
}

// Since is time.Since against the process clock.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}

func SetMockTime(t time.Time) {
	frozen.Store(&t)
}

// Advance moves a frozen clock forward by d. It does nothing on the wall clock.
func Advance(d time.Duration) {
	for {
		current := frozen.Load()
		if current == nil {
			return
		}
		next := current.Add(d)
		if frozen.CompareAndSwap(current, &next) {
			return
		}
	}
}

func ResetTime() {
	frozen.Store(nil)
}
