package engine

import (
	"sync"
	"sync/atomic"

	"go.starlark.net/resolve"
)

var (
	startOnce sync.Once
	started   atomic.Bool
)

// Startup performs the one-time runtime bootstrap. It enables the language
// options bound code relies on: sets, top-level reassignment, while loops and
// recursion. Safe to call any number of times.
func Startup() {
	startOnce.Do(func() {
		resolve.AllowSet = true
		resolve.AllowGlobalReassign = true
		resolve.AllowRecursion = true
		started.Store(true)
		Logger().Debug("runtime started")
	})
}

// Started reports whether Startup has run.
func Started() bool {
	return started.Load()
}
