package bridge

import "sync/atomic"

// evalMode distinguishes how an execution context may interact with the
// host. It replaces the original per-thread flags with an explicit value
// threaded through the call path, so the mode is visible at every call
// site.
type evalMode int

const (
	// modeSync runs on the caller's goroutine and may not suspend; a
	// deferred outcome fails the call with a misuse error.
	modeSync evalMode = iota

	// modeBlocking runs on the caller's goroutine and may suspend awaiting
	// deferred outcomes inline, bounded by the binding's timeout. Not for
	// use on the host dispatcher goroutine.
	modeBlocking

	// modeAsyncThread runs on a dedicated evaluation goroutine; host
	// re-entry is unsafe there, so every call goes through the request
	// queue instead of the adapter.
	modeAsyncThread
)

func (m evalMode) String() string {
	switch m {
	case modeSync:
		return "sync"
	case modeBlocking:
		return "blocking"
	case modeAsyncThread:
		return "async-thread"
	default:
		return "unknown"
	}
}

// execContext travels with one evaluation through the router.
type execContext struct {
	asyncObserved atomic.Bool
	mode          evalMode
}

// noteAsync records that a deferred-style outcome was observed.
func (ec *execContext) noteAsync() {
	ec.asyncObserved.Store(true)
}

// takeAsync reads and clears the async-invocation flag. Called by the
// synchronous evaluation entry point after the engine returns.
func (ec *execContext) takeAsync() bool {
	return ec.asyncObserved.Swap(false)
}
