// Package bridge implements the call router and the registries behind it.
//
// # Data Flow
//
// The host starts an evaluation, the engine runs the script, and each
// script call-site reaches the router:
//
//	host ──start──▶ engine ──call──▶ router ──┬── inline ──▶ host function
//	                                          └── queued ──▶ request queue ──▶ host loop
//
// Inline calls invoke the host function adapter on the evaluating
// goroutine. Queued calls surface to the host's own goroutine through
// PollRequest, because direct host re-entry is unsafe off the host's
// thread; the evaluating goroutine suspends until DeliverRequestResult.
//
// # Execution Contexts
//
// Every evaluation carries an explicit execution context selecting its
// transport:
//
//	Evaluate          inline, may not suspend; deferred outcomes are misuse
//	EvaluateBlocking  inline, awaits deferred outcomes with the binding timeout
//	StartAsyncEval    dedicated goroutine, all calls queued
//
// # Operation Ids
//
// Every deferred or queued call is correlated by a process-unique,
// monotonically increasing operation id with a single-use completion
// channel. Ids are never reused; an entry is removed before a timeout
// surfaces, so a late completion fails with not_found instead of
// corrupting a reused id.
//
// # Timeout Authority
//
// One authority per path: inline waits use the per-binding timeout set at
// registration; queued waits use the bridge-wide queue timeout, since the
// host loop itself may be busy regardless of which function is called.
//
// # Never Block the Host
//
// The host-facing surface - registration, queue polling, result delivery,
// evaluation polling and cancellation - does all its work under short-held
// locks around insert/remove/lookup and returns. The only goroutines that
// suspend are the ones running scripts.
package bridge
