// Package uthsync implements the cooperative blocking primitives a
// user-level M:N threading runtime needs — counting semaphores, mutexes,
// recursive mutexes, condition variables, and reader-writer locks — on
// top of a pluggable Scheduler and WaitQueue, so a second-level scheduler
// can substitute its own queueing policy or thread multiplexing without
// touching any primitive's logic.
//
// Every semaphore and lock supports three variants: an untimed call that
// blocks until satisfied, a non-blocking "try" call, and an
// absolute-deadline "timed" call. Cond has untimed and timed waits only. The default Scheduler parks the
// calling goroutine directly; a Scheduler supplied via WithScheduler may
// instead multiplex many logical threads onto a bounded pool.
package uthsync
