package uthsync

// BlockReason tags why a thread was handed to Scheduler.ThreadHasBlocked.
// Tagged variants are preferable to integer codes (they survive logging
// and don't require a side table to interpret), per the spec this library
// implements.
type BlockReason string

const (
	BlockedOnMutex  BlockReason = "blocked-on-mutex"
	BlockedOnCond   BlockReason = "blocked-on-cond"
	BlockedOnRWLock BlockReason = "blocked-on-rwlock"
)

// Scheduler is the second-level-scheduler (2LS) contract every primitive
// in this package consumes. A 2LS may supply its own implementation (to,
// for example, multiplex many logical threads onto a bounded worker pool)
// via WithScheduler; the default, goroutineScheduler, treats the calling
// goroutine itself as the "thread" and parks it on a channel.
type Scheduler interface {
	// ThreadHasBlocked notifies the scheduler that th is about to become
	// non-runnable for reason. Every primitive calls this strictly
	// before it drops its internal spinlock, so that a concurrent waker
	// can never observe the thread as both "not yet blocked" and
	// "already woken".
	ThreadHasBlocked(th *ThreadHandle, reason BlockReason)
	// MakeRunnable marks th eligible to run again. Always called outside
	// the primitive's internal spinlock.
	MakeRunnable(th *ThreadHandle)
	// Yield suspends the calling thread, invoking cb once the thread's
	// execution state has been fully captured (i.e. once it is safe to
	// link the thread onto a wait queue) and before the thread is
	// actually descheduled. cb is the "register-and-sleep" callback:
	// enqueue onto a WaitQueue and drop the primitive's spinlock.
	Yield(cb func())
}

// goroutineScheduler is the default Scheduler. It requires no
// cooperation from the embedder: Yield runs cb on the calling goroutine
// (which, having already done everything it needs to do before
// suspending, stands in for "the scheduler stack" the spec's callback
// runs on) and then parks by receiving from the thread's wake channel;
// MakeRunnable resumes it by sending.
type goroutineScheduler struct{}

// DefaultScheduler is the Scheduler every primitive uses unless
// constructed with WithScheduler.
var DefaultScheduler Scheduler = goroutineScheduler{}

func (goroutineScheduler) ThreadHasBlocked(*ThreadHandle, BlockReason) {}

func (goroutineScheduler) MakeRunnable(th *ThreadHandle) {
	select {
	case th.wake <- struct{}{}:
	default:
		// Already signalled (e.g. racing timeout and signal both
		// attempted delivery) — at most one send is ever consumed.
	}
}

func (goroutineScheduler) Yield(cb func()) {
	cb()
}

// park blocks the calling goroutine until MakeRunnable(th) is called.
// This is called by primitives immediately after Yield returns, since in
// the goroutine model "suspend until woken" and "yield" are two separate
// steps (unlike a cooperative scheduler where yielding a quiescent thread
// IS the suspension).
func park(th *ThreadHandle) {
	<-th.wake
}
