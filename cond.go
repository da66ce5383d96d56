package uthsync

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Cond is a condition variable paired with an external Mutex (or
// RecursiveMutex, via WaitRecurse) only for the duration of a wait. It
// carries no count of its own.
type Cond struct {
	mu sync.Mutex
	q  WaitQueue

	sched Scheduler
	log   *logrus.Logger
	once  sync.Once
}

// NewCond returns an initialized Cond.
func NewCond(opts ...Option) *Cond {
	c := applyOptions(opts)
	cv := &Cond{sched: c.sched, log: c.logger, q: c.queueFactory()}
	cv.ensureInit()
	return cv
}

func (cv *Cond) ensureInit() {
	cv.once.Do(func() {
		if cv.sched == nil {
			cv.sched = DefaultScheduler
		}
		if cv.log == nil {
			cv.log = discardLogger
		}
		if cv.q == nil {
			cv.q = newFIFOQueue()
		}
		cv.q.Init()
	})
}

// Wait atomically releases mtx and blocks the calling thread, then
// reacquires mtx before returning. The caller must hold mtx. The cv's
// internal spinlock is dropped before mtx.Unlock is called: that
// ordering — cv spin released before the mutex's own spinlock is ever
// touched — is what keeps the two internal spinlocks from ever being
// candidates for a lock-ordering cycle.
func (cv *Cond) Wait(ctx context.Context, mtx *Mutex) {
	cv.ensureInit()
	th := threadFromContext(ctx)

	cv.mu.Lock()
	cv.sched.Yield(func() {
		cv.sched.ThreadHasBlocked(th, BlockedOnCond)
		cv.q.Enqueue(th)
		cv.mu.Unlock()
		mtx.Unlock()
	})
	park(th)
	mtx.Lock(ctx)
}

// TimedWait is Wait bounded by an absolute deadline. The deadline governs
// only the condition wait; mutex reacquisition after waking is never
// bounded by it.
func (cv *Cond) TimedWait(ctx context.Context, mtx *Mutex, deadline time.Time) bool {
	cv.ensureInit()
	th := threadFromContext(ctx)

	cv.mu.Lock()
	var t *timeoutCtl
	cv.sched.Yield(func() {
		cv.sched.ThreadHasBlocked(th, BlockedOnCond)
		cv.q.Enqueue(th)
		t = armTimeout(th, cv.q, &cv.mu, cv.sched, deadline)
		cv.mu.Unlock()
		mtx.Unlock()
	})
	park(th)
	t.cancel()
	mtx.Lock(ctx)
	return !t.timedOutValue()
}

// WaitRecurse waits on a RecursiveMutex. The lock is fully released
// across the wait (recursion count saved and reset to zero) and fully
// reacquired on return (the saved count is restored), matching the
// widespread "lock depth preserved across wait" convention.
//
// WaitRecurse takes no deadline: it returns only after being woken and
// reacquiring the inner mutex, and it then restores the saved count
// unconditionally, so the caller always re-observes the depth it had
// before calling WaitRecurse.
func (cv *Cond) WaitRecurse(ctx context.Context, rmtx *RecursiveMutex) {
	cv.ensureInit()
	th := threadFromContext(ctx)

	rmtx.mu.Lock()
	if rmtx.lockholder != th {
		rmtx.mu.Unlock()
		panic("uthsync: Cond.WaitRecurse called without holding the RecursiveMutex")
	}
	savedCount := rmtx.count
	rmtx.count = 0
	rmtx.lockholder = nil
	rmtx.mu.Unlock()

	cv.mu.Lock()
	cv.sched.Yield(func() {
		cv.sched.ThreadHasBlocked(th, BlockedOnCond)
		cv.q.Enqueue(th)
		cv.mu.Unlock()
		rmtx.inner.Unlock()
	})
	park(th)

	rmtx.inner.Lock(ctx)
	rmtx.mu.Lock()
	rmtx.lockholder = th
	rmtx.count = savedCount
	rmtx.mu.Unlock()
}

// Signal wakes one waiter, if any. Must be called with the associated
// mutex held by the canonical "test-a-flag, then signal" idiom or the
// wakeup can be lost; Cond does not and cannot enforce this.
func (cv *Cond) Signal() {
	cv.ensureInit()
	cv.mu.Lock()
	waiter := cv.q.GetNext()
	cv.mu.Unlock()
	if waiter != nil {
		cv.log.WithField("thread", waiter.ID).Debug("cond: signal")
		cv.sched.MakeRunnable(waiter)
	}
}

// Broadcast wakes every thread enqueued at the moment Broadcast is
// called, and no thread enqueued later. It swaps the wait queue's
// contents into a local queue under the spinlock (minimizing lock hold
// time) and then drains the local queue outside the lock.
func (cv *Cond) Broadcast() {
	cv.ensureInit()
	local := newFIFOQueue()

	cv.mu.Lock()
	cv.q.Swap(local)
	cv.mu.Unlock()

	for {
		th := local.GetNext()
		if th == nil {
			break
		}
		cv.log.WithField("thread", th.ID).Debug("cond: broadcast wake")
		cv.sched.MakeRunnable(th)
	}
}
