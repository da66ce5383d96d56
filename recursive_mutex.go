package uthsync

import (
	"context"
	"sync"
	"time"
)

// RecursiveMutex is a Mutex plus owner/depth bookkeeping: the same
// thread may lock it multiple times, and must unlock it the same number
// of times before another thread can acquire it. lockholder and count
// are written only by whichever thread currently holds the lock.
type RecursiveMutex struct {
	inner Mutex

	// mu guards lockholder and count: every read and write of them,
	// including the "is this me?" check on the fast path, happens under
	// mu, separately from the inner mutex.
	mu         sync.Mutex
	lockholder *ThreadHandle
	count      uint

	once sync.Once
}

// NewRecursiveMutex returns an initialized, unlocked RecursiveMutex.
func NewRecursiveMutex(opts ...Option) *RecursiveMutex {
	rm := &RecursiveMutex{}
	c := applyOptions(opts)
	rm.inner.sem.sched = c.sched
	rm.inner.sem.log = c.logger
	rm.inner.sem.q = c.queueFactory()
	rm.ensureInit()
	return rm
}

func (rm *RecursiveMutex) ensureInit() {
	rm.once.Do(func() {
		rm.inner.sem.ensureInitWithCount(1)
	})
}

// Lock acquires the lock, recursing if the calling thread already holds
// it.
func (rm *RecursiveMutex) Lock(ctx context.Context) {
	rm.ensureInit()
	th := threadFromContext(ctx)

	rm.mu.Lock()
	if rm.lockholder == th {
		rm.count++
		rm.mu.Unlock()
		return
	}
	rm.mu.Unlock()

	rm.inner.Lock(ctx)
	rm.mu.Lock()
	rm.lockholder = th
	rm.count = 1
	rm.mu.Unlock()
}

// TryLock is the recursive fast path above, falling back to the inner
// mutex's TryLock when a different thread (or nobody) holds it.
func (rm *RecursiveMutex) TryLock(ctx context.Context) bool {
	rm.ensureInit()
	th := threadFromContext(ctx)

	rm.mu.Lock()
	if rm.lockholder == th {
		rm.count++
		rm.mu.Unlock()
		return true
	}
	rm.mu.Unlock()

	if !rm.inner.TryLock() {
		return false
	}
	rm.mu.Lock()
	rm.lockholder = th
	rm.count = 1
	rm.mu.Unlock()
	return true
}

// TimedLock is Lock bounded by an absolute deadline.
func (rm *RecursiveMutex) TimedLock(ctx context.Context, deadline time.Time) bool {
	rm.ensureInit()
	th := threadFromContext(ctx)

	rm.mu.Lock()
	if rm.lockholder == th {
		rm.count++
		rm.mu.Unlock()
		return true
	}
	rm.mu.Unlock()

	if !rm.inner.TimedLock(deadline) {
		return false
	}
	rm.mu.Lock()
	rm.lockholder = th
	rm.count = 1
	rm.mu.Unlock()
	return true
}

// Unlock decrements the recursion count; the inner mutex is only
// released, and lockholder cleared, once the count reaches zero.
// Unlocking from a thread that is not the current holder is programmer
// error and panics.
func (rm *RecursiveMutex) Unlock(ctx context.Context) {
	rm.ensureInit()
	th := threadFromContext(ctx)

	rm.mu.Lock()
	if rm.lockholder != th {
		rm.mu.Unlock()
		panic("uthsync: RecursiveMutex.Unlock called by a thread that does not hold the lock")
	}
	rm.count--
	release := rm.count == 0
	if release {
		rm.lockholder = nil
	}
	rm.mu.Unlock()

	if release {
		rm.inner.Unlock()
	}
}
