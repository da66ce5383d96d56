package uthsync

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RWMutex is a writer-preferring reader-writer lock: two wait queues plus
// a writer flag and a reader count. Writer-preference means that on
// unlock, queued writers are woken before queued readers, trading
// possible reader starvation under steady writer load for immunity to
// writer starvation under steady reader load — a deliberate choice, not
// an accident of implementation.
type RWMutex struct {
	mu        sync.Mutex
	nrReaders uint
	hasWriter bool
	readers   WaitQueue
	writers   WaitQueue
	sched     Scheduler
	log       *logrus.Logger
	once      sync.Once
	qFactory  func() WaitQueue
}

// NewRWMutex returns an initialized, unlocked RWMutex.
func NewRWMutex(opts ...Option) *RWMutex {
	c := applyOptions(opts)
	rw := &RWMutex{sched: c.sched, log: c.logger, qFactory: c.queueFactory}
	rw.ensureInit()
	return rw
}

func (rw *RWMutex) ensureInit() {
	rw.once.Do(func() {
		if rw.sched == nil {
			rw.sched = DefaultScheduler
		}
		if rw.log == nil {
			rw.log = discardLogger
		}
		if rw.qFactory == nil {
			rw.qFactory = func() WaitQueue { return newFIFOQueue() }
		}
		rw.readers = rw.qFactory()
		rw.writers = rw.qFactory()
		rw.readers.Init()
		rw.writers.Init()
	})
}

// RLock acquires the lock for shared read access, blocking while a
// writer holds or is queued for it (readers only ever wait because a
// writer is in the way, per the writer-preferring policy). A writer
// merely queued, not yet holding, is enough to block a new reader: that
// is what keeps a steady stream of readers from starving a waiting
// writer.
func (rw *RWMutex) RLock(ctx context.Context) {
	rw.ensureInit()
	th := threadFromContext(ctx)

	rw.mu.Lock()
	if !rw.hasWriter && rw.writers.IsEmpty() {
		rw.nrReaders++
		rw.mu.Unlock()
		return
	}
	rw.sched.Yield(func() {
		rw.sched.ThreadHasBlocked(th, BlockedOnRWLock)
		rw.readers.Enqueue(th)
		rw.mu.Unlock()
	})
	park(th)
}

// TryRLock attempts to acquire a read lock without blocking. Like RLock,
// it defers to a merely-queued writer.
func (rw *RWMutex) TryRLock() bool {
	rw.ensureInit()
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.hasWriter || !rw.writers.IsEmpty() {
		return false
	}
	rw.nrReaders++
	return true
}

// TimedRLock is RLock bounded by an absolute deadline.
func (rw *RWMutex) TimedRLock(ctx context.Context, deadline time.Time) bool {
	rw.ensureInit()
	th := threadFromContext(ctx)

	rw.mu.Lock()
	if !rw.hasWriter && rw.writers.IsEmpty() {
		rw.nrReaders++
		rw.mu.Unlock()
		return true
	}
	var t *timeoutCtl
	rw.sched.Yield(func() {
		rw.sched.ThreadHasBlocked(th, BlockedOnRWLock)
		rw.readers.Enqueue(th)
		t = armTimeout(th, rw.readers, &rw.mu, rw.sched, deadline)
		rw.mu.Unlock()
	})
	park(th)
	t.cancel()
	return !t.timedOutValue()
}

// Lock acquires the lock for exclusive write access.
func (rw *RWMutex) Lock(ctx context.Context) {
	rw.ensureInit()
	th := threadFromContext(ctx)

	rw.mu.Lock()
	if !rw.hasWriter && rw.nrReaders == 0 {
		rw.hasWriter = true
		rw.mu.Unlock()
		return
	}
	rw.sched.Yield(func() {
		rw.sched.ThreadHasBlocked(th, BlockedOnRWLock)
		rw.writers.Enqueue(th)
		rw.mu.Unlock()
	})
	park(th)
}

// TryLock attempts to acquire a write lock without blocking.
func (rw *RWMutex) TryLock() bool {
	rw.ensureInit()
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.hasWriter || rw.nrReaders != 0 {
		return false
	}
	rw.hasWriter = true
	return true
}

// TimedLock is Lock bounded by an absolute deadline.
func (rw *RWMutex) TimedLock(ctx context.Context, deadline time.Time) bool {
	rw.ensureInit()
	th := threadFromContext(ctx)

	rw.mu.Lock()
	if !rw.hasWriter && rw.nrReaders == 0 {
		rw.hasWriter = true
		rw.mu.Unlock()
		return true
	}
	var t *timeoutCtl
	rw.sched.Yield(func() {
		rw.sched.ThreadHasBlocked(th, BlockedOnRWLock)
		rw.writers.Enqueue(th)
		t = armTimeout(th, rw.writers, &rw.mu, rw.sched, deadline)
		rw.mu.Unlock()
	})
	park(th)
	t.cancel()
	if !t.timedOutValue() {
		return true
	}
	// Readers that queued only because this writer was queued are let in now.
	var drained []*ThreadHandle
	rw.mu.Lock()
	for !rw.hasWriter && rw.writers.IsEmpty() && !rw.readers.IsEmpty() {
		drained = append(drained, rw.readers.GetNext())
	}
	rw.nrReaders += uint(len(drained))
	rw.mu.Unlock()
	for _, r := range drained {
		rw.sched.MakeRunnable(r)
	}
	return false
}

// RUnlock releases a read lock. If this was the last active reader, one
// queued writer (if any) is handed the lock.
func (rw *RWMutex) RUnlock() {
	rw.ensureInit()
	rw.mu.Lock()
	rw.nrReaders--
	var wakeWriter *ThreadHandle
	if rw.nrReaders == 0 {
		wakeWriter = rw.writers.GetNext()
		if wakeWriter != nil {
			rw.hasWriter = true
		}
	}
	rw.mu.Unlock()

	if wakeWriter != nil {
		rw.log.WithField("thread", wakeWriter.ID).Debug("rwmutex: reader-to-writer hand-off")
		rw.sched.MakeRunnable(wakeWriter)
	}
}

// Unlock releases a write lock. A queued writer, if any, is handed
// exclusive access directly; otherwise every queued reader is drained
// and made runnable together. This is the writer-preference rule: a
// waiting writer always wins over waiting readers.
func (rw *RWMutex) Unlock() {
	rw.ensureInit()
	rw.mu.Lock()
	wakeWriter := rw.writers.GetNext()
	var drained []*ThreadHandle
	if wakeWriter != nil {
		// hasWriter stays true: ownership transfers directly to the
		// woken writer.
	} else {
		rw.hasWriter = false
		for {
			th := rw.readers.GetNext()
			if th == nil {
				break
			}
			drained = append(drained, th)
		}
		rw.nrReaders = uint(len(drained))
	}
	rw.mu.Unlock()

	if wakeWriter != nil {
		rw.log.WithField("thread", wakeWriter.ID).Debug("rwmutex: writer-to-writer hand-off")
		rw.sched.MakeRunnable(wakeWriter)
		return
	}
	for _, th := range drained {
		rw.log.WithField("thread", th.ID).Debug("rwmutex: writer-to-reader hand-off")
		rw.sched.MakeRunnable(th)
	}
}
