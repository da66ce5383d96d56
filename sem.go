package uthsync

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Semaphore is a counting semaphore: the foundation Mutex is built on.
// The zero value, once its first operation runs, self-initializes to
// count 0 via a lazy guard — matching the spec's "zero-initialized
// storage is a valid unlocked primitive" guarantee (for a bare
// Semaphore, "unlocked" means count 0, i.e. immediately blocking; Mutex
// requests count 1 explicitly, see mutex.go). Use NewSemaphore to get an
// explicit initial count up front.
type Semaphore struct {
	mu    sync.Mutex
	count uint
	q     WaitQueue

	sched Scheduler
	log   *logrus.Logger
	once  sync.Once
}

// NewSemaphore returns a semaphore initialized to count.
func NewSemaphore(count uint, opts ...Option) *Semaphore {
	c := applyOptions(opts)
	s := &Semaphore{sched: c.sched, log: c.logger, q: c.queueFactory()}
	s.ensureInitWithCount(count)
	return s
}

// ensureInitWithCount lazily brings the semaphore to a valid state with
// the given initial count, the once-guard ("once_ctl") the spec requires
// so static, zero-initialized storage self-initializes on first use.
// Only the first call to win the race actually takes effect; later
// callers (including Down/Up on an already-initialized Semaphore, which
// pass an arbitrary count) are no-ops.
func (s *Semaphore) ensureInitWithCount(count uint) {
	s.once.Do(func() {
		if s.sched == nil {
			s.sched = DefaultScheduler
		}
		if s.log == nil {
			s.log = discardLogger
		}
		if s.q == nil {
			s.q = newFIFOQueue()
		}
		s.q.Init()
		s.count = count
	})
}

func (s *Semaphore) ensureInit() {
	s.ensureInitWithCount(0)
}

// Destroy releases the semaphore's wait queue. Requires the queue be
// empty; destroying a semaphore with waiters still queued is programmer
// error and panics (spec.md §7's fatal-misuse bucket), not a recoverable
// error.
func (s *Semaphore) Destroy() {
	s.ensureInit()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.q.Destroy()
}

// Down blocks until a unit is available, or ctx is already done.
func (s *Semaphore) Down(ctx context.Context) {
	s.ensureInit()
	if err := ctx.Err(); err != nil {
		return
	}
	th := threadFromContext(ctx)

	s.mu.Lock()
	if s.count > 0 {
		s.count--
		s.mu.Unlock()
		return
	}

	s.sched.Yield(func() {
		// ThreadHasBlocked must precede unlock: otherwise a concurrent
		// Up could make this thread runnable before the scheduler has
		// been told it blocked at all.
		s.sched.ThreadHasBlocked(th, BlockedOnMutex)
		s.q.Enqueue(th)
		s.mu.Unlock()
	})
	s.log.WithField("thread", th.ID).Debug("semaphore: parked in Down")
	park(th)
}

// TimedDown is Down bounded by an absolute deadline. Returns false if the
// deadline elapsed before a unit became available.
func (s *Semaphore) TimedDown(deadline time.Time) bool {
	s.ensureInit()
	s.mu.Lock()
	if s.count > 0 {
		s.count--
		s.mu.Unlock()
		return true
	}
	th := threadFromContext(context.Background())

	var t *timeoutCtl
	s.sched.Yield(func() {
		s.sched.ThreadHasBlocked(th, BlockedOnMutex)
		s.q.Enqueue(th)
		t = armTimeout(th, s.q, &s.mu, s.sched, deadline)
		s.mu.Unlock()
	})
	park(th)
	t.cancel()
	return !t.timedOutValue()
}

// TryDown decrements the count if positive and returns whether it did.
// Never yields.
func (s *Semaphore) TryDown() bool {
	s.ensureInit()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count > 0 {
		s.count--
		return true
	}
	return false
}

// Up releases one unit. If a waiter is queued, the unit is handed
// directly to it rather than being added to count, so a concurrently
// racing TryDown can never steal a unit that was already promised to a
// sleeper.
func (s *Semaphore) Up() {
	s.ensureInit()
	s.mu.Lock()
	waiter := s.q.GetNext()
	if waiter == nil {
		s.count++
	}
	s.mu.Unlock()

	if waiter != nil {
		s.log.WithField("thread", waiter.ID).Debug("semaphore: hand-off on Up")
		s.sched.MakeRunnable(waiter)
	}
}
