package uthsync

import (
	"sync"
	"time"
)

// timeoutCtl is the "timeout blob" of the spec: allocated by armTimeout
// for one timed wait, it outlives the alarm because the waiter either
// cancels the alarm or is woken by it before returning. It binds an absolute-time
// alarm to a (wait queue, lock, thread) tuple so a timed sleeper can be
// extracted from the queue exactly once.
type timeoutCtl struct {
	th    *ThreadHandle
	q     WaitQueue
	lock  sync.Locker
	sched Scheduler

	timer    *time.Timer
	finished chan struct{}

	mu       sync.Mutex
	timedOut bool
}

// armTimeout schedules an alarm that fires at deadline. If the alarm
// fires before the waiter is otherwise removed from q, the handler
// removes it itself, marks timedOut, and makes it runnable — racing
// exactly one way against a concurrent signal/unlock via q.GetSpecific,
// which only one caller can win.
func armTimeout(th *ThreadHandle, q WaitQueue, lock sync.Locker, sched Scheduler, deadline time.Time) *timeoutCtl {
	t := &timeoutCtl{th: th, q: q, lock: lock, sched: sched, finished: make(chan struct{})}
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	t.timer = time.AfterFunc(d, t.fire)
	return t
}

func (t *timeoutCtl) fire() {
	t.lock.Lock()
	removed := t.q.GetSpecific(t.th)
	t.lock.Unlock()

	if removed {
		t.mu.Lock()
		t.timedOut = true
		t.mu.Unlock()
	}
	close(t.finished)

	if removed {
		t.sched.MakeRunnable(t.th)
	}
}

// cancel stops the alarm. If the handler has already started running, it
// blocks until the handler has finished, guaranteeing the caller
// observes a final, stable value of timedOut: exactly one of {signal,
// timeout} ever wins.
func (t *timeoutCtl) cancel() {
	if t.timer.Stop() {
		// We beat the handler to the punch; it will never run.
		return
	}
	<-t.finished
}

func (t *timeoutCtl) timedOutValue() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timedOut
}
