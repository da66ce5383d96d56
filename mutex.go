package uthsync

import (
	"context"
	"time"
)

// Mutex is a binary semaphore: structurally a Semaphore with an initial
// count of 1. The zero value is a valid, unlocked mutex.
type Mutex struct {
	sem Semaphore
}

// NewMutex returns an initialized, unlocked Mutex.
func NewMutex(opts ...Option) *Mutex {
	m := &Mutex{}
	c := applyOptions(opts)
	m.sem.sched = c.sched
	m.sem.log = c.logger
	m.sem.q = c.queueFactory()
	m.sem.ensureInitWithCount(1)
	return m
}

func (m *Mutex) ensureInit() { m.sem.ensureInitWithCount(1) }

// Lock blocks until the mutex is acquired, or ctx is already done.
func (m *Mutex) Lock(ctx context.Context) {
	m.ensureInit()
	m.sem.Down(ctx)
}

// TimedLock is Lock bounded by an absolute deadline.
func (m *Mutex) TimedLock(deadline time.Time) bool {
	m.ensureInit()
	return m.sem.TimedDown(deadline)
}

// TryLock attempts to acquire the mutex without blocking.
func (m *Mutex) TryLock() bool {
	m.ensureInit()
	return m.sem.TryDown()
}

// Unlock releases the mutex. Unlocking an unheld mutex is programmer
// error and is not detected (the spec leaves uth_mutex_unlock's
// behaviour on a never-locked mutex undefined; this implementation
// simply performs the unconditional semaphore Up the spec describes).
func (m *Mutex) Unlock() {
	m.ensureInit()
	m.sem.Up()
}
