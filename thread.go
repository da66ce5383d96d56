package uthsync

import (
	"context"

	"github.com/google/uuid"
)

// waitLink is the intrusive queue-membership slot embedded in every
// ThreadHandle. A thread is linked into at most one wait queue at a
// time: Enqueue sets it, and the dequeuing operation (GetNext or
// GetSpecific) nils it out before handing the thread back to its owner.
type waitLink struct {
	prev, next *ThreadHandle
	queued     bool
}

// ThreadHandle is the opaque identity a Scheduler hands to synchronization
// primitives. It is borrowed, never owned, by the primitives: the 2LS
// retains ownership and is responsible for actually resuming execution
// once MakeRunnable is called.
type ThreadHandle struct {
	// ID is a printable identity used only for diagnostics; primitives
	// never branch on it.
	ID uuid.UUID

	link waitLink

	// wake is the channel the default goroutineScheduler parks the
	// calling goroutine on. A 2LS supplying its own Scheduler has no use
	// for this field; it exists purely for the default implementation.
	wake chan struct{}
}

func newThreadHandle() *ThreadHandle {
	return &ThreadHandle{
		ID:   uuid.New(),
		wake: make(chan struct{}, 1),
	}
}

// threadCtxKey is the context.Context key under which a goroutine's
// ThreadHandle is attached. Go has no goroutine-local storage (unlike the
// Akaros "current vcore" register this subsystem was originally built
// against), so the context carried by the caller stands in for it — the
// same way ctx-aware mutexes elsewhere in the pack (e.g. the storj
// hashstore mutex/rwMutex, and the x/sync weighted semaphore) thread
// cancellation through an explicit context.Context rather than a thread-
// local.
type threadCtxKey struct{}

// threadFromContext returns the ThreadHandle already attached to ctx, or
// mints a fresh one if none is present. Every blocking entry point calls
// this first so that a caller who never thinks about ThreadHandle at all
// still gets correct, if anonymous, queue behavior.
func threadFromContext(ctx context.Context) *ThreadHandle {
	if th, ok := ctx.Value(threadCtxKey{}).(*ThreadHandle); ok {
		return th
	}
	return newThreadHandle()
}

// WithThread attaches a stable ThreadHandle to ctx. Callers that will make
// more than one blocking call on the same logical thread (for example, a
// goroutine that loops calling Cond.Wait) should call this once up front
// so that all of those calls share one identity and one wait-link slot.
func WithThread(ctx context.Context) context.Context {
	if _, ok := ctx.Value(threadCtxKey{}).(*ThreadHandle); ok {
		return ctx
	}
	return context.WithValue(ctx, threadCtxKey{}, newThreadHandle())
}
