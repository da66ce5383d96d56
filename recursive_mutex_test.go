package uthsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRecursiveMutexLockDepth is scenario S5: lock 3 times, unlock 3
// times; a second thread's TryLock fails until the final unlock.
func TestRecursiveMutexLockDepth(t *testing.T) {
	rm := NewRecursiveMutex()
	ctx := WithThread(context.Background())

	rm.Lock(ctx)
	rm.Lock(ctx)
	rm.Lock(ctx)

	otherCtx := WithThread(context.Background())
	assert.False(t, rm.TryLock(otherCtx))

	rm.Unlock(ctx)
	assert.False(t, rm.TryLock(otherCtx))

	rm.Unlock(ctx)
	assert.False(t, rm.TryLock(otherCtx))

	rm.Unlock(ctx)
	assert.True(t, rm.TryLock(otherCtx))
	rm.Unlock(otherCtx)
}

func TestRecursiveMutexUnlockByNonOwnerPanics(t *testing.T) {
	rm := NewRecursiveMutex()
	ctx := WithThread(context.Background())
	rm.Lock(ctx)

	otherCtx := WithThread(context.Background())
	assert.Panics(t, func() { rm.Unlock(otherCtx) })

	rm.Unlock(ctx)
}

func TestRecursiveMutexInvariant(t *testing.T) {
	// count == 0 iff lockholder == none.
	rm := NewRecursiveMutex()
	ctx := WithThread(context.Background())

	assert.Nil(t, rm.lockholder)
	assert.Equal(t, uint(0), rm.count)

	rm.Lock(ctx)
	assert.NotNil(t, rm.lockholder)
	assert.Equal(t, uint(1), rm.count)

	rm.Unlock(ctx)
	assert.Nil(t, rm.lockholder)
	assert.Equal(t, uint(0), rm.count)
}
