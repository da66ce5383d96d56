package uthsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFIFOQueueOrdering(t *testing.T) {
	q := newFIFOQueue()
	assert.True(t, q.IsEmpty())

	a, b, c := newThreadHandle(), newThreadHandle(), newThreadHandle()
	q.Enqueue(a)
	q.Enqueue(b)
	q.Enqueue(c)
	assert.False(t, q.IsEmpty())

	assert.Same(t, a, q.GetNext())
	assert.Same(t, b, q.GetNext())
	assert.Same(t, c, q.GetNext())
	assert.Nil(t, q.GetNext())
	assert.True(t, q.IsEmpty())
}

func TestFIFOQueueGetSpecific(t *testing.T) {
	q := newFIFOQueue()
	a, b, c := newThreadHandle(), newThreadHandle(), newThreadHandle()
	q.Enqueue(a)
	q.Enqueue(b)
	q.Enqueue(c)

	assert.True(t, q.GetSpecific(b))
	assert.False(t, q.GetSpecific(b), "removing the same thread twice must fail the second time")

	assert.Same(t, a, q.GetNext())
	assert.Same(t, c, q.GetNext())
	assert.Nil(t, q.GetNext())
}

func TestFIFOQueueSwap(t *testing.T) {
	q1, q2 := newFIFOQueue(), newFIFOQueue()
	a, b := newThreadHandle(), newThreadHandle()
	q1.Enqueue(a)
	q1.Enqueue(b)

	q1.Swap(q2)
	assert.True(t, q1.IsEmpty())
	assert.Same(t, a, q2.GetNext())
	assert.Same(t, b, q2.GetNext())
}

func TestFIFOQueueDestroyRequiresEmpty(t *testing.T) {
	q := newFIFOQueue()
	assert.NotPanics(t, q.Destroy)

	q.Enqueue(newThreadHandle())
	assert.Panics(t, q.Destroy, "destroying a non-empty wait queue is fatal misuse")
}

func TestEnqueueTwiceMustPanic(t *testing.T) {
	q := newFIFOQueue()
	th := newThreadHandle()
	q.Enqueue(th)
	assert.Panics(t, func() { q.Enqueue(th) })
}
