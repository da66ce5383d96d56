package uthsync

// WaitQueue is the pluggable ordered container of blocked threads that
// every primitive in this package uses instead of blocking directly. The
// default implementation (fifoQueue, below) is a FIFO; a second-level
// scheduler may supply any implementation of this interface — a priority
// queue, a per-core structure, or anything else — via WithQueueFactory,
// and every primitive (Semaphore, Cond, RWMutex) will use it unmodified.
type WaitQueue interface {
	// Init prepares the queue for use. Called lazily, at most once, by
	// each primitive's once-guard.
	Init()
	// Destroy releases any resources held by the queue. Destroying a
	// non-empty queue is programmer error, in the same fatal-misuse
	// bucket as unlocking a recursive mutex from a thread that does not
	// hold it: it panics rather than returning an error.
	Destroy()
	// Enqueue links th onto the back of the queue.
	Enqueue(th *ThreadHandle)
	// GetNext unlinks and returns the thread at the front of the queue,
	// or nil if the queue is empty.
	GetNext() *ThreadHandle
	// GetSpecific scans the queue for th; if found, it is unlinked and
	// true is returned. This is the operation timeout cancellation
	// depends on: it must be possible to remove a specific thread, not
	// just the front of the queue.
	GetSpecific(th *ThreadHandle) bool
	// Swap exchanges the contents of this queue with other in O(1).
	// Broadcast uses this to drain under the lock without re-entering it
	// per waiter.
	Swap(other WaitQueue)
	// IsEmpty reports whether the queue currently holds any waiters.
	IsEmpty() bool
}

// fifoQueue is the default WaitQueue: a doubly linked list using the
// intrusive link embedded in ThreadHandle, the same shape as the
// container/list-backed waiter list in the x/sync weighted-semaphore
// implementation, specialized to avoid a second allocation per waiter.
type fifoQueue struct {
	head, tail *ThreadHandle
	len        int
}

func newFIFOQueue() *fifoQueue {
	q := &fifoQueue{}
	q.Init()
	return q
}

func (q *fifoQueue) Init() {}

func (q *fifoQueue) Destroy() {
	if !q.IsEmpty() {
		panic("uthsync: Destroy called on non-empty wait queue")
	}
}

func (q *fifoQueue) Enqueue(th *ThreadHandle) {
	if th.link.queued {
		panic("uthsync: thread is already linked into a wait queue")
	}
	th.link.queued = true
	th.link.prev = q.tail
	th.link.next = nil
	if q.tail != nil {
		q.tail.link.next = th
	} else {
		q.head = th
	}
	q.tail = th
	q.len++
}

func (q *fifoQueue) unlink(th *ThreadHandle) {
	if th.link.prev != nil {
		th.link.prev.link.next = th.link.next
	} else {
		q.head = th.link.next
	}
	if th.link.next != nil {
		th.link.next.link.prev = th.link.prev
	} else {
		q.tail = th.link.prev
	}
	th.link.prev, th.link.next = nil, nil
	th.link.queued = false
	q.len--
}

func (q *fifoQueue) GetNext() *ThreadHandle {
	th := q.head
	if th == nil {
		return nil
	}
	q.unlink(th)
	return th
}

func (q *fifoQueue) GetSpecific(th *ThreadHandle) bool {
	if !th.link.queued {
		return false
	}
	for cur := q.head; cur != nil; cur = cur.link.next {
		if cur == th {
			q.unlink(cur)
			return true
		}
	}
	return false
}

func (q *fifoQueue) Swap(other WaitQueue) {
	o, ok := other.(*fifoQueue)
	if !ok {
		// A foreign WaitQueue implementation: fall back to draining
		// one at a time. Still correct, just not O(1).
		for {
			th := q.GetNext()
			if th == nil {
				break
			}
			other.Enqueue(th)
		}
		return
	}
	q.head, o.head = o.head, q.head
	q.tail, o.tail = o.tail, q.tail
	q.len, o.len = o.len, q.len
}

func (q *fifoQueue) IsEmpty() bool {
	return q.head == nil
}
