// ABOUTME: Bounded hand-off queue between capture and display
// ABOUTME: Ring buffer of level updates that drops the oldest entry when full
package meter

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultQueueCapacity holds roughly one second of updates at common
// capture buffer cadences.
const DefaultQueueCapacity = 64

// ErrQueueClosed is returned by Pop once the queue is closed and drained
var ErrQueueClosed = errors.New("meter: queue closed")

// Update carries the volume-scaled levels computed from one captured buffer
type Update struct {
	Seq    uint64    // increases by one per metered buffer
	Time   time.Time // capture time of the source buffer
	Volume float64   // volume the levels were scaled by
	Levels []float64 // one entry per channel, in channel order
}

// Queue is a thread-safe FIFO with a fixed capacity. Push never blocks:
// when the queue is full the oldest update is discarded.
type Queue struct {
	mu       sync.Mutex
	items    []Update
	readPos  int
	count    int
	dropped  uint64
	closed   bool
	notify   chan struct{}
	closedCh chan struct{}
}

// NewQueue creates a queue holding at most capacity updates
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		items:    make([]Update, capacity),
		notify:   make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}
}

// Push appends u and reports whether an older update had to be dropped
// to make room. Pushing to a closed queue is a no-op.
func (q *Queue) Push(u Update) (dropped bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	size := len(q.items)
	if q.count == size {
		// Drop oldest
		q.items[q.readPos] = Update{}
		q.readPos = (q.readPos + 1) % size
		q.count--
		q.dropped++
		dropped = true
	}

	writePos := (q.readPos + q.count) % size
	q.items[writePos] = u
	q.count++
	q.mu.Unlock()

	q.signal()
	return dropped
}

// TryPop removes and returns the oldest update without blocking
func (q *Queue) TryPop() (Update, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Pop blocks until an update is available, the context is done, or the
// queue is closed and empty.
func (q *Queue) Pop(ctx context.Context) (Update, error) {
	for {
		q.mu.Lock()
		u, ok := q.popLocked()
		closed := q.closed
		remaining := q.count
		q.mu.Unlock()

		if ok {
			if remaining > 0 {
				// Wake any other consumer waiting on the same token
				q.signal()
			}
			return u, nil
		}
		if closed {
			return Update{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return Update{}, ctx.Err()
		case <-q.notify:
		case <-q.closedCh:
		}
	}
}

// Updates streams queued updates in order on the returned channel until
// ctx is done or the queue is closed.
func (q *Queue) Updates(ctx context.Context) <-chan Update {
	out := make(chan Update)
	go func() {
		defer close(out)
		for {
			u, err := q.Pop(ctx)
			if err != nil {
				return
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the number of queued updates
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity
func (q *Queue) Cap() int {
	return len(q.items)
}

// Dropped returns how many updates were discarded because the queue was full
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close stops accepting updates. Queued updates can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.closedCh)
}

// popLocked removes the oldest update (must hold q.mu)
func (q *Queue) popLocked() (Update, bool) {
	if q.count == 0 {
		return Update{}, false
	}
	u := q.items[q.readPos]
	q.items[q.readPos] = Update{}
	q.readPos = (q.readPos + 1) % len(q.items)
	q.count--
	return u, true
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
