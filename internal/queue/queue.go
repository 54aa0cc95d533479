// Package queue holds sessions that have been admitted but not yet picked up
// by a worker.
package queue

import (
	"errors"
	"sync"

	ring "github.com/eapache/queue"

	"github.com/andy6609/ems-pipe-server/internal/protocol"
)

var ErrClosed = errors.New("session queue closed")

// Item is an admitted session waiting for a worker.
type Item struct {
	ID           uint64
	Registration protocol.Registration
}

// Session is a bounded FIFO of admitted sessions. It also owns the session id
// counter so that ids are handed out under the same lock that orders the queue.
type Session struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	ring     *ring.Queue
	capacity int
	nextID   uint64
	closed   bool
}

func NewSession(capacity int) *Session {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Session{
		ring:     ring.New(),
		capacity: capacity,
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// NextID returns the next session id. Ids start at zero and never repeat.
func (q *Session) NextID() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextID
	q.nextID++
	return id
}

// Enqueue blocks while the queue is full.
func (q *Session) Enqueue(item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.ring.Length() == q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrClosed
	}
	q.ring.Add(item)
	q.notEmpty.Signal()
	return nil
}

// Dequeue blocks while the queue is empty. The returned Item is a copy; the
// ring slot may be reused as soon as the lock is released.
func (q *Session) Dequeue() (Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.ring.Length() == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.closed {
		return Item{}, ErrClosed
	}
	item := q.ring.Remove().(Item)
	q.notFull.Signal()
	return item, nil
}

// Close wakes every blocked caller. Items still queued are dropped.
func (q *Session) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

func (q *Session) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Length()
}

func (q *Session) Cap() int { return q.capacity }
