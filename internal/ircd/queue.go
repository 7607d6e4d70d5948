// Package ircd runs the per-connection read and write loops of the bridge.
package ircd

import (
	"context"
	"errors"
	"sync"

	"github.com/omochice/toy-irc-bridge/internal/irc"
)

// ErrQueueClosed is returned when sending on a closed Queue.
var ErrQueueClosed = errors.New("outbound queue closed")

// Queue is the ordered outbound queue of one connection. Any number of
// producers may Send; exactly one write loop consumes Receive.
type Queue struct {
	ch   chan irc.Message
	done chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewQueue creates a Queue buffering up to size messages.
func NewQueue(size int) *Queue {
	if size < 0 {
		size = 0
	}
	return &Queue{
		ch:   make(chan irc.Message, size),
		done: make(chan struct{}),
	}
}

// Send enqueues msg, blocking while the queue is full.
func (q *Queue) Send(ctx context.Context, msg irc.Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- msg:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the consumer side. It is closed once Close is called and
// every in-flight Send has returned.
func (q *Queue) Receive() <-chan irc.Message {
	return q.ch
}

// Close stops accepting messages. Messages already queued stay readable.
// It is safe to call Close more than once.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)

		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
	})
}
