package live

import (
	"errors"
	"sync"
)

// ErrQueueClosed indicates a send on a closed request queue.
var ErrQueueClosed = errors.New("request queue is closed")

// queueDepth bounds how many client commands may be buffered ahead of the
// upstream drain loop.
const queueDepth = 32

type (
	// Command is one unit of client input bound for the upstream agent.
	// Exactly one field is set.
	Command struct {
		// Realtime is a realtime media chunk (audio).
		Realtime *Blob
		// Content is a complete content message (text).
		Content *Content
	}

	// RequestQueue is the command sink of a live run. Producers call
	// SendRealtime and SendContent; the run's backend drains Commands.
	// Close is idempotent and wakes both sides.
	RequestQueue struct {
		ch        chan Command
		done      chan struct{}
		closeOnce sync.Once
	}
)

// NewRequestQueue creates an open request queue.
func NewRequestQueue() *RequestQueue {
	return &RequestQueue{
		ch:   make(chan Command, queueDepth),
		done: make(chan struct{}),
	}
}

// SendRealtime enqueues a realtime media chunk.
func (q *RequestQueue) SendRealtime(blob *Blob) error {
	return q.send(Command{Realtime: blob})
}

// SendContent enqueues a complete content message.
func (q *RequestQueue) SendContent(content *Content) error {
	return q.send(Command{Content: content})
}

func (q *RequestQueue) send(cmd Command) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- cmd:
		return nil
	case <-q.done:
		return ErrQueueClosed
	}
}

// Commands returns the drain side of the queue. Consumers must also select
// on Done to observe closure.
func (q *RequestQueue) Commands() <-chan Command { return q.ch }

// Done is closed when the queue is closed.
func (q *RequestQueue) Done() <-chan struct{} { return q.done }

// Close closes the queue. It is safe to call multiple times and from
// multiple goroutines.
func (q *RequestQueue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
