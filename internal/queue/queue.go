// Package queue provides the bounded FIFO work queue between job
// admission and the worker loop. It is the only coordination between
// the two besides the job store.
package queue

import (
	"context"
	"errors"

	"github.com/clearpix/simple-denoiser/internal/denoise"
)

// ErrFull is returned when the queue is at capacity; admission should
// reject the request rather than block an HTTP handler.
var ErrFull = errors.New("work queue full")

// Item is one unit of enqueued work. It is immutable once enqueued and
// owned exclusively by the worker loop after dequeue.
type Item struct {
	JobID     string
	SourceRef string
	DestRef   string
	Request   denoise.Request
}

// Queue is a bounded FIFO channel safe for concurrent producers and a
// blocking consumer.
type Queue struct {
	ch chan Item
}

func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan Item, capacity)}
}

// Enqueue adds an item without blocking.
func (q *Queue) Enqueue(it Item) error {
	select {
	case q.ch <- it:
		return nil
	default:
		return ErrFull
	}
}

// Dequeue blocks until an item is available or ctx is canceled.
func (q *Queue) Dequeue(ctx context.Context) (Item, error) {
	select {
	case it := <-q.ch:
		return it, nil
	case <-ctx.Done():
		return Item{}, ctx.Err()
	}
}

// Len reports the number of items waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}
