package coordinator

import (
	"context"
)

// InMemoryQueueBackend is a single-process QueueBackend used in tests and in
// single-instance deployments where no external broker is warranted.
type InMemoryQueueBackend struct {
	ch chan *Run
}

// NewInMemoryQueueBackend builds a backend buffered to capacity entries.
func NewInMemoryQueueBackend(capacity int) *InMemoryQueueBackend {
	if capacity <= 0 {
		capacity = 64
	}
	return &InMemoryQueueBackend{ch: make(chan *Run, capacity)}
}

func (q *InMemoryQueueBackend) Enqueue(ctx context.Context, run *Run) error {
	select {
	case q.ch <- run:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InMemoryQueueBackend) Dequeue(ctx context.Context) (*Run, error) {
	select {
	case run := <-q.ch:
		return run, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
