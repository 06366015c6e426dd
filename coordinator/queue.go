package coordinator

import "context"

// QueueBackend decouples the coordinator from any one transport: submit_run
// enqueues, and a separate dequeuer process (out of scope per spec.md §1)
// drains the same backend to actually launch runs. Enqueue must be safe to
// call concurrently; Dequeue blocks until a run is available or ctx is
// cancelled.
type QueueBackend interface {
	Enqueue(ctx context.Context, run *Run) error
	Dequeue(ctx context.Context) (*Run, error)
}
