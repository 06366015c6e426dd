package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"weak"
)

// Config is the run coordinator's serialized configuration surface
// (spec.md §6).
type Config struct {
	MaxConcurrentRuns      int `json:"max_concurrent_runs,omitempty"`
	DequeueIntervalSeconds int `json:"dequeue_interval_seconds,omitempty"`
}

// WithDefaults returns a copy of c with zero fields filled in from spec.md
// §4.7's defaults (max_concurrent_runs=10, dequeue_interval_seconds=5).
func (c Config) WithDefaults() Config {
	if c.MaxConcurrentRuns <= 0 {
		c.MaxConcurrentRuns = 10
	}
	if c.DequeueIntervalSeconds <= 0 {
		c.DequeueIntervalSeconds = 5
	}
	return c
}

// RunCoordinator is the submit/cancel contract spec.md §4.7 enumerates.
// Concrete executors, the dequeuer loop, and the run launcher are external
// collaborators reached only through the QueueBackend this package defines.
type RunCoordinator interface {
	SubmitRun(ctx context.Context, run *Run) (*Run, error)
	CanCancelRun(ctx context.Context, runID string) (bool, error)
	CancelRun(ctx context.Context, runID string) (bool, error)
}

// QueuedRunCoordinator implements RunCoordinator by pushing runs onto a
// QueueBackend for a separate dequeuer process to pick up. It holds a weak
// back-reference to its owning Instance to avoid an ownership cycle
// (spec.md §5, §9): the coordinator never keeps the instance alive by
// itself, and a dead reference surfaces as an error rather than a nil-panic.
type QueuedRunCoordinator struct {
	config      Config
	instanceRef weak.Pointer[Instance]
	queue       QueueBackend
	logger      *slog.Logger
}

// NewQueuedRunCoordinator builds a coordinator backed by queue, holding only
// a weak reference to instance.
func NewQueuedRunCoordinator(instance *Instance, queue QueueBackend, config Config, logger *slog.Logger) *QueuedRunCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueuedRunCoordinator{
		config:      config.WithDefaults(),
		instanceRef: weak.Make(instance),
		queue:       queue,
		logger:      logger,
	}
}

// Config returns the coordinator's effective (defaulted) configuration.
func (c *QueuedRunCoordinator) Config() Config { return c.config }

// instance resolves the weak back-reference. A dead reference means the
// owning instance was torn down while the coordinator was still reachable —
// a programmer error per spec.md §5, surfaced as an error rather than a
// panic so a caller driving the coordinator from a background goroutine can
// log and move on instead of crashing the process.
func (c *QueuedRunCoordinator) instance() (*Instance, error) {
	inst := c.instanceRef.Value()
	if inst == nil {
		return nil, fmt.Errorf("run coordinator: owning instance reference is gone")
	}
	return inst, nil
}

// SubmitRun implements spec.md §4.7's submit_run: precondition run status is
// NOT_STARTED, enqueues the run, marks it QUEUED, and emits a
// PIPELINE_ENQUEUED event on the instance's event log.
func (c *QueuedRunCoordinator) SubmitRun(ctx context.Context, run *Run) (*Run, error) {
	inst, err := c.instance()
	if err != nil {
		return nil, err
	}
	if run.Status != StatusNotStarted {
		return nil, fmt.Errorf("run coordinator: submit_run precondition violated: run %s has status %s, want %s", run.ID, run.Status, StatusNotStarted)
	}

	if err := c.queue.Enqueue(ctx, run); err != nil {
		return nil, fmt.Errorf("run coordinator: enqueue run %s: %w", run.ID, err)
	}

	run.Status = StatusQueued
	inst.PutRun(run)

	if err := inst.RecordEvent(ctx, run.ID, EventPipelineEnqueued, map[string]any{
		"pipeline_name": run.PipelineName,
		"run_id":        run.ID,
	}); err != nil {
		c.logger.Warn("run coordinator: failed to record enqueue event", "run_id", run.ID, "error", err)
	}

	return run, nil
}

// CanCancelRun implements spec.md §4.7's can_cancel_run: true only if the
// run exists and is still QUEUED. A missing run or any other status is not
// this coordinator's to cancel (the launcher's can_terminate governs those,
// out of scope here).
func (c *QueuedRunCoordinator) CanCancelRun(ctx context.Context, runID string) (bool, error) {
	inst, err := c.instance()
	if err != nil {
		return false, err
	}
	run, ok := inst.GetRun(runID)
	if !ok {
		return false, nil
	}
	return run.Status == StatusQueued, nil
}

// CancelRun implements spec.md §4.7's cancel_run. Idempotent: a run already
// moved past QUEUED (including by a prior CancelRun call) returns false
// without side effects, per spec.md §5's cancellation semantics.
func (c *QueuedRunCoordinator) CancelRun(ctx context.Context, runID string) (bool, error) {
	inst, err := c.instance()
	if err != nil {
		return false, err
	}
	run, ok := inst.GetRun(runID)
	if !ok || run.Status != StatusQueued {
		return false, nil
	}

	run.Status = StatusFailed
	inst.PutRun(run)

	if err := inst.RecordEvent(ctx, runID, EventEngineEvent, map[string]any{
		"message": "run cancelled while queued",
	}); err != nil {
		c.logger.Warn("run coordinator: failed to record cancel event", "run_id", runID, "error", err)
	}

	return true, nil
}
