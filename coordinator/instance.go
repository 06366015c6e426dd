package coordinator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/GoCodeAlone/workflow/interfaces"
)

// Instance is the minimal run store and event log surface the coordinator
// needs from its owning instance (spec.md §4.7, §5: "the run coordinator
// holds a weak back-reference to the instance"). The full instance —
// workflow registry, CLI plumbing, persistence — is out of scope and
// referenced nowhere here.
type Instance struct {
	mu            sync.RWMutex
	runs          map[string]*Run
	eventRecorder interfaces.EventRecorder
	logger        *slog.Logger
}

// NewInstance builds an Instance. eventRecorder may be nil, in which case
// RecordEvent is a no-op, matching every other nil-default recorder in this
// module.
func NewInstance(eventRecorder interfaces.EventRecorder, logger *slog.Logger) *Instance {
	if logger == nil {
		logger = slog.Default()
	}
	return &Instance{
		runs:          make(map[string]*Run),
		eventRecorder: eventRecorder,
		logger:        logger,
	}
}

// PutRun inserts or replaces the tracked run by ID.
func (i *Instance) PutRun(run *Run) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.runs[run.ID] = run
}

// GetRun returns the tracked run by ID.
func (i *Instance) GetRun(runID string) (*Run, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	r, ok := i.runs[runID]
	return r, ok
}

// RecordEvent forwards to the configured event recorder, doing nothing if
// none was set.
func (i *Instance) RecordEvent(ctx context.Context, runID, eventType string, data map[string]any) error {
	if i.eventRecorder == nil {
		return nil
	}
	return i.eventRecorder.RecordEvent(ctx, runID, eventType, data)
}
