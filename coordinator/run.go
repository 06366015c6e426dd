// Package coordinator models the run coordinator's submit/cancel contract
// (spec.md §4.7): a thin queue-backed front door in front of a separate
// dequeuer process. Everything else about run execution — the launcher, the
// dequeuer loop, the instance's full event log — is an external collaborator
// referenced only through the interfaces this package declares.
package coordinator

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle status the coordinator reads and writes. Only
// NotStarted, Queued, and Failed are ever touched by this package; the
// remaining values exist so a Run round-trips through a real instance's
// fuller state machine untouched.
type RunStatus string

const (
	StatusNotStarted RunStatus = "NOT_STARTED"
	StatusQueued      RunStatus = "QUEUED"
	StatusStarted     RunStatus = "STARTED"
	StatusSuccess     RunStatus = "SUCCESS"
	StatusFailed      RunStatus = "FAILED"
	StatusCanceled    RunStatus = "CANCELED"
)

// Run is the minimal run record the coordinator contract operates on.
type Run struct {
	ID           string    `json:"id"`
	PipelineName string    `json:"pipeline_name"`
	Status       RunStatus `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewRun builds a Run in NOT_STARTED status with a fresh ID.
func NewRun(pipelineName string) *Run {
	return &Run{
		ID:           uuid.NewString(),
		PipelineName: pipelineName,
		Status:       StatusNotStarted,
		CreatedAt:    time.Now(),
	}
}

// Event type constants emitted onto the instance's event log (spec.md §6).
const (
	EventPipelineEnqueued = "PIPELINE_ENQUEUED"
	EventEngineEvent      = "ENGINE_EVENT"
)
