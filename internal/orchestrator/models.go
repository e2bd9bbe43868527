// Package orchestrator drives generation workflows against the external
// asynchronous job execution service: validation, admission, submission,
// polling, and cancellation, scoped to one user session.
package orchestrator

import "time"

// ==========================
// 1. Workflow Status
// ==========================

// Status is the lifecycle state of a submitted workflow. Transitions are
// monotonic; the only backward-looking move is any non-terminal state to
// canceled.
type Status string

const (
	StatusUnassigned Status = "unassigned"
	StatusPreparing  Status = "preparing"
	StatusScheduled  Status = "scheduled"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// ImageStatus is the state of a single step output.
type ImageStatus string

const (
	ImageQueued     ImageStatus = "queued"
	ImageProcessing ImageStatus = "processing"
	ImageSucceeded  ImageStatus = "succeeded"
	ImageFailed     ImageStatus = "failed"
)

// ==========================
// 2. Workflow Data Model
// ==========================

// StepImage is one output unit of a workflow step.
type StepImage struct {
	ID          string      `json:"id"`
	Status      ImageStatus `json:"status"`
	URL         string      `json:"url,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

// WorkflowStep is a sub-unit of a workflow producing one or more images.
// Params is the engine input echoed back by the service.
type WorkflowStep struct {
	StepID      string                 `json:"stepId"`
	StartedAt   *time.Time             `json:"startedAt,omitempty"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
	Images      []StepImage            `json:"images"`
	Params      map[string]interface{} `json:"params,omitempty"`
}

// Workflow is the external service's unit of asynchronous work.
type Workflow struct {
	ID        string         `json:"id"`
	EngineID  string         `json:"engineId"`
	Tags      []string       `json:"tags"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Steps     []WorkflowStep `json:"steps"`
	Status    Status         `json:"status"`
}

// TrackedWorkflow is a workflow plus its derived progress, as exposed to
// subscribers and the HTTP surface.
type TrackedWorkflow struct {
	Workflow Workflow           `json:"workflow"`
	Progress NormalizedProgress `json:"progress"`
}

// Snapshot is the point-in-time view delivered to subscribers. Stale flips
// after several consecutive poll failures and means the data may lag the
// service.
type Snapshot struct {
	Workflows []TrackedWorkflow `json:"workflows"`
	Stale     bool              `json:"stale"`
}
