package orchestrator

import (
	"sort"

	"genflow/internal/engine"
)

// NormalizedProgress is the uniform progress view derived from a workflow's
// steps on every poll tick.
type NormalizedProgress struct {
	Complete        int    `json:"complete"`
	Processing      int    `json:"processing"`
	Quantity        int    `json:"quantity"`
	AggregateStatus Status `json:"aggregateStatus"`
}

// Normalize recomputes progress for one workflow. The result depends only on
// the workflow's contents, never on the order step-images arrived in.
func Normalize(wf *Workflow) NormalizedProgress {
	p := NormalizedProgress{AggregateStatus: wf.Status}

	anyProcessing := false
	for i := range wf.Steps {
		step := &wf.Steps[i]
		p.Quantity += stepQuantity(step)

		for _, img := range step.Images {
			switch img.Status {
			case ImageSucceeded:
				p.Complete++
			case ImageProcessing:
				p.Processing++
				anyProcessing = true
			}
		}
	}

	// A workflow must never display a more finished status than its least
	// finished visible unit of work.
	if anyProcessing && !wf.Status.Terminal() {
		p.AggregateStatus = StatusProcessing
	}

	return p
}

// stepQuantity reads the requested output count from the step's echoed
// params, falling back to 1 when the step does not specify one.
func stepQuantity(step *WorkflowStep) int {
	if step.Params != nil {
		if q := engine.IntValue(step.Params, "quantity", 0); q > 0 {
			return q
		}
	}
	return 1
}

// SortStepImages orders images for display: incomplete first, then by
// completion time descending. Ties break on image id so the ordering is
// stable across ticks no matter how the service listed them.
func SortStepImages(images []StepImage) {
	sort.Slice(images, func(i, j int) bool {
		a, b := images[i], images[j]
		if (a.CompletedAt == nil) != (b.CompletedAt == nil) {
			return a.CompletedAt == nil
		}
		if a.CompletedAt == nil {
			return a.ID < b.ID
		}
		if !a.CompletedAt.Equal(*b.CompletedAt) {
			return a.CompletedAt.After(*b.CompletedAt)
		}
		return a.ID < b.ID
	})
}
