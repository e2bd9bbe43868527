package orchestrator

import (
	"context"
	"time"

	"genflow/internal/common/logger"
	"genflow/internal/common/metrics"
	"genflow/internal/common/observability"
	"genflow/internal/engine"
)

// Submitter turns validated params into one externally-visible job. The
// idempotency key is obtained before the first attempt and released only on
// success, so every retry of the same logical submission reuses it.
type Submitter struct {
	jobs   JobService
	keys   KeyStore
	obs    *observability.Observability
	logger logger.Logger
}

func NewSubmitter(jobs JobService, keys KeyStore, obs *observability.Observability, log logger.Logger) *Submitter {
	return &Submitter{jobs: jobs, keys: keys, obs: obs, logger: log}
}

// Submit sends the job and returns the freshly tracked workflow in its
// initial unassigned state.
func (s *Submitter) Submit(
	ctx context.Context,
	userID string,
	params *engine.ValidatedParams,
	engineInput map[string]interface{},
	tags []string,
) (*Workflow, error) {
	fingerprint := Fingerprint(userID, params.EngineID, engineInput)
	token, err := s.keys.Obtain(ctx, fingerprint)
	if err != nil {
		// Redis outage must not block submissions. A fresh key only risks a
		// duplicate if a previous attempt crashed mid-flight.
		s.logger.Warn("idempotency store unavailable, using one-shot key", map[string]interface{}{
			"engineId": params.EngineID,
			"error":    err.Error(),
		})
		token = fingerprint[:32]
	}

	started := time.Now()
	workflowID, err := s.jobs.SubmitJob(ctx, &SubmitJobRequest{
		Type:           string(params.Process),
		EngineInput:    engineInput,
		Tags:           tags,
		IdempotencyKey: token,
		EngineID:       params.EngineID,
	})
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(params.EngineID, "failed").Inc()
		s.obs.RecordSubmission(ctx, params.EngineID, "failed")
		s.obs.RecordSubmissionDuration(ctx, time.Since(started), "failed")
		return nil, err
	}

	if err := s.keys.Release(ctx, fingerprint); err != nil {
		s.logger.Debug("idempotency key release failed", map[string]interface{}{
			"workflowId": workflowID,
			"error":      err.Error(),
		})
	}

	metrics.SubmissionsTotal.WithLabelValues(params.EngineID, "succeeded").Inc()
	s.obs.RecordSubmission(ctx, params.EngineID, "succeeded")
	s.obs.RecordSubmissionDuration(ctx, time.Since(started), "succeeded")

	now := time.Now().UTC()
	return &Workflow{
		ID:        workflowID,
		EngineID:  params.EngineID,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    StatusUnassigned,
	}, nil
}
