package orchestrator

import (
	"context"

	cerrors "genflow/internal/common/errors"
	"genflow/internal/common/logger"
	"genflow/internal/common/metrics"
	"genflow/internal/engine"
	"genflow/internal/limits"
)

// BillingService is the ledger collaborator surface the estimator needs.
type BillingService interface {
	EstimateCost(ctx context.Context, engineID string, engineInput map[string]interface{}, quantity int) (int64, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	ReserveFunds(ctx context.Context, userID string, amount int64) (bool, error)
}

// Decision is the admission verdict for one candidate submission.
type Decision struct {
	Admit         bool
	Reason        *cerrors.StandardError
	EstimatedCost int64
}

// Estimator decides admit/reject before submission. It never mutates state
// and is safe to call repeatedly; the ledger and the job service remain
// independently authoritative, so balance races between estimate and commit
// are tolerated downstream.
type Estimator struct {
	billing BillingService
	logger  logger.Logger
}

func NewEstimator(billing BillingService, log logger.Logger) *Estimator {
	return &Estimator{billing: billing, logger: log}
}

// Evaluate checks, in order, the per-request quantity cap, the concurrent
// queue capacity against the locally known depth, and affordability via a
// dry-run cost estimate. Admission is monotonic in queueDepth: admitting at
// depth n implies admitting at any smaller depth with the same limits.
func (e *Estimator) Evaluate(
	ctx context.Context,
	userID string,
	params *engine.ValidatedParams,
	engineInput map[string]interface{},
	lim limits.UserGenerationLimits,
	queueDepth int,
) (*Decision, error) {
	requested := params.Quantity()
	if lim.PerRequestQuantityCap > 0 && requested > lim.PerRequestQuantityCap {
		metrics.QuotaRejections.WithLabelValues("quantity_cap").Inc()
		return &Decision{
			Reason: cerrors.NewQuantityCapExceededError(requested, lim.PerRequestQuantityCap),
		}, nil
	}

	if queueDepth+1 > lim.QueueCapacity {
		metrics.QuotaRejections.WithLabelValues("queue_capacity").Inc()
		return &Decision{
			Reason: cerrors.NewQuotaExceededError(queueDepth, lim.QueueCapacity),
		}, nil
	}

	cost, err := e.billing.EstimateCost(ctx, params.EngineID, engineInput, requested)
	if err != nil {
		// Best-effort check. The ledger rejects at commit time if it must.
		e.logger.Warn("cost estimate unavailable, admitting without balance check", map[string]interface{}{
			"userId":   userID,
			"engineId": params.EngineID,
			"error":    err.Error(),
		})
		return &Decision{Admit: true}, nil
	}

	balance, err := e.billing.GetBalance(ctx, userID)
	if err != nil {
		e.logger.Warn("balance lookup failed, admitting with unverified funds", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return &Decision{Admit: true, EstimatedCost: cost}, nil
	}

	if balance < cost {
		metrics.QuotaRejections.WithLabelValues("insufficient_funds").Inc()
		return &Decision{
			Reason:        cerrors.NewInsufficientFundsError(cost),
			EstimatedCost: cost,
		}, nil
	}

	return &Decision{Admit: true, EstimatedCost: cost}, nil
}
