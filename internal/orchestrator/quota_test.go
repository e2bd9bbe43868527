package orchestrator

import (
	"context"
	"errors"
	"testing"

	cerrors "genflow/internal/common/errors"
	"genflow/internal/common/logger"
	"genflow/internal/engine"
	"genflow/internal/limits"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeBilling struct {
	estimate     int64
	estimateErr  error
	balance      int64
	balanceErr   error
	reserveOK    bool
	reserveErr   error
	reserveCalls int
}

func (f *fakeBilling) EstimateCost(_ context.Context, _ string, _ map[string]interface{}, _ int) (int64, error) {
	return f.estimate, f.estimateErr
}

func (f *fakeBilling) GetBalance(_ context.Context, _ string) (int64, error) {
	return f.balance, f.balanceErr
}

func (f *fakeBilling) ReserveFunds(_ context.Context, _ string, _ int64) (bool, error) {
	f.reserveCalls++
	return f.reserveOK, f.reserveErr
}

func paramsWithQuantity(q int) *engine.ValidatedParams {
	return &engine.ValidatedParams{
		EngineID: "turbo-image",
		Process:  engine.ProcessTextToImage,
		Values:   map[string]interface{}{"quantity": q},
	}
}

func testLimits(queueCap, quantityCap int) limits.UserGenerationLimits {
	return limits.UserGenerationLimits{
		QueueCapacity:         queueCap,
		Tier:                  "standard",
		PerRequestQuantityCap: quantityCap,
	}
}

// ==========================
// Admission Tests
// ==========================

func TestEstimator_Evaluate(t *testing.T) {
	tests := []struct {
		name       string
		billing    *fakeBilling
		quantity   int
		limits     limits.UserGenerationLimits
		queueDepth int
		wantAdmit  bool
		wantCode   cerrors.ErrorCode
	}{
		{
			name:      "quantity within cap admits",
			billing:   &fakeBilling{estimate: 100, balance: 1000},
			quantity:  4,
			limits:    testLimits(5, 4),
			wantAdmit: true,
		},
		{
			name:     "quantity above cap rejects",
			billing:  &fakeBilling{estimate: 100, balance: 1000},
			quantity: 4,
			limits:   testLimits(5, 2),
			wantCode: cerrors.ErrCodeQuantityCapped,
		},
		{
			name:       "queue at capacity rejects",
			billing:    &fakeBilling{estimate: 100, balance: 1000},
			quantity:   1,
			limits:     testLimits(3, 8),
			queueDepth: 3,
			wantCode:   cerrors.ErrCodeQuotaExceeded,
		},
		{
			name:       "queue below capacity admits",
			billing:    &fakeBilling{estimate: 100, balance: 1000},
			quantity:   1,
			limits:     testLimits(3, 8),
			queueDepth: 2,
			wantAdmit:  true,
		},
		{
			name:     "balance below estimate rejects",
			billing:  &fakeBilling{estimate: 500, balance: 100},
			quantity: 1,
			limits:   testLimits(3, 8),
			wantCode: cerrors.ErrCodeInsufficientFunds,
		},
		{
			name:      "estimate failure admits without the balance check",
			billing:   &fakeBilling{estimateErr: errors.New("ledger down")},
			quantity:  1,
			limits:    testLimits(3, 8),
			wantAdmit: true,
		},
		{
			name:      "balance failure admits with unverified funds",
			billing:   &fakeBilling{estimate: 500, balanceErr: errors.New("ledger down")},
			quantity:  1,
			limits:    testLimits(3, 8),
			wantAdmit: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			est := NewEstimator(tt.billing, logger.NewTestLogger(t))

			decision, err := est.Evaluate(context.Background(), "user-1",
				paramsWithQuantity(tt.quantity), map[string]interface{}{}, tt.limits, tt.queueDepth)
			require.NoError(t, err)

			if tt.wantAdmit {
				assert.True(t, decision.Admit)
				assert.Nil(t, decision.Reason)
			} else {
				assert.False(t, decision.Admit)
				require.NotNil(t, decision.Reason)
				assert.Equal(t, tt.wantCode, decision.Reason.Code)
			}
			assert.Zero(t, tt.billing.reserveCalls, "evaluation must not reserve funds")
		})
	}
}

func TestEstimator_MonotonicInQueueDepth(t *testing.T) {
	est := NewEstimator(&fakeBilling{estimate: 10, balance: 100}, logger.NewNoOpLogger())
	lim := testLimits(5, 8)

	admitAt := func(depth int) bool {
		decision, err := est.Evaluate(context.Background(), "user-1",
			paramsWithQuantity(1), map[string]interface{}{}, lim, depth)
		require.NoError(t, err)
		return decision.Admit
	}

	// Find the highest admitted depth, then every smaller depth must also admit.
	require.True(t, admitAt(4))
	for depth := 3; depth >= 0; depth-- {
		assert.True(t, admitAt(depth), "admission must be monotonic, failed at depth %d", depth)
	}
	assert.False(t, admitAt(5))
}

func TestEstimator_Idempotent(t *testing.T) {
	billing := &fakeBilling{estimate: 10, balance: 100}
	est := NewEstimator(billing, logger.NewNoOpLogger())
	lim := testLimits(5, 8)

	var first *Decision
	for i := 0; i < 3; i++ {
		decision, err := est.Evaluate(context.Background(), "user-1",
			paramsWithQuantity(2), map[string]interface{}{}, lim, 1)
		require.NoError(t, err)
		if first == nil {
			first = decision
			continue
		}
		assert.Equal(t, first, decision)
	}
	assert.Zero(t, billing.reserveCalls)
}
