package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"genflow/internal/common/config"
	cerrors "genflow/internal/common/errors"
	"genflow/internal/common/logger"
	"genflow/internal/common/metrics"
	"genflow/internal/common/observability"
	"genflow/internal/limits"
)

var (
	// ErrWorkflowNotFound means the id is not in the session's tracked set.
	ErrWorkflowNotFound = errors.New("workflow not tracked")
	// ErrWorkflowActive means Remove was refused because the workflow has
	// not reached a terminal state.
	ErrWorkflowActive = errors.New("workflow is not terminal")
)

// LimitsProvider supplies the user's generation entitlements.
type LimitsProvider interface {
	GetLimits(ctx context.Context, userID string) (limits.UserGenerationLimits, error)
}

// AuditSink receives workflows as they reach a terminal state. Best-effort;
// implementations must never block the poll loop for long.
type AuditSink interface {
	IndexTerminal(ctx context.Context, userID string, wf *Workflow, progress NormalizedProgress)
}

// SessionOptions configures one user session.
type SessionOptions struct {
	UserID string
	Tags   []string
	Poller config.PollerConfig
}

// Session is the per-user orchestration context. It exclusively owns the
// tracked-workflow map; the external service stays the source of truth and
// the map is rebuilt from poll data, with the cancellation path as the only
// ad hoc local writer. Submission and polling never block each other.
type Session struct {
	opts      SessionOptions
	validator *Validator
	estimator *Estimator
	submitter *Submitter
	jobs      JobService
	limits    LimitsProvider
	billing   BillingService
	audit     AuditSink
	obs       *observability.Observability
	logger    logger.Logger

	mu           sync.Mutex
	tracked      map[string]*trackedEntry
	tick         uint64
	failedTicks  int
	stale        bool
	closed       bool
	subs         map[int]func(Snapshot)
	nextSubID    int

	ctx    context.Context
	cancel context.CancelFunc
	// wg covers the poll loop; bg covers fire-and-forget cancel and audit
	// calls. bg.Add only happens under mu before closed is set, so Close can
	// wait on both without racing.
	wg sync.WaitGroup
	bg sync.WaitGroup
}

type trackedEntry struct {
	wf            Workflow
	progress      NormalizedProgress
	lastSeenTick  uint64
	missedTicks   int
	cancelPending bool
}

// NewSession builds the session and starts its poll loop. Close must be
// called when the user session ends.
func NewSession(
	opts SessionOptions,
	validator *Validator,
	estimator *Estimator,
	submitter *Submitter,
	jobs JobService,
	limitsProvider LimitsProvider,
	billing BillingService,
	audit AuditSink,
	obs *observability.Observability,
	log logger.Logger,
) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		opts:      opts,
		validator: validator,
		estimator: estimator,
		submitter: submitter,
		jobs:      jobs,
		limits:    limitsProvider,
		billing:   billing,
		audit:     audit,
		obs:       obs,
		logger:    log.WithFields(map[string]interface{}{"userId": opts.UserID}),
		tracked:   make(map[string]*trackedEntry),
		subs:      make(map[int]func(Snapshot)),
		ctx:       ctx,
		cancel:    cancel,
	}

	s.wg.Add(1)
	go s.run()
	return s
}

// Close stops the poll loop and waits for it and any in-flight background
// cancel or audit calls to exit.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.bg.Wait()
}

// ==========================
// 1. Submission Path
// ==========================

// Submit validates, admits, and submits one generation request, returning
// the tracked workflow in its initial state. Validation and quota failures
// come back as typed StandardErrors, never panics.
func (s *Session) Submit(ctx context.Context, engineID string, rawInput map[string]interface{}) (*TrackedWorkflow, error) {
	params, ferrs, err := s.validator.Validate(engineID, rawInput)
	if err != nil {
		return nil, err
	}
	if len(ferrs) > 0 {
		return nil, cerrors.NewValidationFailedError(ferrs)
	}

	engineInput, err := s.validator.EngineInput(params)
	if err != nil {
		return nil, err
	}

	lim, err := s.limits.GetLimits(ctx, s.opts.UserID)
	if err != nil {
		s.logger.Warn("limits lookup failed, applying free tier", map[string]interface{}{
			"error": err.Error(),
		})
		lim = limits.FreeTier()
	}

	decision, err := s.estimator.Evaluate(ctx, s.opts.UserID, params, engineInput, lim, s.queueDepth())
	if err != nil {
		return nil, err
	}
	if !decision.Admit {
		return nil, decision.Reason
	}

	// Commit the reservation. The ledger can still race the earlier estimate;
	// a refusal here is a submission failure, not a bug.
	if decision.EstimatedCost > 0 {
		ok, err := s.billing.ReserveFunds(ctx, s.opts.UserID, decision.EstimatedCost)
		if err != nil {
			s.logger.Warn("fund reservation errored, deferring to server-side check", map[string]interface{}{
				"error": err.Error(),
			})
		} else if !ok {
			return nil, cerrors.NewSubmissionFailedError(
				cerrors.NewInsufficientFundsError(decision.EstimatedCost))
		}
	}

	wf, err := s.submitter.Submit(ctx, s.opts.UserID, params, engineInput, s.opts.Tags)
	if err != nil {
		return nil, err
	}

	progress := Normalize(wf)

	s.mu.Lock()
	s.tracked[wf.ID] = &trackedEntry{
		wf:           *wf,
		progress:     progress,
		lastSeenTick: s.tick,
	}
	s.updateWorkflowGauges()
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snap)

	return &TrackedWorkflow{Workflow: *wf, Progress: progress}, nil
}

// queueDepth counts locally tracked non-terminal workflows.
func (s *Session) queueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	depth := 0
	for _, entry := range s.tracked {
		if !entry.wf.Status.Terminal() {
			depth++
		}
	}
	return depth
}

// ==========================
// 2. Read Path
// ==========================

// Workflows returns the current snapshot, newest first.
func (s *Session) Workflows() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers a snapshot callback fired after every state change.
// The returned function unsubscribes.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) snapshotLocked() Snapshot {
	out := Snapshot{
		Workflows: make([]TrackedWorkflow, 0, len(s.tracked)),
		Stale:     s.stale,
	}
	for _, entry := range s.tracked {
		out.Workflows = append(out.Workflows, TrackedWorkflow{
			Workflow: entry.wf,
			Progress: entry.progress,
		})
	}
	sort.Slice(out.Workflows, func(i, j int) bool {
		a, b := out.Workflows[i].Workflow, out.Workflows[j].Workflow
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func (s *Session) subscribersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

// notify runs outside the session lock so a slow subscriber cannot stall
// submission or polling.
func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}

// ==========================
// 3. Cancel and Remove
// ==========================

// Cancel optimistically marks a non-terminal workflow canceled and issues
// the external cancel best-effort. Idempotent: a second call while the first
// is in flight no-ops, so at most one external call runs per id.
func (s *Session) Cancel(ctx context.Context, workflowID string) error {
	s.mu.Lock()
	entry, ok := s.tracked[workflowID]
	if !ok {
		s.mu.Unlock()
		return ErrWorkflowNotFound
	}
	if entry.wf.Status.Terminal() || entry.cancelPending {
		s.mu.Unlock()
		metrics.CancelRequests.WithLabelValues("noop").Inc()
		return nil
	}

	// Optimistic local flip. UpdatedAt keeps the service's timestamp so the
	// last-write-wins merge only ever compares the service's own clock.
	priorStatus := entry.wf.Status
	entry.cancelPending = true
	entry.wf.Status = StatusCanceled
	entry.progress = Normalize(&entry.wf)
	launch := !s.closed
	if launch {
		s.bg.Add(1)
	}
	s.updateWorkflowGauges()
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snap)

	if !launch {
		return nil
	}

	go func() {
		defer s.bg.Done()

		callCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.jobs.CancelJob(callCtx, workflowID); err != nil {
			metrics.CancelRequests.WithLabelValues("failed").Inc()
			s.logger.Warn("external cancel failed, next poll is authoritative", map[string]interface{}{
				"workflowId": workflowID,
				"error":      err.Error(),
			})
			s.revertCancel(workflowID, priorStatus)
			return
		}
		metrics.CancelRequests.WithLabelValues("accepted").Inc()
	}()

	return nil
}

// revertCancel rolls back the optimistic flip after a failed external cancel.
// The workflow is still running server-side, so it goes back to its pre-cancel
// status and the next poll tick corrects any drift.
func (s *Session) revertCancel(workflowID string, priorStatus Status) {
	s.mu.Lock()
	entry, ok := s.tracked[workflowID]
	if !ok || !entry.cancelPending {
		s.mu.Unlock()
		return
	}
	entry.cancelPending = false
	if entry.wf.Status == StatusCanceled {
		entry.wf.Status = priorStatus
		entry.progress = Normalize(&entry.wf)
	}
	s.updateWorkflowGauges()
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snap)
}

// Remove deletes a terminal workflow from the local set. Non-terminal
// workflows are refused; losing track of in-flight work would orphan
// billing-relevant jobs.
func (s *Session) Remove(workflowID string) error {
	s.mu.Lock()
	entry, ok := s.tracked[workflowID]
	if !ok {
		s.mu.Unlock()
		return ErrWorkflowNotFound
	}
	if !entry.wf.Status.Terminal() {
		s.mu.Unlock()
		return ErrWorkflowActive
	}

	delete(s.tracked, workflowID)
	s.updateWorkflowGauges()
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snap)
	return nil
}

func (s *Session) updateWorkflowGauges() {
	counts := make(map[Status]int)
	for _, entry := range s.tracked {
		counts[entry.wf.Status]++
	}
	for _, status := range []Status{
		StatusUnassigned, StatusPreparing, StatusScheduled,
		StatusProcessing, StatusSucceeded, StatusFailed, StatusCanceled,
	} {
		metrics.TrackedWorkflows.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
