// Package api exposes the orchestration layer over HTTP. Each caller is
// identified by an X-User-ID header and owns one session.
package api

import (
	"sync"

	"genflow/internal/common/config"
	"genflow/internal/common/logger"
	"genflow/internal/common/observability"
	"genflow/internal/orchestrator"
)

// SessionManager lazily constructs one orchestrator session per user and
// tears them all down on shutdown.
type SessionManager struct {
	pollerCfg config.PollerConfig
	tags      []string
	validator *orchestrator.Validator
	estimator *orchestrator.Estimator
	submitter *orchestrator.Submitter
	jobs      orchestrator.JobService
	limits    orchestrator.LimitsProvider
	billing   orchestrator.BillingService
	audit     orchestrator.AuditSink
	obs       *observability.Observability
	logger    logger.Logger

	mu       sync.Mutex
	sessions map[string]*orchestrator.Session
}

// NewSessionManager wires the shared collaborators. audit may be nil.
func NewSessionManager(
	pollerCfg config.PollerConfig,
	tags []string,
	validator *orchestrator.Validator,
	estimator *orchestrator.Estimator,
	submitter *orchestrator.Submitter,
	jobs orchestrator.JobService,
	limitsProvider orchestrator.LimitsProvider,
	billing orchestrator.BillingService,
	audit orchestrator.AuditSink,
	obs *observability.Observability,
	log logger.Logger,
) *SessionManager {
	return &SessionManager{
		pollerCfg: pollerCfg,
		tags:      tags,
		validator: validator,
		estimator: estimator,
		submitter: submitter,
		jobs:      jobs,
		limits:    limitsProvider,
		billing:   billing,
		audit:     audit,
		obs:       obs,
		logger:    log,
		sessions:  make(map[string]*orchestrator.Session),
	}
}

// Session returns the user's session, creating it on first use.
func (m *SessionManager) Session(userID string) *orchestrator.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s
	}

	s := orchestrator.NewSession(
		orchestrator.SessionOptions{
			UserID: userID,
			Tags:   append([]string{"generation", "user:" + userID}, m.tags...),
			Poller: m.pollerCfg,
		},
		m.validator, m.estimator, m.submitter,
		m.jobs, m.limits, m.billing, m.audit, m.obs,
		m.logger,
	)
	m.sessions[userID] = s
	return s
}

// CloseAll stops every live session.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*orchestrator.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*orchestrator.Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
