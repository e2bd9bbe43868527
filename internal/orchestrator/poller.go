package orchestrator

import (
	"context"
	"time"

	"genflow/internal/common/config"
	"genflow/internal/common/metrics"
)

// run is the session's poll loop. It lives for the session lifetime; a
// failed tick is skipped, never fatal.
func (s *Session) run() {
	defer s.wg.Done()

	interval := config.GetDuration(s.opts.Poller.Interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First view without waiting a full interval.
	s.pollOnce()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce()
		}
	}
}

// pollOnce fetches every page for the session's tags and applies the result
// as one atomic tick. A failure anywhere in pagination discards the whole
// tick so stale partial data never overwrites a previous consistent view.
func (s *Session) pollOnce() {
	started := time.Now()

	fetchCtx, cancel := context.WithTimeout(s.ctx, config.GetDuration(s.opts.Poller.Interval)*2)
	defer cancel()

	items, err := s.fetchAll(fetchCtx)
	if err != nil {
		metrics.PollTicks.WithLabelValues("failed").Inc()
		metrics.PollTickDuration.WithLabelValues("failed").Observe(time.Since(started).Seconds())
		s.obs.RecordPollDuration(s.ctx, time.Since(started), "failed")
		s.recordFailedTick(err)
		return
	}

	s.applyTick(items)

	metrics.PollTicks.WithLabelValues("success").Inc()
	metrics.PollTickDuration.WithLabelValues("success").Observe(time.Since(started).Seconds())
	s.obs.RecordPollDuration(s.ctx, time.Since(started), "success")
}

func (s *Session) fetchAll(ctx context.Context) ([]Workflow, error) {
	var items []Workflow
	cursor := ""

	for page := 0; page < s.opts.Poller.MaxPages; page++ {
		wp, err := s.jobs.ListWorkflows(ctx, s.opts.Tags, cursor, s.opts.Poller.PageSize)
		if err != nil {
			return nil, err
		}
		items = append(items, wp.Items...)
		if wp.NextCursor == "" {
			return items, nil
		}
		cursor = wp.NextCursor
	}

	// Page cap hit. Use what we have; the next tick continues from scratch.
	s.logger.Warn("poll pagination hit page cap", map[string]interface{}{
		"maxPages": s.opts.Poller.MaxPages,
		"items":    len(items),
	})
	return items, nil
}

func (s *Session) recordFailedTick(err error) {
	s.mu.Lock()
	s.failedTicks++
	becameStale := false
	if !s.stale && s.failedTicks >= s.opts.Poller.DegradedAfter {
		s.stale = true
		becameStale = true
	}
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	s.logger.Warn("poll tick failed, skipping", map[string]interface{}{
		"consecutiveFailures": s.failedTicks,
		"error":               err.Error(),
	})

	if becameStale {
		s.logger.Error("poll degraded, workflow status may be stale", map[string]interface{}{
			"consecutiveFailures": s.failedTicks,
		})
		notify(subs, snap)
	}
}

// applyTick merges one consistent fetch into the tracked set. Per workflow
// id the newest data wins; the service's own UpdatedAt breaks ties so a
// stale page can never roll a workflow backwards.
func (s *Session) applyTick(items []Workflow) {
	type terminalEvent struct {
		wf       Workflow
		progress NormalizedProgress
	}
	var terminalEvents []terminalEvent

	s.mu.Lock()
	s.tick++
	s.failedTicks = 0
	s.stale = false

	for i := range items {
		incoming := items[i]
		for j := range incoming.Steps {
			SortStepImages(incoming.Steps[j].Images)
		}

		entry, known := s.tracked[incoming.ID]
		if !known {
			// A workflow submitted outside this process but matching our
			// tags. Track it like any other.
			s.tracked[incoming.ID] = &trackedEntry{
				wf:           incoming,
				progress:     Normalize(&incoming),
				lastSeenTick: s.tick,
			}
			continue
		}

		entry.lastSeenTick = s.tick
		entry.missedTicks = 0

		serverTerminal := incoming.Status.Terminal()
		if entry.wf.UpdatedAt.After(incoming.UpdatedAt) && !(entry.cancelPending && serverTerminal) {
			continue
		}

		// An optimistically canceled workflow only counts as settled once the
		// service reports a terminal outcome.
		wasTerminal := entry.wf.Status.Terminal() && !entry.cancelPending

		if entry.cancelPending && !serverTerminal {
			// Hold the optimistic canceled state until the service confirms,
			// but keep the fresher step data.
			incoming.Status = StatusCanceled
		}
		if serverTerminal {
			entry.cancelPending = false
		}

		entry.wf = incoming
		entry.progress = Normalize(&entry.wf)

		if !wasTerminal && !entry.cancelPending && entry.wf.Status.Terminal() {
			terminalEvents = append(terminalEvents, terminalEvent{wf: entry.wf, progress: entry.progress})
		}
	}

	// Previously tracked non-terminal workflows the service stopped
	// reporting: fail them after the grace period, never drop them.
	for _, entry := range s.tracked {
		if entry.wf.Status.Terminal() || entry.lastSeenTick == s.tick {
			continue
		}
		entry.missedTicks++
		if entry.missedTicks < s.opts.Poller.GraceTicks {
			continue
		}

		s.logger.Warn("workflow vanished from service, marking failed", map[string]interface{}{
			"workflowId":  entry.wf.ID,
			"missedTicks": entry.missedTicks,
		})
		entry.wf.Status = StatusFailed
		entry.wf.UpdatedAt = time.Now().UTC()
		entry.cancelPending = false
		entry.progress = Normalize(&entry.wf)
		terminalEvents = append(terminalEvents, terminalEvent{wf: entry.wf, progress: entry.progress})
	}

	s.updateWorkflowGauges()
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	if s.audit == nil || s.closed {
		terminalEvents = nil
	}
	s.bg.Add(len(terminalEvents))
	s.mu.Unlock()

	for _, ev := range terminalEvents {
		ev := ev
		go func() {
			defer s.bg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.audit.IndexTerminal(ctx, s.opts.UserID, &ev.wf, ev.progress)
		}()
	}

	notify(subs, snap)
}
