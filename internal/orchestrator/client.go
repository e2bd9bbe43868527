package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"genflow/internal/common/config"
	cerrors "genflow/internal/common/errors"
	"genflow/internal/common/httpclient"
	"genflow/internal/common/logger"
	"genflow/internal/common/metrics"
)

// JobService is the external asynchronous job execution service as seen by
// this layer.
type JobService interface {
	SubmitJob(ctx context.Context, req *SubmitJobRequest) (string, error)
	ListWorkflows(ctx context.Context, tags []string, cursor string, pageSize int) (*WorkflowPage, error)
	CancelJob(ctx context.Context, workflowID string) error
}

// SubmitJobRequest is the POST /jobs payload. EngineID is kept for metric
// labels only and never leaves the process.
type SubmitJobRequest struct {
	Type           string                 `json:"type"`
	EngineInput    map[string]interface{} `json:"engineInput"`
	Tags           []string               `json:"tags"`
	IdempotencyKey string                 `json:"idempotencyKey"`

	EngineID string `json:"-"`
}

// WorkflowPage is one page of the GET /workflows response.
type WorkflowPage struct {
	Items      []Workflow `json:"items"`
	NextCursor string     `json:"nextCursor"`
}

// Client is the HTTP client for the job service. Submission applies the
// bounded retry policy; queries and cancels are single-shot.
type Client struct {
	baseURL string
	http    *httpclient.Client
	retry   config.SubmitterConfig
	logger  logger.Logger
}

// NewClient builds a job service client from config.
func NewClient(cfg config.JobServiceConfig, retry config.SubmitterConfig, log logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpclient.NewClient(config.GetDuration(cfg.RequestTimeout), cfg.APIKey),
		retry:   retry,
		logger:  log,
	}
}

// ==========================
// 1. Submission
// ==========================

// SubmitJob sends the job, retrying transient failures (timeouts, 5xx, 429)
// with exponential backoff under a hard wall-clock budget. The idempotency key
// in req is reused verbatim on every attempt, so at most one job is created
// server-side. A 4xx response is surfaced immediately and never retried.
func (c *Client) SubmitJob(ctx context.Context, req *SubmitJobRequest) (string, error) {
	deadline := time.Now().Add(config.GetDuration(c.retry.TotalBudget))

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		workflowID, err := c.submitOnce(ctx, req)
		if err == nil {
			return workflowID, nil
		}

		if !cerrors.IsRetryable(err) {
			return "", err
		}
		lastErr = err

		if attempt == c.retry.MaxRetries {
			break
		}

		delay := config.GetDuration(c.retry.BaseDelay) * time.Duration(1<<attempt)
		if maxDelay := config.GetDuration(c.retry.MaxDelay); delay > maxDelay {
			delay = maxDelay
		}
		if time.Now().Add(delay).After(deadline) {
			c.logger.Warn("submission retry budget exhausted", map[string]interface{}{
				"engineId": req.EngineID,
				"attempts": attempt + 1,
			})
			break
		}

		metrics.SubmissionRetries.WithLabelValues(req.EngineID).Inc()
		c.logger.Warn("transient submission failure, retrying", map[string]interface{}{
			"engineId": req.EngineID,
			"attempt":  attempt + 1,
			"delayMs":  delay.Milliseconds(),
			"error":    err.Error(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("submission cancelled after %d attempts: %w", attempt+1, ctx.Err())
		}
	}

	return "", cerrors.NewSubmissionFailedError(lastErr)
}

func (c *Client) submitOnce(ctx context.Context, req *SubmitJobRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", cerrors.NewConfigurationError(fmt.Sprintf("submit payload not serializable: %v", err))
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", cerrors.NewConfigurationError(fmt.Sprintf("building submit request: %v", err))
	}

	resp, err := c.http.DoJSON(ctx, httpReq)
	if err != nil {
		// Network failure or timeout. Transient.
		return "", cerrors.NewTimeoutError("job-service", err)
	}
	defer resp.Body.Close()

	respBody := httpclient.ReadBodyLimited(resp.Body, 64<<10)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out struct {
			WorkflowID string `json:"workflowId"`
		}
		if err := json.Unmarshal([]byte(respBody), &out); err != nil || out.WorkflowID == "" {
			return "", cerrors.NewExternalServiceError("job-service",
				fmt.Errorf("malformed submit response: %s", respBody))
		}
		return out.WorkflowID, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", cerrors.NewExternalServiceError("job-service",
			fmt.Errorf("status %d: %s", resp.StatusCode, respBody))

	default:
		return "", cerrors.NewSubmissionRejectedError(resp.StatusCode, respBody)
	}
}

// ==========================
// 2. Query and Cancel
// ==========================

// ListWorkflows fetches one page of workflows matching the tags. Pagination
// is driven by the caller via the returned NextCursor.
func (c *Client) ListWorkflows(ctx context.Context, tags []string, cursor string, pageSize int) (*WorkflowPage, error) {
	q := url.Values{}
	q.Set("tags", strings.Join(tags, ","))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if pageSize > 0 {
		q.Set("limit", fmt.Sprintf("%d", pageSize))
	}

	httpReq, err := http.NewRequest(http.MethodGet, c.baseURL+"/workflows?"+q.Encode(), nil)
	if err != nil {
		return nil, cerrors.NewConfigurationError(fmt.Sprintf("building list request: %v", err))
	}

	resp, err := c.http.DoJSON(ctx, httpReq)
	if err != nil {
		return nil, cerrors.NewPollFetchError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, cerrors.NewPollFetchError(
			fmt.Errorf("status %d: %s", resp.StatusCode, httpclient.ReadBodyLimited(resp.Body, 64<<10)))
	}

	var page WorkflowPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, cerrors.NewPollFetchError(fmt.Errorf("decoding workflow page: %w", err))
	}
	return &page, nil
}

// CancelJob issues the best-effort external cancel. The next poll tick is the
// source of truth regardless of the outcome here.
func (c *Client) CancelJob(ctx context.Context, workflowID string) error {
	httpReq, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("%s/jobs/%s/cancel", c.baseURL, url.PathEscape(workflowID)), nil)
	if err != nil {
		return cerrors.NewConfigurationError(fmt.Sprintf("building cancel request: %v", err))
	}

	resp, err := c.http.DoJSON(ctx, httpReq)
	if err != nil {
		return cerrors.NewCancelFailedError(workflowID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return cerrors.NewCancelFailedError(workflowID,
			fmt.Errorf("status %d: %s", resp.StatusCode, httpclient.ReadBodyLimited(resp.Body, 64<<10)))
	}

	var out struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && !out.OK {
		return cerrors.NewCancelFailedError(workflowID, fmt.Errorf("service declined cancel"))
	}
	return nil
}
