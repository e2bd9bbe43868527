package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"genflow/internal/common/config"
	cerrors "genflow/internal/common/errors"
	"genflow/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func testRetryConfig() config.SubmitterConfig {
	return config.SubmitterConfig{
		MaxRetries:  2,
		BaseDelay:   1,
		MaxDelay:    5,
		TotalBudget: 5000,
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	return NewClient(
		config.JobServiceConfig{BaseURL: baseURL, APIKey: "test-key", RequestTimeout: 2000},
		testRetryConfig(),
		logger.NewTestLogger(t),
	)
}

// fakeJobServer dedupes submissions by idempotency key, like the real
// service.
type fakeJobServer struct {
	mu        sync.Mutex
	failures  int
	attempts  int
	keysSeen  []string
	workflows map[string]string
}

func newFakeJobServer(failuresBeforeSuccess int) *fakeJobServer {
	return &fakeJobServer{
		failures:  failuresBeforeSuccess,
		workflows: make(map[string]string),
	}
}

func (f *fakeJobServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IdempotencyKey string `json:"idempotencyKey"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()

		f.attempts++
		f.keysSeen = append(f.keysSeen, body.IdempotencyKey)

		if f.attempts <= f.failures {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		id, ok := f.workflows[body.IdempotencyKey]
		if !ok {
			id = "wf-" + body.IdempotencyKey[:8]
			f.workflows[body.IdempotencyKey] = id
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"workflowId": id})
	}
}

func (f *fakeJobServer) jobCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.workflows)
}

// ==========================
// Submission Retry Tests
// ==========================

func TestClient_SubmitJob_RetriesTransientThenSucceeds(t *testing.T) {
	// Two failures, success on the third attempt: within the retry budget.
	server := newFakeJobServer(2)
	srv := httptest.NewServer(server.handler())
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	workflowID, err := client.SubmitJob(context.Background(), &SubmitJobRequest{
		Type:           "txt2img",
		EngineInput:    map[string]interface{}{"prompt": "fox"},
		Tags:           []string{"generation"},
		IdempotencyKey: "aaaabbbb-0000-0000-0000-000000000000",
		EngineID:       "turbo-image",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, workflowID)
	assert.Equal(t, 3, server.attempts)
	assert.Equal(t, 1, server.jobCount(), "retries must never create a second job")

	for _, key := range server.keysSeen {
		assert.Equal(t, server.keysSeen[0], key, "idempotency key must be stable across retries")
	}
}

func TestClient_SubmitJob_ExhaustsRetries(t *testing.T) {
	server := newFakeJobServer(10)
	srv := httptest.NewServer(server.handler())
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.SubmitJob(context.Background(), &SubmitJobRequest{
		Type:           "txt2img",
		IdempotencyKey: "aaaabbbb-0000-0000-0000-000000000001",
		EngineID:       "turbo-image",
	})

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeSubmissionFailed, cerrors.CodeOf(err))
	assert.Equal(t, 3, server.attempts, "one initial attempt plus two retries")
}

func TestClient_SubmitJob_Never4xxRetry(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"bad payload"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.SubmitJob(context.Background(), &SubmitJobRequest{
		Type:           "txt2img",
		IdempotencyKey: "aaaabbbb-0000-0000-0000-000000000002",
		EngineID:       "turbo-image",
	})

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeSubmissionRejected, cerrors.CodeOf(err))
	assert.Equal(t, 1, attempts, "4xx responses are surfaced immediately")
}

func TestClient_SubmitJob_RetriesOn429(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"workflowId": "wf-1"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	workflowID, err := client.SubmitJob(context.Background(), &SubmitJobRequest{
		Type:           "txt2img",
		IdempotencyKey: "aaaabbbb-0000-0000-0000-000000000003",
		EngineID:       "turbo-image",
	})

	require.NoError(t, err)
	assert.Equal(t, "wf-1", workflowID)
	assert.Equal(t, 2, attempts)
}

// ==========================
// Query and Cancel Tests
// ==========================

func TestClient_ListWorkflows_Paginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "generation,user:u1", r.URL.Query().Get("tags"))

		page := WorkflowPage{Items: []Workflow{{ID: "wf-a", Status: StatusProcessing}}}
		if r.URL.Query().Get("cursor") == "" {
			page.NextCursor = "page-2"
		} else {
			page.Items[0].ID = "wf-b"
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	first, err := client.ListWorkflows(context.Background(), []string{"generation", "user:u1"}, "", 50)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	assert.Equal(t, "wf-a", first.Items[0].ID)
	assert.Equal(t, "page-2", first.NextCursor)

	second, err := client.ListWorkflows(context.Background(), []string{"generation", "user:u1"}, first.NextCursor, 50)
	require.NoError(t, err)
	assert.Equal(t, "wf-b", second.Items[0].ID)
	assert.Empty(t, second.NextCursor)
}

func TestClient_ListWorkflows_FailureIsPollFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.ListWorkflows(context.Background(), []string{"generation"}, "", 50)

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodePollFetchFailed, cerrors.CodeOf(err))
	assert.True(t, cerrors.IsRetryable(err))
}

func TestClient_CancelJob(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"accepted", http.StatusOK, `{"ok":true}`, false},
		{"declined", http.StatusOK, `{"ok":false}`, true},
		{"server error", http.StatusInternalServerError, ``, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/jobs/wf-1/cancel", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL)
			err := client.CancelJob(context.Background(), "wf-1")
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, cerrors.ErrCodeCancelFailed, cerrors.CodeOf(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}
