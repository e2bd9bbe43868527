package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"genflow/internal/common/logger"
	"genflow/internal/orchestrator"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type capturedDoc struct {
	path string
	body map[string]interface{}
}

func newTestIndexer(t *testing.T) (*Indexer, *[]capturedDoc) {
	t.Helper()

	var mu sync.Mutex
	docs := &[]capturedDoc{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)

		mu.Lock()
		*docs = append(*docs, capturedDoc{path: r.URL.Path, body: body})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return NewIndexer(client, "generation-audit", logger.NewTestLogger(t)), docs
}

// ==========================
// Indexing Tests
// ==========================

func TestIndexer_IndexTerminal(t *testing.T) {
	indexer, docs := newTestIndexer(t)

	now := time.Now().UTC()
	wf := &orchestrator.Workflow{
		ID:        "wf-1",
		EngineID:  "base-image",
		Tags:      []string{"generation"},
		CreatedAt: now.Add(-time.Minute),
		UpdatedAt: now,
		Status:    orchestrator.StatusSucceeded,
	}
	progress := orchestrator.NormalizedProgress{
		Complete:        2,
		Quantity:        2,
		AggregateStatus: orchestrator.StatusSucceeded,
	}

	indexer.IndexTerminal(context.Background(), "user-1", wf, progress)

	require.Len(t, *docs, 1)
	doc := (*docs)[0]
	assert.Equal(t, "/generation-audit/_doc/wf-1", doc.path)
	assert.Equal(t, "user-1", doc.body["userId"])
	assert.Equal(t, "wf-1", doc.body["workflowId"])
	assert.Equal(t, "succeeded", doc.body["status"])
}

func TestIndexer_FailuresNeverPropagate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	indexer := NewIndexer(client, "generation-audit", logger.NewTestLogger(t))

	// Must not panic or return anything; the audit trail is best-effort.
	indexer.IndexTerminal(context.Background(), "user-1", &orchestrator.Workflow{
		ID:     "wf-err",
		Status: orchestrator.StatusFailed,
	}, orchestrator.NormalizedProgress{AggregateStatus: orchestrator.StatusFailed})
}
