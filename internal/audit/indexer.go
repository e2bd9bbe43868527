// Package audit retains terminal workflows in elasticsearch for later
// inspection. Indexing is best-effort; a failed write is logged and dropped.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"genflow/internal/common/logger"
	"genflow/internal/orchestrator"

	"github.com/elastic/go-elasticsearch/v8"
)

// Indexer writes one document per workflow that reaches a terminal state.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{client: client, index: index, logger: log}
}

type document struct {
	UserID     string                          `json:"userId"`
	WorkflowID string                          `json:"workflowId"`
	EngineID   string                          `json:"engineId"`
	Status     orchestrator.Status             `json:"status"`
	Tags       []string                        `json:"tags"`
	Progress   orchestrator.NormalizedProgress `json:"progress"`
	CreatedAt  time.Time                       `json:"createdAt"`
	UpdatedAt  time.Time                       `json:"updatedAt"`
	IndexedAt  time.Time                       `json:"indexedAt"`
}

// IndexTerminal records a terminal workflow. Errors never propagate; the
// audit trail is an observability concern, not a correctness one.
func (i *Indexer) IndexTerminal(ctx context.Context, userID string, wf *orchestrator.Workflow, progress orchestrator.NormalizedProgress) {
	doc := document{
		UserID:     userID,
		WorkflowID: wf.ID,
		EngineID:   wf.EngineID,
		Status:     wf.Status,
		Tags:       wf.Tags,
		Progress:   progress,
		CreatedAt:  wf.CreatedAt,
		UpdatedAt:  wf.UpdatedAt,
		IndexedAt:  time.Now().UTC(),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		i.logger.Warn("audit document not serializable", map[string]interface{}{
			"workflowId": wf.ID,
			"error":      err.Error(),
		})
		return
	}

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(wf.ID),
	)
	if err != nil {
		i.logger.Warn("audit index write failed", map[string]interface{}{
			"workflowId": wf.ID,
			"error":      err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		i.logger.Warn("audit index write rejected", map[string]interface{}{
			"workflowId": wf.ID,
			"status":     res.Status(),
		})
	}
}
