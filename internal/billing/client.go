// Package billing is the HTTP client for the currency ledger collaborator.
// The ledger is independently authoritative; everything here is advisory
// except ReserveFunds.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"genflow/internal/common/config"
	cerrors "genflow/internal/common/errors"
	"genflow/internal/common/httpclient"
	"genflow/internal/common/logger"
)

type Client struct {
	baseURL string
	http    *httpclient.Client
	logger  logger.Logger
}

func NewClient(cfg config.BillingConfig, log logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpclient.NewClient(config.GetDuration(cfg.RequestTimeout), cfg.APIKey),
		logger:  log,
	}
}

// EstimateCost asks the ledger for the price of one candidate submission.
// This is the what-if call; no funds move.
func (c *Client) EstimateCost(ctx context.Context, engineID string, engineInput map[string]interface{}, quantity int) (int64, error) {
	payload := map[string]interface{}{
		"engineId":    engineID,
		"engineInput": engineInput,
		"quantity":    quantity,
	}

	var out struct {
		Amount int64 `json:"amount"`
	}
	if err := c.post(ctx, "/estimate", payload, &out); err != nil {
		return 0, err
	}
	return out.Amount, nil
}

// GetBalance reads the user's available balance.
func (c *Client) GetBalance(ctx context.Context, userID string) (int64, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/balance/"+userID, nil)
	if err != nil {
		return 0, cerrors.NewConfigurationError(fmt.Sprintf("building balance request: %v", err))
	}

	resp, err := c.http.DoJSON(ctx, req)
	if err != nil {
		return 0, cerrors.NewExternalServiceError("billing", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, cerrors.NewExternalServiceError("billing",
			fmt.Errorf("status %d: %s", resp.StatusCode, httpclient.ReadBodyLimited(resp.Body, 8<<10)))
	}

	var out struct {
		Balance int64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, cerrors.NewExternalServiceError("billing", fmt.Errorf("decoding balance: %w", err))
	}
	return out.Balance, nil
}

// ReserveFunds commits a reservation for the given amount. Returns false when
// the ledger reports insufficient funds.
func (c *Client) ReserveFunds(ctx context.Context, userID string, amount int64) (bool, error) {
	payload := map[string]interface{}{
		"userId": userID,
		"amount": amount,
	}

	var out struct {
		OK           bool `json:"ok"`
		Insufficient bool `json:"insufficient"`
	}
	if err := c.post(ctx, "/reserve", payload, &out); err != nil {
		return false, err
	}
	return out.OK && !out.Insufficient, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return cerrors.NewConfigurationError(fmt.Sprintf("billing payload not serializable: %v", err))
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return cerrors.NewConfigurationError(fmt.Sprintf("building billing request: %v", err))
	}

	resp, err := c.http.DoJSON(ctx, req)
	if err != nil {
		return cerrors.NewExternalServiceError("billing", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return cerrors.NewExternalServiceError("billing",
			fmt.Errorf("status %d on %s: %s", resp.StatusCode, path, httpclient.ReadBodyLimited(resp.Body, 8<<10)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return cerrors.NewExternalServiceError("billing", fmt.Errorf("decoding %s response: %w", path, err))
	}
	return nil
}
