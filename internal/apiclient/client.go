// Package apiclient provides an HTTP client for the bill REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/domain"
)

// Client is an HTTP client for the public API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ClaimResponse is the result of claiming part of an item.
type ClaimResponse struct {
	OK        bool             `json:"ok"`
	Selection domain.Selection `json:"selection"`
	Remaining decimal.Decimal  `json:"remaining"`
}

// ReleaseResponse is the result of releasing a claim.
type ReleaseResponse struct {
	OK       bool `json:"ok"`
	Released bool `json:"released"`
}

// ConfirmResponse carries the roster after a confirmation toggle.
type ConfirmResponse struct {
	OK           bool                 `json:"ok"`
	Participants []domain.RosterEntry `json:"participants"`
}

// Error is a non-2xx answer from the API.
type Error struct {
	Status    int
	Message   string
	Remaining *decimal.Decimal
}

func (e *Error) Error() string {
	if e.Remaining != nil {
		return fmt.Sprintf("api error %d: %s (remaining %s)", e.Status, e.Message, e.Remaining)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Snapshot calls GET /api/sessions/:session_id.
func (c *Client) Snapshot(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	var snap domain.SessionSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(sessionID), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Claim calls POST /api/items/:item_id/select.
func (c *Client) Claim(ctx context.Context, itemID, participantID string, quantity decimal.Decimal) (*ClaimResponse, error) {
	body := map[string]interface{}{"participantId": participantID, "quantity": quantity}
	var out ClaimResponse
	if err := c.do(ctx, http.MethodPost, "/api/items/"+url.PathEscape(itemID)+"/select", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Release calls DELETE /api/items/:item_id/unselect.
func (c *Client) Release(ctx context.Context, itemID, participantID string) (*ReleaseResponse, error) {
	body := map[string]string{"participantId": participantID}
	var out ReleaseResponse
	if err := c.do(ctx, http.MethodDelete, "/api/items/"+url.PathEscape(itemID)+"/unselect", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Confirm calls POST /api/sessions/:session_id/confirm-selection.
func (c *Client) Confirm(ctx context.Context, sessionID, participantID string) (*ConfirmResponse, error) {
	return c.toggle(ctx, sessionID, participantID, "confirm-selection")
}

// Unconfirm calls POST /api/sessions/:session_id/unconfirm-selection.
func (c *Client) Unconfirm(ctx context.Context, sessionID, participantID string) (*ConfirmResponse, error) {
	return c.toggle(ctx, sessionID, participantID, "unconfirm-selection")
}

func (c *Client) toggle(ctx context.Context, sessionID, participantID, action string) (*ConfirmResponse, error) {
	body := map[string]string{"participantId": participantID}
	var out ConfirmResponse
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(sessionID)+"/"+action, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{Status: resp.StatusCode}
		var errResp struct {
			Error     string           `json:"error"`
			Remaining *decimal.Decimal `json:"remaining"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
			apiErr.Remaining = errResp.Remaining
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
