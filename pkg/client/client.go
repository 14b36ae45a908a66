// Package client is the Go SDK for the asset registry: submitting audits,
// fetching on-ledger records, and verifying digests.
package client

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
)

// AuditRequest is the payload for AuditAsset.
type AuditRequest struct {
	AssetID       string `json:"asset_id"`
	SpreadsheetID string `json:"spreadsheet_id"`
	Range         string `json:"range"`
}

// AuditResult is returned by a successful audit.
type AuditResult struct {
	AssetID string `json:"asset_id"`
	Digest  string `json:"digest"`
	TxID    string `json:"tx_id"`
}

// AssetRecord is the on-ledger record returned by GetAsset.
type AssetRecord struct {
	AssetID    string `json:"asset_id"`
	DataHash   string `json:"data_hash"`
	RecordedAt uint64 `json:"recorded_at"`
	RecordedBy string `json:"recorded_by"`
}

// VerifyResult is returned by VerifyDigest and VerifyRange.
type VerifyResult struct {
	AssetID        string `json:"asset_id"`
	Outcome        string `json:"outcome"` // match, mismatch, no_record
	ComputedDigest string `json:"computed_digest,omitempty"`
	RecordedDigest string `json:"recorded_digest,omitempty"`
	RecordedAt     uint64 `json:"recorded_at,omitempty"`
	RecordedBy     string `json:"recorded_by,omitempty"`
}

// APIError is returned for any non-2xx registry response. Kind mirrors the
// registry's error taxonomy so callers can branch without parsing Message.
type APIError struct {
	Status        int    `json:"-"`
	Kind          string `json:"kind"`
	Message       string `json:"error"`
	Indeterminate bool   `json:"indeterminate,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registry error (%d %s): %s", e.Status, e.Kind, e.Message)
}

// Client is the registry SDK entry point. Safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken attaches an operator bearer token to every request.
// Required for AuditAsset; read endpoints work without one.
func WithToken(token string) Option {
	return func(c *Client) { c.bearerToken = token }
}

// WithTimeout sets the request timeout (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Client for the registry at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate exchanges the operator secret for a bearer token and attaches
// it to the client for subsequent calls.
func (c *Client) Authenticate(ctx context.Context, secret string) error {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/token",
		map[string]string{"secret": secret}, &out)
	if err != nil {
		return err
	}
	c.bearerToken = out.Token
	return nil
}

// AuditAsset submits a new audit: the registry snapshots the range, digests
// it, and records the digest on the ledger under the asset ID.
func (c *Client) AuditAsset(ctx context.Context, req *AuditRequest) (*AuditResult, error) {
	var out AuditResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/audits", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAsset fetches the on-ledger record for an asset ID.
func (c *Client) GetAsset(ctx context.Context, assetID string) (*AssetRecord, error) {
	var out AssetRecord
	path := "/api/v1/assets/" + url.PathEscape(assetID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyDigest compares a locally computed hex digest against the record.
func (c *Client) VerifyDigest(ctx context.Context, assetID, digestHex string) (*VerifyResult, error) {
	var out VerifyResult
	path := "/api/v1/assets/" + url.PathEscape(assetID) + "/verify"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"digest": digestHex}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyRange asks the registry to re-audit live data and compare.
func (c *Client) VerifyRange(ctx context.Context, assetID, spreadsheetID, rangeSel string) (*VerifyResult, error) {
	var out VerifyResult
	path := "/api/v1/assets/" + url.PathEscape(assetID) + "/verify"
	body := map[string]string{"spreadsheet_id": spreadsheetID, "range": rangeSel}
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do runs one request/response cycle with auth and error mapping.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Kind = "unknown"
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
