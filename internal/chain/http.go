package chain

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

// HTTPClient talks to a chain gateway node over its HTTP API.
//
//	POST /v2/transactions                                — submit a signed contract call
//	POST /v2/contracts/call-read/{contract}/{function}   — read-only contract call
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTPClient for the node at baseURL.
// timeout 0 defaults to 15s.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type submitResponse struct {
	TxID string `json:"txid"`
}

type rejectResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

type callReadRequest struct {
	Function string   `json:"function"`
	Args     []string `json:"args"`
}

type callReadResponse struct {
	Okay   bool            `json:"okay"`
	Result json.RawMessage `json:"result"`
	Reason string          `json:"reason"`
}

// SubmitTransaction implements Client. A network failure here is reported
// as indeterminate: the node may have relayed the transaction before the
// connection died, so the caller must look the record up before retrying.
func (c *HTTPClient) SubmitTransaction(ctx context.Context, payload SignedPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v2/transactions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Op: "submit", Err: err, Indeterminate: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &TransportError{Op: "submit", Err: err, Indeterminate: true}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var out submitResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", &TransportError{Op: "submit", Err: fmt.Errorf("decode response: %w", err), Indeterminate: true}
		}
		return out.TxID, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Definite rejection: the node evaluated the call and refused it.
		var rej rejectResponse
		if err := json.Unmarshal(raw, &rej); err != nil || rej.Reason == "" {
			return "", &RejectedError{Reason: strings.TrimSpace(string(raw))}
		}
		return "", &RejectedError{Reason: rej.Reason}

	default:
		return "", &TransportError{
			Op:            "submit",
			Err:           fmt.Errorf("node returned %d: %s", resp.StatusCode, raw),
			Indeterminate: true,
		}
	}
}

// QueryState implements Client. Reads are side-effect free, so failures are
// plain transport errors and always safe to retry.
func (c *HTTPClient) QueryState(ctx context.Context, contract, function string, args []string) (json.RawMessage, error) {
	body, err := json.Marshal(callReadRequest{Function: function, Args: args})
	if err != nil {
		return nil, fmt.Errorf("marshal call: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/contracts/call-read/%s/%s",
		c.baseURL, url.PathEscape(contract), url.PathEscape(function))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "query", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransportError{Op: "query", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "query", Err: fmt.Errorf("node returned %d: %s", resp.StatusCode, raw)}
	}

	var out callReadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &TransportError{Op: "query", Err: fmt.Errorf("decode response: %w", err)}
	}
	if !out.Okay {
		return nil, &RejectedError{Reason: out.Reason}
	}
	return out.Result, nil
}
