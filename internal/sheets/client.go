// Package sheets reads tabular snapshots from an external spreadsheet
// values API. The registry treats the source as untrusted input: the first
// returned row is a header and every snapshot is re-fetched fresh per audit,
// never cached.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrNotFound means the spreadsheet or range does not exist.
	ErrNotFound = errors.New("spreadsheet or range not found")

	// ErrAuth means the source denied access to the spreadsheet.
	ErrAuth = errors.New("access to spreadsheet denied")
)

// Client fetches cell ranges from the spreadsheet values API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client against baseURL, authenticating every request with
// the given bearer token via an oauth2 transport. timeout 0 defaults to 15s.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: src},
		}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
	}
}

// NewWithTokenSource creates a Client that draws access tokens from src,
// for deployments using refreshing credentials instead of a static token.
func NewWithTokenSource(baseURL string, src oauth2.TokenSource, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: src},
		},
	}
}

type valuesResponse struct {
	Range  string     `json:"range"`
	Values [][]string `json:"values"`
}

// ReadRange fetches an A1-notation range from a spreadsheet and returns the
// rows in order, each row an ordered slice of cell values. The API omits
// trailing empty cells; canonicalization restores them.
func (c *Client) ReadRange(ctx context.Context, spreadsheetID, rangeSel string) ([][]string, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(rangeSel))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read range %s!%s: %w", spreadsheetID, rangeSel, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		// The values API reports an unparseable range as 400.
		return nil, fmt.Errorf("%w: %s!%s", ErrNotFound, spreadsheetID, rangeSel)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrAuth, spreadsheetID)
	default:
		return nil, fmt.Errorf("source returned %d: %s", resp.StatusCode, raw)
	}

	var out valuesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode values response: %w", err)
	}
	return out.Values, nil
}
