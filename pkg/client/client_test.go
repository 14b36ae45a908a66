package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuditAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/audits" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		var req AuditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.AssetID != "invoice-2026-q3" {
			t.Errorf("asset_id = %q", req.AssetID)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(AuditResult{
			AssetID: req.AssetID,
			Digest:  "deadbeef",
			TxID:    "0xabc",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok-123"))
	res, err := c.AuditAsset(context.Background(), &AuditRequest{
		AssetID:       "invoice-2026-q3",
		SpreadsheetID: "sheet-1",
		Range:         "Sheet1!A1:C10",
	})
	if err != nil {
		t.Fatalf("AuditAsset: %v", err)
	}
	if res.TxID != "0xabc" {
		t.Errorf("tx_id = %q, want 0xabc", res.TxID)
	}
}

func TestGetAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/assets/invoice-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(AssetRecord{
			AssetID:    "invoice-1",
			DataHash:   "cafe",
			RecordedAt: 42,
			RecordedBy: "SPEXAMPLE",
		})
	}))
	defer srv.Close()

	rec, err := New(srv.URL).GetAsset(context.Background(), "invoice-1")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if rec.RecordedAt != 42 || rec.RecordedBy != "SPEXAMPLE" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestVerifyDigest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/assets/invoice-1/verify" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["digest"] == "" {
			t.Error("expected digest in body")
		}
		json.NewEncoder(w).Encode(VerifyResult{AssetID: "invoice-1", Outcome: "match"})
	}))
	defer srv.Close()

	res, err := New(srv.URL).VerifyDigest(context.Background(), "invoice-1", "cafe")
	if err != nil {
		t.Fatalf("VerifyDigest: %v", err)
	}
	if res.Outcome != "match" {
		t.Errorf("outcome = %q, want match", res.Outcome)
	}
}

func TestAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/token":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["secret"] != "hunter2" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"kind": "auth", "error": "invalid secret"})
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"token": "issued-token"})
		case "/api/v1/audits":
			if r.Header.Get("Authorization") != "Bearer issued-token" {
				t.Errorf("Authorization = %q after Authenticate", r.Header.Get("Authorization"))
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(AuditResult{})
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Authenticate(context.Background(), "hunter2"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := c.AuditAsset(context.Background(), &AuditRequest{}); err != nil {
		t.Fatalf("AuditAsset after auth: %v", err)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"kind":  "already_recorded",
			"error": "asset already recorded",
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL, WithToken("t")).AuditAsset(context.Background(), &AuditRequest{
		AssetID: "x", SpreadsheetID: "s", Range: "A1:B2",
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Kind != "already_recorded" {
		t.Errorf("got status=%d kind=%q", apiErr.Status, apiErr.Kind)
	}
}

func TestErrorIndeterminate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]any{
			"kind":          "ledger_transport",
			"indeterminate": true,
			"error":         "submit transaction: connection reset",
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL, WithToken("t")).AuditAsset(context.Background(), &AuditRequest{
		AssetID: "x", SpreadsheetID: "s", Range: "A1:B2",
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if !apiErr.Indeterminate {
		t.Error("expected Indeterminate to survive into the client error")
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetAsset(context.Background(), "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Kind != "unknown" || apiErr.Message != "upstream down" {
		t.Errorf("got kind=%q message=%q", apiErr.Kind, apiErr.Message)
	}
}
