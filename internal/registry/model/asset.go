// Package model defines the request/response types and validation rules for
// the asset registry API.
package model

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/recorder"
	"github.com/google/uuid"
)

// ErrValidation is returned when the caller supplies malformed input.
// It is mapped to HTTP 400 and is never retriable without fixing the input.
type ErrValidation struct{ Msg string }

func (e *ErrValidation) Error() string { return e.Msg }

// AuditRequest is the payload for submitting a new asset audit.
// All fields are required; unknown or missing fields are rejected before any
// collaborator call is made.
type AuditRequest struct {
	AssetID       string `json:"asset_id"       binding:"required"`
	SpreadsheetID string `json:"spreadsheet_id" binding:"required"`
	Range         string `json:"range"          binding:"required"`
}

// Validate applies the registry's own validation on top of binding tags.
func (r *AuditRequest) Validate() error {
	if err := recorder.ValidateAssetID(r.AssetID); err != nil {
		return &ErrValidation{Msg: err.Error()}
	}
	if r.SpreadsheetID == "" {
		return &ErrValidation{Msg: "spreadsheet_id must not be empty"}
	}
	if r.Range == "" {
		return &ErrValidation{Msg: "range must not be empty"}
	}
	return nil
}

// AuditResult is returned after a successful audit submission.
type AuditResult struct {
	AssetID string `json:"asset_id"`
	Digest  string `json:"digest"` // hex, 32 bytes decoded
	TxID    string `json:"tx_id"`
}

// VerifyRequest asks for a comparison against the recorded digest. Exactly
// one of Digest or (SpreadsheetID, Range) must be supplied: either the
// caller brings a precomputed digest, or the registry re-audits live data.
type VerifyRequest struct {
	Digest        string `json:"digest,omitempty"`
	SpreadsheetID string `json:"spreadsheet_id,omitempty"`
	Range         string `json:"range,omitempty"`
}

// Validate checks the exactly-one-source rule and the digest format.
func (r *VerifyRequest) Validate() error {
	hasDigest := r.Digest != ""
	hasSelector := r.SpreadsheetID != "" || r.Range != ""
	if hasDigest == hasSelector {
		return &ErrValidation{Msg: "supply either digest or spreadsheet_id+range, not both"}
	}
	if hasDigest {
		if _, err := DecodeDigest(r.Digest); err != nil {
			return &ErrValidation{Msg: err.Error()}
		}
		return nil
	}
	if r.SpreadsheetID == "" || r.Range == "" {
		return &ErrValidation{Msg: "spreadsheet_id and range are both required"}
	}
	return nil
}

// VerifyResult reports the outcome of a verification.
type VerifyResult struct {
	AssetID        string           `json:"asset_id"`
	Outcome        recorder.Outcome `json:"outcome"`
	ComputedDigest string           `json:"computed_digest,omitempty"`
	RecordedDigest string           `json:"recorded_digest,omitempty"`
	RecordedAt     uint64           `json:"recorded_at,omitempty"`
	RecordedBy     string           `json:"recorded_by,omitempty"`
}

// DecodeDigest parses a hex digest and enforces the fixed 32-byte length.
func DecodeDigest(s string) ([]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("digest is not valid hex")
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(raw))
	}
	return raw, nil
}

// Audit journal statuses.
const (
	AuditStatusRecorded      = "recorded"
	AuditStatusRejected      = "rejected"
	AuditStatusIndeterminate = "indeterminate"
)

// AuditEntry is one row of the local audit journal. The journal is
// observational only — ledger truth always wins — and is never consulted
// for uniqueness decisions.
type AuditEntry struct {
	ID        uuid.UUID `json:"id"         db:"id"`
	AssetID   string    `json:"asset_id"   db:"asset_id"`
	Digest    string    `json:"digest"     db:"digest"`
	TxID      string    `json:"tx_id"      db:"tx_id"`
	Status    string    `json:"status"     db:"status"`
	ErrorKind string    `json:"error_kind" db:"error_kind"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
