// Package chain is the client layer for the external ledger network.
//
// The ledger owns the persisted form of every asset record and is the only
// place the write-once check runs; this package never pre-checks existence
// before submitting. Two implementations of Client are provided:
//   - HTTPClient: talks to a chain gateway node, for production use.
//   - MemoryChain: in-process, for testing and development.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Machine-readable rejection reason codes returned by the registry contract.
const (
	ReasonAssetExists   = "asset-exists"
	ReasonNotAuthorized = "not-authorized"
	ReasonBadSignature  = "bad-signature"
	ReasonBadArguments  = "bad-arguments"
)

// RegisterFunction is the contract function that creates an asset record.
const RegisterFunction = "register-asset"

// GetAssetFunction is the read-only contract function that fetches a record.
const GetAssetFunction = "get-asset"

// SignedPayload is a contract call signed by the submitting identity.
// Signature covers identity.RegistrationMessage(Contract, Function, Args).
type SignedPayload struct {
	Contract  string   `json:"contract"`
	Function  string   `json:"function"`
	Args      []string `json:"args"`
	Sender    string   `json:"sender"`
	PublicKey string   `json:"public_key"`
	Signature string   `json:"signature"`
}

// AssetRecord is the persisted on-ledger record for one asset.
// Immutable once created; recorded_at and recorded_by are assigned by the
// ledger at inclusion time, never by the caller.
type AssetRecord struct {
	AssetID    string `json:"asset_id"`
	DataHash   string `json:"data_hash"` // hex, 32 bytes decoded
	RecordedAt uint64 `json:"recorded_at"`
	RecordedBy string `json:"recorded_by"`
}

// Event is the notification emitted when a registration is included.
type Event struct {
	Type       string `json:"type"` // "asset-recorded"
	AssetID    string `json:"asset_id"`
	DataHash   string `json:"data_hash"`
	RecordedAt uint64 `json:"recorded_at"`
	TxID       string `json:"tx_id"`
}

// Client is the ledger network collaborator.
//
// SubmitTransaction is fire-and-forget: a returned transaction ID means the
// node accepted the submission, not that the record is visible to readers
// yet — inclusion is asynchronous. QueryState is a pure read.
type Client interface {
	SubmitTransaction(ctx context.Context, payload SignedPayload) (string, error)
	QueryState(ctx context.Context, contract, function string, args []string) (json.RawMessage, error)
}

// RejectedError is a definite ledger-level rejection: the transaction was
// evaluated and refused, and no state changed. Not retriable as-is.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("ledger rejected transaction: %s", e.Reason)
}

// TransportError is a network-level failure talking to the ledger.
// When Indeterminate is true the submission outcome is unknown — the
// transaction may or may not have been accepted — and the caller must
// resolve it via a lookup, never by blind resubmission.
type TransportError struct {
	Op            string
	Err           error
	Indeterminate bool
}

func (e *TransportError) Error() string {
	if e.Indeterminate {
		return fmt.Sprintf("ledger %s failed, outcome unknown — verify before retry: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsIndeterminate reports whether err carries an unknown-outcome submission.
func IsIndeterminate(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Indeterminate
}
