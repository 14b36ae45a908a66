// Package recorder owns the write-once recording protocol: it validates and
// signs asset registrations as the configured authority, submits them to the
// ledger, and serves the lookup/verify read path.
//
// Uniqueness is never checked locally. The "no existing record" check and
// the authority check run atomically inside the ledger; a local
// check-then-write would only reintroduce the race the ledger already
// solves, and a local cache could desynchronize from ledger truth.
package recorder

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/canonical"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/chain"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/identity"
	"go.uber.org/zap"
)

// MaxAssetIDBytes mirrors the contract's bound on asset identifiers.
const MaxAssetIDBytes = chain.MaxAssetIDBytes

var (
	// ErrAlreadyRecorded means a record already exists for the asset ID.
	// Not an application bug: the caller should switch to Lookup/Verify.
	ErrAlreadyRecorded = errors.New("asset already recorded")

	// ErrNotAuthorized means the ledger refused the configured signing
	// identity. Fatal misconfiguration; retrying with the same credential
	// cannot succeed.
	ErrNotAuthorized = errors.New("signer is not the registry authority")

	// ErrNoRecord is returned by Lookup when no record exists.
	ErrNoRecord = errors.New("no record for asset")
)

// Outcome is the result of a Verify comparison.
type Outcome string

const (
	OutcomeMatch    Outcome = "match"
	OutcomeMismatch Outcome = "mismatch"
	OutcomeNoRecord Outcome = "no_record"
)

// Confirmation is the handle returned by a successful Record submission.
// Ledger inclusion is asynchronous: the transaction ID can be polled, but
// the record may not be visible to readers yet when Record returns.
type Confirmation struct {
	AssetID string `json:"asset_id"`
	TxID    string `json:"tx_id"`
}

// Recorder submits and reads write-once asset records.
// Safe for concurrent use across asset IDs; it holds no mutable state.
type Recorder struct {
	chain     chain.Client
	authority *identity.Authority
	contract  string
	logger    *zap.Logger
}

// New creates a Recorder that signs as authority and targets the given
// registry contract.
func New(client chain.Client, authority *identity.Authority, contract string, logger *zap.Logger) *Recorder {
	return &Recorder{
		chain:     client,
		authority: authority,
		contract:  contract,
		logger:    logger,
	}
}

// Authority returns the configured authority's ledger address.
func (r *Recorder) Authority() string { return r.authority.Address() }

// ValidateAssetID checks the caller-chosen asset identifier against the
// ledger's bounds.
func ValidateAssetID(assetID string) error {
	if assetID == "" {
		return errors.New("asset_id must not be empty")
	}
	if len(assetID) > MaxAssetIDBytes {
		return fmt.Errorf("asset_id exceeds %d bytes", MaxAssetIDBytes)
	}
	return nil
}

// Record signs and submits a registration of digest under assetID.
//
// A nil error means the ledger accepted the submission and returned a
// transaction ID; it does not mean the record is visible to readers yet.
// Definite rejections surface as ErrAlreadyRecorded / ErrNotAuthorized;
// transport failures keep their indeterminate marker (chain.IsIndeterminate)
// and must be resolved by Lookup before any resubmission.
func (r *Recorder) Record(ctx context.Context, assetID string, digest []byte) (*Confirmation, error) {
	if err := ValidateAssetID(assetID); err != nil {
		return nil, err
	}
	if len(digest) != canonical.DigestSize {
		return nil, fmt.Errorf("digest must be %d bytes, got %d", canonical.DigestSize, len(digest))
	}

	args := []string{assetID, hex.EncodeToString(digest)}
	msg := identity.RegistrationMessage(r.contract, chain.RegisterFunction, args)
	payload := chain.SignedPayload{
		Contract:  r.contract,
		Function:  chain.RegisterFunction,
		Args:      args,
		Sender:    r.authority.Address(),
		PublicKey: r.authority.PublicKeyHex(),
		Signature: hex.EncodeToString(r.authority.Sign(msg)),
	}

	txid, err := r.chain.SubmitTransaction(ctx, payload)
	if err != nil {
		var rej *chain.RejectedError
		if errors.As(err, &rej) {
			switch rej.Reason {
			case chain.ReasonAssetExists:
				return nil, fmt.Errorf("%w: %s", ErrAlreadyRecorded, assetID)
			case chain.ReasonNotAuthorized:
				return nil, fmt.Errorf("%w (address %s)", ErrNotAuthorized, r.authority.Address())
			}
			return nil, fmt.Errorf("registration rejected: %w", err)
		}
		// Transport failure: pass through unchanged so the indeterminate
		// marker survives for the caller's retry decision.
		return nil, err
	}

	r.logger.Info("asset registration submitted",
		zap.String("asset_id", assetID),
		zap.String("tx_id", txid),
	)
	return &Confirmation{AssetID: assetID, TxID: txid}, nil
}

// Lookup fetches the on-ledger record for assetID. Pure read.
// Returns ErrNoRecord when the asset has never been recorded.
func (r *Recorder) Lookup(ctx context.Context, assetID string) (*chain.AssetRecord, error) {
	if err := ValidateAssetID(assetID); err != nil {
		return nil, err
	}

	raw, err := r.chain.QueryState(ctx, r.contract, chain.GetAssetFunction, []string{assetID})
	if err != nil {
		return nil, fmt.Errorf("query asset %s: %w", assetID, err)
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: %s", ErrNoRecord, assetID)
	}

	var record chain.AssetRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode asset record: %w", err)
	}
	return &record, nil
}

// Verify compares a recomputed digest against the recorded one.
// The returned record is non-nil for both match and mismatch outcomes.
func (r *Recorder) Verify(ctx context.Context, assetID string, digest []byte) (Outcome, *chain.AssetRecord, error) {
	record, err := r.Lookup(ctx, assetID)
	if err != nil {
		if errors.Is(err, ErrNoRecord) {
			return OutcomeNoRecord, nil, nil
		}
		return "", nil, err
	}

	recorded, err := hex.DecodeString(record.DataHash)
	if err != nil {
		return "", nil, fmt.Errorf("malformed on-ledger digest for %s: %w", assetID, err)
	}
	if bytes.Equal(recorded, digest) {
		return OutcomeMatch, record, nil
	}
	return OutcomeMismatch, record, nil
}
