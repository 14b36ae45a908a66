package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/identity"
)

// MaxAssetIDBytes is the contract-enforced bound on asset identifiers.
const MaxAssetIDBytes = 64

// MemoryChain is an in-process Client implementation that models the
// registry contract's semantics: the existence check, the authority check,
// and record creation happen atomically under one lock, so concurrent
// submissions for the same asset resolve to exactly one winner.
type MemoryChain struct {
	authority string // only identity allowed to register assets

	mu      sync.RWMutex
	height  uint64
	records map[string]*AssetRecord
	events  []Event
}

// NewMemoryChain creates a MemoryChain that accepts registrations only from
// the given authority address.
func NewMemoryChain(authority string) *MemoryChain {
	return &MemoryChain{
		authority: authority,
		records:   make(map[string]*AssetRecord),
	}
}

// SubmitTransaction implements Client. Unlike a real network, inclusion is
// immediate: the record is visible to QueryState as soon as this returns.
func (c *MemoryChain) SubmitTransaction(_ context.Context, payload SignedPayload) (string, error) {
	if payload.Function != RegisterFunction {
		return "", &RejectedError{Reason: ReasonBadArguments}
	}
	if len(payload.Args) != 2 {
		return "", &RejectedError{Reason: ReasonBadArguments}
	}
	assetID, dataHash := payload.Args[0], payload.Args[1]
	if assetID == "" || len(assetID) > MaxAssetIDBytes {
		return "", &RejectedError{Reason: ReasonBadArguments}
	}
	if raw, err := hex.DecodeString(dataHash); err != nil || len(raw) != sha256.Size {
		return "", &RejectedError{Reason: ReasonBadArguments}
	}

	msg := identity.RegistrationMessage(payload.Contract, payload.Function, payload.Args)
	sig, err := hex.DecodeString(payload.Signature)
	if err != nil || !identity.VerifySignature(payload.PublicKey, msg, sig) {
		return "", &RejectedError{Reason: ReasonBadSignature}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Signer identity is derived from the public key, not trusted from the
	// Sender field.
	sender := senderAddress(payload.PublicKey)
	if sender != c.authority {
		return "", &RejectedError{Reason: ReasonNotAuthorized}
	}

	// Write-once: first writer wins, regardless of payload.
	if _, exists := c.records[assetID]; exists {
		return "", &RejectedError{Reason: ReasonAssetExists}
	}

	c.height++
	record := &AssetRecord{
		AssetID:    assetID,
		DataHash:   dataHash,
		RecordedAt: c.height,
		RecordedBy: sender,
	}
	c.records[assetID] = record

	txid := txID(payload)
	c.events = append(c.events, Event{
		Type:       "asset-recorded",
		AssetID:    assetID,
		DataHash:   dataHash,
		RecordedAt: record.RecordedAt,
		TxID:       txid,
	})
	return txid, nil
}

// QueryState implements Client. get-asset returns the JSON record, or JSON
// null when no record exists for the asset ID.
func (c *MemoryChain) QueryState(_ context.Context, _, function string, args []string) (json.RawMessage, error) {
	if function != GetAssetFunction || len(args) != 1 {
		return nil, &RejectedError{Reason: ReasonBadArguments}
	}

	c.mu.RLock()
	record, ok := c.records[args[0]]
	c.mu.RUnlock()

	if !ok {
		return json.RawMessage("null"), nil
	}
	out, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return out, nil
}

// Events returns a copy of all emitted inclusion events, oldest first.
func (c *MemoryChain) Events() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Height returns the current block height.
func (c *MemoryChain) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

func senderAddress(pubHex string) string {
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return ""
	}
	return identity.AddressFromPublicKey(raw)
}

// txID derives a deterministic transaction ID from the signed payload.
func txID(payload SignedPayload) string {
	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return "0x" + hex.EncodeToString(sum[:])
}
