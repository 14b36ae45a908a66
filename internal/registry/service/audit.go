// Package service contains the audit orchestration: fetch a snapshot,
// canonicalize, digest, record on the ledger, and report.
package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/canonical"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/chain"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/recorder"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/registry/model"
	"go.uber.org/zap"
)

// ErrSource wraps tabular-source failures so handlers can map them as a
// collaborator error rather than a caller error.
var ErrSource = errors.New("tabular source failure")

// SourceReader fetches tabular snapshots. *sheets.Client satisfies this.
type SourceReader interface {
	ReadRange(ctx context.Context, spreadsheetID, rangeSel string) ([][]string, error)
}

// AuditJournal persists audit attempts for observability.
// *repository.AuditRepository satisfies this interface.
type AuditJournal interface {
	Create(ctx context.Context, entry *model.AuditEntry) error
	List(ctx context.Context, assetID string, limit, offset int) ([]*model.AuditEntry, error)
}

// EventDispatcher fans out registry events. *webhooks.Service satisfies this.
type EventDispatcher interface {
	Dispatch(ctx context.Context, eventType string, payload map[string]string)
}

// Event types dispatched by the audit service.
const (
	EventAssetRecorded     = "asset.recorded"
	EventAssetVerifyFailed = "asset.verify_failed"
)

// AuditService implements the AuditAsset operation and the read/verify path.
type AuditService struct {
	source     SourceReader
	recorder   *recorder.Recorder
	journal    AuditJournal    // nil = journal disabled
	dispatcher EventDispatcher // nil = no event fan-out
	logger     *zap.Logger
}

// NewAuditService creates a new AuditService. journal and dispatcher may be
// nil to disable those features.
func NewAuditService(source SourceReader, rec *recorder.Recorder, journal AuditJournal, logger *zap.Logger) *AuditService {
	return &AuditService{
		source:   source,
		recorder: rec,
		journal:  journal,
		logger:   logger,
	}
}

// SetEventDispatcher configures event fan-out for recorded assets.
func (s *AuditService) SetEventDispatcher(d EventDispatcher) {
	s.dispatcher = d
}

// Audit runs the full recording flow for one asset: read the snapshot,
// canonicalize and digest it, then submit the write-once registration.
// No ledger submission happens if the snapshot fails canonicalization.
func (s *AuditService) Audit(ctx context.Context, req *model.AuditRequest) (*model.AuditResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.source.ReadRange(ctx, req.SpreadsheetID, req.Range)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSource, err)
	}

	digest, err := canonical.Snapshot(rows)
	if err != nil {
		return nil, err
	}
	digestHex := hex.EncodeToString(digest[:])

	conf, err := s.recorder.Record(ctx, req.AssetID, digest[:])
	if err != nil {
		s.journalEntry(ctx, req.AssetID, digestHex, "", err)
		return nil, err
	}
	s.journalEntry(ctx, req.AssetID, digestHex, conf.TxID, nil)

	s.logger.Info("asset audited",
		zap.String("asset_id", req.AssetID),
		zap.String("digest", digestHex),
		zap.String("tx_id", conf.TxID),
	)

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, EventAssetRecorded, map[string]string{
			"asset_id": req.AssetID,
			"digest":   digestHex,
			"tx_id":    conf.TxID,
		})
	}

	return &model.AuditResult{
		AssetID: req.AssetID,
		Digest:  digestHex,
		TxID:    conf.TxID,
	}, nil
}

// Lookup returns the on-ledger record for an asset.
func (s *AuditService) Lookup(ctx context.Context, assetID string) (*chain.AssetRecord, error) {
	return s.recorder.Lookup(ctx, assetID)
}

// Verify compares either a caller-supplied digest or a freshly re-audited
// snapshot against the recorded digest.
func (s *AuditService) Verify(ctx context.Context, assetID string, req *model.VerifyRequest) (*model.VerifyResult, error) {
	if err := recorder.ValidateAssetID(assetID); err != nil {
		return nil, &model.ErrValidation{Msg: err.Error()}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var digest []byte
	if req.Digest != "" {
		raw, err := model.DecodeDigest(req.Digest)
		if err != nil {
			return nil, &model.ErrValidation{Msg: err.Error()}
		}
		digest = raw
	} else {
		rows, err := s.source.ReadRange(ctx, req.SpreadsheetID, req.Range)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSource, err)
		}
		sum, err := canonical.Snapshot(rows)
		if err != nil {
			return nil, err
		}
		digest = sum[:]
	}

	outcome, record, err := s.recorder.Verify(ctx, assetID, digest)
	if err != nil {
		return nil, err
	}

	result := &model.VerifyResult{
		AssetID:        assetID,
		Outcome:        outcome,
		ComputedDigest: hex.EncodeToString(digest),
	}
	if record != nil {
		result.RecordedDigest = record.DataHash
		result.RecordedAt = record.RecordedAt
		result.RecordedBy = record.RecordedBy
	}

	if outcome == recorder.OutcomeMismatch && s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, EventAssetVerifyFailed, map[string]string{
			"asset_id":        assetID,
			"computed_digest": result.ComputedDigest,
			"recorded_digest": result.RecordedDigest,
		})
	}
	return result, nil
}

// ListAudits returns journal entries, newest first.
func (s *AuditService) ListAudits(ctx context.Context, assetID string, limit, offset int) ([]*model.AuditEntry, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.List(ctx, assetID, limit, offset)
}

// journalEntry appends an audit attempt to the journal in a non-fatal manner.
func (s *AuditService) journalEntry(ctx context.Context, assetID, digest, txID string, auditErr error) {
	if s.journal == nil {
		return
	}

	entry := &model.AuditEntry{
		AssetID: assetID,
		Digest:  digest,
		TxID:    txID,
		Status:  model.AuditStatusRecorded,
	}
	switch {
	case auditErr == nil:
	case chain.IsIndeterminate(auditErr):
		entry.Status = model.AuditStatusIndeterminate
		entry.ErrorKind = "ledger_transport"
	case errors.Is(auditErr, recorder.ErrAlreadyRecorded):
		entry.Status = model.AuditStatusRejected
		entry.ErrorKind = "already_recorded"
	case errors.Is(auditErr, recorder.ErrNotAuthorized):
		entry.Status = model.AuditStatusRejected
		entry.ErrorKind = "not_authorized"
	default:
		entry.Status = model.AuditStatusRejected
		entry.ErrorKind = "ledger_rejected"
	}

	if err := s.journal.Create(ctx, entry); err != nil {
		s.logger.Error("audit journal write failed (non-fatal)",
			zap.String("asset_id", assetID),
			zap.Error(err),
		)
	}
}
