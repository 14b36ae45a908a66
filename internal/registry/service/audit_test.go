package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/canonical"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/chain"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/identity"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/recorder"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/registry/model"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/registry/service"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/sheets"
	"go.uber.org/zap"
)

var ctx = context.Background()

// fakeSource serves canned snapshots keyed by "spreadsheet/range".
type fakeSource struct {
	snapshots map[string][][]string
	err       error
	calls     int
}

func (f *fakeSource) ReadRange(_ context.Context, spreadsheetID, rangeSel string) ([][]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rows, ok := f.snapshots[spreadsheetID+"/"+rangeSel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sheets.ErrNotFound, spreadsheetID)
	}
	return rows, nil
}

// memJournal collects journal entries in memory.
type memJournal struct {
	mu      sync.Mutex
	entries []*model.AuditEntry
}

func (j *memJournal) Create(_ context.Context, entry *model.AuditEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return nil
}

func (j *memJournal) List(_ context.Context, assetID string, _, _ int) ([]*model.AuditEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*model.AuditEntry
	for _, e := range j.entries {
		if assetID == "" || e.AssetID == assetID {
			out = append(out, e)
		}
	}
	return out, nil
}

// capturingDispatcher records dispatched events.
type capturingDispatcher struct {
	mu     sync.Mutex
	events []string
}

func (d *capturingDispatcher) Dispatch(_ context.Context, eventType string, _ map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, eventType)
}

func newService(t *testing.T, source *fakeSource) (*service.AuditService, *memJournal, *chain.MemoryChain) {
	t.Helper()
	auth, err := identity.NewAuthority()
	if err != nil {
		t.Fatal(err)
	}
	mem := chain.NewMemoryChain(auth.Address())
	rec := recorder.New(mem, auth, "asset-registry", zap.NewNop())
	journal := &memJournal{}
	return service.NewAuditService(source, rec, journal, zap.NewNop()), journal, mem
}

func batchSource() *fakeSource {
	return &fakeSource{snapshots: map[string][][]string{
		"sheet-1/Sheet1!A1:B3": {
			{"ID", "Qty"},
			{"A1", "10"},
			{"A2", "5"},
		},
	}}
}

func TestAudit_fullFlow(t *testing.T) {
	source := batchSource()
	svc, journal, mem := newService(t, source)
	dispatcher := &capturingDispatcher{}
	svc.SetEventDispatcher(dispatcher)

	result, err := svc.Audit(ctx, &model.AuditRequest{
		AssetID:       "BATCH-1",
		SpreadsheetID: "sheet-1",
		Range:         "Sheet1!A1:B3",
	})
	if err != nil {
		t.Fatal(err)
	}

	wantDigest, _ := canonical.Snapshot([][]string{{"ID", "Qty"}, {"A1", "10"}, {"A2", "5"}})
	if result.Digest != fmt.Sprintf("%x", wantDigest) {
		t.Errorf("digest = %q, want %x", result.Digest, wantDigest)
	}
	if result.TxID == "" {
		t.Error("missing tx_id")
	}

	record, err := svc.Lookup(ctx, "BATCH-1")
	if err != nil {
		t.Fatal(err)
	}
	if record.DataHash != result.Digest {
		t.Errorf("on-ledger digest %q != reported %q", record.DataHash, result.Digest)
	}

	entries, _ := journal.List(ctx, "BATCH-1", 0, 0)
	if len(entries) != 1 || entries[0].Status != model.AuditStatusRecorded {
		t.Errorf("journal entries = %+v", entries)
	}
	if got := dispatcher.events; len(got) != 1 || got[0] != service.EventAssetRecorded {
		t.Errorf("dispatched events = %v", got)
	}
	if len(mem.Events()) != 1 {
		t.Errorf("chain events = %d, want 1", len(mem.Events()))
	}
}

func TestAudit_secondAuditAlreadyRecorded(t *testing.T) {
	source := batchSource()
	svc, journal, _ := newService(t, source)

	first, err := svc.Audit(ctx, &model.AuditRequest{
		AssetID: "BATCH-1", SpreadsheetID: "sheet-1", Range: "Sheet1!A1:B3",
	})
	if err != nil {
		t.Fatal(err)
	}

	// The data changed; the second attempt must still be refused.
	source.snapshots["sheet-1/Sheet1!A1:B3"] = [][]string{
		{"ID", "Qty"}, {"A1", "999"},
	}
	_, err = svc.Audit(ctx, &model.AuditRequest{
		AssetID: "BATCH-1", SpreadsheetID: "sheet-1", Range: "Sheet1!A1:B3",
	})
	if !errors.Is(err, recorder.ErrAlreadyRecorded) {
		t.Fatalf("got %v, want ErrAlreadyRecorded", err)
	}

	// Original digest still verifies.
	res, err := svc.Verify(ctx, "BATCH-1", &model.VerifyRequest{Digest: first.Digest})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != recorder.OutcomeMatch {
		t.Errorf("outcome = %q, want match", res.Outcome)
	}

	entries, _ := journal.List(ctx, "BATCH-1", 0, 0)
	if len(entries) != 2 {
		t.Fatalf("journal entries = %d, want 2", len(entries))
	}
	if entries[1].Status != model.AuditStatusRejected || entries[1].ErrorKind != "already_recorded" {
		t.Errorf("second entry = %+v", entries[1])
	}
}

func TestAudit_insufficientData_noSubmission(t *testing.T) {
	source := &fakeSource{snapshots: map[string][][]string{
		"sheet-1/Sheet1!A1:B1": {{"ID", "Qty"}}, // header only
	}}
	svc, journal, mem := newService(t, source)

	_, err := svc.Audit(ctx, &model.AuditRequest{
		AssetID: "BATCH-1", SpreadsheetID: "sheet-1", Range: "Sheet1!A1:B1",
	})
	if !errors.Is(err, canonical.ErrInsufficientData) {
		t.Fatalf("got %v, want ErrInsufficientData", err)
	}

	if mem.Height() != 0 {
		t.Error("ledger submission attempted despite insufficient data")
	}
	if entries, _ := journal.List(ctx, "", 0, 0); len(entries) != 0 {
		t.Errorf("journal not empty: %+v", entries)
	}
}

func TestAudit_sourceFailure(t *testing.T) {
	source := &fakeSource{err: fmt.Errorf("%w: sheet-1", sheets.ErrAuth)}
	svc, _, _ := newService(t, source)

	_, err := svc.Audit(ctx, &model.AuditRequest{
		AssetID: "BATCH-1", SpreadsheetID: "sheet-1", Range: "A1:B2",
	})
	if !errors.Is(err, service.ErrSource) {
		t.Fatalf("got %v, want ErrSource", err)
	}
	if !errors.Is(err, sheets.ErrAuth) {
		t.Errorf("collaborator reason lost: %v", err)
	}
}

func TestAudit_validation(t *testing.T) {
	svc, _, _ := newService(t, batchSource())

	cases := []*model.AuditRequest{
		{AssetID: "", SpreadsheetID: "sheet-1", Range: "A1:B2"},
		{AssetID: "BATCH-1", SpreadsheetID: "", Range: "A1:B2"},
		{AssetID: "BATCH-1", SpreadsheetID: "sheet-1", Range: ""},
	}
	for i, req := range cases {
		_, err := svc.Audit(ctx, req)
		var ve *model.ErrValidation
		if !errors.As(err, &ve) {
			t.Errorf("case %d: got %v, want ErrValidation", i, err)
		}
	}
}

func TestVerify_reauditDetectsTamper(t *testing.T) {
	source := batchSource()
	svc, _, _ := newService(t, source)
	dispatcher := &capturingDispatcher{}
	svc.SetEventDispatcher(dispatcher)

	if _, err := svc.Audit(ctx, &model.AuditRequest{
		AssetID: "BATCH-1", SpreadsheetID: "sheet-1", Range: "Sheet1!A1:B3",
	}); err != nil {
		t.Fatal(err)
	}

	// Unmodified data verifies.
	res, err := svc.Verify(ctx, "BATCH-1", &model.VerifyRequest{
		SpreadsheetID: "sheet-1", Range: "Sheet1!A1:B3",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != recorder.OutcomeMatch {
		t.Fatalf("outcome = %q, want match", res.Outcome)
	}

	// Tamper with a cell; re-audit must mismatch and dispatch an event.
	source.snapshots["sheet-1/Sheet1!A1:B3"] = [][]string{
		{"ID", "Qty"}, {"A1", "11"}, {"A2", "5"},
	}
	res, err = svc.Verify(ctx, "BATCH-1", &model.VerifyRequest{
		SpreadsheetID: "sheet-1", Range: "Sheet1!A1:B3",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != recorder.OutcomeMismatch {
		t.Fatalf("outcome = %q, want mismatch", res.Outcome)
	}
	if res.RecordedDigest == res.ComputedDigest {
		t.Error("mismatch outcome but digests equal")
	}

	found := false
	for _, ev := range dispatcher.events {
		if ev == service.EventAssetVerifyFailed {
			found = true
		}
	}
	if !found {
		t.Error("verify_failed event not dispatched")
	}
}

func TestVerify_noRecord(t *testing.T) {
	svc, _, _ := newService(t, batchSource())

	res, err := svc.Verify(ctx, "NEVER-AUDITED", &model.VerifyRequest{
		Digest: fmt.Sprintf("%064x", 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != recorder.OutcomeNoRecord {
		t.Errorf("outcome = %q, want no_record", res.Outcome)
	}
}

func TestVerify_validation(t *testing.T) {
	svc, _, _ := newService(t, batchSource())

	cases := []*model.VerifyRequest{
		{},                                // no source at all
		{Digest: "abcd"},                  // short digest
		{Digest: "zz"},                    // non-hex
		{Digest: fmt.Sprintf("%064x", 0), SpreadsheetID: "sheet-1", Range: "A1:B2"}, // both
		{SpreadsheetID: "sheet-1"},        // selector missing range
	}
	for i, req := range cases {
		_, err := svc.Verify(ctx, "BATCH-1", req)
		var ve *model.ErrValidation
		if !errors.As(err, &ve) {
			t.Errorf("case %d: got %v, want ErrValidation", i, err)
		}
	}
}
