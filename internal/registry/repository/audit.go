// Package repository persists the local audit journal to PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/registry/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no journal entry matches the query.
var ErrNotFound = errors.New("audit entry not found")

// AuditRepository stores audit journal entries.
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new journal entry, assigning its ID and timestamp.
func (r *AuditRepository) Create(ctx context.Context, entry *model.AuditEntry) error {
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_entries (id, asset_id, digest, tx_id, status, error_kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.AssetID, entry.Digest, entry.TxID,
		entry.Status, entry.ErrorKind, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// GetByID retrieves a single journal entry.
func (r *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AuditEntry, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, asset_id, digest, tx_id, status, error_kind, created_at
		FROM audit_entries WHERE id = $1`, id)

	entry := &model.AuditEntry{}
	err := row.Scan(&entry.ID, &entry.AssetID, &entry.Digest, &entry.TxID,
		&entry.Status, &entry.ErrorKind, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get audit entry: %w", err)
	}
	return entry, nil
}

// List returns journal entries newest first, optionally filtered by asset ID.
func (r *AuditRepository) List(ctx context.Context, assetID string, limit, offset int) ([]*model.AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, asset_id, digest, tx_id, status, error_kind, created_at
		FROM audit_entries`
	args := []any{}
	if assetID != "" {
		query += ` WHERE asset_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, assetID, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.AuditEntry
	for rows.Next() {
		entry := &model.AuditEntry{}
		if err := rows.Scan(&entry.ID, &entry.AssetID, &entry.Digest, &entry.TxID,
			&entry.Status, &entry.ErrorKind, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
