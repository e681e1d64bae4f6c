// Copyright 2025 Pine Host Project
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pinehost/pine-host/pkg/compositionlog"
)

// ErrRecordNotFound is returned when a queried record hash has no mirrored row.
var ErrRecordNotFound = errors.New("index: composition log record not found")

// Repository mirrors committed composition log records into Postgres.
type Repository struct {
	client *Client
}

// NewRepository wraps client.
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// MirrorRecord inserts a row for rec, ignoring a conflict on record_hash —
// the mirror is best-effort and idempotent, since the file-store log is
// always the durable source of truth.
func (r *Repository) MirrorRecord(ctx context.Context, position int64, hashHex string, rec compositionlog.Record) error {
	query := `
		INSERT INTO composition_log_records (position, record_hash, parent_hash, event_kind, function_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (record_hash) DO NOTHING`

	functionName := sql.NullString{String: rec.Event.FunctionName, Valid: rec.Event.FunctionName != ""}
	_, err := r.client.DB().ExecContext(ctx, query, position, hashHex, rec.ParentHashHex, string(rec.Event.Kind), functionName)
	if err != nil {
		return fmt.Errorf("index: mirror record %s: %w", hashHex, err)
	}
	return nil
}

// RecordByHash looks up a mirrored record by its hash.
func (r *Repository) RecordByHash(ctx context.Context, hashHex string) (MirroredRecord, error) {
	query := `
		SELECT position, record_hash, parent_hash, event_kind, function_name
		FROM composition_log_records
		WHERE record_hash = $1`

	var rec MirroredRecord
	var functionName sql.NullString
	err := r.client.DB().QueryRowContext(ctx, query, hashHex).Scan(
		&rec.Position, &rec.HashHex, &rec.ParentHashHex, &rec.EventKind, &functionName)
	if errors.Is(err, sql.ErrNoRows) {
		return MirroredRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return MirroredRecord{}, fmt.Errorf("index: record by hash %s: %w", hashHex, err)
	}
	rec.FunctionName = functionName.String
	return rec, nil
}

// RecordsByEventKind returns every mirrored record of the given kind,
// ordered by position, for ad-hoc history queries (e.g. "all deploys").
func (r *Repository) RecordsByEventKind(ctx context.Context, kind compositionlog.Kind) ([]MirroredRecord, error) {
	query := `
		SELECT position, record_hash, parent_hash, event_kind, function_name
		FROM composition_log_records
		WHERE event_kind = $1
		ORDER BY position ASC`

	rows, err := r.client.DB().QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("index: records by event kind %s: %w", kind, err)
	}
	defer rows.Close()

	var out []MirroredRecord
	for rows.Next() {
		var rec MirroredRecord
		var functionName sql.NullString
		if err := rows.Scan(&rec.Position, &rec.HashHex, &rec.ParentHashHex, &rec.EventKind, &functionName); err != nil {
			return nil, fmt.Errorf("index: scan record: %w", err)
		}
		rec.FunctionName = functionName.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MirroredRecord is a single composition_log_records row.
type MirroredRecord struct {
	Position      int64
	HashHex       string
	ParentHashHex string
	EventKind     string
	FunctionName  string
}
