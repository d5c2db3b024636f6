package postgres

import (
	"context"
	"database/sql"
	"fmt"

	syncdomain "banksync/internal/domain/sync"
)

// SyncLogRepository implements the sync.LogRepository interface for PostgreSQL
type SyncLogRepository struct {
	db *DB
}

// NewSyncLogRepository creates a new PostgreSQL sync log repository
func NewSyncLogRepository(db *DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Insert records an imported transaction. The (connection_id,
// simplefin_transaction_id) pair is unique; a conflicting insert is a no-op
// and reports false.
func (r *SyncLogRepository) Insert(ctx context.Context, params syncdomain.CreateLogParams) (bool, error) {
	query := `
		INSERT INTO sync_logs (
			connection_id, simplefin_transaction_id, firefly_transaction_id,
			description, amount, posted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (connection_id, simplefin_transaction_id) DO NOTHING
	`

	var fireflyTransactionID sql.NullString
	if params.FireflyTransactionID != nil {
		fireflyTransactionID = sql.NullString{String: *params.FireflyTransactionID, Valid: true}
	}

	result, err := r.db.ExecContext(
		ctx, query,
		params.ConnectionID, params.SimplefinTransactionID, fireflyTransactionID,
		params.Description, params.Amount, params.PostedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert sync log: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// Exists reports whether an entry was already recorded for the (connection,
// transaction) pair
func (r *SyncLogRepository) Exists(ctx context.Context, connectionID, simplefinTransactionID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM sync_logs WHERE connection_id = $1 AND simplefin_transaction_id = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, connectionID, simplefinTransactionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check sync log entry: %w", err)
	}

	return exists, nil
}

// HasEntries reports whether any transaction was ever imported for the connection
func (r *SyncLogRepository) HasEntries(ctx context.Context, connectionID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM sync_logs WHERE connection_id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, connectionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check sync log entries: %w", err)
	}

	return exists, nil
}

// ListByConnection retrieves the most recent log entries for a connection
func (r *SyncLogRepository) ListByConnection(ctx context.Context, connectionID string, limit int) ([]*syncdomain.LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, connection_id, simplefin_transaction_id, firefly_transaction_id,
		       description, amount, posted_at, created_at
		FROM sync_logs
		WHERE connection_id = $1
		ORDER BY posted_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, connectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	defer rows.Close()

	var entries []*syncdomain.LogEntry
	for rows.Next() {
		var entry syncdomain.LogEntry
		var fireflyTransactionID sql.NullString

		err := rows.Scan(
			&entry.ID, &entry.ConnectionID, &entry.SimplefinTransactionID,
			&fireflyTransactionID, &entry.Description, &entry.Amount,
			&entry.PostedAt, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}

		if fireflyTransactionID.Valid {
			s := fireflyTransactionID.String
			entry.FireflyTransactionID = &s
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync logs: %w", err)
	}

	return entries, nil
}

// CountByConnection returns the number of imported transactions for a connection
func (r *SyncLogRepository) CountByConnection(ctx context.Context, connectionID string) (int64, error) {
	query := `SELECT COUNT(*) FROM sync_logs WHERE connection_id = $1`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, connectionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sync logs: %w", err)
	}

	return count, nil
}
