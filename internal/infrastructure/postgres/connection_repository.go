package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"banksync/internal/domain/connection"
)

// ConnectionRepository implements the connection.Repository interface for PostgreSQL
type ConnectionRepository struct {
	db *DB
}

// NewConnectionRepository creates a new PostgreSQL connection repository
func NewConnectionRepository(db *DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `
	id, user_id, account_name, account_type, opening_balance, opening_balance_date,
	access_url, simplefin_account_id, firefly_account_id, last_sync_at, is_active,
	created_at, updated_at
`

// Create creates a new connection. AccessURL must arrive already encrypted.
func (r *ConnectionRepository) Create(ctx context.Context, params connection.CreateParams) (*connection.Connection, error) {
	query := `
		INSERT INTO connections (
			id, user_id, account_name, account_type, opening_balance,
			opening_balance_date, access_url, simplefin_account_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + connectionColumns

	var openingBalanceDate sql.NullTime
	if params.OpeningBalanceDate != nil {
		openingBalanceDate = sql.NullTime{Time: *params.OpeningBalanceDate, Valid: true}
	}

	row := r.db.QueryRowContext(
		ctx, query,
		params.ID, params.UserID, params.AccountName, params.AccountType,
		params.OpeningBalance, openingBalanceDate, params.AccessURL, params.SimplefinAccountID,
	)

	conn, err := scanConnection(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	return conn, nil
}

// GetByID retrieves a connection by its ID
func (r *ConnectionRepository) GetByID(ctx context.Context, id string) (*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, connection.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	return conn, nil
}

// ListByUserID retrieves all connections for a specific user
func (r *ConnectionRepository) ListByUserID(ctx context.Context, userID int64) ([]*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	return collectConnections(rows)
}

// ListActive retrieves all active connections across users
func (r *ConnectionRepository) ListActive(ctx context.Context) ([]*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE is_active = TRUE ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active connections: %w", err)
	}
	defer rows.Close()

	return collectConnections(rows)
}

// Update applies the non-nil fields of params
func (r *ConnectionRepository) Update(ctx context.Context, id string, params connection.UpdateParams) (*connection.Connection, error) {
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []any{id}

	if params.AccountName != nil {
		args = append(args, *params.AccountName)
		sets = append(sets, fmt.Sprintf("account_name = $%d", len(args)))
	}
	if params.AccountType != nil {
		args = append(args, *params.AccountType)
		sets = append(sets, fmt.Sprintf("account_type = $%d", len(args)))
	}
	if params.IsActive != nil {
		args = append(args, *params.IsActive)
		sets = append(sets, fmt.Sprintf("is_active = $%d", len(args)))
	}

	if len(args) == 1 {
		return nil, connection.ErrNoChanges
	}

	query := fmt.Sprintf(
		`UPDATE connections SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(sets, ", "), connectionColumns,
	)

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, connection.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update connection: %w", err)
	}

	return conn, nil
}

// UpdateFireflyAccountID pins the destination ledger account id
func (r *ConnectionRepository) UpdateFireflyAccountID(ctx context.Context, id, fireflyAccountID string) error {
	query := `UPDATE connections SET firefly_account_id = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	return r.exec(ctx, query, fireflyAccountID, id)
}

// UpdateLastSyncAt advances the sync watermark. The watermark only moves
// forward; GREATEST ignores a NULL last_sync_at.
func (r *ConnectionRepository) UpdateLastSyncAt(ctx context.Context, id string, lastSyncAt time.Time) error {
	query := `UPDATE connections SET last_sync_at = GREATEST(last_sync_at, $1), updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	return r.exec(ctx, query, lastSyncAt, id)
}

// Deactivate soft-deletes a connection. Sync history is retained.
func (r *ConnectionRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE connections SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	return r.exec(ctx, query, id)
}

func (r *ConnectionRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return connection.ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*connection.Connection, error) {
	var conn connection.Connection
	var openingBalanceDate, lastSyncAt sql.NullTime
	var fireflyAccountID sql.NullString

	err := row.Scan(
		&conn.ID, &conn.UserID, &conn.AccountName, &conn.AccountType,
		&conn.OpeningBalance, &openingBalanceDate, &conn.AccessURL,
		&conn.SimplefinAccountID, &fireflyAccountID, &lastSyncAt,
		&conn.IsActive, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if openingBalanceDate.Valid {
		t := openingBalanceDate.Time
		conn.OpeningBalanceDate = &t
	}
	if fireflyAccountID.Valid {
		s := fireflyAccountID.String
		conn.FireflyAccountID = &s
	}
	if lastSyncAt.Valid {
		t := lastSyncAt.Time
		conn.LastSyncAt = &t
	}

	return &conn, nil
}

func collectConnections(rows *sql.Rows) ([]*connection.Connection, error) {
	var connections []*connection.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		connections = append(connections, conn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}

	return connections, nil
}
