package sync

import "context"

// LogRepository defines the interface for sync log data access
type LogRepository interface {
	// Insert records an imported transaction. It reports false without error
	// when an entry for the same (connection, transaction) pair already exists.
	Insert(ctx context.Context, params CreateLogParams) (bool, error)

	// Exists reports whether an entry was already recorded for the
	// (connection, transaction) pair
	Exists(ctx context.Context, connectionID, simplefinTransactionID string) (bool, error)

	// HasEntries reports whether any transaction was ever imported for the
	// connection
	HasEntries(ctx context.Context, connectionID string) (bool, error)

	// ListByConnection retrieves the most recent log entries for a connection
	ListByConnection(ctx context.Context, connectionID string, limit int) ([]*LogEntry, error)

	// CountByConnection returns the number of imported transactions for a
	// connection
	CountByConnection(ctx context.Context, connectionID string) (int64, error)
}
