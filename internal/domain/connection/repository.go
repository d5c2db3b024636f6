package connection

import (
	"context"
	"time"
)

// Repository defines the interface for connection data access.
// This interface is defined in the domain layer, but implemented in the infrastructure layer.
type Repository interface {
	// Create creates a new connection
	Create(ctx context.Context, params CreateParams) (*Connection, error)

	// GetByID retrieves a connection by its ID
	GetByID(ctx context.Context, id string) (*Connection, error)

	// ListByUserID retrieves all connections for a specific user
	ListByUserID(ctx context.Context, userID int64) ([]*Connection, error)

	// ListActive retrieves all active connections across users
	ListActive(ctx context.Context) ([]*Connection, error)

	// Update applies the non-nil fields of params
	Update(ctx context.Context, id string, params UpdateParams) (*Connection, error)

	// UpdateFireflyAccountID pins the destination ledger account id
	UpdateFireflyAccountID(ctx context.Context, id, fireflyAccountID string) error

	// UpdateLastSyncAt advances the sync watermark
	UpdateLastSyncAt(ctx context.Context, id string, lastSyncAt time.Time) error

	// Deactivate soft-deletes a connection; history is retained
	Deactivate(ctx context.Context, id string) error
}
