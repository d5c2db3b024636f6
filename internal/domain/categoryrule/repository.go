package categoryrule

import "context"

// Repository defines the interface for category rule data access
type Repository interface {
	// Create creates a new category rule
	Create(ctx context.Context, params CreateParams) (*CategoryRule, error)

	// GetByID retrieves a rule by its ID
	GetByID(ctx context.Context, id int64) (*CategoryRule, error)

	// ListByUserID retrieves all rules for a specific user
	ListByUserID(ctx context.Context, userID int64) ([]*CategoryRule, error)

	// Update applies the non-nil fields of params
	Update(ctx context.Context, id int64, params UpdateParams) (*CategoryRule, error)

	// Delete removes a rule
	Delete(ctx context.Context, id int64) error
}
