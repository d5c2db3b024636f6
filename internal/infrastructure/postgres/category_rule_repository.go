package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"banksync/internal/domain/categoryrule"
)

// CategoryRuleRepository implements the categoryrule.Repository interface for PostgreSQL
type CategoryRuleRepository struct {
	db *DB
}

// NewCategoryRuleRepository creates a new PostgreSQL category rule repository
func NewCategoryRuleRepository(db *DB) *CategoryRuleRepository {
	return &CategoryRuleRepository{db: db}
}

// Create creates a new category rule
func (r *CategoryRuleRepository) Create(ctx context.Context, params categoryrule.CreateParams) (*categoryrule.CategoryRule, error) {
	query := `
		INSERT INTO category_rules (user_id, keyword, match_field, transaction_type, category)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, keyword, match_field, transaction_type, category, created_at, updated_at
	`

	var rule categoryrule.CategoryRule
	err := r.db.QueryRowContext(
		ctx, query,
		params.UserID, params.Keyword, params.MatchField, params.TransactionType, params.Category,
	).Scan(
		&rule.ID, &rule.UserID, &rule.Keyword, &rule.MatchField,
		&rule.TransactionType, &rule.Category, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create category rule: %w", err)
	}

	return &rule, nil
}

// GetByID retrieves a rule by its ID
func (r *CategoryRuleRepository) GetByID(ctx context.Context, id int64) (*categoryrule.CategoryRule, error) {
	query := `
		SELECT id, user_id, keyword, match_field, transaction_type, category, created_at, updated_at
		FROM category_rules
		WHERE id = $1
	`

	var rule categoryrule.CategoryRule
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rule.ID, &rule.UserID, &rule.Keyword, &rule.MatchField,
		&rule.TransactionType, &rule.Category, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, categoryrule.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category rule: %w", err)
	}

	return &rule, nil
}

// ListByUserID retrieves all rules for a specific user
func (r *CategoryRuleRepository) ListByUserID(ctx context.Context, userID int64) ([]*categoryrule.CategoryRule, error) {
	query := `
		SELECT id, user_id, keyword, match_field, transaction_type, category, created_at, updated_at
		FROM category_rules
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list category rules: %w", err)
	}
	defer rows.Close()

	var rules []*categoryrule.CategoryRule
	for rows.Next() {
		var rule categoryrule.CategoryRule
		err := rows.Scan(
			&rule.ID, &rule.UserID, &rule.Keyword, &rule.MatchField,
			&rule.TransactionType, &rule.Category, &rule.CreatedAt, &rule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category rule: %w", err)
		}
		rules = append(rules, &rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rules: %w", err)
	}

	return rules, nil
}

// Update applies the non-nil fields of params
func (r *CategoryRuleRepository) Update(ctx context.Context, id int64, params categoryrule.UpdateParams) (*categoryrule.CategoryRule, error) {
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []any{id}

	if params.Keyword != nil {
		args = append(args, *params.Keyword)
		sets = append(sets, fmt.Sprintf("keyword = $%d", len(args)))
	}
	if params.MatchField != nil {
		args = append(args, *params.MatchField)
		sets = append(sets, fmt.Sprintf("match_field = $%d", len(args)))
	}
	if params.TransactionType != nil {
		args = append(args, *params.TransactionType)
		sets = append(sets, fmt.Sprintf("transaction_type = $%d", len(args)))
	}
	if params.Category != nil {
		args = append(args, *params.Category)
		sets = append(sets, fmt.Sprintf("category = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		UPDATE category_rules SET %s WHERE id = $1
		RETURNING id, user_id, keyword, match_field, transaction_type, category, created_at, updated_at
	`, strings.Join(sets, ", "))

	var rule categoryrule.CategoryRule
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&rule.ID, &rule.UserID, &rule.Keyword, &rule.MatchField,
		&rule.TransactionType, &rule.Category, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, categoryrule.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update category rule: %w", err)
	}

	return &rule, nil
}

// Delete removes a rule
func (r *CategoryRuleRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM category_rules WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete category rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return categoryrule.ErrRuleNotFound
	}

	return nil
}
