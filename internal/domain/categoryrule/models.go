package categoryrule

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrRuleNotFound = errors.New("category rule not found")
	ErrForbidden    = errors.New("forbidden: rule does not belong to user")
)

// Match fields
const (
	MatchDescription = "description"
	MatchVendor      = "vendor"
	MatchBoth        = "both"
)

// Transaction types
const (
	TypeExpense = "expense"
	TypeIncome  = "income"
	TypeBoth    = "both"
)

// CategoryRule maps a keyword to a normalized category. Rules are applied to
// already-imported transactions downstream of the sync pipeline.
type CategoryRule struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"-"`
	Keyword         string    `json:"keyword"`
	MatchField      string    `json:"matchField"`      // description, vendor or both
	TransactionType string    `json:"transactionType"` // expense, income or both
	Category        string    `json:"category"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Matches reports whether the rule applies to a transaction with the given
// description, vendor and type. Keyword matching is case-insensitive substring.
func (r *CategoryRule) Matches(description, vendor, transactionType string) bool {
	if r.TransactionType != TypeBoth && r.TransactionType != transactionType {
		return false
	}

	keyword := strings.ToLower(r.Keyword)
	switch r.MatchField {
	case MatchDescription:
		return strings.Contains(strings.ToLower(description), keyword)
	case MatchVendor:
		return strings.Contains(strings.ToLower(vendor), keyword)
	default:
		return strings.Contains(strings.ToLower(description), keyword) ||
			strings.Contains(strings.ToLower(vendor), keyword)
	}
}

// CreateParams contains the parameters for creating a category rule
type CreateParams struct {
	UserID          int64
	Keyword         string
	MatchField      string
	TransactionType string
	Category        string
}

// Validate validates the create parameters
func (p *CreateParams) Validate() error {
	if strings.TrimSpace(p.Keyword) == "" {
		return errors.New("keyword is required")
	}
	if strings.TrimSpace(p.Category) == "" {
		return errors.New("category is required")
	}
	switch p.MatchField {
	case MatchDescription, MatchVendor, MatchBoth:
	default:
		return errors.New("match field must be description, vendor or both")
	}
	switch p.TransactionType {
	case TypeExpense, TypeIncome, TypeBoth:
	default:
		return errors.New("transaction type must be expense, income or both")
	}
	return nil
}

// UpdateParams contains the parameters for updating a category rule.
// Nil fields are left unchanged.
type UpdateParams struct {
	Keyword         *string
	MatchField      *string
	TransactionType *string
	Category        *string
}

// Validate validates the update parameters
func (p *UpdateParams) Validate() error {
	if p.Keyword == nil && p.MatchField == nil && p.TransactionType == nil && p.Category == nil {
		return errors.New("no changes provided")
	}
	if p.MatchField != nil {
		switch *p.MatchField {
		case MatchDescription, MatchVendor, MatchBoth:
		default:
			return errors.New("match field must be description, vendor or both")
		}
	}
	if p.TransactionType != nil {
		switch *p.TransactionType {
		case TypeExpense, TypeIncome, TypeBoth:
		default:
			return errors.New("transaction type must be expense, income or both")
		}
	}
	return nil
}
