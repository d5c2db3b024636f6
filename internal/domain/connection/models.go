package connection

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("connection not found")
	ErrNoChanges = errors.New("no changes provided")
)

// Account types supported by a connection.
const (
	TypeCredit = "credit"
	TypeDebit  = "debit"
)

// Connection represents one linked bank account: the encrypted SimpleFIN
// access URL, its linkage to a Firefly asset account, and the sync watermark.
type Connection struct {
	ID                 string          `json:"id"`
	UserID             int64           `json:"-"`
	AccountName        string          `json:"accountName"`
	AccountType        string          `json:"accountType"`
	OpeningBalance     decimal.Decimal `json:"openingBalance"`
	OpeningBalanceDate *time.Time      `json:"openingBalanceDate,omitempty"`
	// AccessURL holds the encrypted SimpleFIN access URL. It is never
	// serialized and never logged.
	AccessURL          string     `json:"-"`
	SimplefinAccountID string     `json:"simplefinAccountId"`
	FireflyAccountID   *string    `json:"fireflyAccountId,omitempty"`
	LastSyncAt         *time.Time `json:"lastSyncAt,omitempty"`
	IsActive           bool       `json:"isActive"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// CreateParams contains the parameters for creating a connection.
// AccessURL must already be encrypted by the caller.
type CreateParams struct {
	ID                 string
	UserID             int64
	AccountName        string
	AccountType        string
	OpeningBalance     decimal.Decimal
	OpeningBalanceDate *time.Time
	AccessURL          string
	SimplefinAccountID string
}

// Validate validates the create parameters
func (p *CreateParams) Validate() error {
	if p.AccountName == "" {
		return errors.New("account name is required")
	}
	if p.AccountType != TypeCredit && p.AccountType != TypeDebit {
		return errors.New("account type must be credit or debit")
	}
	if p.AccessURL == "" {
		return errors.New("access URL is required")
	}
	if p.SimplefinAccountID == "" {
		return errors.New("simplefin account id is required")
	}
	return nil
}

// UpdateParams contains the parameters for updating a connection.
// Nil fields are left unchanged.
type UpdateParams struct {
	AccountName *string
	AccountType *string
	IsActive    *bool
}

// Validate validates the update parameters
func (p *UpdateParams) Validate() error {
	if p.AccountName == nil && p.AccountType == nil && p.IsActive == nil {
		return ErrNoChanges
	}
	if p.AccountType != nil && *p.AccountType != TypeCredit && *p.AccountType != TypeDebit {
		return errors.New("account type must be credit or debit")
	}
	if p.AccountName != nil && *p.AccountName == "" {
		return errors.New("account name must not be empty")
	}
	return nil
}
