package sync

import (
	"time"

	"github.com/shopspring/decimal"
)

// LogEntry records one transaction imported into the ledger. The pair
// (ConnectionID, SimplefinTransactionID) is unique, which is what makes
// re-syncing an already-covered window idempotent.
type LogEntry struct {
	ID                     int64           `json:"id"`
	ConnectionID           string          `json:"connectionId"`
	SimplefinTransactionID string          `json:"simplefinTransactionId"`
	FireflyTransactionID   *string         `json:"fireflyTransactionId,omitempty"`
	Description            string          `json:"description"`
	Amount                 decimal.Decimal `json:"amount"`
	PostedAt               time.Time       `json:"postedAt"`
	CreatedAt              time.Time       `json:"createdAt"`
}

// CreateLogParams contains the parameters for recording an imported transaction.
type CreateLogParams struct {
	ConnectionID           string
	SimplefinTransactionID string
	FireflyTransactionID   *string
	Description            string
	Amount                 decimal.Decimal
	PostedAt               time.Time
}

// Result summarizes a single connection sync.
type Result struct {
	ConnectionID string `json:"connectionId"`
	Imported     int    `json:"imported"`
	Skipped      int    `json:"skipped"`
	Total        int    `json:"total"`
}

// Summary aggregates a sync run across all active connections.
type Summary struct {
	ConnectionsProcessed int `json:"connectionsProcessed"`
	SuccessCount         int `json:"successCount"`
	FailureCount         int `json:"failureCount"`
	TotalImported        int `json:"totalImported"`
	TotalSkipped         int `json:"totalSkipped"`
	TotalTransactions    int `json:"totalTransactions"`
}
