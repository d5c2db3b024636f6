package simplefin

import (
	"context"
	"time"
)

// ClientInterface defines the methods required from the SimpleFIN bridge client
type ClientInterface interface {
	ClaimSetupToken(setupToken string) (string, error)
	FetchAccounts(ctx context.Context, accessURL string) ([]Account, error)
	FetchTransactions(ctx context.Context, accessURL, accountID string, start time.Time) ([]Transaction, error)
}
