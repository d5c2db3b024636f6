package firefly

import "context"

// ClientInterface defines the methods required from the Firefly III client
type ClientInterface interface {
	EnsureAssetAccount(ctx context.Context, existingID, desiredName string) (*Account, error)
	ImportTransaction(ctx context.Context, params ImportParams) (*ImportedTransaction, error)
}
