package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"banksync/internal/domain/connection"
	"banksync/internal/infrastructure/firefly"
	"banksync/internal/infrastructure/simplefin"
)

var (
	syncTracer          = otel.Tracer("banksync/sync")
	syncMeter           = otel.Meter("banksync/sync")
	syncDuration, _     = syncMeter.Float64Histogram("sync.connection.duration", metric.WithDescription("Connection sync duration in seconds"), metric.WithUnit("s"))
	syncTotal, _        = syncMeter.Int64Counter("sync.connection.total", metric.WithDescription("Connection syncs by status"))
	transactionsSeen, _ = syncMeter.Int64Counter("sync.transactions.total", metric.WithDescription("Transactions processed by outcome"))
)

// Decryptor recovers a plaintext access URL from its stored sealed form.
type Decryptor interface {
	Decrypt(token string) (string, error)
}

// Service orchestrates one sync pass: pull transactions from the bank bridge
// and post them to the ledger, recording every import in the sync log.
type Service struct {
	connections  connection.Repository
	syncLogs     LogRepository
	bridge       simplefin.ClientInterface
	ledger       firefly.ClientInterface
	decryptor    Decryptor
	lookbackDays int
}

// NewService creates a new sync service
func NewService(
	connections connection.Repository,
	syncLogs LogRepository,
	bridge simplefin.ClientInterface,
	ledger firefly.ClientInterface,
	decryptor Decryptor,
	lookbackDays int,
) *Service {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &Service{
		connections:  connections,
		syncLogs:     syncLogs,
		bridge:       bridge,
		ledger:       ledger,
		decryptor:    decryptor,
		lookbackDays: lookbackDays,
	}
}

// SyncConnection syncs a single connection. A missing or inactive connection
// yields a zero Result and no error so that scheduled runs skip it quietly.
// Failures on individual transactions are contained: they count as skipped
// and the rest of the batch proceeds.
func (s *Service) SyncConnection(ctx context.Context, connectionID string) (*Result, error) {
	ctx, span := syncTracer.Start(ctx, "sync.connection", trace.WithAttributes(
		attribute.String("connection.id", connectionID),
	))
	defer span.End()

	start := time.Now()
	result, err := s.syncConnection(ctx, connectionID)
	syncDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		syncTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		return nil, err
	}

	syncTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	return result, nil
}

func (s *Service) syncConnection(ctx context.Context, connectionID string) (*Result, error) {
	result := &Result{ConnectionID: connectionID}

	conn, err := s.connections.GetByID(ctx, connectionID)
	if err == connection.ErrNotFound {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	if !conn.IsActive {
		return result, nil
	}

	accessURL, err := s.decryptor.Decrypt(conn.AccessURL)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access credentials: %w", err)
	}

	assetAccountID, err := s.ensureLedgerAccount(ctx, conn)
	if err != nil {
		return nil, err
	}

	windowStart, err := s.windowStart(ctx, conn)
	if err != nil {
		return nil, err
	}

	transactions, err := s.bridge.FetchTransactions(ctx, accessURL, conn.SimplefinAccountID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	result.Total = len(transactions)

	var maxPosted time.Time
	var observed bool
	for _, tx := range transactions {
		// A posted value of zero means the bridge omitted the field. It must
		// not count as an observation or the watermark would rewind to the
		// epoch. Tracking happens before any skip so that malformed
		// transactions still narrow the next window.
		if tx.Posted > 0 {
			if posted := tx.PostedTime(); !observed || posted.After(maxPosted) {
				maxPosted = posted
				observed = true
			}
		}

		if tx.ID == "" {
			log.Printf("Sync %s: skipping transaction with no id", connectionID)
			result.Skipped++
			continue
		}

		logged, err := s.syncLogs.Exists(ctx, conn.ID, tx.ID)
		if err != nil {
			log.Printf("Sync %s: skipping transaction %s: %v", connectionID, tx.ID, err)
			transactionsSeen.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
			result.Skipped++
			continue
		}
		if logged {
			transactionsSeen.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "duplicate")))
			result.Skipped++
			continue
		}

		imported, err := s.importTransaction(ctx, conn, assetAccountID, tx)
		if err != nil {
			log.Printf("Sync %s: skipping transaction %s: %v", connectionID, tx.ID, err)
			transactionsSeen.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
			result.Skipped++
			continue
		}
		if !imported {
			transactionsSeen.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "duplicate")))
			result.Skipped++
			continue
		}

		transactionsSeen.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "imported")))
		result.Imported++
	}

	// The watermark tracks the newest observed transaction, imported or not,
	// so that a window full of duplicates still advances it.
	if observed {
		if err := s.connections.UpdateLastSyncAt(ctx, conn.ID, maxPosted); err != nil {
			return nil, fmt.Errorf("failed to update sync watermark: %w", err)
		}
	}

	log.Printf("Sync %s: %d imported, %d skipped of %d", connectionID, result.Imported, result.Skipped, result.Total)
	return result, nil
}

// ensureLedgerAccount resolves the destination asset account and pins its id
// on the connection as soon as it changes, so a later failure in the same run
// does not lose the linkage.
func (s *Service) ensureLedgerAccount(ctx context.Context, conn *connection.Connection) (string, error) {
	existingID := ""
	if conn.FireflyAccountID != nil {
		existingID = *conn.FireflyAccountID
	}

	account, err := s.ledger.EnsureAssetAccount(ctx, existingID, conn.AccountName)
	if err != nil {
		return "", fmt.Errorf("failed to ensure ledger account: %w", err)
	}

	if account.ID != existingID {
		if err := s.connections.UpdateFireflyAccountID(ctx, conn.ID, account.ID); err != nil {
			return "", fmt.Errorf("failed to pin ledger account id: %w", err)
		}
	}

	return account.ID, nil
}

// windowStart picks where the fetch window opens. The watermark is trusted
// only when the sync log shows at least one prior import; otherwise the full
// lookback applies, which re-covers ground cheaply since imports are
// idempotent.
func (s *Service) windowStart(ctx context.Context, conn *connection.Connection) (time.Time, error) {
	hasHistory, err := s.syncLogs.HasEntries(ctx, conn.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to check sync history: %w", err)
	}

	if hasHistory && conn.LastSyncAt != nil {
		return *conn.LastSyncAt, nil
	}

	return time.Now().UTC().AddDate(0, 0, -s.lookbackDays), nil
}

// importTransaction posts one transaction to the ledger and records it in the
// sync log. It reports false when the ledger identified a duplicate.
func (s *Service) importTransaction(ctx context.Context, conn *connection.Connection, assetAccountID string, tx simplefin.Transaction) (bool, error) {
	amount, err := tx.ParseAmount()
	if err != nil {
		return false, fmt.Errorf("unparseable amount %q: %w", tx.Amount, err)
	}
	if amount.IsZero() {
		return false, fmt.Errorf("zero amount")
	}

	direction := firefly.DirectionDeposit
	if amount.IsNegative() {
		direction = firefly.DirectionWithdrawal
	}

	description := tx.Payee
	if description == "" {
		description = tx.Description
	}
	if description == "" {
		description = "SimpleFIN transaction"
	}

	imported, err := s.ledger.ImportTransaction(ctx, firefly.ImportParams{
		Date:           tx.PostedTime(),
		Amount:         amount.Abs(),
		Description:    description,
		AssetAccountID: assetAccountID,
		ExternalID:     tx.ID,
		Direction:      direction,
		Counterparty:   tx.Payee,
		Notes:          transactionNotes(tx),
	})
	if err != nil {
		return false, err
	}
	if imported == nil {
		return false, nil
	}

	params := CreateLogParams{
		ConnectionID:           conn.ID,
		SimplefinTransactionID: tx.ID,
		FireflyTransactionID:   &imported.ID,
		Description:            description,
		Amount:                 amount,
		PostedAt:               tx.PostedTime(),
	}
	inserted, err := s.syncLogs.Insert(ctx, params)
	if err != nil {
		return false, fmt.Errorf("failed to record import: %w", err)
	}

	return inserted, nil
}

// transactionNotes builds the ledger notes field. The description goes to the
// transaction title only when there is no payee, so it is preserved here
// alongside the memo.
func transactionNotes(tx simplefin.Transaction) string {
	if tx.Description != "" && tx.Memo != "" {
		return tx.Description + "\n" + tx.Memo
	}
	if tx.Description != "" {
		return tx.Description
	}
	return tx.Memo
}

// SyncAllConnections syncs every active connection sequentially. A failing
// connection is counted and logged; it never aborts the run.
func (s *Service) SyncAllConnections(ctx context.Context) (*Summary, error) {
	ctx, span := syncTracer.Start(ctx, "sync.all")
	defer span.End()

	connections, err := s.connections.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list active connections: %w", err)
	}

	summary := &Summary{}
	for _, conn := range connections {
		summary.ConnectionsProcessed++

		result, err := s.SyncConnection(ctx, conn.ID)
		if err != nil {
			log.Printf("Sync all: connection %s failed: %v", conn.ID, err)
			summary.FailureCount++
			continue
		}

		summary.SuccessCount++
		summary.TotalImported += result.Imported
		summary.TotalSkipped += result.Skipped
		summary.TotalTransactions += result.Total
	}

	span.SetAttributes(
		attribute.Int("sync.connections", summary.ConnectionsProcessed),
		attribute.Int("sync.failures", summary.FailureCount),
		attribute.Int("sync.imported", summary.TotalImported),
	)

	return summary, nil
}
