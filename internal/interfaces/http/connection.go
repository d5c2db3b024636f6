package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/shopspring/decimal"

	"banksync/internal/domain/connection"
	syncdomain "banksync/internal/domain/sync"
	"banksync/internal/infrastructure/firefly"
	"banksync/internal/infrastructure/simplefin"
)

// The service runs single-household; request identity is handled upstream.
const defaultUserID int64 = 1

// Encryptor seals credential material before it touches the database.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
}

// SyncService runs sync passes for one or all connections.
type SyncService interface {
	SyncConnection(ctx context.Context, connectionID string) (*syncdomain.Result, error)
	SyncAllConnections(ctx context.Context) (*syncdomain.Summary, error)
}

type ConnectionHandler struct {
	connections connection.Repository
	syncLogs    syncdomain.LogRepository
	bridge      simplefin.ClientInterface
	encryptor   Encryptor
	syncService SyncService

	// manualSyncs tracks per-connection manual sync counts for the current
	// day; entries expire on their own.
	manualSyncs       *ttlcache.Cache[string, int]
	manualSyncsPerDay int
}

func NewConnectionHandler(
	connections connection.Repository,
	syncLogs syncdomain.LogRepository,
	bridge simplefin.ClientInterface,
	encryptor Encryptor,
	syncService SyncService,
	manualSyncsPerDay int,
) *ConnectionHandler {
	if manualSyncsPerDay <= 0 {
		manualSyncsPerDay = 6
	}

	cache := ttlcache.New[string, int](
		ttlcache.WithTTL[string, int](24 * time.Hour),
	)
	go cache.Start()

	return &ConnectionHandler{
		connections:       connections,
		syncLogs:          syncLogs,
		bridge:            bridge,
		encryptor:         encryptor,
		syncService:       syncService,
		manualSyncs:       cache,
		manualSyncsPerDay: manualSyncsPerDay,
	}
}

// CreateConnectionRequest is the request body for linking a bank account
type CreateConnectionRequest struct {
	SetupToken         string  `json:"setupToken"`
	AccountName        string  `json:"accountName"`
	AccountType        string  `json:"accountType"`
	SimplefinAccountID string  `json:"simplefinAccountId,omitempty"`
	OpeningBalance     *string `json:"openingBalance,omitempty"`
	OpeningBalanceDate *string `json:"openingBalanceDate,omitempty"`
}

// UpdateConnectionRequest is the request body for updating a connection
type UpdateConnectionRequest struct {
	AccountName *string `json:"accountName,omitempty"`
	AccountType *string `json:"accountType,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

// SyncResponse is the response for a manual sync trigger
type SyncResponse struct {
	Result               *syncdomain.Result `json:"result"`
	RemainingManualSyncs int                `json:"remainingManualSyncs"`
}

// AvailableAccountResponse describes one account found behind an access URL
type AvailableAccountResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

// HandleConnections handles GET/POST /api/connections
func (h *ConnectionHandler) HandleConnections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListConnections(w, r)
	case http.MethodPost:
		h.handleCreateConnection(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleConnectionByID handles GET/PATCH/DELETE /api/connections/{id}
func (h *ConnectionHandler) HandleConnectionByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Invalid connection ID", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGetConnection(w, r, id)
	case http.MethodPatch:
		h.handleUpdateConnection(w, r, id)
	case http.MethodDelete:
		h.handleDeleteConnection(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCreateConnection handles POST /api/connections - link a bank account
func (h *ConnectionHandler) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var req CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding create connection request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.SetupToken == "" {
		http.Error(w, "setupToken is required", http.StatusBadRequest)
		return
	}

	accessURL, err := h.bridge.ClaimSetupToken(req.SetupToken)
	if err != nil {
		http.Error(w, "Invalid setup token", http.StatusBadRequest)
		return
	}

	accounts, err := h.bridge.FetchAccounts(r.Context(), accessURL)
	if err != nil {
		h.writeBridgeError(w, err, "Failed to reach bank bridge")
		return
	}

	account, ok := pickAccount(accounts, req.SimplefinAccountID)
	if !ok {
		// Let the caller choose: respond with what the bridge exposed.
		available := make([]AvailableAccountResponse, 0, len(accounts))
		for _, a := range accounts {
			available = append(available, AvailableAccountResponse{
				ID: a.ID, Name: a.Name, Currency: a.Currency, Balance: a.Balance,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error":    "simplefinAccountId did not match a single account",
			"accounts": available,
		})
		return
	}

	accountName := req.AccountName
	if accountName == "" {
		accountName = account.Name
	}

	openingBalance := decimal.Zero
	if req.OpeningBalance != nil {
		openingBalance, err = decimal.NewFromString(*req.OpeningBalance)
		if err != nil {
			http.Error(w, "Invalid opening balance", http.StatusBadRequest)
			return
		}
	}

	var openingBalanceDate *time.Time
	if req.OpeningBalanceDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.OpeningBalanceDate)
		if err != nil {
			http.Error(w, "Invalid opening balance date (expected YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		openingBalanceDate = &parsed
	}

	sealedURL, err := h.encryptor.Encrypt(accessURL)
	if err != nil {
		log.Printf("Error sealing access URL: %v", err)
		http.Error(w, "Failed to create connection", http.StatusInternalServerError)
		return
	}

	params := connection.CreateParams{
		ID:                 uuid.NewString(),
		UserID:             defaultUserID,
		AccountName:        accountName,
		AccountType:        req.AccountType,
		OpeningBalance:     openingBalance,
		OpeningBalanceDate: openingBalanceDate,
		AccessURL:          sealedURL,
		SimplefinAccountID: account.ID,
	}
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.connections.Create(r.Context(), params)
	if err != nil {
		log.Printf("Error creating connection: %v", err)
		http.Error(w, "Failed to create connection", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(conn)
}

// handleListConnections handles GET /api/connections
func (h *ConnectionHandler) handleListConnections(w http.ResponseWriter, r *http.Request) {
	connections, err := h.connections.ListByUserID(r.Context(), defaultUserID)
	if err != nil {
		log.Printf("Error listing connections: %v", err)
		http.Error(w, "Failed to list connections", http.StatusInternalServerError)
		return
	}

	if connections == nil {
		connections = []*connection.Connection{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(connections)
}

// handleGetConnection handles GET /api/connections/{id}
func (h *ConnectionHandler) handleGetConnection(w http.ResponseWriter, r *http.Request, id string) {
	conn, err := h.connections.GetByID(r.Context(), id)
	if err != nil {
		if err == connection.ErrNotFound {
			http.Error(w, "Connection not found", http.StatusNotFound)
			return
		}
		log.Printf("Error getting connection %s: %v", id, err)
		http.Error(w, "Failed to get connection", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conn)
}

// handleUpdateConnection handles PATCH /api/connections/{id}
func (h *ConnectionHandler) handleUpdateConnection(w http.ResponseWriter, r *http.Request, id string) {
	var req UpdateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	params := connection.UpdateParams{
		AccountName: req.AccountName,
		AccountType: req.AccountType,
		IsActive:    req.IsActive,
	}
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.connections.Update(r.Context(), id, params)
	if err != nil {
		if err == connection.ErrNotFound {
			http.Error(w, "Connection not found", http.StatusNotFound)
			return
		}
		log.Printf("Error updating connection %s: %v", id, err)
		http.Error(w, "Failed to update connection", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conn)
}

// handleDeleteConnection handles DELETE /api/connections/{id}.
// Connections are deactivated, never dropped, so the sync log stays intact.
func (h *ConnectionHandler) handleDeleteConnection(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.connections.Deactivate(r.Context(), id); err != nil {
		if err == connection.ErrNotFound {
			http.Error(w, "Connection not found", http.StatusNotFound)
			return
		}
		log.Printf("Error deactivating connection %s: %v", id, err)
		http.Error(w, "Failed to delete connection", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSyncConnection handles POST /api/connections/{id}/sync - manual sync
// with a daily per-connection quota.
func (h *ConnectionHandler) HandleSyncConnection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Invalid connection ID", http.StatusBadRequest)
		return
	}

	used := 0
	if item := h.manualSyncs.Get(id); item != nil {
		used = item.Value()
	}
	if used >= h.manualSyncsPerDay {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error":                "daily manual sync limit reached",
			"remainingManualSyncs": 0,
		})
		return
	}

	result, err := h.syncService.SyncConnection(r.Context(), id)
	if err != nil {
		h.writeSyncError(w, id, err)
		return
	}

	h.manualSyncs.Set(id, used+1, untilMidnightUTC())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SyncResponse{
		Result:               result,
		RemainingManualSyncs: h.manualSyncsPerDay - used - 1,
	})
}

// HandleSyncAll handles POST /api/sync/all - sync every active connection.
// Not quota-limited; it mirrors the nightly scheduled run.
func (h *ConnectionHandler) HandleSyncAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := h.syncService.SyncAllConnections(r.Context())
	if err != nil {
		log.Printf("Error running sync pass: %v", err)
		http.Error(w, "Failed to run sync", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// HandleConnectionLogs handles GET /api/connections/{id}/logs - recent imports
func (h *ConnectionHandler) HandleConnectionLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Invalid connection ID", http.StatusBadRequest)
		return
	}

	entries, err := h.syncLogs.ListByConnection(r.Context(), id, 50)
	if err != nil {
		log.Printf("Error listing sync logs for %s: %v", id, err)
		http.Error(w, "Failed to list sync logs", http.StatusInternalServerError)
		return
	}

	if entries == nil {
		entries = []*syncdomain.LogEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// Stop releases handler resources.
func (h *ConnectionHandler) Stop() {
	h.manualSyncs.Stop()
}

func (h *ConnectionHandler) writeSyncError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, simplefin.ErrAccessRevoked):
		http.Error(w, "Bank access has been revoked; relink the connection", http.StatusBadGateway)
	case errors.Is(err, simplefin.ErrRateLimited):
		http.Error(w, "Bank bridge rate limit reached, try again later", http.StatusTooManyRequests)
	case errors.Is(err, simplefin.ErrUpstreamUnavailable), errors.Is(err, firefly.ErrUpstreamUnavailable):
		http.Error(w, "Upstream service unavailable", http.StatusBadGateway)
	case errors.Is(err, firefly.ErrAuthenticationFailed):
		http.Error(w, "Ledger rejected the configured token", http.StatusBadGateway)
	default:
		log.Printf("Error syncing connection %s: %v", id, err)
		http.Error(w, "Failed to sync connection", http.StatusInternalServerError)
	}
}

func (h *ConnectionHandler) writeBridgeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, simplefin.ErrAccessRevoked):
		http.Error(w, "Bank access has been revoked", http.StatusBadGateway)
	case errors.Is(err, simplefin.ErrRateLimited):
		http.Error(w, "Bank bridge rate limit reached, try again later", http.StatusTooManyRequests)
	default:
		log.Printf("Bridge error: %v", err)
		http.Error(w, fallback, http.StatusBadGateway)
	}
}

// pickAccount resolves which bridge account a connection should track. An
// explicit id must match; with no id, a single-account response is
// unambiguous.
func pickAccount(accounts []simplefin.Account, wantID string) (simplefin.Account, bool) {
	if wantID != "" {
		for _, a := range accounts {
			if a.ID == wantID {
				return a, true
			}
		}
		return simplefin.Account{}, false
	}
	if len(accounts) == 1 {
		return accounts[0], true
	}
	return simplefin.Account{}, false
}

func untilMidnightUTC() time.Duration {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return midnight.Sub(now)
}
