package firefly

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func importParams() ImportParams {
	return ImportParams{
		Date:           time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		Amount:         decimal.RequireFromString("45.20"),
		Description:    "Grocer",
		AssetAccountID: "7",
		ExternalID:     "tx-1",
		Direction:      DirectionWithdrawal,
		Counterparty:   "Grocer",
	}
}

func TestEnsureAssetAccount_KnownID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accounts/7" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"data":{"id":"7","attributes":{"name":"Daycare Checking","type":"asset"}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", 0)
	account, err := client.EnsureAssetAccount(context.Background(), "7", "Daycare Checking")
	if err != nil {
		t.Fatalf("EnsureAssetAccount() failed: %v", err)
	}
	if account.ID != "7" || account.Name != "Daycare Checking" {
		t.Errorf("unexpected account: %+v", account)
	}
}

func TestEnsureAssetAccount_FindsByName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("type"); got != "asset" {
			t.Errorf("type query = %q, want asset", got)
		}
		w.Write([]byte(`{"data":[
			{"id":"3","attributes":{"name":"Other","type":"asset"}},
			{"id":"7","attributes":{"name":"Daycare Checking","type":"asset"}}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", 0)
	account, err := client.EnsureAssetAccount(context.Background(), "", "daycare checking")
	if err != nil {
		t.Fatalf("EnsureAssetAccount() failed: %v", err)
	}
	if account.ID != "7" {
		t.Errorf("account.ID = %q, want 7", account.ID)
	}
}

func TestEnsureAssetAccount_CreatesWhenAbsent(t *testing.T) {
	var created bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			w.Write([]byte(`{"data":[]}`))
		case r.Method == http.MethodPost:
			created = true
			body, _ := io.ReadAll(r.Body)
			var payload map[string]any
			json.Unmarshal(body, &payload)
			if payload["name"] != "Daycare Checking" || payload["type"] != "asset" {
				t.Errorf("unexpected create payload: %v", payload)
			}
			w.Write([]byte(`{"data":{"id":"9","attributes":{"name":"Daycare Checking","type":"asset"}}}`))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", 0)
	account, err := client.EnsureAssetAccount(context.Background(), "", "Daycare Checking")
	if err != nil {
		t.Fatalf("EnsureAssetAccount() failed: %v", err)
	}
	if !created {
		t.Error("expected POST /api/v1/accounts")
	}
	if account.ID != "9" {
		t.Errorf("account.ID = %q, want 9", account.ID)
	}
}

func TestEnsureAssetAccount_AlreadyExistsFallsBackToLookup(t *testing.T) {
	var listCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			listCalls++
			if listCalls == 1 {
				// First lookup misses; the account appears on retry, as when a
				// concurrent create won the race.
				w.Write([]byte(`{"data":[]}`))
				return
			}
			w.Write([]byte(`{"data":[{"id":"9","attributes":{"name":"Daycare Checking","type":"asset"}}]}`))
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message":"This account name is already in use."}`))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", 0)
	account, err := client.EnsureAssetAccount(context.Background(), "", "Daycare Checking")
	if err != nil {
		t.Fatalf("EnsureAssetAccount() failed: %v", err)
	}
	if account.ID != "9" {
		t.Errorf("account.ID = %q, want 9", account.ID)
	}
}

func TestImportTransaction_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/transactions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			ErrorIfDuplicateHash bool             `json:"error_if_duplicate_hash"`
			Transactions         []map[string]any `json:"transactions"`
		}
		json.Unmarshal(body, &payload)
		if !payload.ErrorIfDuplicateHash {
			t.Error("error_if_duplicate_hash should be true")
		}
		if len(payload.Transactions) != 1 {
			t.Fatalf("got %d transactions, want 1", len(payload.Transactions))
		}
		tx := payload.Transactions[0]
		if tx["type"] != "withdrawal" || tx["amount"] != "45.2" || tx["external_id"] != "tx-1" {
			t.Errorf("unexpected transaction payload: %v", tx)
		}
		if tx["source_id"] != "7" {
			t.Errorf("withdrawal should set source_id, got %v", tx["source_id"])
		}
		w.Write([]byte(`{"data":{"id":"101","attributes":{"transactions":[{"description":"Grocer"}]}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", 0)
	imported, err := client.ImportTransaction(context.Background(), importParams())
	if err != nil {
		t.Fatalf("ImportTransaction() failed: %v", err)
	}
	if imported == nil || imported.ID != "101" {
		t.Errorf("imported = %+v, want ID 101", imported)
	}
}

func TestImportTransaction_DepositUsesDestination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Transactions []map[string]any `json:"transactions"`
		}
		json.Unmarshal(body, &payload)
		tx := payload.Transactions[0]
		if tx["type"] != "deposit" || tx["destination_id"] != "7" {
			t.Errorf("deposit should set destination_id, got %v", tx)
		}
		w.Write([]byte(`{"data":{"id":"102","attributes":{"transactions":[]}}}`))
	}))
	defer server.Close()

	params := importParams()
	params.Direction = DirectionDeposit

	client := NewClient(server.URL, "test-token", 0)
	if _, err := client.ImportTransaction(context.Background(), params); err != nil {
		t.Fatalf("ImportTransaction() failed: %v", err)
	}
}

func TestImportTransaction_DuplicateReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Duplicate of transaction #98."}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", 0)
	imported, err := client.ImportTransaction(context.Background(), importParams())
	if err != nil {
		t.Fatalf("ImportTransaction() duplicate should not error, got: %v", err)
	}
	if imported != nil {
		t.Errorf("imported = %+v, want nil for duplicate", imported)
	}
}

func TestImportTransaction_ValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"The description field is required."}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", 0)
	_, err := client.ImportTransaction(context.Background(), importParams())

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if validationErr.Message != "The description field is required." {
		t.Errorf("Message = %q", validationErr.Message)
	}
}

func TestImportTransaction_AuthenticationFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthenticated"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", 0)
	_, err := client.ImportTransaction(context.Background(), importParams())
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("error = %v, want %v", err, ErrAuthenticationFailed)
	}
}

func TestImportTransaction_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "test-token", 0)
	_, err := client.ImportTransaction(context.Background(), importParams())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("error = %v, want %v", err, ErrUpstreamUnavailable)
	}
}

func TestImportTransaction_InvalidDirection(t *testing.T) {
	params := importParams()
	params.Direction = "transfer"

	client := NewClient("http://localhost", "test-token", 0)
	_, err := client.ImportTransaction(context.Background(), params)
	if !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("error = %v, want %v", err, ErrInvalidDirection)
	}
}

func TestImportTransaction_ProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", 0)
	_, err := client.ImportTransaction(context.Background(), importParams())

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Errorf("error = %v, want *ProtocolError", err)
	}
}
