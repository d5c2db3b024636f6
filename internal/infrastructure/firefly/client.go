package firefly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultTimeout = 10 * time.Second

// Transaction directions. The caller decides direction explicitly; the
// adapter never infers it from the amount's sign.
const (
	DirectionWithdrawal = "withdrawal"
	DirectionDeposit    = "deposit"
)

var (
	// ErrAuthenticationFailed is returned when the ledger rejects the access
	// token (HTTP 401).
	ErrAuthenticationFailed = errors.New("ledger authentication failed")

	// ErrUpstreamUnavailable is returned on network-level failures.
	ErrUpstreamUnavailable = errors.New("ledger unavailable")

	// ErrInvalidDirection is returned when ImportTransaction is called with a
	// direction other than withdrawal or deposit.
	ErrInvalidDirection = errors.New("direction must be withdrawal or deposit")
)

// ValidationError indicates the ledger rejected a request as invalid (HTTP
// 422) for a reason other than a duplicate transaction.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger validation failed: %s", e.Message)
}

// ProtocolError indicates the ledger returned a response whose body does not
// match the expected JSON:API shape.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ledger protocol error: %s", e.Message)
}

// APIError indicates a non-2xx response not covered by a more specific error.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger API error (status %d): %s", e.StatusCode, e.Body)
}

// Client handles communication with a Firefly III instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a new Firefly III API client.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Account is a ledger asset account.
type Account struct {
	ID   string
	Name string
}

// ImportParams describes one transaction to post to the ledger. Amount is an
// unsigned magnitude; Direction carries the sign decision.
type ImportParams struct {
	Date           time.Time
	Amount         decimal.Decimal
	Description    string
	AssetAccountID string
	ExternalID     string
	Direction      string
	Counterparty   string
	Notes          string
}

// ImportedTransaction is the ledger's record of a stored transaction.
type ImportedTransaction struct {
	ID          string
	Description string
}

type accountData struct {
	ID         string `json:"id"`
	Attributes struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"attributes"`
}

// EnsureAssetAccount resolves the destination asset account. A known id is
// validated and reused; otherwise an account with the desired name is looked
// up, creating it when absent. An upstream "already exists" rejection falls
// back to the name lookup instead of failing.
func (c *Client) EnsureAssetAccount(ctx context.Context, existingID, desiredName string) (*Account, error) {
	if existingID != "" {
		account, err := c.getAccount(ctx, existingID)
		if err != nil {
			return nil, err
		}
		if account != nil {
			return account, nil
		}
		// The pinned account was deleted upstream; fall through and relink.
	}

	account, err := c.findAssetAccountByName(ctx, desiredName)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	account, err = c.createAssetAccount(ctx, desiredName)
	if err == nil {
		return account, nil
	}

	// 409/422 here usually means the account exists under a name Firefly
	// normalized differently, or a concurrent create won. Retry the lookup.
	var validationErr *ValidationError
	var apiErr *APIError
	if errors.As(err, &validationErr) || (errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict) {
		account, lookupErr := c.findAssetAccountByName(ctx, desiredName)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if account != nil {
			return account, nil
		}
	}

	return nil, err
}

func (c *Client) getAccount(ctx context.Context, id string) (*Account, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/v1/accounts/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err := mapStatus(status, body); err != nil {
		return nil, err
	}

	var resp struct {
		Data *accountData `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Data == nil || resp.Data.ID == "" {
		return nil, &ProtocolError{Message: "account response missing data.id"}
	}

	return &Account{ID: resp.Data.ID, Name: resp.Data.Attributes.Name}, nil
}

func (c *Client) findAssetAccountByName(ctx context.Context, name string) (*Account, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/v1/accounts?type=asset", nil)
	if err != nil {
		return nil, err
	}
	if err := mapStatus(status, body); err != nil {
		return nil, err
	}

	var resp struct {
		Data *[]accountData `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Data == nil {
		return nil, &ProtocolError{Message: "account list response missing data array"}
	}

	for _, account := range *resp.Data {
		if strings.EqualFold(account.Attributes.Name, name) {
			return &Account{ID: account.ID, Name: account.Attributes.Name}, nil
		}
	}

	return nil, nil
}

func (c *Client) createAssetAccount(ctx context.Context, name string) (*Account, error) {
	payload := map[string]any{
		"name":         name,
		"type":         "asset",
		"account_role": "defaultAsset",
	}

	status, body, err := c.do(ctx, http.MethodPost, "/api/v1/accounts", payload)
	if err != nil {
		return nil, err
	}
	if err := mapStatus(status, body); err != nil {
		return nil, err
	}

	var resp struct {
		Data *accountData `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Data == nil || resp.Data.ID == "" {
		return nil, &ProtocolError{Message: "create account response missing data.id"}
	}

	return &Account{ID: resp.Data.ID, Name: resp.Data.Attributes.Name}, nil
}

// ImportTransaction posts one transaction tagged with ExternalID for upstream
// deduplication. A ledger-reported duplicate returns (nil, nil): it is an
// expected outcome, not a failure.
func (c *Client) ImportTransaction(ctx context.Context, params ImportParams) (*ImportedTransaction, error) {
	if params.Direction != DirectionWithdrawal && params.Direction != DirectionDeposit {
		return nil, ErrInvalidDirection
	}

	tx := map[string]any{
		"type":        params.Direction,
		"date":        params.Date.Format(time.RFC3339),
		"amount":      params.Amount.String(),
		"description": params.Description,
		"external_id": params.ExternalID,
	}
	counterparty := params.Counterparty
	if counterparty == "" {
		counterparty = params.Description
	}
	if params.Direction == DirectionWithdrawal {
		tx["source_id"] = params.AssetAccountID
		tx["destination_name"] = counterparty
	} else {
		tx["destination_id"] = params.AssetAccountID
		tx["source_name"] = counterparty
	}
	if params.Notes != "" {
		tx["notes"] = params.Notes
	}

	payload := map[string]any{
		"error_if_duplicate_hash": true,
		"transactions":            []map[string]any{tx},
	}

	status, body, err := c.do(ctx, http.MethodPost, "/api/v1/transactions", payload)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnprocessableEntity && isDuplicateMessage(body) {
		return nil, nil
	}
	if err := mapStatus(status, body); err != nil {
		return nil, err
	}

	var resp struct {
		Data *struct {
			ID         string `json:"id"`
			Attributes struct {
				Transactions []struct {
					Description string `json:"description"`
				} `json:"transactions"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Data == nil || resp.Data.ID == "" {
		return nil, &ProtocolError{Message: "transaction response missing data.id"}
	}

	imported := &ImportedTransaction{ID: resp.Data.ID, Description: params.Description}
	if len(resp.Data.Attributes.Transactions) > 0 {
		imported.Description = resp.Data.Attributes.Transactions[0].Description
	}

	return imported, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response body: %v", ErrUpstreamUnavailable, err)
	}

	return resp.StatusCode, body, nil
}

// mapStatus converts a non-2xx status into the adapter's error taxonomy.
func mapStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusUnauthorized:
		return ErrAuthenticationFailed
	case status == http.StatusUnprocessableEntity:
		return &ValidationError{Message: extractMessage(body)}
	default:
		return &APIError{StatusCode: status, Body: extractMessage(body)}
	}
}

func isDuplicateMessage(body []byte) bool {
	return strings.Contains(strings.ToLower(extractMessage(body)), "duplicate of transaction")
}

func extractMessage(body []byte) string {
	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Message != "" {
		return resp.Message
	}
	s := string(body)
	if len(s) > 256 {
		return s[:256] + "..."
	}
	return s
}
