package simplefin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultTimeout = 15 * time.Second

var (
	// ErrInvalidToken is returned when a setup token cannot be decoded into
	// an access URL.
	ErrInvalidToken = errors.New("invalid setup token")

	// ErrAccessRevoked is returned when the bridge rejects the stored
	// credentials (HTTP 401). The connection must be re-claimed.
	ErrAccessRevoked = errors.New("bridge access revoked")

	// ErrRateLimited is returned on HTTP 429. The bridge enforces a hard
	// per-day request cap; callers should retry on the next scheduled run.
	ErrRateLimited = errors.New("bridge rate limit exceeded")

	// ErrUpstreamUnavailable is returned on network-level failures.
	ErrUpstreamUnavailable = errors.New("bridge unavailable")
)

// ProtocolError indicates the bridge returned a 2xx response whose body does
// not match the expected shape.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("bridge protocol error: %s", e.Message)
}

// APIError indicates a non-2xx response not covered by a more specific error.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bridge API error (status %d): %s", e.StatusCode, e.Body)
}

// Client handles communication with a SimpleFIN bridge.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new SimpleFIN bridge client.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Account represents one account in a bridge response.
type Account struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Currency     string        `json:"currency"`
	Balance      string        `json:"balance"`
	Transactions []Transaction `json:"transactions"`
}

// Transaction is the bridge's transaction shape. Amount is a signed decimal
// string; negative means debit.
type Transaction struct {
	ID          string `json:"id"`
	Posted      int64  `json:"posted"` // unix seconds
	Amount      string `json:"amount"`
	Payee       string `json:"payee,omitempty"`
	Description string `json:"description,omitempty"`
	Memo        string `json:"memo,omitempty"`
}

// ParseAmount returns the amount as a decimal.
func (t *Transaction) ParseAmount() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount %q: %w", t.Amount, err)
	}
	return amount, nil
}

// PostedTime returns the posting time as a time.Time in UTC.
func (t *Transaction) PostedTime() time.Time {
	return time.Unix(t.Posted, 0).UTC()
}

type accountSet struct {
	Errors   []string   `json:"errors"`
	Accounts *[]Account `json:"accounts"`
}

// ClaimSetupToken exchanges a one-time setup token for a durable access URL.
// In this protocol variant the token is simply the base64-encoded access URL,
// so no network round trip is needed; the token is decoded and validated.
func (c *Client) ClaimSetupToken(setupToken string) (string, error) {
	setupToken = strings.TrimSpace(setupToken)
	if setupToken == "" {
		return "", ErrInvalidToken
	}

	decoded, err := base64.StdEncoding.DecodeString(setupToken)
	if err != nil {
		// Some token generators strip padding.
		decoded, err = base64.RawStdEncoding.DecodeString(setupToken)
		if err != nil {
			return "", ErrInvalidToken
		}
	}

	accessURL := strings.TrimSpace(string(decoded))
	u, err := url.Parse(accessURL)
	if err != nil {
		return "", ErrInvalidToken
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidToken
	}
	if u.Host == "" || u.User == nil || u.User.Username() == "" {
		return "", ErrInvalidToken
	}

	return accessURL, nil
}

// FetchAccounts lists all accounts visible through the access URL.
func (c *Client) FetchAccounts(ctx context.Context, accessURL string) ([]Account, error) {
	set, err := c.fetchAccountSet(ctx, accessURL, nil)
	if err != nil {
		return nil, err
	}
	return *set.Accounts, nil
}

// FetchTransactions fetches transactions for one account since start. The
// bridge may omit accounts with no activity, so an absent account yields an
// empty slice rather than an error.
func (c *Client) FetchTransactions(ctx context.Context, accessURL, accountID string, start time.Time) ([]Transaction, error) {
	query := url.Values{}
	query.Set("start-date", strconv.FormatInt(start.Unix(), 10))

	set, err := c.fetchAccountSet(ctx, accessURL, query)
	if err != nil {
		return nil, err
	}

	for _, account := range *set.Accounts {
		if account.ID == accountID {
			if account.Transactions == nil {
				return []Transaction{}, nil
			}
			return account.Transactions, nil
		}
	}

	return []Transaction{}, nil
}

func (c *Client) fetchAccountSet(ctx context.Context, accessURL string, query url.Values) (*accountSet, error) {
	u, err := url.Parse(accessURL)
	if err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("invalid access URL: %v", err)}
	}

	// Basic-auth credentials are embedded in the access URL; move them into
	// the Authorization header so they never appear in request logs.
	var username, password string
	if u.User != nil {
		username = u.User.Username()
		password, _ = u.User.Password()
		u.User = nil
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/accounts"
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if username != "" {
		req.SetBasicAuth(username, password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrAccessRevoked
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	var set accountSet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("failed to unmarshal response: %v", err)}
	}
	if set.Accounts == nil {
		return nil, &ProtocolError{Message: "response missing accounts array"}
	}

	return &set, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
