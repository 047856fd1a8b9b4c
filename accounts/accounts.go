// Package accounts is a thin client for the upstream corporate-accounts API.
// It forwards the caller's access token and normalises formatted amounts
// before they reach API consumers.
package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Account is the upstream account summary.
type Account struct {
	ID       string   `json:"id"`
	Number   string   `json:"number,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Type     string   `json:"type,omitempty"`
	Balances *Balance `json:"balances,omitempty"`
}

// Balance carries the account's balance figures. Amounts arrive from upstream
// as display strings with thousands separators.
type Balance struct {
	AvailableBalance string `json:"availableBalance,omitempty"`
	LedgerBalance    string `json:"ledgerBalance,omitempty"`
}

// Transaction is one statement entry.
type Transaction struct {
	PostingDate string `json:"postingDate,omitempty"`
	ValueDate   string `json:"valueDate,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Balance     string `json:"balance,omitempty"`
	Narrative   string `json:"narrative,omitempty"`
}

// Page is the upstream list envelope.
type Page[T any] struct {
	Items []T `json:"items"`
}

// Client calls the upstream accounts API on behalf of an authenticated user.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates an accounts client for the given upstream base URL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetAccounts lists accounts. When withBalance is set, balances are fetched
// per account concurrently.
func (c *Client) GetAccounts(ctx context.Context, accessToken string, withBalance bool, limit, offset int) (*Page[Account], error) {
	target := fmt.Sprintf("?accountContext=ViewAccount&limit=%d&offset=%d", limit, offset)

	var page Page[Account]
	if err := c.get(ctx, accessToken, target, &page); err != nil {
		return nil, err
	}
	if !withBalance {
		return &page, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range page.Items {
		g.Go(func() error {
			balance, err := c.GetAccountBalance(gctx, accessToken, page.Items[i].ID)
			if err != nil {
				return err
			}
			page.Items[i].Balances = balance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetAccountBalance fetches one account's balances with amounts normalised.
func (c *Client) GetAccountBalance(ctx context.Context, accessToken, id string) (*Balance, error) {
	var balance Balance
	if err := c.get(ctx, accessToken, "/"+id+"/balances", &balance); err != nil {
		return nil, err
	}
	balance.AvailableBalance = sanitizeAmount(balance.AvailableBalance)
	balance.LedgerBalance = sanitizeAmount(balance.LedgerBalance)
	return &balance, nil
}

// GetAccountDetail fetches the raw account detail document.
func (c *Client) GetAccountDetail(ctx context.Context, accessToken, id string) (map[string]any, error) {
	var detail map[string]any
	if err := c.get(ctx, accessToken, "/"+id, &detail); err != nil {
		return nil, err
	}
	return detail, nil
}

// GetAccountStatement fetches statement entries for a date range with amounts
// normalised.
func (c *Client) GetAccountStatement(ctx context.Context, accessToken, id, fromDate, toDate string, limit, offset int) (*Page[Transaction], error) {
	target := fmt.Sprintf("/%s/statement?fromDate=%s&toDate=%s", id, fromDate, toDate)
	if limit > 0 {
		target += fmt.Sprintf("&limit=%d", limit)
	}
	if offset > 0 {
		target += fmt.Sprintf("&offset=%d", offset)
	}

	var page Page[Transaction]
	if err := c.get(ctx, accessToken, target, &page); err != nil {
		return nil, err
	}
	for i := range page.Items {
		page.Items[i].Amount = sanitizeAmount(page.Items[i].Amount)
		page.Items[i].Balance = sanitizeAmount(page.Items[i].Balance)
	}
	return &page, nil
}

func (c *Client) get(ctx context.Context, accessToken, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+target, nil)
	if err != nil {
		return fmt.Errorf("accounts: create request: %w", err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("accounts: fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("accounts: upstream returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("accounts: decode: %w", err)
	}
	return nil
}

// sanitizeAmount strips thousands separators from display amounts.
func sanitizeAmount(amount string) string {
	return strings.ReplaceAll(amount, ",", "")
}
