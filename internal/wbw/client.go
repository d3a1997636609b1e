// Package wbw is the typed HTTP binding for the WieBetaaltWat shared-expense
// API. WBW does not speak OAuth; authentication is an email/password sign-in
// that yields a session cookie, which is stored as this platform's opaque
// authorization state.
package wbw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://app.wiebetaaltwat.nl/api"

// Client talks to the WBW API with a session cookie.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a client against the production API.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
	}
}

// NewClientWithBaseURL is used by tests to point at a fake server.
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) do(ctx context.Context, method, path, session string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept-Version", "10")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if session != "" {
		req.Header.Set("Cookie", session)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("wbw %s %s returned %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode wbw response: %w", err)
	}
	return nil
}

// SignIn logs in with email and password and returns the session cookie to
// store as the WBW authorization state.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	body := loginRequest{User: userCredentials{Email: email, Password: password}}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/sign_in", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept-Version", "10")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("wbw sign-in returned %s", resp.Status)
	}

	var login loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return "", fmt.Errorf("decode wbw sign-in response: %w", err)
	}
	if login.Errors != nil {
		return "", fmt.Errorf("wbw sign-in rejected: %s", login.Errors.Message())
	}

	pairs := make([]string, 0, 2)
	for _, cookie := range resp.Cookies() {
		pairs = append(pairs, cookie.Name+"="+cookie.Value)
	}
	if len(pairs) == 0 {
		return "", fmt.Errorf("wbw sign-in yielded no session cookie")
	}
	return strings.Join(pairs, "; "), nil
}

// GetLists returns the shared-expense lists the user belongs to.
func (c *Client) GetLists(ctx context.Context, session string) ([]List, error) {
	var resp paginationResponse[listItem]
	if err := c.do(ctx, http.MethodGet, "/lists", session, nil, &resp); err != nil {
		return nil, err
	}
	lists := make([]List, 0, len(resp.Data))
	for _, it := range resp.Data {
		lists = append(lists, it.List)
	}
	return lists, nil
}

// GetMembers returns the members of a list.
func (c *Client) GetMembers(ctx context.Context, session, listID string) ([]Member, error) {
	var resp paginationResponse[memberItem]
	if err := c.do(ctx, http.MethodGet, "/lists/"+listID+"/members", session, nil, &resp); err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(resp.Data))
	for _, it := range resp.Data {
		members = append(members, it.Member)
	}
	return members, nil
}

// GetBalances returns the per-list balances; this is how our own member id
// within each list becomes known.
func (c *Client) GetBalances(ctx context.Context, session string) ([]Balance, error) {
	var resp noPaginationResponse[balanceItem]
	if err := c.do(ctx, http.MethodGet, "/balances", session, nil, &resp); err != nil {
		return nil, err
	}
	balances := make([]Balance, 0, len(resp.Data))
	for _, it := range resp.Data {
		balances = append(balances, it.Balance)
	}
	return balances, nil
}

// AddExpense posts a new expense to a list.
func (c *Client) AddExpense(ctx context.Context, session, listID string, expense Expense) (*ExpenseResult, error) {
	var resp expenseResponse
	err := c.do(ctx, http.MethodPost, "/lists/"+listID+"/expenses", session, expenseWrapper{Expense: expense}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Errors != nil {
		return nil, fmt.Errorf("wbw rejected expense: %s", resp.Errors.Message())
	}
	if resp.Expense == nil {
		return nil, fmt.Errorf("wbw returned no expense")
	}
	return resp.Expense, nil
}
