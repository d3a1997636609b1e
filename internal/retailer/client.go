// Package retailer holds the typed HTTP bindings for each retailer's receipt
// API. These are thin external-collaborator clients; the wire formats belong
// to the retailers.
package retailer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"zaop.zip/paylink/internal/db/models"
)

// Client fetches receipts from a retailer with a fresh access token.
type Client interface {
	// FetchReceipts pulls the receipt overview list.
	FetchReceipts(ctx context.Context, accessToken string) ([]models.Receipt, error)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// getJSON issues an authenticated GET and decodes the JSON response.
func getJSON(ctx context.Context, client *http.Client, url, accessToken string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", url, err)
	}
	return nil
}
