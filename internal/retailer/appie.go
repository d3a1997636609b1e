package retailer

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"zaop.zip/paylink/internal/db/models"
)

const appieReceiptsURL = "https://api.ah.nl/mobile-services/v1/receipts"

// AppieClient pulls receipt overviews from the Albert Heijn mobile API.
type AppieClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewAppieClient builds an Appie client against the production API.
func NewAppieClient() *AppieClient {
	return &AppieClient{httpClient: newHTTPClient(), baseURL: appieReceiptsURL}
}

type appieReceipt struct {
	TransactionID     string `json:"transactionId"`
	TransactionMoment string `json:"transactionMoment"`
	Total             struct {
		Amount struct {
			Amount float64 `json:"amount"`
		} `json:"amount"`
	} `json:"total"`
}

// FetchReceipts pulls the full receipt overview list.
func (c *AppieClient) FetchReceipts(ctx context.Context, accessToken string) ([]models.Receipt, error) {
	var list []appieReceipt
	if err := getJSON(ctx, c.httpClient, c.baseURL, accessToken, nil, &list); err != nil {
		return nil, fmt.Errorf("fetch appie receipts: %w", err)
	}

	receipts := make([]models.Receipt, 0, len(list))
	for _, r := range list {
		receipts = append(receipts, models.Receipt{
			Store:           "appie",
			StoreProvidedID: r.TransactionID,
			Date:            r.TransactionMoment,
			TotalAmount:     int(math.Round(r.Total.Amount.Amount * 100)),
		})
	}
	return receipts, nil
}
