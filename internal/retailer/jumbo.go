package retailer

import (
	"context"
	"fmt"
	"net/http"

	"zaop.zip/paylink/internal/db/models"
)

const jumboReceiptsURL = "https://loyalty-app.jumbo.com/api/receipt/customer/overviews"

// JumboClient pulls receipt overviews from the Jumbo loyalty API.
type JumboClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewJumboClient builds a Jumbo client against the production API.
func NewJumboClient() *JumboClient {
	return &JumboClient{httpClient: newHTTPClient(), baseURL: jumboReceiptsURL}
}

type jumboReceipt struct {
	TransactionID string `json:"transactionId"`
	PurchaseEndOn string `json:"purchaseEndOn"`
}

// FetchReceipts pulls the receipt overview list. The overview endpoint does
// not report totals; those stay zero until a detail fetch.
func (c *JumboClient) FetchReceipts(ctx context.Context, accessToken string) ([]models.Receipt, error) {
	var list []jumboReceipt
	if err := getJSON(ctx, c.httpClient, c.baseURL, accessToken, map[string]string{"Accept": "*/*"}, &list); err != nil {
		return nil, fmt.Errorf("fetch jumbo receipts: %w", err)
	}

	receipts := make([]models.Receipt, 0, len(list))
	for _, r := range list {
		receipts = append(receipts, models.Receipt{
			Store:           "jumbo",
			StoreProvidedID: r.TransactionID,
			Date:            r.PurchaseEndOn,
		})
	}
	return receipts, nil
}
