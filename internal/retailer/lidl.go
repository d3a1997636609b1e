package retailer

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"zaop.zip/paylink/internal/db/models"
)

const lidlTicketsURL = "https://tickets.lidlplus.com/api/v2/NL/tickets"

// lidlHeaders mimic the Lidl Plus app; the API rejects unknown clients.
var lidlHeaders = map[string]string{
	"App-Version":      "999.99.9",
	"Operating-System": "iOS",
	"App":              "com.lidl.eci.lidlplus",
	"Accept-Language":  "NL",
}

// LidlClient pulls ticket overviews from the Lidl Plus API.
type LidlClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewLidlClient builds a Lidl client against the production API.
func NewLidlClient() *LidlClient {
	return &LidlClient{httpClient: newHTTPClient(), baseURL: lidlTicketsURL}
}

type lidlTicketList struct {
	Page       int          `json:"page"`
	Size       int          `json:"size"`
	TotalCount int          `json:"totalCount"`
	Tickets    []lidlTicket `json:"tickets"`
}

type lidlTicket struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	TotalAmount float64 `json:"totalAmount"`
}

// FetchReceipts pulls the first page of tickets. Itemization lives in an HTML
// blob on the detail endpoint and is not scraped here.
func (c *LidlClient) FetchReceipts(ctx context.Context, accessToken string) ([]models.Receipt, error) {
	var list lidlTicketList
	url := fmt.Sprintf("%s?pageNumber=1", c.baseURL)
	if err := getJSON(ctx, c.httpClient, url, accessToken, lidlHeaders, &list); err != nil {
		return nil, fmt.Errorf("fetch lidl tickets: %w", err)
	}

	receipts := make([]models.Receipt, 0, len(list.Tickets))
	for _, t := range list.Tickets {
		receipts = append(receipts, models.Receipt{
			Store:           "lidl",
			StoreProvidedID: t.ID,
			Date:            t.Date,
			TotalAmount:     int(math.Round(t.TotalAmount * 100)),
		})
	}
	return receipts, nil
}
