package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"zaop.zip/paylink/internal/auth/store"
	"zaop.zip/paylink/internal/auth/token"
	"zaop.zip/paylink/internal/db/models"
	"zaop.zip/paylink/internal/platform"
	"zaop.zip/paylink/internal/receipts"
	"zaop.zip/paylink/internal/retailer"
	"zaop.zip/paylink/internal/util"
)

type receiptView struct {
	ID          uint   `json:"id"`
	Store       string `json:"store"`
	Date        string `json:"date"`
	TotalAmount int    `json:"total_amount"`
	Total       string `json:"total"`
	ItemCount   int    `json:"item_count"`
}

// ReceiptsHandler lists all stored receipts, newest first.
func ReceiptsHandler(repo *receipts.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := repo.List()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		views := make([]receiptView, 0, len(recs))
		for _, rec := range recs {
			views = append(views, receiptView{
				ID:          rec.ID,
				Store:       rec.Store,
				Date:        rec.Date,
				TotalAmount: rec.TotalAmount,
				Total:       util.CentsToString(rec.TotalAmount, ",", true),
				ItemCount:   len(rec.Items),
			})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"receipts": views})
	}
}

// ReceiptHandler returns one receipt with its line items.
func ReceiptHandler(repo *receipts.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid receipt id")
			return
		}
		rec, err := repo.Get(uint(id))
		if err != nil {
			writeError(w, http.StatusNotFound, "receipt not found")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// SyncReceiptsHandler pulls receipts from every linked retailer account and
// upserts them into the local store.
func SyncReceiptsHandler(gate *token.Gate, st *store.Store, repo *receipts.Repository, clients map[platform.Platform]retailer.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := st.ListAll()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		results := map[string]string{}
		for _, rec := range recs {
			p := platform.Platform(rec.Platform)
			client, ok := clients[p]
			if !ok {
				continue
			}
			accountID := rec.AccountID

			gate.WithFreshToken(r.Context(), p, accountID, func(accessToken, idToken string, err error) {
				if err != nil {
					results[rec.Platform] = "could not refresh: " + err.Error()
					return
				}
				fetched, err := client.FetchReceipts(r.Context(), accessToken)
				if err != nil {
					log.Printf("receipt sync for %s/%d failed: %v", p, accountID, err)
					results[rec.Platform] = "fetch failed: " + err.Error()
					return
				}
				if err := repo.Upsert(fetched); err != nil {
					results[rec.Platform] = "store failed: " + err.Error()
					return
				}
				results[rec.Platform] = "synced " + strconv.Itoa(len(fetched)) + " receipts"
			})
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
	}
}

// ReceiptItemsHandler replaces the detailed line items of a receipt. Retailers
// whose overview API omits line details get them filled in from a follow-up
// fetch by the client application.
func ReceiptItemsHandler(repo *receipts.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid receipt id")
			return
		}

		var payload struct {
			Items []models.ReceiptItem `json:"items"`
		}
		if err := decodeBody(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := repo.ReplaceItems(uint(id), payload.Items); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
