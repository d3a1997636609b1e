package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"zaop.zip/paylink/internal/db/models"
	"zaop.zip/paylink/internal/platform"
	"zaop.zip/paylink/internal/receipts"
	"zaop.zip/paylink/internal/wbw"
)

func TestSubmitExpenseHandler(t *testing.T) {
	database, _, sessions := newTestEnv(t)

	// Signed-in WBW session
	handle := sessions.Handle(platform.Wbw, models.PlaceholderAccountID)
	state := handle.Current()
	state.Session = "_session_id=abc"
	if _, err := handle.Replace(state); err != nil {
		t.Fatal(err)
	}

	// Synced list with a known member set
	database.Create(&models.WbwList{ID: "l-1", Name: "Huis", OurMemberID: "m-me"})
	database.Create(&models.WbwMember{ID: "m-me", ListID: "l-1", Nickname: "Me"})
	database.Create(&models.WbwMember{ID: "m-other", ListID: "l-1", Nickname: "Other"})

	// A receipt with items to select from
	repo := receipts.NewRepository(database)
	repo.Upsert([]models.Receipt{{Store: "lidl", StoreProvidedID: "r-1", TotalAmount: 701}})
	recs, _ := repo.List()
	repo.ReplaceItems(recs[0].ID, []models.ReceiptItem{
		{IndexInsideReceipt: 0, Description: "Kaas", TotalPrice: 450},
		{IndexInsideReceipt: 1, Description: "Wijn", TotalPrice: 251},
	})

	var posted struct {
		Expense wbw.Expense `json:"expense"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lists/l-1/expenses" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Cookie") != "_session_id=abc" {
			t.Errorf("cookie = %q", r.Header.Get("Cookie"))
		}
		json.NewDecoder(r.Body).Decode(&posted)
		w.Write([]byte(`{"expense":{"id":"e-9","name":"Kaas en wijn","status":"active","amount":{"currency":"EUR","fractional":701}}}`))
	}))
	defer srv.Close()

	r := chi.NewRouter()
	r.Post("/api/wbw/lists/{listId}/expenses", SubmitExpenseHandler(wbw.NewClientWithBaseURL(srv.URL), sessions, repo, database))

	body := strings.NewReader(fmt.Sprintf(`{"name":"Kaas en wijn","receipt_id":%d,"item_indexes":[0,1]}`, recs[0].ID))
	req := httptest.NewRequest("POST", "/api/wbw/lists/l-1/expenses", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if posted.Expense.PayedByID != "m-me" {
		t.Errorf("payed_by_id = %q", posted.Expense.PayedByID)
	}
	if posted.Expense.Amount.Fractional != 701 {
		t.Errorf("amount = %d, want 701 (sum of selected items)", posted.Expense.Amount.Fractional)
	}
	// Split over both members since none were named
	if len(posted.Expense.SharesAttribute) != 2 {
		t.Errorf("shares = %d, want 2", len(posted.Expense.SharesAttribute))
	}
}

func TestSubmitExpenseHandlerRequiresSession(t *testing.T) {
	database, _, sessions := newTestEnv(t)
	repo := receipts.NewRepository(database)

	r := chi.NewRouter()
	r.Post("/api/wbw/lists/{listId}/expenses", SubmitExpenseHandler(wbw.NewClient(), sessions, repo, database))

	req := httptest.NewRequest("POST", "/api/wbw/lists/l-1/expenses", strings.NewReader(`{"name":"x"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
