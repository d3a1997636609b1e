package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"zaop.zip/paylink/internal/auth/session"
	"zaop.zip/paylink/internal/db/models"
	"zaop.zip/paylink/internal/platform"
	"zaop.zip/paylink/internal/receipts"
	"zaop.zip/paylink/internal/wbw"
)

// WbwLoginHandler signs in to WieBetaaltWat with email and password, stores
// the session cookie, and syncs the user's lists and members.
func WbwLoginHandler(client *wbw.Client, sessions *session.Registry, database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &creds); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if creds.Email == "" || creds.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		cookie, err := client.SignIn(r.Context(), creds.Email, creds.Password)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "sign in failed: "+err.Error())
			return
		}

		handle := sessions.Handle(platform.Wbw, models.PlaceholderAccountID)
		state := handle.Current()
		state.Session = cookie
		if _, err := handle.Replace(state); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		synced, err := syncWbwLists(r, client, cookie, database)
		if err != nil {
			// The session itself is stored, so report login success anyway.
			log.Printf("wbw list sync after login failed: %v", err)
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status":  "signed in",
				"warning": "list sync failed: " + err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "signed in",
			"lists":  synced,
		})
	}
}

// WbwSyncHandler re-syncs lists, members, and our member ids using the stored
// session cookie.
func WbwSyncHandler(client *wbw.Client, sessions *session.Registry, database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, ok := wbwSession(w, sessions)
		if !ok {
			return
		}
		synced, err := syncWbwLists(r, client, cookie, database)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "synced", "lists": synced})
	}
}

// WbwListsHandler returns the stored lists with their members.
func WbwListsHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var lists []models.WbwList
		if err := database.Order("name").Find(&lists).Error; err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		type listView struct {
			models.WbwList
			Members []models.WbwMember `json:"members"`
		}
		views := make([]listView, 0, len(lists))
		for _, l := range lists {
			var members []models.WbwMember
			if err := database.Where("list_id = ?", l.ID).Order("nickname").Find(&members).Error; err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			views = append(views, listView{WbwList: l, Members: members})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"lists": views})
	}
}

// WbwBalancesHandler proxies the live balances for the signed-in user.
func WbwBalancesHandler(client *wbw.Client, sessions *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, ok := wbwSession(w, sessions)
		if !ok {
			return
		}
		balances, err := client.GetBalances(r.Context(), cookie)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"balances": balances})
	}
}

// SubmitExpenseHandler posts a receipt selection to a WBW list as a new
// expense, split evenly over the chosen members.
func SubmitExpenseHandler(client *wbw.Client, sessions *session.Registry, repo *receipts.Repository, database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID := chi.URLParam(r, "listId")

		var req struct {
			Name        string   `json:"name"`
			ReceiptID   uint     `json:"receipt_id"`
			ItemIndexes []int    `json:"item_indexes"`
			MemberIDs   []string `json:"member_ids"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "expense name is required")
			return
		}

		cookie, ok := wbwSession(w, sessions)
		if !ok {
			return
		}

		var list models.WbwList
		if err := database.First(&list, "id = ?", listID).Error; err != nil {
			writeError(w, http.StatusNotFound, "unknown list; sync lists first")
			return
		}
		if list.OurMemberID == "" {
			writeError(w, http.StatusConflict, "our member id for this list is unknown; sync lists first")
			return
		}

		memberIDs := req.MemberIDs
		if len(memberIDs) == 0 {
			var members []models.WbwMember
			if err := database.Where("list_id = ?", list.ID).Find(&members).Error; err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			for _, m := range members {
				memberIDs = append(memberIDs, m.ID)
			}
		}
		if len(memberIDs) == 0 {
			writeError(w, http.StatusBadRequest, "no members to split the expense over")
			return
		}

		totalCents, err := repo.SelectionTotal(req.ReceiptID, req.ItemIndexes)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		expense := wbw.NewExpense(req.Name, list.OurMemberID, totalCents, memberIDs)
		result, err := client.AddExpense(r.Context(), cookie, list.ID, expense)
		if err != nil {
			writeError(w, http.StatusBadGateway, "expense submission failed: "+err.Error())
			return
		}

		log.Printf("submitted expense %q (%d cents) to wbw list %s", req.Name, totalCents, list.ID)
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "submitted", "expense": result})
	}
}

func wbwSession(w http.ResponseWriter, sessions *session.Registry) (string, bool) {
	state := sessions.Handle(platform.Wbw, models.PlaceholderAccountID).Current()
	if state.Session == "" {
		writeError(w, http.StatusUnauthorized, "not signed in to wiebetaaltwat")
		return "", false
	}
	return state.Session, true
}

func syncWbwLists(r *http.Request, client *wbw.Client, cookie string, database *gorm.DB) (int, error) {
	lists, err := client.GetLists(r.Context(), cookie)
	if err != nil {
		return 0, err
	}
	balances, err := client.GetBalances(r.Context(), cookie)
	if err != nil {
		return 0, err
	}

	ourMemberByList := map[string]string{}
	for _, b := range balances {
		ourMemberByList[b.List.ID] = b.Member.ID
	}

	for _, l := range lists {
		rec := models.WbwList{ID: l.ID, Name: l.Name, OurMemberID: ourMemberByList[l.ID]}
		err := database.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "our_member_id", "updated_at"}),
		}).Create(&rec).Error
		if err != nil {
			return 0, err
		}

		members, err := client.GetMembers(r.Context(), cookie, l.ID)
		if err != nil {
			return 0, err
		}
		for _, m := range members {
			mRec := models.WbwMember{ID: m.ID, ListID: l.ID, Nickname: m.Nickname}
			err := database.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"list_id", "nickname"}),
			}).Create(&mRec).Error
			if err != nil {
				return 0, err
			}
		}
	}
	return len(lists), nil
}
