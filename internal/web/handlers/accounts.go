package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"zaop.zip/paylink/internal/auth/authstate"
	"zaop.zip/paylink/internal/auth/session"
	"zaop.zip/paylink/internal/auth/store"
	"zaop.zip/paylink/internal/auth/token"
	"zaop.zip/paylink/internal/platform"
)

type accountView struct {
	Platform   string    `json:"platform"`
	AccountID  int64     `json:"account_id"`
	Authorized bool      `json:"authorized"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AccountsHandler lists every stored authorization record.
func AccountsHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := st.ListAll()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		accounts := make([]accountView, 0, len(recs))
		for _, rec := range recs {
			authorized := false
			if s, err := authstate.Deserialize(rec.State); err == nil {
				authorized = s.IsAuthorized()
			}
			accounts = append(accounts, accountView{
				Platform:   rec.Platform,
				AccountID:  rec.AccountID,
				Authorized: authorized,
				UpdatedAt:  rec.UpdatedAt,
			})
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
	}
}

// UnlinkHandler removes a linked account and its stored tokens.
func UnlinkHandler(sessions *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, accountID, ok := accountParams(w, r)
		if !ok {
			return
		}
		if err := sessions.Handle(p, accountID).Delete(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "unlinked"})
	}
}

// AccountRefreshHandler forces a token refresh check for one account.
func AccountRefreshHandler(gate *token.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, accountID, ok := accountParams(w, r)
		if !ok {
			return
		}
		gate.WithFreshToken(r.Context(), p, accountID, func(accessToken, idToken string, err error) {
			if err != nil {
				writeError(w, http.StatusBadGateway, "could not refresh: "+err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
		})
	}
}

func accountParams(w http.ResponseWriter, r *http.Request) (platform.Platform, int64, bool) {
	p, err := platform.FromString(chi.URLParam(r, "platform"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", 0, false
	}
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return "", 0, false
	}
	return p, accountID, true
}
