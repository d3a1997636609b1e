package handlers

import (
	"fmt"
	"html"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zaop.zip/paylink/internal/auth/flow"
	"zaop.zip/paylink/internal/platform"
)

// LoginHandler dispatches the browser-based login flow for a platform.
func LoginHandler(initiator *flow.Initiator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := platform.FromString(chi.URLParam(r, "platform"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		authURL, err := initiator.Begin(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "dispatched",
			"platform": string(p),
			"auth_url": authURL,
		})
	}
}

// CallbackHandler receives the provider redirect on the loopback listener and
// renders a small status page the user sees in their browser.
func CallbackHandler(router *flow.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res := router.HandleCallback(r.Context(), flow.Callback{
			State:            q.Get("state"),
			Code:             q.Get("code"),
			Error:            q.Get("error"),
			ErrorDescription: q.Get("error_description"),
		})

		title := "Login Failed"
		detail := res.Status
		if res.Phase == flow.PhaseAuthorized {
			title = "Login Successful"
			detail = fmt.Sprintf("Your %s account is now linked. You can close this tab.", res.Platform)
		} else if res.Dropped {
			title = "Login Ignored"
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>%s</title>
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, sans-serif; max-width: 600px; margin: 50px auto; padding: 20px; background: #1a1a2e; color: #eee; }
		h1 { color: #e94560; }
		p { line-height: 1.6; }
	</style>
</head>
<body>
	<h1>%s</h1>
	<p>%s</p>
</body>
</html>`, title, title, html.EscapeString(detail))
	}
}
