package flow

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/oauth2"

	"zaop.zip/paylink/internal/auth/session"
	"zaop.zip/paylink/internal/db/models"
	"zaop.zip/paylink/internal/platform"
)

// appieMemberURL is the profile endpoint whose response carries the Albert
// Heijn member id; the authorization response itself does not reveal it.
const appieMemberURL = "https://api.ah.nl/mobile-services/member/v1/member"

// Callback is the payload the provider redirects back to us.
type Callback struct {
	State            string
	Code             string
	Error            string
	ErrorDescription string
}

// Result is the terminal outcome of routing one callback, surfaced to the
// user as a status string.
type Result struct {
	Platform  platform.Platform
	AccountID int64
	Phase     Phase
	Status    string
	// Dropped marks callbacks that matched no live attempt (duplicates,
	// unknown state tokens, unrecognized client ids).
	Dropped bool
}

// Router matches redirect callbacks to their in-flight login attempt,
// exchanges the authorization code for tokens, and files the resulting
// session under the account's final identity.
type Router struct {
	sessions    *session.Registry
	pending     *Tracker
	consumed    *consumedSet
	discoverers map[platform.Platform]Discoverer
}

// NewRouter wires a router over the session registry and attempt tracker.
func NewRouter(sessions *session.Registry, pending *Tracker) *Router {
	return &Router{
		sessions: sessions,
		pending:  pending,
		consumed: newConsumedSet(),
		discoverers: map[platform.Platform]Discoverer{
			platform.Jumbo: IDTokenDiscoverer{},
			platform.Appie: &ProfileDiscoverer{URL: appieMemberURL},
		},
	}
}

// HandleCallback runs one callback through the attempt state machine. At most
// one delivery per state token reaches token exchange; later deliveries are
// discarded idempotently.
func (r *Router) HandleCallback(ctx context.Context, cb Callback) Result {
	if !r.consumed.Consume(cb.State) {
		log.Printf("dropping duplicate callback delivery for state %s", cb.State)
		return Result{Dropped: true, Status: "callback already processed"}
	}

	att, ok := r.pending.Take(cb.State)
	if !ok {
		log.Printf("dropping callback with unknown state token %s", cb.State)
		return Result{Dropped: true, Status: "no login attempt matches this callback"}
	}

	p, ok := platform.ClassifyClientID(att.ClientID)
	if !ok {
		log.Printf("dropping callback with unrecognized client id %q", att.ClientID)
		return Result{Dropped: true, Status: "unrecognized client id"}
	}
	att.Phase = PhaseAwaitingCallback

	placeholder := r.sessions.Handle(p, models.PlaceholderAccountID)

	switch {
	case cb.Error != "":
		att.Phase = PhaseFailed
		r.discardPlaceholder(placeholder)
		msg := cb.Error
		if cb.ErrorDescription != "" {
			msg += ": " + cb.ErrorDescription
		}
		return Result{Platform: p, Phase: PhaseFailed, Status: "authorization flow failed: " + msg}
	case cb.Code == "":
		att.Phase = PhaseFailed
		r.discardPlaceholder(placeholder)
		return Result{Platform: p, Phase: PhaseFailed, Status: "no authorization state retained - reauthorization required"}
	}
	att.Phase = PhaseCodeReceived

	var opts []oauth2.AuthCodeOption
	if att.Verifier != "" {
		opts = append(opts, oauth2.VerifierOption(att.Verifier))
	}
	tok, err := att.Config.Exchange(ctx, cb.Code, opts...)
	att.Phase = PhaseTokenExchanged
	if err != nil {
		att.Phase = PhaseFailed
		r.discardPlaceholder(placeholder)
		return Result{Platform: p, Phase: PhaseFailed, Status: fmt.Sprintf("authorization code exchange failed: %v", err)}
	}

	// Persist immediately under the placeholder key so a crash between
	// here and identity discovery does not lose a successful login.
	state := placeholder.Current()
	state.Update(tok)
	if _, err := placeholder.Replace(state); err != nil {
		att.Phase = PhaseFailed
		return Result{Platform: p, Phase: PhaseFailed, Status: fmt.Sprintf("could not persist session: %v", err)}
	}
	if !state.IsAuthorized() {
		att.Phase = PhaseFailed
		r.discardPlaceholder(placeholder)
		return Result{Platform: p, Phase: PhaseFailed, Status: "authorization code exchange did not yield a usable session"}
	}

	disc := r.discoverers[p]
	pcfg, _ := platform.Lookup(p)
	if pcfg.Discovery == platform.DiscoverNone || disc == nil {
		att.Phase = PhaseAuthorized
		log.Printf("linked %s account (no identity discovery for this platform)", p)
		return Result{Platform: p, AccountID: models.PlaceholderAccountID, Phase: PhaseAuthorized, Status: "authorized"}
	}

	accountID, err := disc.DiscoverAccountID(ctx, state)
	if err != nil {
		// Tokens were valid, but without a usable key the session cannot
		// be filed; the user has to restart the login.
		att.Phase = PhaseFailed
		r.discardPlaceholder(placeholder)
		return Result{Platform: p, Phase: PhaseFailed, Status: fmt.Sprintf("identity discovery failed: %v", err)}
	}

	// Relocate: file under the discovered id, then drop the placeholder.
	final := r.sessions.Handle(p, accountID)
	if _, err := final.Replace(state); err != nil {
		att.Phase = PhaseFailed
		r.discardPlaceholder(placeholder)
		return Result{Platform: p, Phase: PhaseFailed, Status: fmt.Sprintf("could not persist session: %v", err)}
	}
	r.discardPlaceholder(placeholder)

	att.Phase = PhaseAuthorized
	log.Printf("linked %s account %d", p, accountID)
	return Result{Platform: p, AccountID: accountID, Phase: PhaseAuthorized, Status: "authorized"}
}

func (r *Router) discardPlaceholder(h *session.Handle) {
	if err := h.Delete(); err != nil {
		log.Printf("could not discard placeholder record for %s: %v", h.Key().Platform, err)
	}
}
