package flow

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/skratchdot/open-golang/open"
	"golang.org/x/oauth2"

	"zaop.zip/paylink/internal/auth/authstate"
	"zaop.zip/paylink/internal/auth/session"
	"zaop.zip/paylink/internal/db/models"
	"zaop.zip/paylink/internal/platform"
)

// Initiator dispatches the browser-based authorization flow for a platform.
// Its only behavior is static configuration selection, persisting a fresh
// placeholder record, and launching the provider's hosted login page.
type Initiator struct {
	sessions    *session.Registry
	pending     *Tracker
	callbackURL string
	// launch opens the user's browser; swapped out in tests.
	launch func(url string) error
}

// NewInitiator builds an initiator that redirects providers back to
// callbackURL (the daemon's loopback callback endpoint).
func NewInitiator(sessions *session.Registry, pending *Tracker, callbackURL string) *Initiator {
	return &Initiator{
		sessions:    sessions,
		pending:     pending,
		callbackURL: callbackURL,
		launch:      open.Run,
	}
}

// Begin constructs the authorization request for a platform, registers the
// attempt, and opens the provider's login page. It returns the authorization
// URL so callers can present it if the browser launch fails.
func (i *Initiator) Begin(p platform.Platform) (string, error) {
	pcfg, ok := platform.Lookup(p)
	if !ok || pcfg.ClientID == "" {
		return "", fmt.Errorf("platform %s cannot be linked over oauth", p)
	}

	cfg, err := platform.OAuthConfig(p, i.callbackURL)
	if err != nil {
		return "", err
	}

	opts := platform.AuthCodeOptions(p)
	verifier := ""
	if pcfg.UsesPKCE {
		verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}

	// Persist a fresh unauthorized placeholder so a racing early callback
	// has somewhere to land.
	handle := i.sessions.Handle(p, models.PlaceholderAccountID)
	if _, err := handle.Replace(authstate.New()); err != nil {
		return "", fmt.Errorf("seed placeholder record: %w", err)
	}

	state := uuid.New().String()
	i.pending.Add(&Attempt{
		State:     state,
		Platform:  p,
		ClientID:  pcfg.ClientID,
		Config:    cfg,
		Verifier:  verifier,
		Phase:     PhaseDispatched,
		CreatedAt: time.Now(),
	})

	authURL := cfg.AuthCodeURL(state, opts...)
	log.Printf("dispatching %s authorization request", p)
	if err := i.launch(authURL); err != nil {
		log.Printf("could not open browser for %s login: %v", p, err)
	}
	return authURL, nil
}
