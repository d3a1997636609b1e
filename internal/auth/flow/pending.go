// Package flow drives the browser-based authorization flow: building and
// dispatching per-platform authorization requests, and routing the redirect
// callback back to the right login attempt.
package flow

import (
	"sync"
	"time"

	"golang.org/x/oauth2"

	"zaop.zip/paylink/internal/platform"
)

// Phase is where a login attempt is in its lifecycle.
type Phase int

const (
	PhaseDispatched Phase = iota
	PhaseAwaitingCallback
	PhaseCodeReceived
	PhaseTokenExchanged
	PhaseAuthorized
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseDispatched:
		return "dispatched"
	case PhaseAwaitingCallback:
		return "awaiting-callback"
	case PhaseCodeReceived:
		return "code-received"
	case PhaseTokenExchanged:
		return "token-exchanged"
	case PhaseAuthorized:
		return "authorized"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Attempt is one in-flight login, keyed by the state token echoed back by the
// provider on redirect. The oauth2 config is captured at dispatch time so the
// callback can run the code exchange against the same endpoints.
type Attempt struct {
	State     string
	Platform  platform.Platform
	ClientID  string
	Config    *oauth2.Config
	Verifier  string // PKCE code verifier, empty when the platform does not use PKCE
	Phase     Phase
	CreatedAt time.Time
}

// attemptTTL bounds how long a dispatched attempt waits for its callback.
const attemptTTL = 5 * time.Minute

// Tracker holds in-flight attempts until their callback arrives or they
// expire.
type Tracker struct {
	mu       sync.Mutex
	attempts map[string]*Attempt
}

// NewTracker builds an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{attempts: make(map[string]*Attempt)}
}

// Add registers a dispatched attempt under its state token.
func (t *Tracker) Add(a *Attempt) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked(time.Now())
	t.attempts[a.State] = a
}

// Take removes and returns the attempt for a state token, if any non-expired
// one exists.
func (t *Tracker) Take(state string) (*Attempt, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.sweepLocked(now)
	a, ok := t.attempts[state]
	if !ok {
		return nil, false
	}
	delete(t.attempts, state)
	return a, true
}

func (t *Tracker) sweepLocked(now time.Time) {
	for state, a := range t.attempts {
		if now.Sub(a.CreatedAt) > attemptTTL {
			delete(t.attempts, state)
		}
	}
}

// consumedTTL is the maximum plausible delay for a duplicate callback
// delivery; consumed state tokens older than this are forgotten.
const consumedTTL = 10 * time.Minute

// maxConsumed caps the consumed set so a long-lived process cannot grow it
// without bound.
const maxConsumed = 1024

// consumedSet remembers which state tokens already completed code exchange,
// so a duplicate delivery of the same redirect is discarded idempotently.
type consumedSet struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newConsumedSet() *consumedSet {
	return &consumedSet{entries: make(map[string]time.Time)}
}

// Consume marks a state token as used. It returns false if the token was
// already consumed.
func (c *consumedSet) Consume(state string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for tok, at := range c.entries {
		if now.Sub(at) > consumedTTL {
			delete(c.entries, tok)
		}
	}
	if _, seen := c.entries[state]; seen {
		return false
	}
	if len(c.entries) >= maxConsumed {
		// Evict the oldest entry; dropping dedup for a stale token is
		// harmless because its attempt has long expired.
		var oldest string
		var oldestAt time.Time
		for tok, at := range c.entries {
			if oldest == "" || at.Before(oldestAt) {
				oldest, oldestAt = tok, at
			}
		}
		delete(c.entries, oldest)
	}
	c.entries[state] = now
	return true
}
