// Package token mediates access-token refresh for linked accounts.
package token

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"zaop.zip/paylink/internal/auth/session"
	"zaop.zip/paylink/internal/platform"
)

// Action receives the outcome of a refresh attempt. On failure err is set and
// both tokens are empty; callers map that to a "could not refresh" status.
// The gate never retries on its own.
type Action func(accessToken, idToken string, err error)

// Gate wraps the oauth2 client's refresh primitive and serializes concurrent
// refreshes per (platform, account) key. The oauth2 client decides whether a
// network round-trip is needed; the gate only makes sure rotated tokens are
// written back through the session cache.
type Gate struct {
	sessions *session.Registry
	// oauthConfig resolves the oauth2 client config for a platform. Tests
	// point it at a local token server.
	oauthConfig func(p platform.Platform) (*oauth2.Config, error)
	group       singleflight.Group
}

// NewGate builds a gate over the session registry.
func NewGate(sessions *session.Registry) *Gate {
	return &Gate{
		sessions: sessions,
		oauthConfig: func(p platform.Platform) (*oauth2.Config, error) {
			return platform.OAuthConfig(p, "")
		},
	}
}

// WithFreshToken obtains a valid access token for the key and hands it to
// action. Concurrent callers for the same key share one refresh.
func (g *Gate) WithFreshToken(ctx context.Context, p platform.Platform, accountID int64, action Action) {
	type outcome struct {
		access string
		id     string
		err    error
	}

	key := fmt.Sprintf("%s/%d", p, accountID)
	v, _, _ := g.group.Do(key, func() (interface{}, error) {
		handle := g.sessions.Handle(p, accountID)
		state := handle.Current()
		if !state.IsAuthorized() {
			return outcome{err: fmt.Errorf("no authorization for %s/%d", p, accountID)}, nil
		}

		cfg, err := g.oauthConfig(p)
		if err != nil {
			return outcome{err: err}, nil
		}

		access, id, _, err := state.FreshToken(ctx, cfg)
		if err != nil {
			if isPermanentRefreshError(err) {
				log.Printf("refresh token for %s/%d looks revoked: %v", p, accountID, err)
			} else {
				log.Printf("transient refresh failure for %s/%d: %v", p, accountID, err)
			}
			return outcome{err: err}, nil
		}

		// Write back after every attempt so rotated refresh tokens are
		// durably persisted.
		if _, err := handle.Replace(state); err != nil {
			return outcome{err: fmt.Errorf("persist refreshed state: %w", err)}, nil
		}
		return outcome{access: access, id: id}, nil
	})

	res := v.(outcome)
	action(res.access, res.id, res.err)
}

// isPermanentRefreshError distinguishes revocation-class failures from
// transient ones for logging. Records are not deleted either way; the user
// re-triggers or re-links.
func isPermanentRefreshError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	permanentMarkers := []string{
		"invalid_grant",
		"invalid_client",
		"unauthorized_client",
		"token has been expired or revoked",
		"revoked",
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
