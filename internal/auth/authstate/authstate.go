// Package authstate wraps the oauth2 client's token state as an opaque
// serialized value. Everything else in the program stores and forwards these
// blobs without looking inside; expiry and refresh decisions belong to the
// oauth2 package.
package authstate

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
)

// State is one account's authorization state. A zero state is unauthorized.
type State struct {
	Token *oauth2.Token `json:"token,omitempty"`
	// IDToken is kept beside the token because oauth2.Token does not
	// serialize its extra fields.
	IDToken string `json:"id_token,omitempty"`
	// Session carries a non-OAuth session secret for platforms that
	// authenticate with a cookie instead of tokens.
	Session string `json:"session,omitempty"`
}

// New returns a fresh unauthorized state.
func New() *State {
	return &State{}
}

// Deserialize parses a stored blob. Callers decide how to recover from
// corrupt blobs; see the session cache.
func Deserialize(blob string) (*State, error) {
	if blob == "" {
		return nil, fmt.Errorf("empty auth state blob")
	}
	var s State
	if err := json.Unmarshal([]byte(blob), &s); err != nil {
		return nil, fmt.Errorf("deserialize auth state: %w", err)
	}
	return &s, nil
}

// Serialize renders the state for storage.
func (s *State) Serialize() string {
	b, err := json.Marshal(s)
	if err != nil {
		// State only holds marshalable fields; this cannot happen.
		return "{}"
	}
	return string(b)
}

// Clone returns an independent copy. The session cache hands out clones so
// callers can mutate their copy freely and commit it with a write-back.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	if s.Token != nil {
		tok := *s.Token
		c.Token = &tok
	}
	return &c
}

// IsAuthorized reports whether the state holds a usable session: either a
// token that can still be used or refreshed, or a live cookie session.
func (s *State) IsAuthorized() bool {
	if s == nil {
		return false
	}
	if s.Session != "" {
		return true
	}
	if s.Token == nil {
		return false
	}
	return s.Token.Valid() || s.Token.RefreshToken != ""
}

// Update records the outcome of a code exchange or refresh, capturing the id
// token extra before it is lost to serialization.
func (s *State) Update(tok *oauth2.Token) {
	s.Token = tok
	if tok == nil {
		return
	}
	if id, ok := tok.Extra("id_token").(string); ok && id != "" {
		s.IDToken = id
	}
}

// FreshToken asks the oauth2 client for a valid access token, refreshing over
// the network only when the client decides it must. It reports whether the
// state was mutated so callers can persist rotated tokens.
func (s *State) FreshToken(ctx context.Context, cfg *oauth2.Config) (accessToken, idToken string, changed bool, err error) {
	if s.Token == nil {
		return "", "", false, fmt.Errorf("no token to refresh")
	}
	tok, err := cfg.TokenSource(ctx, s.Token).Token()
	if err != nil {
		return "", "", false, err
	}
	changed = tok.AccessToken != s.Token.AccessToken || tok.RefreshToken != s.Token.RefreshToken
	if changed {
		s.Update(tok)
	}
	return tok.AccessToken, s.IDToken, changed, nil
}
