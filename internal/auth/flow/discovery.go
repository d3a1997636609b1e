package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"zaop.zip/paylink/internal/auth/authstate"
)

// Discoverer learns the platform's stable account identifier once tokens are
// in hand. Platforms whose authorization response carries no identity need
// one; the discovered id replaces the placeholder key.
type Discoverer interface {
	DiscoverAccountID(ctx context.Context, state *authstate.State) (int64, error)
}

// IDTokenDiscoverer reads the account id from the id token's subject claim.
type IDTokenDiscoverer struct{}

// DiscoverAccountID decodes the subject claim. Auth0-style subjects like
// "auth0|5d4…" are reduced to the part after the provider prefix.
func (IDTokenDiscoverer) DiscoverAccountID(_ context.Context, state *authstate.State) (int64, error) {
	if state.IDToken == "" {
		return 0, fmt.Errorf("no id token present")
	}
	claims, err := parseJWTClaims(state.IDToken)
	if err != nil {
		return 0, err
	}
	if claims.Sub == "" {
		return 0, fmt.Errorf("id token has no subject claim")
	}
	return accountIDFromSubject(claims.Sub), nil
}

// accountIDFromSubject maps a subject claim to a stable non-zero integer id.
// Numeric subjects are used directly; anything else is hashed.
func accountIDFromSubject(sub string) int64 {
	if i := strings.LastIndexByte(sub, '|'); i >= 0 {
		sub = sub[i+1:]
	}
	if n, err := strconv.ParseInt(sub, 10, 64); err == nil && n > 0 {
		return n
	}
	h := fnv.New64a()
	h.Write([]byte(sub))
	n := int64(h.Sum64() & (1<<63 - 1))
	if n == 0 {
		n = 1
	}
	return n
}

// ProfileDiscoverer issues one authenticated profile query that returns the
// member id.
type ProfileDiscoverer struct {
	URL    string
	Client *http.Client
}

// DiscoverAccountID fetches the profile and returns its member id.
func (d *ProfileDiscoverer) DiscoverAccountID(ctx context.Context, state *authstate.State) (int64, error) {
	if state.Token == nil {
		return 0, fmt.Errorf("no access token present")
	}

	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+state.Token.AccessToken)

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("profile query failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("profile query returned %s", resp.Status)
	}

	var profile struct {
		MemberID json.Number `json:"memberId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return 0, fmt.Errorf("decode profile response: %w", err)
	}
	id, err := profile.MemberID.Int64()
	if err != nil || id == 0 {
		return 0, fmt.Errorf("profile response has no usable member id (%q)", profile.MemberID.String())
	}
	return id, nil
}
