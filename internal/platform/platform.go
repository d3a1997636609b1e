// Package platform holds the closed set of linkable external services and
// their static authorization configuration.
package platform

import (
	"fmt"

	"golang.org/x/oauth2"
)

// Platform identifies one of the fixed external services accounts can be
// linked to.
type Platform string

const (
	Lidl  Platform = "lidl"
	Appie Platform = "appie"
	Jumbo Platform = "jumbo"
	Wbw   Platform = "wbw"
)

// DiscoveryMode says how the stable account identifier for a platform becomes
// known after code exchange.
type DiscoveryMode int

const (
	// DiscoverNone means the platform has no usable account identifier;
	// records stay filed under the placeholder id.
	DiscoverNone DiscoveryMode = iota
	// DiscoverIDToken means the subject claim of the id token carries the
	// account identifier.
	DiscoverIDToken
	// DiscoverProfile means a follow-up authenticated profile call returns
	// the account identifier.
	DiscoverProfile
)

// Config is the static per-platform authorization configuration. The values
// are the ones the official mobile apps use; they are not secrets.
type Config struct {
	ClientID  string
	Scopes    []string
	AuthURL   string
	TokenURL  string
	UsesPKCE  bool
	Discovery DiscoveryMode
	// Extra authorization request parameters the provider insists on.
	Extra map[string]string
}

var configs = map[Platform]Config{
	Lidl: {
		ClientID: "LidlPlusNativeClient",
		Scopes:   []string{"openid", "profile", "offline_access", "lpprofile", "lpapis"},
		AuthURL:  "https://accounts.lidl.com/connect/authorize",
		TokenURL: "https://accounts.lidl.com/connect/token",
		UsesPKCE: true,
		Extra: map[string]string{
			"Country":  "NL",
			"language": "NL-NL",
		},
	},
	Appie: {
		ClientID:  "appie",
		Scopes:    nil,
		AuthURL:   "https://login.ah.nl/secure/oauth/authorize",
		TokenURL:  "https://api.ah.nl/mobile-auth/v1/auth/token",
		Discovery: DiscoverProfile,
	},
	Jumbo: {
		ClientID:  "ZVa0cW0LadbDHINgrBLuEAp5amVBKQh1",
		Scopes:    []string{"openid", "offline_access"},
		AuthURL:   "https://auth.jumbo.com/authorize",
		TokenURL:  "https://auth.jumbo.com/oauth/token",
		Discovery: DiscoverIDToken,
		Extra: map[string]string{
			"audience":               "https://jumbo.com/loyalty",
			"ext-login_uri":          "https://loyalty-app.jumbo.com/user/account",
			"ext-password_reset_uri": "https://loyalty-app.jumbo.com/user/forgot-password",
			"ext-register_uri":       "https://loyalty-app.jumbo.com/user/signup/email",
			"auth0Client":            "eyJuYW1lIjoiYXV0aDAtc3BhLWpzIiwidmVyc2lvbiI6IjIuMC4zIn0=",
			"prompt":                 "login",
			"response_mode":          "query",
		},
	},
	// Wbw is not an OAuth platform; it authenticates with a session cookie.
	// It is listed so the credential store can file its session under the
	// same key space.
	Wbw: {},
}

// OAuthPlatforms are the platforms linked through the browser authorization
// flow, in display order.
var OAuthPlatforms = []Platform{Lidl, Appie, Jumbo}

// Lookup returns the static configuration for a platform.
func Lookup(p Platform) (Config, bool) {
	cfg, ok := configs[p]
	return cfg, ok
}

// FromString parses a platform tag, e.g. from a URL parameter.
func FromString(s string) (Platform, error) {
	switch Platform(s) {
	case Lidl, Appie, Jumbo, Wbw:
		return Platform(s), nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// ClassifyClientID maps an authorization request's client id back to its
// platform. Unrecognized client ids are a routing error for that callback.
func ClassifyClientID(clientID string) (Platform, bool) {
	for p, cfg := range configs {
		if cfg.ClientID != "" && cfg.ClientID == clientID {
			return p, true
		}
	}
	return "", false
}

// OAuthConfig builds the oauth2 client configuration for a platform with the
// given redirect URL. The daemon receives the redirect on its loopback
// callback endpoint.
func OAuthConfig(p Platform, redirectURL string) (*oauth2.Config, error) {
	cfg, ok := configs[p]
	if !ok || cfg.ClientID == "" {
		return nil, fmt.Errorf("platform %s has no oauth configuration", p)
	}
	return &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: redirectURL,
		Scopes:      cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		},
	}, nil
}

// AuthCodeOptions returns the provider-specific extra authorization request
// parameters as oauth2 options.
func AuthCodeOptions(p Platform) []oauth2.AuthCodeOption {
	cfg := configs[p]
	opts := make([]oauth2.AuthCodeOption, 0, len(cfg.Extra))
	for k, v := range cfg.Extra {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return opts
}
