package authstate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestNewStateIsUnauthorized(t *testing.T) {
	if New().IsAuthorized() {
		t.Error("New() state should not be authorized")
	}
	var nilState *State
	if nilState.IsAuthorized() {
		t.Error("nil state should not be authorized")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	s := New()
	s.Update(&oauth2.Token{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(time.Hour),
	})
	s.IDToken = "header.payload.sig"
	s.Session = "cookie=v"

	got, err := Deserialize(s.Serialize())
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if got.Token.AccessToken != "at-1" || got.Token.RefreshToken != "rt-1" {
		t.Errorf("round trip lost token fields: %+v", got.Token)
	}
	if got.IDToken != "header.payload.sig" {
		t.Errorf("round trip lost id token: %q", got.IDToken)
	}
	if got.Session != "cookie=v" {
		t.Errorf("round trip lost session: %q", got.Session)
	}
	if !got.IsAuthorized() {
		t.Error("round-tripped state should be authorized")
	}
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	if _, err := Deserialize(""); err == nil {
		t.Error("Deserialize(empty) should fail")
	}
	if _, err := Deserialize("not json"); err == nil {
		t.Error("Deserialize(garbage) should fail")
	}
}

func TestIsAuthorizedWithRefreshTokenOnly(t *testing.T) {
	s := New()
	s.Update(&oauth2.Token{
		AccessToken:  "expired",
		RefreshToken: "rt",
		Expiry:       time.Now().Add(-time.Hour),
	})
	if !s.IsAuthorized() {
		t.Error("state with a refresh token should stay authorized past expiry")
	}

	s2 := New()
	s2.Update(&oauth2.Token{AccessToken: "expired", Expiry: time.Now().Add(-time.Hour)})
	if s2.IsAuthorized() {
		t.Error("expired token without refresh token should not be authorized")
	}
}

func TestIsAuthorizedWithSessionOnly(t *testing.T) {
	s := New()
	s.Session = "wbw=abc"
	if !s.IsAuthorized() {
		t.Error("cookie session should count as authorized")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New()
	s.Update(&oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: time.Now().Add(time.Hour)})
	s.Session = "cookie=v"

	c := s.Clone()
	c.Session = "cookie=other"
	c.Token.AccessToken = "at-other"

	if s.Session != "cookie=v" {
		t.Errorf("clone mutation leaked into original Session: %q", s.Session)
	}
	if s.Token.AccessToken != "at" {
		t.Errorf("clone mutation leaked into original token: %q", s.Token.AccessToken)
	}

	var nilState *State
	if nilState.Clone() != nil {
		t.Error("Clone() of nil state should be nil")
	}
}

func TestUpdateCapturesIDTokenExtra(t *testing.T) {
	tok := (&oauth2.Token{AccessToken: "at"}).WithExtra(map[string]interface{}{"id_token": "a.b.c"})
	s := New()
	s.Update(tok)
	if s.IDToken != "a.b.c" {
		t.Errorf("Update() id token = %q, want %q", s.IDToken, "a.b.c")
	}

	// A refresh response without a new id token keeps the old one
	s.Update(&oauth2.Token{AccessToken: "at2"})
	if s.IDToken != "a.b.c" {
		t.Errorf("Update() dropped id token on tokenless refresh, got %q", s.IDToken)
	}
}

func TestFreshTokenRefreshesAndRotates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q", r.FormValue("grant_type"))
		}
		if r.FormValue("refresh_token") != "rt-old" {
			t.Errorf("refresh_token = %q", r.FormValue("refresh_token"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-new","token_type":"Bearer","refresh_token":"rt-new","expires_in":3600}`))
	}))
	defer srv.Close()

	s := New()
	s.Update(&oauth2.Token{
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
		Expiry:       time.Now().Add(-time.Minute),
	})

	cfg := &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams}}
	access, _, changed, err := s.FreshToken(context.Background(), cfg)
	if err != nil {
		t.Fatalf("FreshToken() error = %v", err)
	}
	if access != "at-new" {
		t.Errorf("access = %q, want at-new", access)
	}
	if !changed {
		t.Error("FreshToken() must report the rotation so callers persist it")
	}
	if s.Token.RefreshToken != "rt-new" {
		t.Errorf("state refresh token = %q, want rt-new", s.Token.RefreshToken)
	}
}

func TestFreshTokenWithValidTokenSkipsNetwork(t *testing.T) {
	s := New()
	s.Update(&oauth2.Token{
		AccessToken: "still-good",
		Expiry:      time.Now().Add(time.Hour),
	})

	// The endpoint is unreachable; a valid token must not trigger a refresh.
	cfg := &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: "http://127.0.0.1:1/token"}}
	access, _, changed, err := s.FreshToken(context.Background(), cfg)
	if err != nil {
		t.Fatalf("FreshToken() error = %v", err)
	}
	if access != "still-good" {
		t.Errorf("FreshToken() access = %q, want %q", access, "still-good")
	}
	if changed {
		t.Error("FreshToken() reported a change for an unexpired token")
	}
}
