package flow

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// jwtClaims is the subset of id-token claims identity discovery reads.
// Signature verification is the provider's problem; the token was just issued
// to us over TLS.
type jwtClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Exp   int64  `json:"exp"`
}

// parseJWTClaims decodes the claims section of a JWT without verifying the
// signature.
func parseJWTClaims(token string) (*jwtClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid JWT format: expected 3 parts, got %d", len(parts))
	}

	claimsData, err := base64URLDecode(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode JWT claims: %w", err)
	}

	var claims jwtClaims
	if err := json.Unmarshal(claimsData, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal JWT claims: %w", err)
	}
	return &claims, nil
}

// base64URLDecode re-adds the padding JWTs omit before decoding.
func base64URLDecode(data string) ([]byte, error) {
	switch len(data) % 4 {
	case 2:
		data += "=="
	case 3:
		data += "="
	}
	return base64.URLEncoding.DecodeString(data)
}
