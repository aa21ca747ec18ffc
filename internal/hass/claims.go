package hass

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSummary is what can be read from an access token without the server's key
type TokenSummary struct {
	// Issuer is the id of the refresh token the access token was issued from
	Issuer    string    `json:"issuer"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SummarizeAccessToken decodes the claims of an access token. The signature is not
// verified; the summary is for display only.
func SummarizeAccessToken(raw string) (TokenSummary, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return TokenSummary{}, fmt.Errorf("failed to parse access token: %w", err)
	}

	var summary TokenSummary
	summary.Issuer, _ = claims.GetIssuer()
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		summary.IssuedAt = iat.UTC()
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		summary.ExpiresAt = exp.UTC()
	}
	return summary, nil
}
