package hass

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var (
	// ErrStateMismatch is returned when the callback state differs from the request
	ErrStateMismatch = errors.New("authorization callback state mismatch")

	// ErrMissingCode is returned when the callback carries no authorization code
	ErrMissingCode = errors.New("authorization callback has no code")
)

// AuthorizationRequest is an authorize URL and the state it was issued with
type AuthorizationRequest struct {
	URL   *url.URL
	State string
}

// NewAuthorizationRequest builds the authorize URL with a fresh random state
func (c *Client) NewAuthorizationRequest() (AuthorizationRequest, error) {
	state := uuid.NewString()
	u, err := url.Parse(c.oauth.AuthCodeURL(state))
	if err != nil {
		return AuthorizationRequest{}, fmt.Errorf("failed to build authorize URL: %w", err)
	}
	return AuthorizationRequest{URL: u, State: state}, nil
}

// ParseCallback extracts the authorization code from a captured redirect
func ParseCallback(callback *url.URL, expectedState string) (string, error) {
	if callback == nil {
		return "", ErrMissingCode
	}
	query := callback.Query()

	if errCode := query.Get("error"); errCode != "" {
		if desc := query.Get("error_description"); desc != "" {
			return "", fmt.Errorf("authorization denied: %s: %s", errCode, desc)
		}
		return "", fmt.Errorf("authorization denied: %s", errCode)
	}
	if expectedState != "" && query.Get("state") != expectedState {
		return "", ErrStateMismatch
	}

	code := query.Get("code")
	if code == "" {
		return "", ErrMissingCode
	}
	return code, nil
}

// Exchange trades an authorization code for access and refresh tokens
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

// Refresh returns a valid token, refreshing token if it expired
func (c *Client) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	refreshed, err := c.oauth.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return refreshed, nil
}
