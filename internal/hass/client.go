// Package hass talks to a Home Assistant server: building the authorization request,
// exchanging the returned code for tokens, and probing a manually entered address.
package hass

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/stacklok/hass-onboard/internal/httpclient"
)

const (
	// DefaultClientID identifies the Home Assistant mobile app
	DefaultClientID = "https://home-assistant.io/iOS"

	// DefaultRedirectURI is the private-scheme callback registered for DefaultClientID
	DefaultRedirectURI = "homeassistant://auth-callback"

	authorizePath     = "/auth/authorize"
	tokenPath         = "/auth/token"
	discoveryInfoPath = "/api/discovery_info"
)

// Client is bound to one Home Assistant base URL
type Client struct {
	baseURL     *url.URL
	clientID    string
	redirectURI string
	timeout     time.Duration
	httpClient  *http.Client
	api         httpclient.Client
	oauth       *oauth2.Config
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithClientID sets the OAuth client_id
func WithClientID(id string) ClientOption {
	return func(c *Client) {
		if id != "" {
			c.clientID = id
		}
	}
}

// WithRedirectURI sets the OAuth redirect_uri
func WithRedirectURI(uri string) ClientOption {
	return func(c *Client) {
		if uri != "" {
			c.redirectURI = uri
		}
	}
}

// WithHTTPClient sets the client used for API and token requests
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the request timeout used when no HTTP client is given
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	base, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:     base,
		clientID:    DefaultClientID,
		redirectURI: DefaultRedirectURI,
		timeout:     httpclient.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	c.api = httpclient.NewClient(c.httpClient)

	c.oauth = &oauth2.Config{
		ClientID:    c.clientID,
		RedirectURL: c.redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.endpoint(authorizePath),
			TokenURL:  c.endpoint(tokenPath),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return c, nil
}

// BaseURL returns the normalized server URL
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.JoinPath(path).String()
}

// ParseBaseURL validates a server address and strips any path, query or trailing slash
func ParseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("server URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server URL %q has no host", raw)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}
