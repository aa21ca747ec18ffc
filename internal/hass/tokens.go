package hass

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

// KeyringService is the service name tokens are stored under
const KeyringService = "hass-onboard"

// ErrTokenNotFound is returned when no token is stored for a server
var ErrTokenNotFound = errors.New("no token stored for server")

// TokenStore persists tokens per server base URL
type TokenStore interface {
	Save(baseURL string, token *oauth2.Token) error
	Load(baseURL string) (*oauth2.Token, error)
	Delete(baseURL string) error
}

type keyringStore struct {
	service string
}

// NewKeyringStore stores tokens in the operating system keyring
func NewKeyringStore() TokenStore {
	return &keyringStore{service: KeyringService}
}

func (s *keyringStore) Save(baseURL string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := keyring.Set(s.service, baseURL, string(data)); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}
	return nil
}

func (s *keyringStore) Load(baseURL string) (*oauth2.Token, error) {
	data, err := keyring.Get(s.service, baseURL)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token from keyring: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, fmt.Errorf("failed to decode stored token: %w", err)
	}
	return &token, nil
}

func (s *keyringStore) Delete(baseURL string) error {
	err := keyring.Delete(s.service, baseURL)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrTokenNotFound
	}
	return err
}
