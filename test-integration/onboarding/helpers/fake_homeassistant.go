package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"
)

// FakeHomeAssistantBuilder provides a fluent interface for building fake Home Assistant servers
type FakeHomeAssistantBuilder struct {
	locationName string
	version      string
	redirectCode string
	username     string
	password     string
	flowCode     string
}

// NewFakeHomeAssistantBuilder creates a builder for a server named "Home"
func NewFakeHomeAssistantBuilder() *FakeHomeAssistantBuilder {
	return &FakeHomeAssistantBuilder{locationName: "Home", version: "2024.10.1"}
}

// WithLocation sets the name and version reported by /api/discovery_info
func (b *FakeHomeAssistantBuilder) WithLocation(name, version string) *FakeHomeAssistantBuilder {
	b.locationName = name
	b.version = version
	return b
}

// WithRedirectApproval makes /auth/authorize redirect straight to the callback with code,
// as a server behind an authenticating reverse proxy does
func (b *FakeHomeAssistantBuilder) WithRedirectApproval(code string) *FakeHomeAssistantBuilder {
	b.redirectCode = code
	return b
}

// WithLoginFlow serves the login page and a login flow that accepts username and password
// and completes with code
func (b *FakeHomeAssistantBuilder) WithLoginFlow(username, password, code string) *FakeHomeAssistantBuilder {
	b.username = username
	b.password = password
	b.flowCode = code
	return b
}

// FakeHomeAssistant is a running fake server
type FakeHomeAssistant struct {
	*httptest.Server

	mu        sync.Mutex
	exchanged []string
	codes     map[string]bool
}

// Exchanged returns the authorization codes traded for tokens so far
func (f *FakeHomeAssistant) Exchanged() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.exchanged...)
}

// Build starts the server. The caller must Close it.
func (b *FakeHomeAssistantBuilder) Build() *FakeHomeAssistant {
	fake := &FakeHomeAssistant{codes: map[string]bool{}}
	if b.redirectCode != "" {
		fake.codes[b.redirectCode] = true
	}
	if b.flowCode != "" {
		fake.codes[b.flowCode] = true
	}

	r := chi.NewRouter()

	r.Get("/api/discovery_info", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"location_name":         b.locationName,
			"base_url":              fake.URL,
			"version":               b.version,
			"requires_api_password": false,
		})
	})

	r.Get("/auth/authorize", func(w http.ResponseWriter, r *http.Request) {
		if b.redirectCode == "" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<html><body><ha-authorize></ha-authorize></body></html>`))
			return
		}
		q := r.URL.Query()
		redirect, err := url.Parse(q.Get("redirect_uri"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		redirect.RawQuery = url.Values{"code": {b.redirectCode}, "state": {q.Get("state")}}.Encode()
		http.Redirect(w, r, redirect.String(), http.StatusFound)
	})

	r.Post("/auth/login_flow/{flowID}", func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
			return
		}
		if b.flowCode == "" || creds.Username != b.username || creds.Password != b.password {
			writeJSON(w, http.StatusOK, map[string]any{
				"type":    "form",
				"flow_id": chi.URLParam(r, "flowID"),
				"errors":  map[string]string{"base": "invalid_auth"},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"type":    "create_entry",
			"flow_id": chi.URLParam(r, "flowID"),
			"result":  b.flowCode,
		})
	})

	r.Post("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request"})
			return
		}
		code := r.PostForm.Get("code")

		fake.mu.Lock()
		valid := fake.codes[code]
		if valid {
			delete(fake.codes, code)
			fake.exchanged = append(fake.exchanged, code)
		}
		fake.mu.Unlock()

		if r.PostForm.Get("grant_type") != "authorization_code" || !valid {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":             "invalid_request",
				"error_description": "Invalid code",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "access-" + code,
			"token_type":    "Bearer",
			"refresh_token": "refresh-" + code,
			"expires_in":    1800,
		})
	})

	fake.Server = httptest.NewServer(r)
	return fake
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
