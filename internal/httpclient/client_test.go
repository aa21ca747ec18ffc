package httpclient_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/hass-onboard/internal/httpclient"
)

// newTestServer creates a test server with keep-alives disabled so parallel tests
// closing their servers do not disturb each other's connections.
func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	t.Cleanup(server.Close)
	return server
}

func TestDefaultClient_Get(t *testing.T) {
	t.Parallel()

	var userAgent, accept string
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`{"location_name":"Home"}`))
	}))

	data, err := httpclient.NewDefaultClient(5*time.Second).Get(context.Background(), server.URL)
	require.NoError(t, err)

	assert.JSONEq(t, `{"location_name":"Home"}`, string(data))
	assert.True(t, strings.HasPrefix(userAgent, "hass-onboard/"))
	assert.Equal(t, "application/json", accept)
}

func TestDefaultClient_Get_HTTPErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		body       string
	}{
		{name: "not found", statusCode: http.StatusNotFound, body: "404: Not Found"},
		{name: "unauthorized", statusCode: http.StatusUnauthorized, body: "401: Unauthorized"},
		{name: "server error", statusCode: http.StatusInternalServerError, body: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := httpclient.NewDefaultClient(0).Get(context.Background(), server.URL+"/api/discovery_info")

			var httpErr *httpclient.HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.statusCode, httpErr.StatusCode)
			assert.Equal(t, tt.body, httpErr.Message)
			assert.Equal(t, fmt.Sprintf("HTTP %d for URL %s/api/discovery_info: %s", tt.statusCode, server.URL, tt.body), err.Error())
		})
	}
}

func TestDefaultClient_Get_RequestErrors(t *testing.T) {
	t.Parallel()

	client := httpclient.NewDefaultClient(time.Second)

	_, err := client.Get(context.Background(), "://bad")
	assert.ErrorContains(t, err, "failed to create request")

	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	_, err = client.Get(context.Background(), addr)
	assert.ErrorContains(t, err, "failed to execute request")
}

func TestDefaultClient_Get_SizeLimit(t *testing.T) {
	t.Parallel()

	t.Run("content length", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", httpclient.MaxResponseSize+1))
			w.WriteHeader(http.StatusOK)
		}))

		_, err := httpclient.NewDefaultClient(5*time.Second).Get(context.Background(), server.URL)
		assert.ErrorContains(t, err, "exceeds maximum allowed size of 10.00 MB")
	})

	t.Run("streamed body", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			chunk := make([]byte, 1024*1024)
			for range 11 {
				_, _ = w.Write(chunk)
			}
		}))

		_, err := httpclient.NewDefaultClient(5*time.Second).Get(context.Background(), server.URL)
		assert.ErrorContains(t, err, "exceeds maximum allowed size")
	})
}
