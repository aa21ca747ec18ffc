package authflow_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/hass-onboard/internal/authflow"
)

// newUpstream fakes the parts of a Home Assistant server the proxy has to understand
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/authorize", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>authorize</body></html>"))
	})
	mux.HandleFunc("/auth/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "homeassistant://auth-callback?code=from-location", http.StatusFound)
	})
	mux.HandleFunc("/auth/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/auth/authorize", http.StatusFound)
	})
	mux.HandleFunc("POST /auth/login_flow/{flowID}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":"create_entry","flow_id":"f1","result":"flow-code"}`))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// startProxyFlow starts an authorization through a ProxySurface and returns the URL it opened
func startProxyFlow(t *testing.T, authorizeURL string) (*authflow.Interceptor, *url.URL) {
	t.Helper()

	opened := make(chan string, 1)
	surface := authflow.NewProxySurface(authflow.WithOpener(func(u string) error {
		opened <- u
		return nil
	}))

	i, err := authflow.NewInterceptor(authflow.Request{URL: mustParse(t, authorizeURL)}, surface)
	require.NoError(t, err)
	t.Cleanup(func() { _ = i.Close() })

	require.NoError(t, i.Start(context.Background()))

	select {
	case raw := <-opened:
		return i, mustParse(t, raw)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "browser was not opened")
		return nil, nil
	}
}

func noRedirectClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestProxySurface_OpensLoopbackURL(t *testing.T) {
	t.Parallel()

	upstream := newUpstream(t)
	_, local := startProxyFlow(t, upstream.URL+"/auth/authorize?client_id=x&state=s1")

	assert.Equal(t, "http", local.Scheme)
	assert.True(t, strings.HasPrefix(local.Host, "127.0.0.1:"))
	assert.Equal(t, "/auth/authorize", local.Path)
	assert.Equal(t, "client_id=x&state=s1", local.RawQuery)

	resp, err := noRedirectClient().Get(local.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "authorize")
}

func TestProxySurface_CapturesLocationRedirect(t *testing.T) {
	t.Parallel()

	upstream := newUpstream(t)
	i, local := startProxyFlow(t, upstream.URL+"/auth/authorize")

	redirect := *local
	redirect.Path = "/auth/redirect"
	redirect.RawQuery = ""

	resp, err := noRedirectClient().Get(redirect.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Location"))
	assert.Contains(t, string(body), "Authorization complete")

	got, err := waitOutcome(t, i)
	require.NoError(t, err)
	assert.Equal(t, "homeassistant://auth-callback?code=from-location", got.String())
}

func TestProxySurface_CapturesCompletedLoginFlow(t *testing.T) {
	t.Parallel()

	upstream := newUpstream(t)
	authorize := upstream.URL + "/auth/authorize?" + url.Values{
		"client_id":    {"https://home-assistant.io/iOS"},
		"redirect_uri": {"homeassistant://auth-callback"},
		"state":        {"xyz"},
	}.Encode()
	i, local := startProxyFlow(t, authorize)

	flow := *local
	flow.Path = "/auth/login_flow/f1"
	flow.RawQuery = ""

	resp, err := noRedirectClient().Post(flow.String(), "application/json",
		strings.NewReader(`{"username":"owner","password":"secret","client_id":"https://home-assistant.io/iOS"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// The page still receives the flow result unchanged
	assert.Contains(t, string(body), `"result":"flow-code"`)

	got, err := waitOutcome(t, i)
	require.NoError(t, err)
	assert.Equal(t, "homeassistant://auth-callback?code=flow-code&state=xyz", got.String())
}

func TestProxySurface_RewritesSameOriginLocation(t *testing.T) {
	t.Parallel()

	upstream := newUpstream(t)
	i, local := startProxyFlow(t, upstream.URL+"/auth/authorize")

	moved := *local
	moved.Path = "/auth/moved"
	moved.RawQuery = ""

	resp, err := noRedirectClient().Get(moved.String())
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	location := mustParse(t, resp.Header.Get("Location"))
	assert.Equal(t, local.Host, location.Host)
	assert.Equal(t, "/auth/authorize", location.Path)
	assert.False(t, i.Outcome().Settled())
}

func TestProxySurface_UpstreamFailure(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.NotFoundHandler())
	base := upstream.URL
	upstream.Close()

	i, local := startProxyFlow(t, base+"/auth/authorize")

	resp, err := noRedirectClient().Get(local.String())
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	_, err = waitOutcome(t, i)
	var failure *authflow.TransportFailure
	assert.ErrorAs(t, err, &failure)
}

func TestProxySurface_ClosedAndIdle(t *testing.T) {
	t.Parallel()

	surface := authflow.NewProxySurface(authflow.WithOpener(func(string) error { return nil }))
	assert.Nil(t, surface.URL())
	require.NoError(t, surface.Close())

	i, err := authflow.NewInterceptor(authflow.Request{URL: mustParse(t, "https://example.com/authorize")}, surface)
	require.NoError(t, err)

	err = i.Start(context.Background())
	assert.ErrorIs(t, err, authflow.ErrBrowserClosed)
}
