package authflow

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/browser"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/hass-onboard/internal/telemetry"
)

const (
	// DefaultListenAddress is the loopback address the proxy surface listens on
	DefaultListenAddress = "127.0.0.1:0"

	loginFlowPathPrefix = "/auth/login_flow/"
	maxFlowBodyBytes    = 1 << 20
	shutdownTimeout     = 5 * time.Second
)

const completionPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Authorization complete</title></head>
<body>
<h1>Authorization complete</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>
`

// ProxySurface is an interactive Browser. It serves the authorization origin through a
// loopback reverse proxy and opens the user's browser on it, so redirects issued by the
// server and completed login flows can be observed.
type ProxySurface struct {
	listenAddress  string
	rootCAs        *x509.CertPool
	openURL        func(string) error
	tracerProvider trace.TracerProvider

	current atomic.Pointer[proxyTarget]

	mu       sync.Mutex
	server   *http.Server
	origin   *url.URL
	group    *errgroup.Group
	closed   bool
	stopOnce sync.Once
}

// proxyTarget is the authorization page currently served by the proxy
type proxyTarget struct {
	ctx       context.Context
	authorize *url.URL
	upstream  *url.URL
	delegate  NavigationDelegate
	proxy     *httputil.ReverseProxy
}

// ProxyOption configures a ProxySurface
type ProxyOption func(*ProxySurface)

// WithListenAddress sets the loopback address to listen on
func WithListenAddress(addr string) ProxyOption {
	return func(p *ProxySurface) {
		if addr != "" {
			p.listenAddress = addr
		}
	}
}

// WithProxyRootCAs sets the pool used for default upstream verification
func WithProxyRootCAs(pool *x509.CertPool) ProxyOption {
	return func(p *ProxySurface) {
		p.rootCAs = pool
	}
}

// WithOpener replaces the function used to open the user's browser
func WithOpener(open func(string) error) ProxyOption {
	return func(p *ProxySurface) {
		if open != nil {
			p.openURL = open
		}
	}
}

// WithTracerProvider traces requests served by the proxy
func WithTracerProvider(tp trace.TracerProvider) ProxyOption {
	return func(p *ProxySurface) {
		p.tracerProvider = tp
	}
}

// NewProxySurface creates an interactive browser surface. The listener starts on the first Load.
func NewProxySurface(opts ...ProxyOption) *ProxySurface {
	p := &ProxySurface{
		listenAddress: DefaultListenAddress,
		openURL:       browser.OpenURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// URL returns the proxy origin, or nil before the first Load
func (p *ProxySurface) URL() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.origin == nil {
		return nil
	}
	origin := *p.origin
	return &origin
}

// Load implements Browser. It points the proxy at target's origin and opens the user's browser.
func (p *ProxySurface) Load(ctx context.Context, target *url.URL, delegate NavigationDelegate) error {
	if target == nil {
		return errNoTarget
	}
	if delegate.DecidePolicy(ctx, target) == PolicyCancel {
		return nil
	}

	origin, err := p.ensureServing()
	if err != nil {
		return err
	}

	upstream := &url.URL{Scheme: target.Scheme, Host: target.Host}
	t := &proxyTarget{
		ctx:       ctx,
		authorize: target,
		upstream:  upstream,
		delegate:  delegate,
	}
	t.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.Out.Header.Del("Accept-Encoding")
		},
		Transport:      newChallengeTransport(p.rootCAs, delegate),
		ModifyResponse: func(resp *http.Response) error { return p.modifyResponse(t, origin, resp) },
		ErrorHandler:   func(w http.ResponseWriter, r *http.Request, err error) { p.proxyError(t, w, r, err) },
	}
	p.current.Store(t)

	local := *origin
	local.Path = target.Path
	local.RawPath = target.RawPath
	local.RawQuery = target.RawQuery

	slog.Info("Opening authorization page in browser", "url", local.Redacted(), "upstream", upstream.String())
	if err := p.openURL(local.String()); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// Close implements Browser. It stops the loopback server.
func (p *ProxySurface) Close() error {
	p.mu.Lock()
	p.closed = true
	server, group := p.server, p.group
	p.mu.Unlock()

	if server == nil {
		return nil
	}

	var err error
	p.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = errors.Join(server.Shutdown(ctx), group.Wait())
	})
	return err
}

func (p *ProxySurface) ensureServing() (*url.URL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrBrowserClosed
	}
	if p.origin != nil {
		return p.origin, nil
	}

	listener, err := net.Listen("tcp", p.listenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", p.listenAddress, err)
	}

	p.server = &http.Server{
		Handler:           p.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	p.origin = &url.URL{Scheme: "http", Host: listener.Addr().String()}
	p.group = &errgroup.Group{}
	server := p.server
	p.group.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	slog.Debug("Authorization proxy listening", "address", p.origin.Host)
	return p.origin, nil
}

func (p *ProxySurface) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(telemetry.TracingMiddleware(p.tracerProvider))
	r.Use(loggingMiddleware)
	r.Handle("/*", http.HandlerFunc(p.serveProxy))
	return r
}

func (p *ProxySurface) serveProxy(w http.ResponseWriter, r *http.Request) {
	t := p.current.Load()
	if t == nil {
		http.Error(w, "no authorization in progress", http.StatusNotFound)
		return
	}
	if t.ctx.Err() != nil {
		http.Error(w, "authorization abandoned", http.StatusGone)
		return
	}
	t.proxy.ServeHTTP(w, r)
}

func (p *ProxySurface) modifyResponse(t *proxyTarget, origin *url.URL, resp *http.Response) error {
	if redirect, ok := completedLoginFlow(t.authorize, resp); ok {
		// The page navigates to the redirect itself once the flow reports success
		t.delegate.DecidePolicy(t.ctx, redirect)
		return nil
	}

	location := resp.Header.Get("Location")
	if location == "" {
		if isHTML(resp) {
			t.delegate.DidFinish(t.ctx, resp.Request.URL)
		}
		return nil
	}

	next, err := resp.Request.URL.Parse(location)
	if err != nil {
		return nil
	}

	if t.delegate.DecidePolicy(t.ctx, next) == PolicyCancel {
		replaceWithCompletionPage(resp)
		return nil
	}

	if next.Scheme == t.upstream.Scheme && next.Host == t.upstream.Host {
		next.Scheme = origin.Scheme
		next.Host = origin.Host
		resp.Header.Set("Location", next.String())
	}
	return nil
}

func (p *ProxySurface) proxyError(t *proxyTarget, w http.ResponseWriter, r *http.Request, err error) {
	// The browser going away is not a navigation failure
	if r.Context().Err() == nil && t.ctx.Err() == nil {
		t.delegate.DidFail(t.ctx, err)
	}
	http.Error(w, "authorization server unreachable", http.StatusBadGateway)
}

// completedLoginFlow recognises the login flow step that returns the authorization code
// and rebuilds the redirect the page is about to navigate to.
func completedLoginFlow(authorize *url.URL, resp *http.Response) (*url.URL, bool) {
	if resp.Request == nil || resp.Request.Method != http.MethodPost ||
		!strings.HasPrefix(resp.Request.URL.Path, loginFlowPathPrefix) ||
		resp.StatusCode != http.StatusOK {
		return nil, false
	}
	if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err != nil || mediaType != "application/json" {
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFlowBodyBytes))
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return nil, false
	}

	if !gjson.ValidBytes(body) {
		return nil, false
	}
	step := gjson.GetManyBytes(body, "type", "result")
	if step[0].String() != "create_entry" || step[1].String() == "" {
		return nil, false
	}

	query := authorize.Query()
	redirect, err := url.Parse(query.Get("redirect_uri"))
	if err != nil || redirect.Scheme == "" {
		return nil, false
	}
	values := redirect.Query()
	values.Set("code", step[1].String())
	if state := query.Get("state"); state != "" {
		values.Set("state", state)
	}
	redirect.RawQuery = values.Encode()
	return redirect, true
}

func isHTML(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mediaType == "text/html"
}

func replaceWithCompletionPage(resp *http.Response) {
	_ = resp.Body.Close()
	resp.StatusCode = http.StatusOK
	resp.Status = fmt.Sprintf("%d %s", http.StatusOK, http.StatusText(http.StatusOK))
	resp.Header = http.Header{}
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	resp.Header.Set("Content-Length", strconv.Itoa(len(completionPage)))
	resp.Header.Set("Cache-Control", "no-store")
	resp.ContentLength = int64(len(completionPage))
	resp.Body = io.NopCloser(strings.NewReader(completionPage))
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("Proxied request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}
