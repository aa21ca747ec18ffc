package authflow

import (
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/stacklok/hass-onboard/internal/trust"
)

const (
	// DefaultRequestTimeout bounds each request made by the Navigator
	DefaultRequestTimeout = 30 * time.Second

	maxRedirects          = 10
	maxBasicAuthAttempts  = 3
	maxDiscardedBodyBytes = 1 << 20
)

// Navigator is a headless Browser. It follows HTTP redirects itself and asks the delegate
// about every hop, so a redirect to the private scheme is captured without a rendering engine.
type Navigator struct {
	timeout time.Duration
	rootCAs *x509.CertPool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NavigatorOption configures a Navigator
type NavigatorOption func(*Navigator)

// WithRequestTimeout sets the per-request timeout
func WithRequestTimeout(d time.Duration) NavigatorOption {
	return func(n *Navigator) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithRootCAs sets the pool used for default server verification. Nil uses the system pool.
func WithRootCAs(pool *x509.CertPool) NavigatorOption {
	return func(n *Navigator) {
		n.rootCAs = pool
	}
}

// NewNavigator creates a headless browser surface
func NewNavigator(opts ...NavigatorOption) *Navigator {
	n := &Navigator{timeout: DefaultRequestTimeout}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Load implements Browser
func (n *Navigator) Load(ctx context.Context, target *url.URL, delegate NavigationDelegate) error {
	if target == nil {
		return errNoTarget
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrBrowserClosed
	}
	if n.cancel != nil {
		n.cancel()
	}

	navCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()
		n.navigate(navCtx, target, delegate)
	}()
	return nil
}

// Close implements Browser. It waits for the navigation in progress to stop.
func (n *Navigator) Close() error {
	n.mu.Lock()
	n.closed = true
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	n.mu.Unlock()

	n.wg.Wait()
	return nil
}

func (n *Navigator) navigate(ctx context.Context, target *url.URL, delegate NavigationDelegate) {
	if delegate.DecidePolicy(ctx, target) == PolicyCancel {
		return
	}

	cancelled := false
	client := &http.Client{
		Timeout:   n.timeout,
		Transport: newChallengeTransport(n.rootCAs, delegate),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if delegate.DecidePolicy(req.Context(), req.URL) == PolicyCancel {
				cancelled = true
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	defer client.CloseIdleConnections()

	current := target
	var credential *trust.Credential
	for failures := 0; ; failures++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current.String(), nil)
		if err != nil {
			delegate.DidFail(ctx, err)
			return
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		if credential != nil {
			req.SetBasicAuth(credential.User, credential.Password)
		}

		resp, err := client.Do(req)
		if err != nil {
			// A replaced or abandoned navigation is not a failure
			if ctx.Err() != nil {
				slog.Debug("Navigation stopped", "url", current.Redacted())
				return
			}
			delegate.DidFail(ctx, err)
			return
		}
		loaded := resp.Request.URL
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDiscardedBodyBytes))
		_ = resp.Body.Close()

		if cancelled {
			return
		}

		realm, isBasic := basicRealm(resp.Header)
		if resp.StatusCode != http.StatusUnauthorized || !isBasic {
			delegate.DidFinish(ctx, loaded)
			return
		}

		disposition, answer := delegate.DidReceiveChallenge(ctx, trust.Challenge{
			Kind:                 trust.ChallengeHTTPBasic,
			Host:                 loaded.Host,
			Realm:                realm,
			PreviousFailureCount: failures,
		})
		switch {
		case disposition == trust.CancelChallenge:
			delegate.DidFail(ctx, fmt.Errorf("%w: basic authentication for %s", trust.ErrChallengeCancelled, loaded.Host))
			return
		case disposition == trust.UseCredential && answer != nil && failures+1 < maxBasicAuthAttempts:
			credential = answer
			current = loaded
		default:
			// Default handling shows the 401 page
			delegate.DidFinish(ctx, loaded)
			return
		}
	}
}
