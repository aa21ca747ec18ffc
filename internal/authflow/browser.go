package authflow

import (
	"context"
	"net/url"

	"github.com/stacklok/hass-onboard/internal/trust"
)

// Policy is the answer to a navigation attempt
type Policy int

const (
	// PolicyAllow lets the browser follow the navigation
	PolicyAllow Policy = iota

	// PolicyCancel stops the navigation
	PolicyCancel
)

// String returns the policy name
func (p Policy) String() string {
	if p == PolicyCancel {
		return "cancel"
	}
	return "allow"
}

//go:generate mockgen -destination=mocks/mock_browser.go -package=mocks -source=browser.go Browser,NavigationDelegate

// NavigationDelegate receives the callbacks of a browser surface.
// Surfaces may call it from any goroutine.
type NavigationDelegate interface {
	// DecidePolicy is asked before every navigation, including redirects
	DecidePolicy(ctx context.Context, target *url.URL) Policy

	// DidReceiveChallenge is asked how to answer an authentication challenge
	DidReceiveChallenge(ctx context.Context, challenge trust.Challenge) (trust.Disposition, *trust.Credential)

	// DidFail reports a navigation that could not be completed
	DidFail(ctx context.Context, err error)

	// DidFinish reports a page that loaded
	DidFinish(ctx context.Context, loaded *url.URL)
}

// Browser is a surface that can load pages and report navigations to a delegate
type Browser interface {
	// Load starts loading target and returns without waiting for the page.
	// A new Load replaces any navigation still in progress.
	Load(ctx context.Context, target *url.URL, delegate NavigationDelegate) error

	// Close stops any navigation and releases the surface
	Close() error
}

// surfaceName names the kind of surface b is, for spans
func surfaceName(b Browser) string {
	switch b.(type) {
	case *Navigator:
		return "headless"
	case *ProxySurface:
		return "browser"
	default:
		return "custom"
	}
}
