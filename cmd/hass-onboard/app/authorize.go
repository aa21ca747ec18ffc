package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/stacklok/hass-onboard/internal/authflow"
	"github.com/stacklok/hass-onboard/internal/config"
	"github.com/stacklok/hass-onboard/internal/events"
	"github.com/stacklok/hass-onboard/internal/hass"
	"github.com/stacklok/hass-onboard/internal/telemetry"
	"github.com/stacklok/hass-onboard/internal/trust"
)

const defaultLoginTimeout = 5 * time.Minute

// authorizeOptions are the login flags shared by login and onboard
type authorizeOptions struct {
	surface       string
	trustServer   bool
	basicUser     string
	basicPassword string
	timeout       time.Duration
	save          bool
}

func addAuthorizeFlags(cmd *cobra.Command) {
	cmd.Flags().String("surface", "", "Where the sign-in page is shown: browser or headless (default from config)")
	cmd.Flags().Bool("trust-server-certificate", false, "Accept an unverified TLS certificate from the chosen server")
	cmd.Flags().String("basic-user", "", "User for a reverse proxy asking for HTTP basic authentication")
	cmd.Flags().String("basic-password", "", "Password for --basic-user")
	cmd.Flags().Duration("timeout", defaultLoginTimeout, "How long to wait for sign-in to complete")
	cmd.Flags().Bool("save", true, "Store the issued token in the system keyring")
}

func authorizeOptionsFromFlags(cmd *cobra.Command, cfg *config.Config) (authorizeOptions, error) {
	opts := authorizeOptions{}
	opts.surface, _ = cmd.Flags().GetString("surface")
	opts.trustServer, _ = cmd.Flags().GetBool("trust-server-certificate")
	opts.basicUser, _ = cmd.Flags().GetString("basic-user")
	opts.basicPassword, _ = cmd.Flags().GetString("basic-password")
	opts.timeout, _ = cmd.Flags().GetDuration("timeout")
	opts.save, _ = cmd.Flags().GetBool("save")

	if opts.surface == "" {
		opts.surface = cfg.Auth.Surface
	}
	if opts.surface != config.SurfaceBrowser && opts.surface != config.SurfaceHeadless {
		return opts, fmt.Errorf("surface must be either %s or %s, got %s", config.SurfaceBrowser, config.SurfaceHeadless, opts.surface)
	}
	if opts.timeout <= 0 {
		opts.timeout = defaultLoginTimeout
	}
	return opts, nil
}

// newBrowser creates the browser surface selected by surface
func (e *environment) newBrowser(surface string, notice io.Writer) (authflow.Browser, error) {
	roots, err := e.rootCAs()
	if err != nil {
		return nil, err
	}

	if surface == config.SurfaceHeadless {
		opts := []authflow.NavigatorOption{authflow.WithRequestTimeout(e.cfg.Auth.GetRequestTimeout())}
		if roots != nil {
			opts = append(opts, authflow.WithRootCAs(roots))
		}
		return authflow.NewNavigator(opts...), nil
	}

	opts := []authflow.ProxyOption{
		authflow.WithListenAddress(e.cfg.Auth.ListenAddress),
		authflow.WithTracerProvider(e.tel.TracerProvider()),
		authflow.WithOpener(func(u string) error {
			_, _ = fmt.Fprintf(notice, "Sign in to Home Assistant at %s\n", u)
			if err := browser.OpenURL(u); err != nil {
				slog.Warn("Could not open a browser, open the address above manually", "error", err)
			}
			return nil
		}),
	}
	if roots != nil {
		opts = append(opts, authflow.WithProxyRootCAs(roots))
	}
	return authflow.NewProxySurface(opts...), nil
}

// apiHTTPClient returns the client for token and discovery_info requests. It trusts the
// configured CA file and asks exceptions about anything else, like the browser surfaces do.
func (e *environment) apiHTTPClient(exceptions trust.Evaluator) (*http.Client, error) {
	roots, err := e.rootCAs()
	if err != nil {
		return nil, err
	}
	return authflow.NewHTTPClient(roots, exceptions, e.cfg.Auth.GetRequestTimeout()), nil
}

// authorize runs the authorization flow against baseURL and exchanges the captured code
func (e *environment) authorize(
	ctx context.Context, baseURL string, opts authorizeOptions, notice io.Writer,
) (*hass.Client, *oauth2.Token, error) {
	base, err := hass.ParseBaseURL(baseURL)
	if err != nil {
		return nil, nil, err
	}
	exceptions := newEvaluator(base.Hostname(), opts.trustServer, opts.basicUser, opts.basicPassword)

	httpClient, err := e.apiHTTPClient(exceptions)
	if err != nil {
		return nil, nil, err
	}
	client, err := hass.NewClient(base.String(),
		hass.WithClientID(e.cfg.Auth.ClientID),
		hass.WithRedirectURI(e.cfg.Auth.RedirectURI),
		hass.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, nil, err
	}

	areq, err := client.NewAuthorizationRequest()
	if err != nil {
		return nil, nil, err
	}

	surface, err := e.newBrowser(opts.surface, notice)
	if err != nil {
		return nil, nil, err
	}

	metrics, err := telemetry.NewAuthorizationMetrics(e.tel.MeterProvider())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create authorization metrics: %w", err)
	}

	interceptor, err := authflow.NewInterceptor(authflow.Request{
		URL:                  areq.URL,
		Exceptions:           exceptions,
		RedirectSchemePrefix: e.cfg.Auth.RedirectSchemePrefix,
	}, surface,
		authflow.WithMetrics(metrics),
		authflow.WithTracer(e.tel.Tracer(authflow.TracerName)),
	)
	if err != nil {
		_ = surface.Close()
		return nil, nil, err
	}
	defer func() {
		if err := interceptor.Close(); err != nil {
			slog.Debug("Failed to close browser surface", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	slog.Info("Starting authorization", "server", interceptor.Title(), "surface", opts.surface)
	if err := interceptor.Start(ctx); err != nil {
		e.recordAuthFailure(ctx, client, err)
		return nil, nil, err
	}

	callback, err := interceptor.Wait(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("sign-in did not complete within %s: %w", opts.timeout, err)
		}
		e.recordAuthFailure(ctx, client, err)
		return nil, nil, err
	}

	code, err := hass.ParseCallback(callback, areq.State)
	if err != nil {
		e.recordAuthFailure(ctx, client, err)
		return nil, nil, err
	}

	token, err := client.Exchange(ctx, code)
	if err != nil {
		e.recordAuthFailure(ctx, client, err)
		return nil, nil, err
	}
	return client, token, nil
}

func (e *environment) recordAuthFailure(ctx context.Context, client *hass.Client, err error) {
	event := events.NewClientEvent("Authorization failed", events.EventTypeAuthorization, map[string]any{
		"server": client.BaseURL().String(),
		"error":  err.Error(),
	})
	// The event log is best effort; a cancelled ctx must not prevent the write
	if addErr := e.store.AddEvent(context.WithoutCancel(ctx), event); addErr != nil {
		slog.Warn("Failed to record authorization failure", "error", addErr)
	}
}

// finishLogin summarizes and optionally stores token
func finishLogin(client *hass.Client, name string, token *oauth2.Token, save bool) (loginResult, error) {
	res := loginResult{Server: client.BaseURL().String(), Name: name}

	summary, err := hass.SummarizeAccessToken(token.AccessToken)
	if err != nil {
		slog.Debug("Access token is not a readable JWT", "error", err)
		summary.ExpiresAt = token.Expiry
	}
	res.Token = summary

	if save {
		if err := hass.NewKeyringStore().Save(res.Server, token); err != nil {
			return res, err
		}
		res.Saved = true
	}
	return res, nil
}
