package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/hass-onboard/internal/otel"
	"github.com/stacklok/hass-onboard/internal/telemetry"
	"github.com/stacklok/hass-onboard/internal/trust"
)

const (
	// TracerName is the tracer used for authorization spans
	TracerName = "github.com/stacklok/hass-onboard/authflow"

	// DefaultRedirectSchemePrefix matches the private redirect scheme of the mobile app
	DefaultRedirectSchemePrefix = "homeassistant"
)

// State is the lifecycle of an Interceptor
type State int

const (
	// StateIdle is before the first load
	StateIdle State = iota

	// StateLoading is while the authorization page is loaded or reloaded
	StateLoading

	// StateResolved is after a redirect was captured
	StateResolved

	// StateRejected is after cancellation or a navigation failure
	StateRejected
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateResolved:
		return "resolved"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Request describes one pending authorization
type Request struct {
	// URL is the authorization page to load
	URL *url.URL

	// Exceptions answers authentication challenges. Nil performs default handling.
	Exceptions trust.Evaluator

	// RedirectSchemePrefix selects the navigations that complete the flow.
	// Defaults to DefaultRedirectSchemePrefix.
	RedirectSchemePrefix string
}

// Interceptor drives one authorization round-trip. It implements NavigationDelegate
// and is safe for concurrent use.
type Interceptor struct {
	req     Request
	prefix  string
	browser Browser
	outcome *Outcome
	metrics *telemetry.AuthorizationMetrics
	tracer  trace.Tracer

	mu        sync.Mutex
	state     State
	roundTrip trace.Span
}

// Option configures an Interceptor
type Option func(*Interceptor)

// WithMetrics sets the authorization metrics
func WithMetrics(m *telemetry.AuthorizationMetrics) Option {
	return func(i *Interceptor) {
		i.metrics = m
	}
}

// WithTracer sets the tracer for load and round-trip spans. Nil keeps the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(i *Interceptor) {
		if t != nil {
			i.tracer = t
		}
	}
}

// NewInterceptor creates an interceptor for req that loads pages in browser
func NewInterceptor(req Request, browser Browser, opts ...Option) (*Interceptor, error) {
	if req.URL == nil || !req.URL.IsAbs() || req.URL.Host == "" {
		return nil, errors.New("authorization URL must be absolute")
	}
	if browser == nil {
		return nil, errors.New("browser is required")
	}
	if req.Exceptions == nil {
		req.Exceptions = trust.PerformDefault
	}
	prefix := req.RedirectSchemePrefix
	if prefix == "" {
		prefix = DefaultRedirectSchemePrefix
	}

	i := &Interceptor{
		req:     req,
		prefix:  strings.ToLower(prefix),
		browser: browser,
		outcome: NewOutcome(),
		tracer:  otelapi.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Title is the host of the authorization URL, shown to the user while the page loads
func (i *Interceptor) Title() string {
	return i.req.URL.Hostname()
}

// Outcome returns the one-shot result of this authorization
func (i *Interceptor) Outcome() *Outcome {
	return i.outcome
}

// State returns the current lifecycle state
func (i *Interceptor) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Start loads the authorization page for the first time.
// It returns ErrOutcomeSettled if the flow was cancelled before it started.
func (i *Interceptor) Start(ctx context.Context) error {
	i.mu.Lock()
	switch {
	case i.outcome.Settled():
		i.mu.Unlock()
		return ErrOutcomeSettled
	case i.state != StateIdle:
		i.mu.Unlock()
		return ErrAlreadyStarted
	}
	i.state = StateLoading
	_, i.roundTrip = otel.StartSpan(context.WithoutCancel(ctx), i.tracer, "authflow.Authorize",
		trace.WithAttributes(
			otel.AttrAuthHost.String(i.Title()),
			otel.AttrAuthSurface.String(surfaceName(i.browser)),
		),
	)
	i.mu.Unlock()

	slog.Info("Starting authorization", "host", i.Title())
	return i.load(ctx, false)
}

// Refresh reloads the authorization page. It returns ErrOutcomeSettled once the outcome settled.
func (i *Interceptor) Refresh(ctx context.Context) error {
	i.mu.Lock()
	switch {
	case i.outcome.Settled():
		i.mu.Unlock()
		return ErrOutcomeSettled
	case i.state == StateIdle:
		i.mu.Unlock()
		return i.Start(ctx)
	}
	i.state = StateLoading
	i.mu.Unlock()

	slog.Debug("Reloading authorization page", "host", i.Title())
	return i.load(ctx, true)
}

// Cancel rejects the outcome with ErrCancelled. It reports false if the outcome had already settled.
func (i *Interceptor) Cancel() bool {
	return i.reject(context.Background(), ErrCancelled, telemetry.ResultCancelled)
}

// Wait blocks until the outcome settles or ctx is done
func (i *Interceptor) Wait(ctx context.Context) (*url.URL, error) {
	return i.outcome.Wait(ctx)
}

// Close releases the browser surface. A pending outcome stays pending.
func (i *Interceptor) Close() error {
	i.mu.Lock()
	if i.roundTrip != nil && !i.outcome.Settled() {
		i.roundTrip.End()
		i.roundTrip = nil
	}
	i.mu.Unlock()
	return i.browser.Close()
}

func (i *Interceptor) load(ctx context.Context, refresh bool) error {
	ctx, span := otel.StartSpan(ctx, i.tracer, "authflow.Load",
		trace.WithAttributes(otel.AttrAuthHost.String(i.Title())),
	)
	defer span.End()

	i.metrics.RecordLoad(ctx, i.Title(), refresh)

	if err := i.browser.Load(ctx, i.req.URL, i); err != nil {
		otel.RecordError(span, err)
		i.reject(ctx, &TransportFailure{Cause: err}, telemetry.ResultTransportFailure)
		return fmt.Errorf("failed to load authorization page: %w", err)
	}
	return nil
}

// DecidePolicy implements NavigationDelegate. Navigations to the redirect scheme resolve the
// outcome and are always cancelled, even after the outcome settled.
func (i *Interceptor) DecidePolicy(ctx context.Context, target *url.URL) Policy {
	if target == nil || !strings.HasPrefix(strings.ToLower(target.Scheme), i.prefix) {
		return PolicyAllow
	}

	if i.resolve(ctx, target) {
		slog.Info("Authorization redirect captured", "host", i.Title(), "scheme", target.Scheme)
	} else {
		slog.Debug("Ignoring redirect after the outcome settled", "scheme", target.Scheme)
	}
	return PolicyCancel
}

// DidReceiveChallenge implements NavigationDelegate by asking the request's exceptions
func (i *Interceptor) DidReceiveChallenge(
	_ context.Context,
	challenge trust.Challenge,
) (trust.Disposition, *trust.Credential) {
	disposition, credential := i.req.Exceptions.Evaluate(challenge)

	i.mu.Lock()
	if i.roundTrip != nil {
		i.roundTrip.AddEvent("auth.challenge", trace.WithAttributes(
			otel.AttrChallengeKind.String(string(challenge.Kind)),
			otel.AttrAuthHost.String(challenge.Host),
		))
	}
	i.mu.Unlock()

	slog.Debug("Authentication challenge evaluated",
		"kind", challenge.Kind,
		"host", challenge.Host,
		"disposition", disposition.String())
	return disposition, credential
}

// DidFail implements NavigationDelegate
func (i *Interceptor) DidFail(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if i.reject(ctx, &TransportFailure{Cause: err}, telemetry.ResultTransportFailure) {
		slog.Warn("Authorization navigation failed", "host", i.Title(), "error", err)
	}
}

// DidFinish implements NavigationDelegate
func (i *Interceptor) DidFinish(_ context.Context, loaded *url.URL) {
	if loaded != nil {
		slog.Debug("Authorization page loaded", "host", loaded.Host, "path", loaded.Path)
	}
}

func (i *Interceptor) resolve(ctx context.Context, u *url.URL) bool {
	if !i.outcome.Resolve(u) {
		return false
	}
	i.settle(ctx, StateResolved, telemetry.ResultRedirect, nil)
	return true
}

func (i *Interceptor) reject(ctx context.Context, err error, result string) bool {
	if !i.outcome.Reject(err) {
		return false
	}
	i.settle(ctx, StateRejected, result, err)
	return true
}

func (i *Interceptor) settle(ctx context.Context, state State, result string, err error) {
	i.mu.Lock()
	i.state = state
	span := i.roundTrip
	i.roundTrip = nil
	i.mu.Unlock()

	i.metrics.RecordOutcome(ctx, i.Title(), result)
	if span != nil {
		span.SetAttributes(otel.AttrAuthResult.String(result))
		otel.RecordError(span, err)
		span.End()
	}
}
