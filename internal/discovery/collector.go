package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	"github.com/stacklok/hass-onboard/internal/events"
	"github.com/stacklok/hass-onboard/internal/otel"
	"github.com/stacklok/hass-onboard/internal/telemetry"
)

// TracerName is the tracer used for discovery session spans
const TracerName = "github.com/stacklok/hass-onboard/discovery"

// DefaultWindow is how long a session collects announcements before handing off
const DefaultWindow = 5 * time.Second

// UnparseableEventText is the diagnostic text recorded for announcements that cannot be decoded
const UnparseableEventText = "Unable to parse discovered HA Instance"

// Collector runs discovery sessions against a Service
type Collector struct {
	svc     Service
	clock   clock.Clock
	window  time.Duration
	sink    events.Sink
	metrics *telemetry.DiscoveryMetrics
	tracer  trace.Tracer
	dedupe  bool

	// lifecycle serializes StartSession and EndSession
	lifecycle sync.Mutex

	// mu guards session and every StartX/StopX call on svc, so a session only
	// stops the service while it still owns it
	mu      sync.Mutex
	session *session
}

// session is the state of one discovery window
type session struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (s *session) halt() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// CollectorOption configures a Collector
type CollectorOption func(*Collector)

// WithClock sets the clock used for the discovery window
func WithClock(c clock.Clock) CollectorOption {
	return func(col *Collector) {
		col.clock = c
	}
}

// WithWindow sets the discovery window. Non-positive values keep the default.
func WithWindow(d time.Duration) CollectorOption {
	return func(col *Collector) {
		if d > 0 {
			col.window = d
		}
	}
}

// WithEventSink sets where diagnostics for unparseable announcements are sent
func WithEventSink(sink events.Sink) CollectorOption {
	return func(col *Collector) {
		col.sink = sink
	}
}

// WithMetrics sets the discovery metrics
func WithMetrics(m *telemetry.DiscoveryMetrics) CollectorOption {
	return func(col *Collector) {
		col.metrics = m
	}
}

// WithTracer sets the tracer used for session spans. Nil keeps the global tracer.
func WithTracer(t trace.Tracer) CollectorOption {
	return func(col *Collector) {
		if t != nil {
			col.tracer = t
		}
	}
}

// WithDeduplication keeps only the first instance announced for each base URL.
// Without it, repeated announcements produce repeated entries.
func WithDeduplication() CollectorOption {
	return func(col *Collector) {
		col.dedupe = true
	}
}

// NewCollector creates a Collector driving svc
func NewCollector(svc Service, opts ...CollectorOption) *Collector {
	c := &Collector{
		svc:    svc,
		clock:  clock.RealClock{},
		window: DefaultWindow,
		tracer: otelapi.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartSession ends any running session, restarts browse and advertise, and starts the window.
// When the window elapses, browse and advertise are stopped and onComplete receives the
// instances sorted by location name. onComplete runs on the session goroutine and is not
// called if the session is ended first.
func (c *Collector) StartSession(ctx context.Context, onComplete func([]Info)) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.endSession()

	ctx, span := otel.StartSpan(ctx, c.tracer, "discovery.Session",
		trace.WithAttributes(otel.AttrDiscoveryWindow.String(c.window.String())),
	)

	s := &session{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	found := make(chan Event)

	c.mu.Lock()
	if err := c.svc.StartBrowse(ctx, found); err != nil {
		c.mu.Unlock()
		otel.RecordError(span, err)
		span.End()
		return fmt.Errorf("failed to start browsing: %w", err)
	}
	if err := c.svc.StartAdvertise(ctx); err != nil {
		c.svc.StopBrowse()
		c.mu.Unlock()
		otel.RecordError(span, err)
		span.End()
		return fmt.Errorf("failed to start advertising: %w", err)
	}
	c.session = s
	c.mu.Unlock()

	timer := c.clock.NewTimer(c.window)
	slog.Debug("Discovery session started", "window", c.window)

	go c.run(ctx, span, s, found, timer, onComplete)
	return nil
}

// EndSession stops browse and advertise and abandons the running session without
// calling its continuation. It is safe to call at any time, repeatedly, or before
// any session was started.
func (c *Collector) EndSession() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.endSession()
}

func (c *Collector) endSession() {
	c.mu.Lock()
	c.svc.StopBrowse()
	c.svc.StopAdvertise()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s != nil {
		s.halt()
		<-s.done
		slog.Debug("Discovery session ended")
	}
}

// Discover runs one session and blocks until the window elapses or ctx is done.
func (c *Collector) Discover(ctx context.Context) ([]Info, error) {
	result := make(chan []Info, 1)
	if err := c.StartSession(ctx, func(found []Info) { result <- found }); err != nil {
		return nil, err
	}

	select {
	case found := <-result:
		return found, nil
	case <-ctx.Done():
		c.EndSession()
		return nil, ctx.Err()
	}
}

// detach clears s as the current session and stops the service it started.
// It reports false, leaving the service alone, if s was already ended.
func (c *Collector) detach(s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s {
		return false
	}
	c.session = nil
	c.svc.StopBrowse()
	c.svc.StopAdvertise()
	return true
}

func (c *Collector) run(
	ctx context.Context,
	span trace.Span,
	s *session,
	found <-chan Event,
	timer clock.Timer,
	onComplete func([]Info),
) {
	defer close(s.done)
	defer timer.Stop()
	defer span.End()

	instances := make([]Info, 0)
	seen := make(map[string]struct{})

	for {
		select {
		case ev, ok := <-found:
			if !ok {
				found = nil
				continue
			}
			instances = c.handle(ctx, ev, instances, seen)

		case <-timer.C():
			if !c.detach(s) {
				return
			}

			slices.SortStableFunc(instances, func(a, b Info) int {
				return strings.Compare(a.LocationName, b.LocationName)
			})

			c.metrics.RecordInstances(ctx, len(instances))
			span.SetAttributes(otel.AttrInstanceCount.Int(len(instances)))
			slog.Info("Discovery window elapsed", "instances", len(instances))

			if onComplete != nil {
				onComplete(instances)
			}
			return

		case <-s.stop:
			return

		case <-ctx.Done():
			c.detach(s)
			otel.RecordError(span, ctx.Err())
			return
		}
	}
}

func (c *Collector) handle(ctx context.Context, ev Event, instances []Info, seen map[string]struct{}) []Info {
	switch ev.Kind {
	case EventLost:
		// Lost instances stay in the list; the window is too short for it to matter
		slog.Info("Home Assistant instance lost", "instance", ev.Instance)
		c.metrics.RecordEvent(ctx, ev.Kind.String(), true)
		return instances

	case EventFound:
		info, err := infoFromEvent(ev)
		if err != nil {
			slog.Warn("Dropping discovery announcement", "instance", ev.Instance, "error", err)
			c.metrics.RecordEvent(ctx, ev.Kind.String(), false)
			c.report(ctx, ev)
			return instances
		}

		if c.dedupe {
			if _, dup := seen[info.BaseURL]; dup {
				slog.Debug("Ignoring repeated announcement", "base_url", info.BaseURL)
				c.metrics.RecordEvent(ctx, ev.Kind.String(), false)
				return instances
			}
			seen[info.BaseURL] = struct{}{}
		}

		slog.Info("Discovered Home Assistant instance",
			"location_name", info.LocationName,
			"base_url", info.BaseURL,
			"version", info.Version)
		trace.SpanFromContext(ctx).AddEvent("discovery.instance_found", trace.WithAttributes(
			otel.AttrInstanceName.String(info.LocationName),
			otel.AttrInstanceURL.String(info.BaseURL),
		))
		c.metrics.RecordEvent(ctx, ev.Kind.String(), true)
		return append(instances, info)

	default:
		slog.Debug("Ignoring discovery event of unknown kind", "kind", int(ev.Kind))
		return instances
	}
}

func (c *Collector) report(ctx context.Context, ev Event) {
	if c.sink == nil {
		return
	}
	event := events.NewClientEvent(UnparseableEventText, events.EventTypeUnknown, payload(ev))
	if err := c.sink.AddEvent(ctx, event); err != nil {
		slog.Debug("Failed to record discovery diagnostic", "error", err)
	}
}
