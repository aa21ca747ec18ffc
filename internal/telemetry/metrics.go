package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DiscoveryMeterName is the name used for the discovery metrics meter
	DiscoveryMeterName = "github.com/stacklok/hass-onboard/discovery"

	// AuthorizationMeterName is the name used for the authorization metrics meter
	AuthorizationMeterName = "github.com/stacklok/hass-onboard/authorization"
)

// Authorization results recorded by AuthorizationMetrics
const (
	ResultRedirect         = "redirect"
	ResultCancelled        = "cancelled"
	ResultTransportFailure = "transport_failure"
)

// DiscoveryMetrics holds the instruments for discovery sessions
type DiscoveryMetrics struct {
	events    metric.Int64Counter
	instances metric.Int64Gauge
}

// NewDiscoveryMetrics creates discovery instruments.
// If provider is nil, it returns nil (no-op metrics).
func NewDiscoveryMetrics(provider metric.MeterProvider) (*DiscoveryMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(DiscoveryMeterName)

	events, err := meter.Int64Counter(
		"hass_onboard_discovery_events_total",
		metric.WithDescription("Discovery announcements received, by kind and outcome"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	instances, err := meter.Int64Gauge(
		"hass_onboard_discovery_instances",
		metric.WithDescription("Instances handed off at the end of the last discovery window"),
		metric.WithUnit("{instance}"),
	)
	if err != nil {
		return nil, err
	}

	return &DiscoveryMetrics{
		events:    events,
		instances: instances,
	}, nil
}

// RecordEvent counts one announcement. kind is "found" or "lost"; accepted is false for dropped payloads.
func (m *DiscoveryMetrics) RecordEvent(ctx context.Context, kind string, accepted bool) {
	if m == nil || m.events == nil {
		return
	}
	m.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("accepted", accepted),
	))
}

// RecordInstances records how many instances a session handed off
func (m *DiscoveryMetrics) RecordInstances(ctx context.Context, count int) {
	if m == nil || m.instances == nil {
		return
	}
	m.instances.Record(ctx, int64(count))
}

// AuthorizationMetrics holds the instruments for authorization round-trips
type AuthorizationMetrics struct {
	outcomes metric.Int64Counter
	loads    metric.Int64Counter
}

// NewAuthorizationMetrics creates authorization instruments.
// If provider is nil, it returns nil (no-op metrics).
func NewAuthorizationMetrics(provider metric.MeterProvider) (*AuthorizationMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(AuthorizationMeterName)

	outcomes, err := meter.Int64Counter(
		"hass_onboard_authorization_outcomes_total",
		metric.WithDescription("Settled authorization outcomes by result"),
		metric.WithUnit("{outcome}"),
	)
	if err != nil {
		return nil, err
	}

	loads, err := meter.Int64Counter(
		"hass_onboard_authorization_loads_total",
		metric.WithDescription("Authorization page loads, including refreshes"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, err
	}

	return &AuthorizationMetrics{
		outcomes: outcomes,
		loads:    loads,
	}, nil
}

// RecordOutcome counts a settled outcome for the given authorization host
func (m *AuthorizationMetrics) RecordOutcome(ctx context.Context, host, result string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("host", host),
		attribute.String("result", result),
	))
}

// RecordLoad counts one page load; refresh is true for reloads
func (m *AuthorizationMetrics) RecordLoad(ctx context.Context, host string, refresh bool) {
	if m == nil || m.loads == nil {
		return
	}
	m.loads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("host", host),
		attribute.Bool("refresh", refresh),
	))
}
