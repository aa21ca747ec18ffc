// Package otel provides span helpers shared by the discovery and authorization flows.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on discovery and authorization spans
const (
	AttrDiscoveryWindow = attribute.Key("discovery.window")
	AttrInstanceCount   = attribute.Key("discovery.instance_count")
	AttrInstanceName    = attribute.Key("hass.location_name")
	AttrInstanceURL     = attribute.Key("hass.base_url")
	AttrAuthHost        = attribute.Key("auth.host")
	AttrAuthResult      = attribute.Key("auth.result")
	AttrAuthSurface     = attribute.Key("auth.surface")
	AttrChallengeKind   = attribute.Key("auth.challenge_kind")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the span already in ctx.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span as failed.
// The status description stays generic so authorization codes in URLs never end up in it.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
