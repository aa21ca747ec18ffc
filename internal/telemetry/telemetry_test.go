package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{
			name:   "nil config returns no-op telemetry",
			config: nil,
		},
		{
			name:   "disabled config returns no-op telemetry",
			config: &Config{Enabled: false},
		},
		{
			name: "enabled with both signals disabled returns no-op providers",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: false},
				Metrics: &MetricsConfig{Enabled: false},
			},
		},
		{
			name: "invalid sampling is rejected",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: floatPtr(2)},
			},
			wantErr: "invalid telemetry configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			tel, err := New(ctx, tt.config)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			_, isNoOpTracer := tel.TracerProvider().(tracenoop.TracerProvider)
			assert.True(t, isNoOpTracer)
			_, isNoOpMeter := tel.MeterProvider().(metricnoop.MeterProvider)
			assert.True(t, isNoOpMeter)
			assert.NotNil(t, tel.Tracer("test"))

			assert.NoError(t, tel.Shutdown(ctx))
		})
	}
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mp, err := NewMeterProvider(ctx,
		WithMetricsConfig(&MetricsConfig{Enabled: true}),
		WithEndpoint("localhost:4318"),
		WithInsecure(true),
	)
	require.NoError(t, err)

	sdkProvider, ok := mp.(*sdkmetric.MeterProvider)
	require.True(t, ok, "expected an SDK meter provider")
	// The exporter is lazy, so shutting down without a collector only reports a flush error
	_ = sdkProvider.Shutdown(ctx)
}
