package app

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/stacklok/hass-onboard/internal/config"
	"github.com/stacklok/hass-onboard/internal/discovery"
	"github.com/stacklok/hass-onboard/internal/events"
	"github.com/stacklok/hass-onboard/internal/telemetry"
	"github.com/stacklok/hass-onboard/internal/versions"
)

const telemetryShutdownTimeout = 5 * time.Second

// environment holds what every command needs: configuration, telemetry and the event log
type environment struct {
	cfg   *config.Config
	tel   *telemetry.Telemetry
	store events.Store
}

func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if path == "" {
		return config.LoadConfig()
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Debug("Loaded configuration", "path", path)
	return cfg, nil
}

func newEnvironment(ctx context.Context) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.Telemetry != nil && cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = versions.Version
	}
	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	return &environment{
		cfg:   cfg,
		tel:   tel,
		store: events.NewFileStore(cfg.EventLog.Path),
	}, nil
}

// Close flushes telemetry
func (e *environment) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	if err := e.tel.Shutdown(ctx); err != nil {
		slog.Warn("Failed to shut down telemetry", "error", err)
	}
}

// newCollector wires a Bonjour service into a discovery collector
func (e *environment) newCollector(window time.Duration, dedupe bool) (*discovery.Collector, error) {
	d := e.cfg.Discovery
	svc := discovery.NewBonjour(
		discovery.WithServiceType(d.ServiceType),
		discovery.WithDomain(d.Domain),
		discovery.WithAdvertisement(d.Advertise.IsEnabled(), d.Advertise.InstanceName, d.Advertise.ServiceType, d.Advertise.Port),
		discovery.WithAppVersion(versions.Version),
	)

	metrics, err := telemetry.NewDiscoveryMetrics(e.tel.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery metrics: %w", err)
	}

	if window <= 0 {
		window = d.GetWindow()
	}
	opts := []discovery.CollectorOption{
		discovery.WithWindow(window),
		discovery.WithEventSink(e.store),
		discovery.WithMetrics(metrics),
		discovery.WithTracer(e.tel.Tracer(discovery.TracerName)),
	}
	if dedupe || d.Deduplicate {
		opts = append(opts, discovery.WithDeduplication())
	}
	return discovery.NewCollector(svc, opts...), nil
}

// rootCAs returns the system roots plus the configured CA file, or nil when no file is set
func (e *environment) rootCAs() (*x509.CertPool, error) {
	if e.cfg.Auth.CAFile == "" {
		return nil, nil
	}

	pem, err := os.ReadFile(filepath.Clean(e.cfg.Auth.CAFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		slog.Debug("System certificate pool unavailable", "error", err)
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("CA file contains no PEM certificates")
	}
	return pool, nil
}
