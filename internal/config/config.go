// Package config provides configuration loading and management for hass-onboard.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/hass-onboard/internal/telemetry"
)

// EnvPrefix is the prefix of environment variables read through viper
const EnvPrefix = "HASS_ONBOARD"

const (
	// SurfaceBrowser opens the authorization page in the user's browser through a local proxy
	SurfaceBrowser = "browser"

	// SurfaceHeadless follows the authorization redirects with an HTTP client
	SurfaceHeadless = "headless"
)

const (
	appDir           = "hass-onboard"
	configFileName   = "config.yaml"
	eventLogFileName = "events.jsonl"

	defaultWindow               = "5s"
	defaultServiceType          = "_home-assistant._tcp"
	defaultDomain               = "local."
	defaultAdvertiseServiceType = "_hass-mobile-app._tcp"
	defaultAdvertisePort        = 65535
	defaultClientID             = "https://home-assistant.io/iOS"
	defaultRedirectURI          = "homeassistant://auth-callback"
	defaultRedirectSchemePrefix = "homeassistant"
	defaultListenAddress        = "127.0.0.1:0"
	defaultRequestTimeout       = "30s"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// DefaultConfigPath returns the config file in the XDG config directories,
// or an empty string when there is none.
func DefaultConfigPath() string {
	path, err := xdg.SearchConfigFile(filepath.Join(appDir, configFileName))
	if err != nil {
		return ""
	}
	return path
}

// Config represents the root configuration structure
type Config struct {
	Discovery DiscoveryConfig   `yaml:"discovery"`
	Auth      AuthConfig        `yaml:"auth"`
	EventLog  EventLogConfig    `yaml:"eventLog"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// DiscoveryConfig defines the local network discovery settings
type DiscoveryConfig struct {
	// Window is how long discovery collects announcements (e.g., "5s")
	Window string `yaml:"window,omitempty"`

	// ServiceType is the DNS-SD service browsed for
	ServiceType string `yaml:"serviceType,omitempty"`

	Domain string `yaml:"domain,omitempty"`

	// Deduplicate drops announcements whose base URL was already collected
	Deduplicate bool `yaml:"deduplicate,omitempty"`

	Advertise AdvertiseConfig `yaml:"advertise"`
}

// AdvertiseConfig defines how this client announces itself while discovering
type AdvertiseConfig struct {
	// Enabled is a pointer so that an absent key means true
	Enabled      *bool  `yaml:"enabled,omitempty"`
	InstanceName string `yaml:"instanceName,omitempty"`
	ServiceType  string `yaml:"serviceType,omitempty"`
	Port         int    `yaml:"port,omitempty"`
}

// IsEnabled reports whether advertising is on
func (a *AdvertiseConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// AuthConfig defines the authorization settings
type AuthConfig struct {
	ClientID    string `yaml:"clientID,omitempty"`
	RedirectURI string `yaml:"redirectURI,omitempty"`

	// RedirectSchemePrefix is matched case-insensitively against navigation schemes.
	// Defaults to the scheme of RedirectURI.
	RedirectSchemePrefix string `yaml:"redirectSchemePrefix,omitempty"`

	// Surface is either "browser" or "headless"
	Surface string `yaml:"surface,omitempty"`

	// ListenAddress is where the browser surface's local proxy listens
	ListenAddress string `yaml:"listenAddress,omitempty"`

	// RequestTimeout bounds each HTTP request (e.g., "30s")
	RequestTimeout string `yaml:"requestTimeout,omitempty"`

	// CAFile is an optional PEM bundle trusted in addition to the system roots
	CAFile string `yaml:"caFile,omitempty"`
}

// EventLogConfig defines where diagnostic events are written
type EventLogConfig struct {
	// Path defaults to events.jsonl in the XDG state directory
	Path string `yaml:"path,omitempty"`
}

// NewDefaultConfig returns a configuration with every default applied
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads and parses configuration from a YAML file.
// Without WithConfigPath the defaults are returned.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	d := &c.Discovery
	if d.Window == "" {
		d.Window = defaultWindow
	}
	if d.ServiceType == "" {
		d.ServiceType = defaultServiceType
	}
	if d.Domain == "" {
		d.Domain = defaultDomain
	}
	if d.Advertise.ServiceType == "" {
		d.Advertise.ServiceType = defaultAdvertiseServiceType
	}
	if d.Advertise.Port == 0 {
		d.Advertise.Port = defaultAdvertisePort
	}

	a := &c.Auth
	if a.ClientID == "" {
		a.ClientID = defaultClientID
	}
	if a.RedirectURI == "" {
		a.RedirectURI = defaultRedirectURI
	}
	if a.RedirectSchemePrefix == "" {
		a.RedirectSchemePrefix = defaultRedirectSchemePrefix
		if u, err := url.Parse(a.RedirectURI); err == nil && u.Scheme != "" {
			a.RedirectSchemePrefix = u.Scheme
		}
	}
	if a.Surface == "" {
		a.Surface = SurfaceBrowser
	}
	if a.ListenAddress == "" {
		a.ListenAddress = defaultListenAddress
	}
	if a.RequestTimeout == "" {
		a.RequestTimeout = defaultRequestTimeout
	}

	if c.EventLog.Path == "" {
		c.EventLog.Path = filepath.Join(xdg.StateHome, appDir, eventLogFileName)
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if w, err := time.ParseDuration(c.Discovery.Window); err != nil {
		errs = append(errs, fmt.Errorf("discovery.window must be a valid duration (e.g., '5s'): %w", err))
	} else if w <= 0 {
		errs = append(errs, fmt.Errorf("discovery.window must be positive, got %s", c.Discovery.Window))
	}
	if !strings.HasPrefix(c.Discovery.ServiceType, "_") {
		errs = append(errs, fmt.Errorf("discovery.serviceType must look like _service._proto, got %q", c.Discovery.ServiceType))
	}
	if p := c.Discovery.Advertise.Port; p < 1 || p > 65535 {
		errs = append(errs, fmt.Errorf("discovery.advertise.port must be between 1 and 65535, got %d", p))
	}

	if u, err := url.Parse(c.Auth.RedirectURI); err != nil || u.Scheme == "" {
		errs = append(errs, fmt.Errorf("auth.redirectURI must be an absolute URI, got %q", c.Auth.RedirectURI))
	}
	if c.Auth.Surface != SurfaceBrowser && c.Auth.Surface != SurfaceHeadless {
		errs = append(errs, fmt.Errorf("auth.surface must be either %s or %s, got %s", SurfaceBrowser, SurfaceHeadless, c.Auth.Surface))
	}
	if t, err := time.ParseDuration(c.Auth.RequestTimeout); err != nil {
		errs = append(errs, fmt.Errorf("auth.requestTimeout must be a valid duration (e.g., '30s'): %w", err))
	} else if t <= 0 {
		errs = append(errs, fmt.Errorf("auth.requestTimeout must be positive, got %s", c.Auth.RequestTimeout))
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// GetWindow returns the parsed discovery window
func (d *DiscoveryConfig) GetWindow() time.Duration {
	w, err := time.ParseDuration(d.Window)
	if err != nil || w <= 0 {
		w, _ = time.ParseDuration(defaultWindow)
	}
	return w
}

// GetRequestTimeout returns the parsed request timeout
func (a *AuthConfig) GetRequestTimeout() time.Duration {
	t, err := time.ParseDuration(a.RequestTimeout)
	if err != nil || t <= 0 {
		t, _ = time.ParseDuration(defaultRequestTimeout)
	}
	return t
}
