package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultServiceType is the DNS-SD service Home Assistant announces
	DefaultServiceType = "_home-assistant._tcp"

	// DefaultDomain is the mDNS browse domain
	DefaultDomain = "local."

	// DefaultAdvertiseServiceType is the DNS-SD service this client announces
	DefaultAdvertiseServiceType = "_hass-mobile-app._tcp"

	// DefaultAdvertisePort is announced because the client does not accept connections
	DefaultAdvertisePort = 65535
)

// Bonjour browses for Home Assistant and advertises this client over mDNS
type Bonjour struct {
	serviceType          string
	domain               string
	advertise            bool
	instanceName         string
	advertiseServiceType string
	advertisePort        int
	appVersion           string

	mu           sync.Mutex
	browseCancel context.CancelFunc
	browseGroup  *errgroup.Group
	server       *zeroconf.Server
}

// BonjourOption configures a Bonjour service
type BonjourOption func(*Bonjour)

// WithServiceType sets the service type to browse for
func WithServiceType(serviceType string) BonjourOption {
	return func(b *Bonjour) {
		if serviceType != "" {
			b.serviceType = serviceType
		}
	}
}

// WithDomain sets the browse and advertise domain
func WithDomain(domain string) BonjourOption {
	return func(b *Bonjour) {
		if domain != "" {
			b.domain = domain
		}
	}
}

// WithAdvertisement configures the announcement of this client.
// enabled=false turns StartAdvertise into a no-op.
func WithAdvertisement(enabled bool, instanceName, serviceType string, port int) BonjourOption {
	return func(b *Bonjour) {
		b.advertise = enabled
		if instanceName != "" {
			b.instanceName = instanceName
		}
		if serviceType != "" {
			b.advertiseServiceType = serviceType
		}
		if port > 0 {
			b.advertisePort = port
		}
	}
}

// WithAppVersion sets the version published in the advertisement TXT record
func WithAppVersion(version string) BonjourOption {
	return func(b *Bonjour) {
		b.appVersion = version
	}
}

// NewBonjour creates an mDNS discovery service
func NewBonjour(opts ...BonjourOption) *Bonjour {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "hass-onboard"
	}

	b := &Bonjour{
		serviceType:          DefaultServiceType,
		domain:               DefaultDomain,
		advertise:            true,
		instanceName:         hostname,
		advertiseServiceType: DefaultAdvertiseServiceType,
		advertisePort:        DefaultAdvertisePort,
		appVersion:           "dev",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// StartBrowse implements Service
func (b *Bonjour) StartBrowse(ctx context.Context, events chan<- Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopBrowseLocked()

	resolver, err := zeroconf.NewResolver()
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	browseCtx, cancel := context.WithCancel(ctx)
	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(browseCtx, b.serviceType, b.domain, entries); err != nil {
		cancel()
		return fmt.Errorf("failed to browse for %s: %w", b.serviceType, err)
	}

	g, gctx := errgroup.WithContext(browseCtx)
	g.Go(func() error {
		forwardEntries(gctx, entries, events)
		return nil
	})

	b.browseCancel = cancel
	b.browseGroup = g
	slog.Debug("mDNS browse started", "service", b.serviceType, "domain", b.domain)
	return nil
}

// StopBrowse implements Service
func (b *Bonjour) StopBrowse() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopBrowseLocked()
}

func (b *Bonjour) stopBrowseLocked() {
	if b.browseCancel == nil {
		return
	}
	b.browseCancel()
	_ = b.browseGroup.Wait()
	b.browseCancel = nil
	b.browseGroup = nil
	slog.Debug("mDNS browse stopped", "service", b.serviceType)
}

// StartAdvertise implements Service
func (b *Bonjour) StartAdvertise(_ context.Context) error {
	if !b.advertise {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopAdvertiseLocked()

	txt := []string{
		"app_version=" + b.appVersion,
		"device_name=" + b.instanceName,
	}
	server, err := zeroconf.Register(b.instanceName, b.advertiseServiceType, b.domain, b.advertisePort, txt, nil)
	if err != nil {
		return fmt.Errorf("failed to advertise %s: %w", b.advertiseServiceType, err)
	}
	b.server = server
	slog.Debug("mDNS advertisement started",
		"instance", b.instanceName,
		"service", b.advertiseServiceType,
		"port", b.advertisePort)
	return nil
}

// StopAdvertise implements Service
func (b *Bonjour) StopAdvertise() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopAdvertiseLocked()
}

func (b *Bonjour) stopAdvertiseLocked() {
	if b.server == nil {
		return
	}
	b.server.Shutdown()
	b.server = nil
	slog.Debug("mDNS advertisement stopped", "instance", b.instanceName)
}

func forwardEntries(ctx context.Context, entries <-chan *zeroconf.ServiceEntry, events chan<- Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-entries:
			if !ok {
				return
			}
			if entry == nil {
				continue
			}
			select {
			case events <- entryToEvent(entry):
			case <-ctx.Done():
				return
			}
		}
	}
}

// entryToEvent converts a resolved service entry. A zero TTL is a goodbye packet.
func entryToEvent(entry *zeroconf.ServiceEntry) Event {
	kind := EventFound
	if entry.TTL == 0 {
		kind = EventLost
	}

	addresses := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addresses = append(addresses, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addresses = append(addresses, ip.String())
	}

	return Event{
		Kind:       kind,
		Instance:   entry.Instance,
		Host:       strings.TrimSuffix(entry.HostName, "."),
		Port:       entry.Port,
		Addresses:  addresses,
		Attributes: parseTXT(entry.Text),
	}
}

// parseTXT splits DNS-SD TXT strings on the first '='. Keys without a value map to "".
// The first occurrence of a key wins.
func parseTXT(records []string) map[string]string {
	attrs := make(map[string]string, len(records))
	for _, record := range records {
		key, value, _ := strings.Cut(record, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if _, exists := attrs[key]; exists {
			continue
		}
		attrs[key] = value
	}
	return attrs
}
