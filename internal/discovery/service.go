package discovery

import "context"

// EventKind tells whether an instance appeared or went away
type EventKind int

const (
	// EventFound is delivered when an instance announces itself
	EventFound EventKind = iota

	// EventLost is delivered when an instance withdraws its announcement
	EventLost
)

// String returns the lower case event kind, as used in logs and metrics
func (k EventKind) String() string {
	switch k {
	case EventFound:
		return "found"
	case EventLost:
		return "lost"
	default:
		return "unknown"
	}
}

// Event is a single announcement delivered by a Service
type Event struct {
	Kind EventKind

	// Instance is the service instance name from the announcement
	Instance string

	// Host is the target host name of the announcement
	Host string

	// Port is the announced service port
	Port int

	// Addresses holds the resolved IPv4 and IPv6 addresses
	Addresses []string

	// Attributes are the TXT record key/value pairs
	Attributes map[string]string
}

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go Service

// Service is the browse and advertise capability a Collector drives.
// Stop methods must be idempotent and safe to call when nothing is running.
type Service interface {
	// StartBrowse begins browsing and delivers announcements on events until StopBrowse
	StartBrowse(ctx context.Context, events chan<- Event) error

	// StopBrowse stops browsing
	StopBrowse()

	// StartAdvertise announces this client on the network
	StartAdvertise(ctx context.Context) error

	// StopAdvertise withdraws the announcement
	StopAdvertise()
}
