package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/astrobus-protocol/astrobus-go/pkg/version"
)

// Service registration constants.
const (
	// ServiceType is the mDNS service type hubs register under.
	ServiceType = "_astrobus._tcp"

	// Domain is the mDNS domain.
	Domain = "local."
)

// ErrServiceNotFound indicates no matching hub was found before the
// deadline.
var ErrServiceNotFound = errors.New("service not found")

// AnnouncerConfig configures hub announcements.
type AnnouncerConfig struct {
	// Interface restricts announcements to one network interface.
	// Empty means all interfaces.
	Interface string

	// TTL for the mDNS records. Zero uses the zeroconf default.
	TTL time.Duration
}

// Announcer registers a hub on the local network.
type Announcer struct {
	config AnnouncerConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAnnouncer creates an announcer.
func NewAnnouncer(config AnnouncerConfig) *Announcer {
	return &Announcer{config: config}
}

// Announce registers the hub under the given instance name. Announcing
// again replaces the previous registration.
func (a *Announcer) Announce(name string, port int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		name,
		ServiceType,
		Domain,
		port,
		[]string{version.TXTRecord()},
		a.interfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	a.server = server
	return nil
}

// Stop withdraws the announcement. Safe to call more than once.
func (a *Announcer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// interfaces returns the network interfaces to announce on, nil for all.
func (a *Announcer) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Service is one discovered hub.
type Service struct {
	// Name is the mDNS instance name.
	Name string

	// Host is the advertised host name.
	Host string

	// Port is the hub's TCP port.
	Port int

	// Addresses are the hub's IP addresses, all interfaces merged.
	Addresses []string
}

// Addr returns a dialable "address:port" for the first known address.
func (s *Service) Addr() string {
	if len(s.Addresses) == 0 {
		return fmt.Sprintf("%s:%d", s.Host, s.Port)
	}
	return net.JoinHostPort(s.Addresses[0], fmt.Sprintf("%d", s.Port))
}

// Browse streams hubs as they are discovered, until ctx is cancelled.
// Each instance name is emitted once; addresses seen later on other
// interfaces are merged into the already emitted service.
func Browse(ctx context.Context) (<-chan *Service, error) {
	out := make(chan *Service)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		services := make(map[string]*Service)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entryToService(entry)
				if existing, found := services[svc.Name]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				services[svc.Name] = svc
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}
			case entry, ok := <-removed:
				if !ok {
					continue
				}
				delete(services, entry.Instance)
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed)
	}()

	return out, nil
}

// Resolve finds the hub with the given instance name. Bound the wait with
// a context deadline; expiry yields ErrServiceNotFound.
func Resolve(ctx context.Context, name string) (*Service, error) {
	results, err := Browse(ctx)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case svc, ok := <-results:
			if !ok {
				return nil, ErrServiceNotFound
			}
			if svc.Name == name {
				return svc, nil
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
		}
	}
}

// entryToService converts a zeroconf entry.
func entryToService(entry *zeroconf.ServiceEntry) *Service {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return &Service{
		Name:      entry.Instance,
		Host:      entry.HostName,
		Port:      entry.Port,
		Addresses: addrs,
	}
}

// mergeAddresses adds new addresses to the list, avoiding duplicates.
func mergeAddresses(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range extra {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}
