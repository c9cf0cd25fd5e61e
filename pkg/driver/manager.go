package driver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/astrobus-protocol/astrobus-go/pkg/bus"
	"github.com/astrobus-protocol/astrobus-go/pkg/buslog"
	"github.com/astrobus-protocol/astrobus-go/pkg/wire"
)

// Manager errors.
var (
	// ErrUnknownDriver is returned when loading a name nothing registered.
	ErrUnknownDriver = errors.New("unknown driver")

	// ErrAlreadyLoaded is returned when loading a driver twice.
	ErrAlreadyLoaded = errors.New("driver already loaded")

	// ErrNotLoaded is returned when unloading a driver that is not loaded.
	ErrNotLoaded = errors.New("driver not loaded")

	// ErrLoadFailed wraps a driver's Init failure.
	ErrLoadFailed = errors.New("driver load failed")
)

// unit is one loaded driver and the devices attributed to it.
type unit struct {
	driver  Driver
	devices map[string]struct{}
}

// Manager loads and unloads drivers on one bus. It installs itself as the
// bus's device observer to attribute attached devices to the driver whose
// Init is running, so load failures and shutdowns can be cleaned up.
type Manager struct {
	bus    *bus.Bus
	logger buslog.Logger

	mu     sync.Mutex
	loaded map[string]*unit

	obsMu   sync.Mutex
	loading *unit
	owners  map[string]*unit
}

// NewManager creates a manager bound to the bus. Only one manager per bus
// is supported.
func NewManager(b *bus.Bus, logger buslog.Logger) *Manager {
	if logger == nil {
		logger = buslog.NoopLogger{}
	}
	m := &Manager{
		bus:    b,
		logger: logger,
		loaded: make(map[string]*unit),
		owners: make(map[string]*unit),
	}
	b.SetDeviceObserver(m.observeDevice)
	return m
}

// observeDevice attributes device lifecycle events to the driver whose
// Init is currently running. Devices attached outside a load are unowned
// and are not cleaned up on unload.
func (m *Manager) observeDevice(device string, attached bool) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()

	if attached {
		if m.loading != nil {
			m.loading.devices[device] = struct{}{}
			m.owners[device] = m.loading
		}
		return
	}
	if owner, ok := m.owners[device]; ok {
		delete(owner.devices, device)
		delete(m.owners, device)
	}
}

// Load instantiates and initializes the named driver. On Init failure all
// devices the driver attached are detached again, so a failed load leaves
// no trace on the bus.
func (m *Manager) Load(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.loaded[name]; dup {
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, name)
	}
	factory, ok := lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDriver, name)
	}

	u := &unit{driver: factory(), devices: make(map[string]struct{})}

	m.obsMu.Lock()
	m.loading = u
	m.obsMu.Unlock()

	err := u.driver.Init(ctx, m.bus)

	m.obsMu.Lock()
	m.loading = nil
	m.obsMu.Unlock()

	if err != nil {
		for _, device := range m.ownedDevices(u) {
			m.bus.DetachDevice(device, "driver load failed")
		}
		m.logDriverState(name, "", "failed", err.Error())
		return fmt.Errorf("%w: %s: %v", ErrLoadFailed, name, err)
	}

	m.loaded[name] = u
	m.logDriverState(name, "", "loaded", "")
	m.bus.SendMessage("", fmt.Sprintf("driver %s loaded", name), wire.SeverityInfo)
	return nil
}

// Unload shuts the named driver down. Devices the driver leaves attached
// after Shutdown are detached by the manager.
func (m *Manager) Unload(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.loaded[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, name)
	}
	delete(m.loaded, name)

	err := u.driver.Shutdown(ctx)
	for _, device := range m.ownedDevices(u) {
		m.bus.DetachDevice(device, "driver unloaded")
	}

	m.logDriverState(name, "loaded", "unloaded", "")
	m.bus.SendMessage("", fmt.Sprintf("driver %s unloaded", name), wire.SeverityInfo)

	if err != nil {
		return fmt.Errorf("shutting down driver %s: %w", name, err)
	}
	return nil
}

// UnloadAll unloads every loaded driver. The first error is returned, but
// all drivers are attempted.
func (m *Manager) UnloadAll(ctx context.Context) error {
	var first error
	for _, name := range m.Loaded() {
		if err := m.Unload(ctx, name); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Loaded returns the names of all loaded drivers, sorted.
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.loaded))
	for name := range m.loaded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ownedDevices snapshots the devices currently attributed to the unit.
func (m *Manager) ownedDevices(u *unit) []string {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()

	devices := make([]string, 0, len(u.devices))
	for device := range u.devices {
		devices = append(devices, device)
	}
	sort.Strings(devices)
	return devices
}

func (m *Manager) logDriverState(name, old, next, reason string) {
	if reason == "" {
		reason = name
	} else {
		reason = name + ": " + reason
	}
	m.logger.Log(buslog.Event{
		Timestamp: time.Now(),
		Layer:     buslog.LayerBus,
		Category:  buslog.CategoryState,
		StateChange: &buslog.StateChangeEvent{
			Entity:   buslog.StateEntityDriver,
			OldState: old,
			NewState: next,
			Reason:   reason,
		},
	})
}
