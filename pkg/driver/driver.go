package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/astrobus-protocol/astrobus-go/pkg/bus"
)

// Info describes a driver.
type Info struct {
	// Name is the registration name, used to load the driver.
	Name string

	// Label is a human-readable description.
	Label string

	// Version is the driver version string.
	Version string
}

// Driver is a loadable unit of device support.
type Driver interface {
	// Info returns the driver's description.
	Info() Info

	// Init attaches the driver's devices and defines their properties.
	// A returned error fails the load; any devices attached before the
	// failure are removed by the manager.
	Init(ctx context.Context, b *bus.Bus) error

	// Shutdown detaches the driver's devices and releases resources.
	// Called at most once, only after a successful Init.
	Shutdown(ctx context.Context) error
}

// Factory creates a fresh driver instance.
type Factory func() Driver

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a driver available under the given name. Intended to be
// called from driver package init functions. Panics if the name is taken
// or the factory is nil.
func Register(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if factory == nil {
		panic("driver: Register with nil factory")
	}
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("driver: Register called twice for %q", name))
	}
	factories[name] = factory
}

// Registered returns the names of all registered drivers, sorted.
func Registered() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}
