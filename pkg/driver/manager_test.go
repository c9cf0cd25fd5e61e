package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrobus-protocol/astrobus-go/pkg/bus"
	"github.com/astrobus-protocol/astrobus-go/pkg/registry"
)

// fakeDriver attaches a fixed device set on Init. Registered under the
// test's name, since factory registrations are global.
type fakeDriver struct {
	name    string
	attach  []string
	initErr error

	bus         *bus.Bus
	shutdowns   int
	shutdownErr error
	tidy        bool // detach own devices on Shutdown
}

func (d *fakeDriver) Info() Info {
	return Info{Name: d.name, Label: "test driver", Version: "1.0"}
}

func (d *fakeDriver) Init(ctx context.Context, b *bus.Bus) error {
	d.bus = b
	for _, name := range d.attach {
		if err := b.AttachDevice(registry.NewDevice(name, registry.InterfaceAUX, nil)); err != nil {
			return err
		}
	}
	return d.initErr
}

func (d *fakeDriver) Shutdown(ctx context.Context) error {
	d.shutdowns++
	if d.tidy {
		for _, name := range d.attach {
			d.bus.DetachDevice(name, "shutdown")
		}
	}
	return d.shutdownErr
}

func newManager(t *testing.T) (*Manager, *bus.Bus) {
	t.Helper()
	b := bus.New(bus.Config{})
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(b.Stop)
	return NewManager(b, nil), b
}

func register(t *testing.T, d *fakeDriver) string {
	t.Helper()
	d.name = t.Name()
	Register(d.name, func() Driver { return d })
	return d.name
}

func TestLoadUnknown(t *testing.T) {
	m, _ := newManager(t)
	err := m.Load(context.Background(), "no-such-driver")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestLoadAndUnload(t *testing.T) {
	m, b := newManager(t)
	d := &fakeDriver{attach: []string{"dev-a", "dev-b"}, tidy: true}
	name := register(t, d)

	require.NoError(t, m.Load(context.Background(), name))
	assert.Equal(t, []string{name}, m.Loaded())

	_, err := b.Registry().Device("dev-a")
	require.NoError(t, err)

	assert.ErrorIs(t, m.Load(context.Background(), name), ErrAlreadyLoaded)

	require.NoError(t, m.Unload(context.Background(), name))
	assert.Equal(t, 1, d.shutdowns)
	assert.Empty(t, m.Loaded())

	_, err = b.Registry().Device("dev-a")
	assert.ErrorIs(t, err, registry.ErrUnknownDevice)

	assert.ErrorIs(t, m.Unload(context.Background(), name), ErrNotLoaded)
}

func TestLoadFailureLeavesNoDevices(t *testing.T) {
	m, b := newManager(t)
	d := &fakeDriver{attach: []string{"half-attached"}, initErr: errors.New("port not found")}
	name := register(t, d)

	err := m.Load(context.Background(), name)
	require.ErrorIs(t, err, ErrLoadFailed)
	assert.Empty(t, m.Loaded())

	_, err = b.Registry().Device("half-attached")
	assert.ErrorIs(t, err, registry.ErrUnknownDevice)

	// A failed load can be retried.
	d.initErr = nil
	require.NoError(t, m.Load(context.Background(), name))
	_, err = b.Registry().Device("half-attached")
	assert.NoError(t, err)
}

func TestUnloadDetachesLeakedDevices(t *testing.T) {
	m, b := newManager(t)
	d := &fakeDriver{attach: []string{"leaky"}} // never detaches on its own
	name := register(t, d)

	require.NoError(t, m.Load(context.Background(), name))
	require.NoError(t, m.Unload(context.Background(), name))

	_, err := b.Registry().Device("leaky")
	assert.ErrorIs(t, err, registry.ErrUnknownDevice)
}

func TestUnloadAll(t *testing.T) {
	m, _ := newManager(t)
	d1 := &fakeDriver{attach: []string{"one"}}
	d2 := &fakeDriver{attach: []string{"two"}, shutdownErr: errors.New("stuck")}
	Register(t.Name()+"-1", func() Driver { return d1 })
	Register(t.Name()+"-2", func() Driver { return d2 })

	require.NoError(t, m.Load(context.Background(), t.Name()+"-1"))
	require.NoError(t, m.Load(context.Background(), t.Name()+"-2"))

	err := m.UnloadAll(context.Background())
	assert.ErrorContains(t, err, "stuck")
	assert.Empty(t, m.Loaded())
	assert.Equal(t, 1, d1.shutdowns)
	assert.Equal(t, 1, d2.shutdowns)
}

func TestRegistered(t *testing.T) {
	d := &fakeDriver{}
	name := register(t, d)
	assert.Contains(t, Registered(), name)

	assert.Panics(t, func() { Register(name, func() Driver { return d }) })
	assert.Panics(t, func() { Register(name+"-nil", nil) })
}
