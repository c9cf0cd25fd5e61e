package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/astrobus-protocol/astrobus-go/pkg/bus"
	"github.com/astrobus-protocol/astrobus-go/pkg/driver"
	"github.com/astrobus-protocol/astrobus-go/pkg/property"
)

// DriverName is the registration name.
const DriverName = "simulator"

// Device names.
const (
	CCDName     = "Simulator CCD"
	FocuserName = "Simulator Focuser"
)

func init() {
	driver.Register(DriverName, func() driver.Driver { return New() })
}

// Simulator is the driver unit holding both simulated devices.
type Simulator struct {
	// ExposureUnit is the wall-clock duration of one exposure second.
	// Tests shorten it.
	ExposureUnit time.Duration

	bus    *bus.Bus
	cancel context.CancelFunc
	runCtx context.Context
	wg     sync.WaitGroup

	mu               sync.Mutex
	ccdConnected     bool
	focuserConnected bool
}

// New creates an unloaded simulator driver.
func New() *Simulator {
	return &Simulator{ExposureUnit: time.Second}
}

// Info returns the driver description.
func (s *Simulator) Info() driver.Info {
	return driver.Info{
		Name:    DriverName,
		Label:   "CCD and focuser simulator",
		Version: "1.0.0",
	}
}

// Init attaches both devices and defines their properties.
func (s *Simulator) Init(ctx context.Context, b *bus.Bus) error {
	s.bus = b
	s.runCtx, s.cancel = context.WithCancel(context.Background())

	if err := s.initCCD(); err != nil {
		return err
	}
	return s.initFocuser()
}

// Shutdown aborts running exposures and detaches both devices.
func (s *Simulator) Shutdown(ctx context.Context) error {
	s.cancel()
	s.wg.Wait()

	s.bus.DetachDevice(CCDName, "simulator unloaded")
	s.bus.DetachDevice(FocuserName, "simulator unloaded")
	return nil
}

// newConnectionProperty builds the standard connection switch, initially
// disconnected.
func newConnectionProperty() (*property.Property, error) {
	return property.NewSwitch("connection", "Main", "Connection", property.PermReadWrite,
		property.RuleOneOfMany,
		property.Item{Name: "connected", Label: "Connected", Value: property.SwitchValue{On: false}},
		property.Item{Name: "disconnected", Label: "Disconnected", Value: property.SwitchValue{On: true}},
	)
}

// handleConnection commits a connection switch change and reports the new
// state through the provided setter.
func (s *Simulator) handleConnection(device string, values map[string]property.Value, set func(bool)) error {
	var connected bool
	err := s.bus.Registry().Update(device, "connection", "", func(p *property.Property) error {
		if err := p.ApplyChange(values); err != nil {
			return err
		}
		it, err := p.Item("connected")
		if err != nil {
			return err
		}
		connected = it.Value.(property.SwitchValue).On
		p.State = property.StateOK
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	set(connected)
	s.mu.Unlock()
	return nil
}

// requireConnected fails a change on a disconnected device.
func requireConnected(device string, connected bool) error {
	if !connected {
		return fmt.Errorf("%s is not connected", device)
	}
	return nil
}
