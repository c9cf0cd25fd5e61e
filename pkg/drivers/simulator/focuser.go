package simulator

import (
	"context"
	"fmt"

	"github.com/astrobus-protocol/astrobus-go/pkg/property"
	"github.com/astrobus-protocol/astrobus-go/pkg/registry"
)

// initFocuser attaches the focuser and defines its properties.
func (s *Simulator) initFocuser() error {
	dev := registry.NewDevice(FocuserName, registry.InterfaceFocuser, s.handleFocuserChange)
	if err := s.bus.AttachDevice(dev); err != nil {
		return err
	}

	connection, err := newConnectionProperty()
	if err != nil {
		return err
	}
	if err := s.bus.Registry().Define(FocuserName, connection, ""); err != nil {
		return err
	}

	position, err := property.NewNumber("position", "Main", "Absolute position", property.PermReadWrite,
		property.Item{Name: "value", Label: "Position", Value: property.NumberValue{
			Value: 50, Min: 0, Max: 100, Step: 1, Format: "%5.0f",
		}})
	if err != nil {
		return err
	}
	return s.bus.Registry().Define(FocuserName, position, "")
}

// handleFocuserChange routes client changes for the focuser. Moves are
// instantaneous: the position commits synchronously with state ok.
func (s *Simulator) handleFocuserChange(ctx context.Context, name string, values map[string]property.Value) error {
	switch name {
	case "connection":
		return s.handleConnection(FocuserName, values, func(on bool) { s.focuserConnected = on })
	case "position":
		s.mu.Lock()
		connected := s.focuserConnected
		s.mu.Unlock()
		if err := requireConnected(FocuserName, connected); err != nil {
			return err
		}
		return s.bus.Registry().Update(FocuserName, "position", "", func(p *property.Property) error {
			if err := p.ApplyChange(values); err != nil {
				return err
			}
			p.State = property.StateOK
			return nil
		})
	default:
		return fmt.Errorf("%s/%s does not accept changes", FocuserName, name)
	}
}
