package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/astrobus-protocol/astrobus-go/pkg/property"
	"github.com/astrobus-protocol/astrobus-go/pkg/registry"
)

// Synthetic frame geometry.
const (
	frameWidth  = 64
	frameHeight = 64
)

// initCCD attaches the camera and defines its properties.
func (s *Simulator) initCCD() error {
	dev := registry.NewDevice(CCDName, registry.InterfaceCCD, s.handleCCDChange)
	if err := s.bus.AttachDevice(dev); err != nil {
		return err
	}

	connection, err := newConnectionProperty()
	if err != nil {
		return err
	}
	if err := s.bus.Registry().Define(CCDName, connection, ""); err != nil {
		return err
	}

	info, err := property.NewText("info", "Main", "Camera info", property.PermReadOnly,
		property.Item{Name: "model", Label: "Model", Value: property.TextValue{Value: "SimCam 64"}})
	if err != nil {
		return err
	}
	if err := s.bus.Registry().Define(CCDName, info, ""); err != nil {
		return err
	}

	exposure, err := property.NewNumber("exposure", "Imaging", "Start exposure", property.PermReadWrite,
		property.Item{Name: "duration", Label: "Duration", Value: property.NumberValue{
			Value: 0, Min: 0, Max: 3600, Step: 0.01, Format: "%8.2f", Unit: "s",
		}})
	if err != nil {
		return err
	}
	if err := s.bus.Registry().Define(CCDName, exposure, ""); err != nil {
		return err
	}

	image, err := property.NewBlob("image", "Imaging", "Image data",
		property.Item{Name: "frame", Label: "Frame", Value: property.BlobValue{
			ContentType: ".raw",
		}})
	if err != nil {
		return err
	}
	return s.bus.Registry().Define(CCDName, image, "")
}

// handleCCDChange routes client changes for the camera.
func (s *Simulator) handleCCDChange(ctx context.Context, name string, values map[string]property.Value) error {
	switch name {
	case "connection":
		return s.handleConnection(CCDName, values, func(on bool) { s.ccdConnected = on })
	case "exposure":
		return s.startExposure(values)
	default:
		return fmt.Errorf("%s/%s does not accept changes", CCDName, name)
	}
}

// startExposure validates and commits the requested duration with state
// busy, then runs the exposure in the background. The request returns as
// soon as the busy update is committed.
func (s *Simulator) startExposure(values map[string]property.Value) error {
	s.mu.Lock()
	connected := s.ccdConnected
	s.mu.Unlock()
	if err := requireConnected(CCDName, connected); err != nil {
		return err
	}

	var duration float64
	err := s.bus.Registry().Update(CCDName, "exposure", "exposure started", func(p *property.Property) error {
		if err := p.ApplyChange(values); err != nil {
			return err
		}
		it, err := p.Item("duration")
		if err != nil {
			return err
		}
		duration = it.Value.(property.NumberValue).Value
		p.State = property.StateBusy
		return nil
	})
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go s.expose(duration)
	return nil
}

// expose waits out the exposure and publishes the frame. On shutdown the
// exposure is aborted with an alert.
func (s *Simulator) expose(duration float64) {
	defer s.wg.Done()

	select {
	case <-time.After(time.Duration(duration * float64(s.ExposureUnit))):
	case <-s.runCtx.Done():
		_ = s.bus.Registry().Update(CCDName, "exposure", "exposure aborted", func(p *property.Property) error {
			p.State = property.StateAlert
			return nil
		})
		return
	}

	frame := synthesizeFrame(frameWidth, frameHeight)
	_ = s.bus.Registry().Update(CCDName, "image", "exposure complete", func(p *property.Property) error {
		it, err := p.Item("frame")
		if err != nil {
			return err
		}
		it.Value = property.BlobValue{
			ContentType: ".raw",
			Size:        int64(len(frame)),
			Data:        frame,
		}
		p.State = property.StateOK
		return nil
	})

	_ = s.bus.Registry().Update(CCDName, "exposure", "", func(p *property.Property) error {
		it, err := p.Item("duration")
		if err != nil {
			return err
		}
		nv := it.Value.(property.NumberValue)
		nv.Value = 0
		it.Value = nv
		p.State = property.StateOK
		return nil
	})
}

// synthesizeFrame renders a deterministic diagonal gradient, one byte per
// pixel.
func synthesizeFrame(width, height int) []byte {
	frame := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			frame[y*width+x] = byte((x + y) % 256)
		}
	}
	return frame
}
