package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrobus-protocol/astrobus-go/pkg/bus"
	"github.com/astrobus-protocol/astrobus-go/pkg/property"
	"github.com/astrobus-protocol/astrobus-go/pkg/registry"
	"github.com/astrobus-protocol/astrobus-go/pkg/wire"
)

func startSimulator(t *testing.T) (*Simulator, *bus.Bus) {
	t.Helper()
	b := bus.New(bus.Config{})
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(b.Stop)

	sim := New()
	sim.ExposureUnit = time.Millisecond
	require.NoError(t, sim.Init(context.Background(), b))
	t.Cleanup(func() { _ = sim.Shutdown(context.Background()) })
	return sim, b
}

func recvUpdate(t *testing.T, c *bus.Client, device, name string) *wire.Update {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case m, ok := <-c.Messages():
			require.True(t, ok, "queue closed")
			if m.Update != nil && m.Update.Device == device && m.Update.Name == name {
				return m.Update
			}
		case <-deadline:
			t.Fatalf("timed out waiting for update of %s/%s", device, name)
			return nil
		}
	}
}

func connect(t *testing.T, b *bus.Bus, device string) {
	t.Helper()
	err := b.ChangeRequest(context.Background(), nil, device, "connection",
		map[string]property.Value{"connected": property.SwitchValue{On: true}})
	require.NoError(t, err)
}

func TestInitDefinesDevices(t *testing.T) {
	_, b := startSimulator(t)

	ccd, err := b.Registry().Device(CCDName)
	require.NoError(t, err)
	assert.True(t, ccd.Interfaces().Has(registry.InterfaceCCD))

	for _, name := range []string{"connection", "info", "exposure", "image"} {
		_, err := ccd.Property(name)
		assert.NoError(t, err, name)
	}

	focuser, err := b.Registry().Device(FocuserName)
	require.NoError(t, err)
	for _, name := range []string{"connection", "position"} {
		_, err := focuser.Property(name)
		assert.NoError(t, err, name)
	}
}

func TestConnectionSwitchIsRadio(t *testing.T) {
	_, b := startSimulator(t)
	connect(t, b, CCDName)

	dev, err := b.Registry().Device(CCDName)
	require.NoError(t, err)
	p, err := dev.Property("connection")
	require.NoError(t, err)

	on, err := p.Item("connected")
	require.NoError(t, err)
	off, err := p.Item("disconnected")
	require.NoError(t, err)
	assert.True(t, on.Value.(property.SwitchValue).On)
	assert.False(t, off.Value.(property.SwitchValue).On, "radio resets the sibling")
	assert.Equal(t, property.StateOK, p.State)
}

func TestExposureLifecycle(t *testing.T) {
	_, b := startSimulator(t)

	c := b.AttachClient()
	b.SetBlobMode(c, CCDName, "image", wire.BlobAlso)

	connect(t, b, CCDName)

	err := b.ChangeRequest(context.Background(), nil, CCDName, "exposure",
		map[string]property.Value{"duration": property.NumberValue{Value: 0.05}})
	require.NoError(t, err)

	// Busy first, with the requested duration.
	u := recvUpdate(t, c, CCDName, "exposure")
	assert.Equal(t, "busy", u.State)
	assert.Equal(t, 0.05, u.Items[0].Number.Value)

	// Then the frame arrives.
	u = recvUpdate(t, c, CCDName, "image")
	assert.Equal(t, "ok", u.State)
	blob := u.Items[0].Blob
	require.NotNil(t, blob)
	assert.Equal(t, int64(frameWidth*frameHeight), blob.Size)
	assert.Len(t, blob.Data, frameWidth*frameHeight)

	// And the exposure settles back to ok.
	u = recvUpdate(t, c, CCDName, "exposure")
	assert.Equal(t, "ok", u.State)
	assert.Equal(t, 0.0, u.Items[0].Number.Value)
}

func TestExposureRequiresConnection(t *testing.T) {
	_, b := startSimulator(t)

	err := b.ChangeRequest(context.Background(), nil, CCDName, "exposure",
		map[string]property.Value{"duration": property.NumberValue{Value: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestFocuserMove(t *testing.T) {
	_, b := startSimulator(t)
	connect(t, b, FocuserName)

	err := b.ChangeRequest(context.Background(), nil, FocuserName, "position",
		map[string]property.Value{"value": property.NumberValue{Value: 150}})
	assert.ErrorIs(t, err, property.ErrOutOfRange)

	err = b.ChangeRequest(context.Background(), nil, FocuserName, "position",
		map[string]property.Value{"value": property.NumberValue{Value: 75}})
	require.NoError(t, err)

	dev, err := b.Registry().Device(FocuserName)
	require.NoError(t, err)
	p, err := dev.Property("position")
	require.NoError(t, err)
	it, err := p.Item("value")
	require.NoError(t, err)
	assert.Equal(t, 75.0, it.Value.(property.NumberValue).Value)
	assert.Equal(t, property.StateOK, p.State)
}

func TestShutdownDetachesDevices(t *testing.T) {
	b := bus.New(bus.Config{})
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(b.Stop)

	sim := New()
	sim.ExposureUnit = time.Millisecond
	require.NoError(t, sim.Init(context.Background(), b))
	require.NoError(t, sim.Shutdown(context.Background()))

	_, err := b.Registry().Device(CCDName)
	assert.Error(t, err)
	_, err = b.Registry().Device(FocuserName)
	assert.Error(t, err)
}

func TestSynthesizeFrame(t *testing.T) {
	frame := synthesizeFrame(4, 2)
	assert.Equal(t, []byte{0, 1, 2, 3, 1, 2, 3, 4}, frame)
}
