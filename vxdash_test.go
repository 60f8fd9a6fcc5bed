package vxdash

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vx220/vxdash/telemetry"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Serial.Enabled = false
	cfg.BLE.Enabled = false
	cfg.ForwardInterval = Duration{5 * time.Millisecond}
	return cfg
}

func TestCheckSnapshot(t *testing.T) {
	d := New(testConfig())
	assert.False(t, d.CheckSnapshot(), "fresh store is unchanged")

	rpm := uint16(3000)
	d.Store().PublishEngine(telemetry.EngineSample{RPM: &rpm})
	assert.True(t, d.CheckSnapshot())
	assert.Equal(t, uint16(3000), *d.Snapshot.Engine.RPM)

	// same values again
	same := uint16(3000)
	d.Store().PublishEngine(telemetry.EngineSample{RPM: &same})
	prev := d.Snapshot
	assert.False(t, d.CheckSnapshot())
	assert.Equal(t, prev, d.Snapshot)

	d.Store().SetDriveMode(telemetry.DriveModeTrack)
	assert.True(t, d.CheckSnapshot())
	assert.Equal(t, telemetry.DriveModeTrack, d.Snapshot.DriveMode)
	assert.Equal(t, uint16(3000), *d.Snapshot.Engine.RPM)

	d.Store().SetFeedError(telemetry.FeedPosition, errors.New("scan"))
	assert.True(t, d.CheckSnapshot())
	assert.NotNil(t, d.Snapshot.PositionError)
}

func TestTelemetryUpdate(t *testing.T) {
	d := New(testConfig())
	ok := &forwarderStub{}
	failing := &forwarderStub{err: errors.New("unreachable")}
	d.AddForwarder(failing)
	d.AddForwarder(ok)

	d.Store().PublishPosition(telemetry.PositionSample{Latitude: 48.1})
	require.True(t, d.CheckSnapshot())
	d.TelemetryUpdate()

	calls, cur := ok.state()
	assert.Equal(t, 1, calls, "a failing forwarder does not stop the others")
	require.NotNil(t, cur.Position)
	assert.Equal(t, 48.1, cur.Position.Latitude)
	assert.Nil(t, ok.prev.Position)
	calls, _ = failing.state()
	assert.Equal(t, 1, calls)
}

func TestRunForwardsChanges(t *testing.T) {
	d := New(testConfig())
	fwd := &forwarderStub{}
	d.AddForwarder(fwd)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- d.Run(ctx)
	}()

	d.Store().SetColorScheme(telemetry.ColorSchemeDark)
	assert.Eventually(t, func() bool {
		calls, cur := fwd.state()
		return calls == 1 && cur.ColorScheme == telemetry.ColorSchemeDark
	}, time.Second, time.Millisecond)

	// nothing changed, nothing forwarded
	time.Sleep(30 * time.Millisecond)
	calls, _ := fwd.state()
	assert.Equal(t, 1, calls)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, LinkIdle, d.BLEState())
}

func TestTestModeFeedsDecoders(t *testing.T) {
	d := New(testConfig())
	d.SetTestMode(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	assert.Eventually(t, func() bool {
		snap := d.Store().Snapshot()
		return snap.Position != nil && !snap.Engine.IsEmpty()
	}, 2*time.Second, 10*time.Millisecond)

	snap := d.Store().Snapshot()
	assert.InDelta(t, 48.123456, snap.Position.Latitude, 1e-6)
	require.NotNil(t, snap.Engine.TyrePressures[0])
	assert.Equal(t, uint16(2200), *snap.Engine.TyrePressures[0])
	require.NotNil(t, snap.Engine.Status)
	assert.True(t, snap.Engine.Status.HighBeam)
}

func TestMockEngineSetsFields(t *testing.T) {
	for _, phase := range []float64{0, 1.3, 7.7} {
		sample := mockEngine(phase)
		assert.Equal(t, int16(300), *sample.TyreTemps[0])
		assert.NotNil(t, sample.RPM)
		assert.NotNil(t, sample.GearPosition)
	}
}
