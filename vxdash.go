// Package vxdash ingests the engine microcontroller's serial frames and the
// position beacon's BLE notifications into one shared telemetry store, and
// forwards every changed snapshot.
package vxdash

import (
	"context"
	"time"

	"github.com/google/go-cmp/cmp"
	log "github.com/sirupsen/logrus"
	"github.com/vx220/vxdash/telemetry"
)

type Dash struct {
	// Snapshot is the last snapshot seen by CheckSnapshot.
	Snapshot telemetry.Snapshot

	cfg          *Config
	store        *telemetry.Store
	forwarders   []Forwarder
	prevSnapshot telemetry.Snapshot
	testMode     bool
	ble          *bleLink
}

func New(cfg *Config) *Dash {
	store := telemetry.NewStore()
	return &Dash{
		Snapshot:     store.Snapshot(),
		prevSnapshot: store.Snapshot(),
		cfg:          cfg,
		store:        store,
	}
}

// Store is the handle shared with the renderer and the control surface.
func (d *Dash) Store() *telemetry.Store {
	return d.store
}

func (d *Dash) AddForwarder(fwd Forwarder) {
	d.forwarders = append(d.forwarders, fwd)
}

func (d *Dash) SetTestMode(testMode bool) {
	d.testMode = testMode
}

// BLEState is the current stage of the BLE link, LinkIdle when it is not
// running.
func (d *Dash) BLEState() LinkState {
	if d.ble == nil {
		return LinkIdle
	}
	return d.ble.State()
}

// Start launches the enabled links, or the synthetic feeds in test mode.
func (d *Dash) Start(ctx context.Context) {
	if d.testMode {
		log.Info("test mode, generating synthetic telemetry")
		d.runTestMode(ctx)
		return
	}
	if d.cfg.Serial.Enabled {
		go func() {
			_ = runSerial(ctx, d.cfg.Serial, d.store)
		}()
	}
	if d.cfg.BLE.Enabled {
		d.ble = newBLELink(d.cfg.BLE, d.store)
		go func() {
			_ = runBLE(ctx, d.ble)
		}()
	}
}

// CheckSnapshot takes a snapshot without waiting for the store and reports
// whether it differs from the previous one. A contended store counts as
// unchanged.
func (d *Dash) CheckSnapshot() (changed bool) {
	snap, ok := d.store.TrySnapshot()
	if !ok {
		return false
	}
	if cmp.Equal(d.Snapshot, snap) {
		return false
	}
	d.prevSnapshot = d.Snapshot
	d.Snapshot = snap
	return true
}

func (d *Dash) TelemetryUpdate() {
	for _, fwd := range d.forwarders {
		if err := fwd.Forward(&d.Snapshot, &d.prevSnapshot); err != nil {
			log.WithField("err", err).Warn("unable to forward snapshot")
		}
	}
}

// Run starts the links and forwards changed snapshots every forward
// interval until ctx is done.
func (d *Dash) Run(ctx context.Context) error {
	d.Start(ctx)
	ticker := time.NewTicker(d.cfg.ForwardInterval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if d.CheckSnapshot() {
			d.TelemetryUpdate()
		}
	}
}
