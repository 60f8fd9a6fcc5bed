package vxdash

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vx220/vxdash/blecentral"
	"github.com/vx220/vxdash/racebox"
	"github.com/vx220/vxdash/telemetry"
)

// ErrStreamEnded is returned by the BLE link once the notification stream of
// a subscribed beacon stops. The link does not rescan on its own.
var ErrStreamEnded = errors.New("notification stream ended")

// LinkState is a stage of the BLE link.
type LinkState int32

const (
	LinkIdle LinkState = iota
	LinkScanning
	LinkConnecting
	LinkServiceDiscovery
	LinkSubscribing
	LinkStreaming
	LinkEnded
)

func (s LinkState) String() string {
	switch s {
	case LinkIdle:
		return "idle"
	case LinkScanning:
		return "scanning"
	case LinkConnecting:
		return "connecting"
	case LinkServiceDiscovery:
		return "service-discovery"
	case LinkSubscribing:
		return "subscribing"
	case LinkStreaming:
		return "streaming"
	case LinkEnded:
		return "ended"
	}
	return "unknown"
}

// scanTiers trades discovery latency against radio time: 1s for the first
// 10 cycles, 3s for the next 10, then 10s.
var scanTiers = TieredDelay(
	Tier{Cycles: 10, Delay: time.Second},
	Tier{Cycles: 10, Delay: 3 * time.Second},
	Tier{Delay: 10 * time.Second},
)

// bleDelays holds the per-state delay table. In LinkIdle it is the pause
// between adapter enable attempts, in LinkScanning the length of each scan
// window.
var bleDelays = map[LinkState]DelayPolicy{
	LinkIdle:     scanTiers,
	LinkScanning: scanTiers,
}

// to allow testing
var bleCentral = func(adapterID string) blecentral.Central {
	return blecentral.NewAdapter(adapterID)
}

// bleLink finds the position beacon, subscribes to its notifications and
// publishes every parsed payload.
type bleLink struct {
	cfg     BLEConfig
	store   *telemetry.Store
	central blecentral.Central
	delays  map[LinkState]DelayPolicy
	state   atomic.Int32
}

func newBLELink(cfg BLEConfig, store *telemetry.Store) *bleLink {
	return &bleLink{
		cfg:     cfg,
		store:   store,
		central: bleCentral(cfg.Adapter),
		delays:  bleDelays,
	}
}

func (b *bleLink) Name() string {
	return "ble"
}

func (b *bleLink) State() LinkState {
	return LinkState(b.state.Load())
}

func (b *bleLink) setState(s LinkState) {
	if prev := LinkState(b.state.Swap(int32(s))); prev != s {
		log.WithFields(log.Fields{"feed": b.Name(), "from": prev, "to": s}).Info("ble link state")
	}
}

func (b *bleLink) delay(s LinkState, attempt int) time.Duration {
	if p, ok := b.delays[s]; ok {
		return p(attempt)
	}
	return 0
}

func (b *bleLink) reportError(err error) {
	log.WithFields(log.Fields{"feed": b.Name(), "err": err}).Error("ble link")
	b.store.SetFeedError(telemetry.FeedPosition, err)
}

// Run drives the link until ctx is done or the notification stream of the
// selected beacon ends, in which case it returns ErrStreamEnded.
func (b *bleLink) Run(ctx context.Context) error {
	b.setState(LinkIdle)
	for attempt := 0; ; attempt++ {
		err := b.central.Enable()
		if err == nil {
			break
		}
		b.reportError(errors.Wrap(err, "enable adapter"))
		if err := sleep(ctx, b.delay(LinkIdle, attempt)); err != nil {
			return err
		}
	}

	for cycle := 0; ; cycle++ {
		b.setState(LinkScanning)
		window := b.delay(LinkScanning, cycle)
		ads, err := b.central.Scan(ctx, window)
		if ctx.Err() != nil {
			b.setState(LinkIdle)
			return ctx.Err()
		}
		if err != nil {
			b.reportError(errors.Wrap(err, "scan"))
			if err := sleep(ctx, window); err != nil {
				b.setState(LinkIdle)
				return err
			}
			continue
		}
		for _, ad := range ads {
			if !strings.HasPrefix(ad.LocalName, b.cfg.NamePrefix) {
				continue
			}
			p, err := b.attach(ad)
			if err != nil {
				b.reportError(err)
				continue
			}
			return b.stream(ctx, p)
		}
	}
}

// attach connects to ad and subscribes to the beacon characteristic. On
// failure the peripheral is disconnected and abandoned.
func (b *bleLink) attach(ad blecentral.Advertisement) (blecentral.Peripheral, error) {
	logger := log.WithFields(log.Fields{"feed": b.Name(), "address": ad.Address, "name": ad.LocalName})
	logger.Info("beacon found")

	b.setState(LinkConnecting)
	p, err := b.central.Connect(ad.Address)
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", ad.Address)
	}
	abandon := func(err error) (blecentral.Peripheral, error) {
		if derr := p.Disconnect(); derr != nil {
			logger.WithField("err", derr).Warn("unable to disconnect")
		}
		return nil, err
	}

	b.setState(LinkServiceDiscovery)
	services, err := p.DiscoverServices()
	if err != nil {
		return abandon(errors.Wrap(err, "discover services"))
	}
	service, ok := blecentral.FindUUID(services, b.cfg.ServiceUUID)
	if !ok {
		return abandon(errors.Wrap(blecentral.ErrServiceNotFound, b.cfg.ServiceUUID))
	}
	chars, err := p.DiscoverCharacteristics(service)
	if err != nil {
		return abandon(errors.Wrap(err, "discover characteristics"))
	}
	char, ok := blecentral.FindUUID(chars, b.cfg.CharacteristicUUID)
	if !ok {
		return abandon(errors.Wrap(blecentral.ErrCharacteristicNotFound, b.cfg.CharacteristicUUID))
	}

	b.setState(LinkSubscribing)
	if err := p.Subscribe(service, char, b.handleNotification); err != nil {
		return abandon(errors.Wrap(err, "subscribe"))
	}
	return p, nil
}

func (b *bleLink) stream(ctx context.Context, p blecentral.Peripheral) error {
	b.store.ClearFeedError(telemetry.FeedPosition)
	b.setState(LinkStreaming)
	select {
	case <-ctx.Done():
		if err := p.Disconnect(); err != nil {
			log.WithField("err", err).Warn("unable to disconnect beacon")
		}
		b.setState(LinkIdle)
		return ctx.Err()
	case <-p.Done():
		b.setState(LinkEnded)
		b.reportError(ErrStreamEnded)
		return ErrStreamEnded
	}
}

func (b *bleLink) handleNotification(payload []byte) {
	sample, err := racebox.Parse(payload)
	if err != nil {
		log.WithFields(log.Fields{"feed": b.Name(), "err": err, "len": len(payload)}).Debug("discarding payload")
		return
	}
	if !b.store.TryPublishPosition(*sample) {
		log.WithField("feed", b.Name()).Debug("store busy, position sample dropped")
	}
}

func runBLE(ctx context.Context, link *bleLink) error {
	err := link.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("ble done: %v", err)
	}
	return err
}
