package blecentral

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// Adapter implements Central on top of tinygo.org/x/bluetooth (BlueZ over
// D-Bus on Linux).
type Adapter struct {
	id      string
	adapter *bluetooth.Adapter

	mu    sync.Mutex
	seen  map[string]bluetooth.Address
	links map[string]*peripheral
}

// NewAdapter returns a central for the named controller, "hci0" if empty.
func NewAdapter(id string) *Adapter {
	if id == "" {
		id = "hci0"
	}
	return &Adapter{
		id:      id,
		adapter: bluetooth.NewAdapter(id),
		seen:    make(map[string]bluetooth.Address),
		links:   make(map[string]*peripheral),
	}
}

func (a *Adapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return errors.Wrapf(ErrNoAdapter, "enable %s: %v", a.id, err)
	}
	a.adapter.SetConnectHandler(a.connectionChanged)
	return nil
}

func (a *Adapter) connectionChanged(device bluetooth.Device, connected bool) {
	if connected {
		return
	}
	addr := device.Address.String()
	a.mu.Lock()
	p := a.links[addr]
	delete(a.links, addr)
	a.mu.Unlock()
	if p != nil {
		log.WithField("address", addr).Info("ble link dropped")
		p.markDone()
	}
}

func (a *Adapter) Scan(ctx context.Context, window time.Duration) ([]Advertisement, error) {
	var (
		mu    sync.Mutex
		order []string
		found = make(map[string]Advertisement)
	)
	scanErr := make(chan error, 1)
	go func() {
		scanErr <- a.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
			addr := r.Address.String()
			mu.Lock()
			defer mu.Unlock()
			if _, ok := found[addr]; !ok {
				order = append(order, addr)
			}
			found[addr] = Advertisement{
				Address:   addr,
				LocalName: r.LocalName(),
				RSSI:      r.RSSI,
				SeenAt:    time.Now(),
			}
			a.mu.Lock()
			a.seen[addr] = r.Address
			a.mu.Unlock()
		})
	}()

	timer := time.NewTimer(window)
	defer timer.Stop()
	select {
	case err := <-scanErr:
		// scan ended on its own, which only happens on failure
		if err == nil {
			err = errors.New("scan stopped early")
		}
		return nil, errors.Wrap(err, "ble scan")
	case <-timer.C:
	case <-ctx.Done():
	}

	if err := stopScan(a.adapter.StopScan, scanErr); err != nil {
		return nil, errors.Wrap(err, "ble scan")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	ads := make([]Advertisement, 0, len(order))
	for _, addr := range order {
		ads = append(ads, found[addr])
	}
	return ads, nil
}

const (
	stopScanRetry    = 10 * time.Millisecond
	stopScanAttempts = 100
)

// stopScan stops a running scan and waits for the scan goroutine to return.
// StopScan fails until that goroutine has actually started scanning, so it
// is retried.
func stopScan(stop func() error, scanErr <-chan error) error {
	var err error
	for i := 0; i < stopScanAttempts; i++ {
		if err = stop(); err == nil {
			return <-scanErr
		}
		select {
		case serr := <-scanErr:
			return serr
		case <-time.After(stopScanRetry):
		}
	}
	log.WithField("err", err).Warn("unable to stop ble scan")
	return errors.Wrap(err, "stop scan")
}

func (a *Adapter) Connect(address string) (Peripheral, error) {
	a.mu.Lock()
	addr, ok := a.seen[address]
	a.mu.Unlock()
	if !ok {
		return nil, errors.Wrap(ErrUnknownPeripheral, address)
	}

	dev, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", address)
	}
	p := &peripheral{
		address: address,
		dev:     dev,
		done:    make(chan struct{}),
	}
	a.mu.Lock()
	a.links[address] = p
	a.mu.Unlock()
	return p, nil
}

type peripheral struct {
	address  string
	dev      bluetooth.Device
	services []bluetooth.DeviceService
	chars    map[string][]bluetooth.DeviceCharacteristic

	done     chan struct{}
	doneOnce sync.Once
}

func (p *peripheral) markDone() {
	p.doneOnce.Do(func() { close(p.done) })
}

func (p *peripheral) DiscoverServices() ([]string, error) {
	svcs, err := p.dev.DiscoverServices(nil)
	if err != nil {
		return nil, errors.Wrapf(err, "discover services on %s", p.address)
	}
	p.services = svcs
	p.chars = make(map[string][]bluetooth.DeviceCharacteristic)
	uuids := make([]string, 0, len(svcs))
	for _, s := range svcs {
		uuids = append(uuids, s.UUID().String())
	}
	return uuids, nil
}

func (p *peripheral) service(uuid string) (bluetooth.DeviceService, error) {
	for _, s := range p.services {
		if SameUUID(s.UUID().String(), uuid) {
			return s, nil
		}
	}
	return bluetooth.DeviceService{}, errors.Wrap(ErrServiceNotFound, uuid)
}

func (p *peripheral) DiscoverCharacteristics(service string) ([]string, error) {
	svc, err := p.service(service)
	if err != nil {
		return nil, err
	}
	chars, err := svc.DiscoverCharacteristics(nil)
	if err != nil {
		return nil, errors.Wrapf(err, "discover characteristics of %s", service)
	}
	p.chars[service] = chars
	uuids := make([]string, 0, len(chars))
	for _, c := range chars {
		uuids = append(uuids, c.UUID().String())
	}
	return uuids, nil
}

func (p *peripheral) Subscribe(service, characteristic string, fn func([]byte)) error {
	for _, c := range p.chars[service] {
		if !SameUUID(c.UUID().String(), characteristic) {
			continue
		}
		if err := c.EnableNotifications(fn); err != nil {
			return errors.Wrapf(err, "enable notifications on %s", characteristic)
		}
		return nil
	}
	return errors.Wrap(ErrCharacteristicNotFound, characteristic)
}

func (p *peripheral) Done() <-chan struct{} {
	return p.done
}

func (p *peripheral) Disconnect() error {
	defer p.markDone()
	return p.dev.Disconnect()
}
