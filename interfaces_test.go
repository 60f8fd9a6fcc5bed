package vxdash

import (
	"context"
	"sync"
	"time"

	"github.com/vx220/vxdash/blecentral"
	"github.com/vx220/vxdash/racebox"
	"github.com/vx220/vxdash/telemetry"
)

type portStub struct {
	chunks  chan []byte
	errChan chan error

	mu     sync.Mutex
	closed bool
}

func createPortStub() *portStub {
	return &portStub{
		chunks:  make(chan []byte),
		errChan: make(chan error),
	}
}

func (p *portStub) Read(b []byte) (int, error) {
	select {
	case c := <-p.chunks:
		return copy(b, c), nil
	case err := <-p.errChan:
		return 0, err
	case <-time.After(5 * time.Millisecond):
		// read timeout
		return 0, nil
	}
}

func (p *portStub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *portStub) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type peripheralStub struct {
	services     []string
	chars        []string
	subscribeErr error
	done         chan struct{}

	mu           sync.Mutex
	notify       func([]byte)
	disconnected bool
}

func createBeaconStub() *peripheralStub {
	return &peripheralStub{
		services: []string{"00001800-0000-1000-8000-00805f9b34fb", racebox.ServiceUUID},
		chars:    []string{"6e400002-b5a3-f393-e0a9-e50e24dcca9e", racebox.TXCharUUID},
		done:     make(chan struct{}),
	}
}

func (p *peripheralStub) DiscoverServices() ([]string, error) {
	return p.services, nil
}

func (p *peripheralStub) DiscoverCharacteristics(service string) ([]string, error) {
	return p.chars, nil
}

func (p *peripheralStub) Subscribe(service, characteristic string, fn func([]byte)) error {
	if p.subscribeErr != nil {
		return p.subscribeErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notify = fn
	return nil
}

func (p *peripheralStub) Done() <-chan struct{} {
	return p.done
}

func (p *peripheralStub) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnected = true
	return nil
}

func (p *peripheralStub) send(payload []byte) {
	p.mu.Lock()
	fn := p.notify
	p.mu.Unlock()
	fn(payload)
}

func (p *peripheralStub) isDisconnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnected
}

type centralStub struct {
	mu          sync.Mutex
	enableErrs  []error
	scanErrs    []error
	scans       [][]blecentral.Advertisement
	windows     []time.Duration
	connected   []string
	peripherals map[string]*peripheralStub
	scanHook    func(cycle int)
}

func (c *centralStub) Enable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.enableErrs) == 0 {
		return nil
	}
	err := c.enableErrs[0]
	c.enableErrs = c.enableErrs[1:]
	return err
}

func (c *centralStub) Scan(ctx context.Context, window time.Duration) ([]blecentral.Advertisement, error) {
	c.mu.Lock()
	c.windows = append(c.windows, window)
	cycle := len(c.windows) - 1
	hook := c.scanHook
	var scanErr error
	var ads []blecentral.Advertisement
	if len(c.scanErrs) > 0 {
		scanErr = c.scanErrs[0]
		c.scanErrs = c.scanErrs[1:]
	} else if len(c.scans) > 0 {
		ads = c.scans[0]
		c.scans = c.scans[1:]
	}
	c.mu.Unlock()

	if hook != nil {
		hook(cycle)
	}
	if scanErr != nil {
		return nil, scanErr
	}
	if ads == nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return ads, nil
}

func (c *centralStub) Connect(address string) (blecentral.Peripheral, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = append(c.connected, address)
	p, ok := c.peripherals[address]
	if !ok {
		return nil, blecentral.ErrUnknownPeripheral
	}
	return p, nil
}

func (c *centralStub) connectOrder() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.connected...)
}

type forwarderStub struct {
	mu    sync.Mutex
	calls int
	cur   telemetry.Snapshot
	prev  telemetry.Snapshot
	err   error
}

func (fwd *forwarderStub) Forward(cur *telemetry.Snapshot, prev *telemetry.Snapshot) error {
	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	fwd.calls++
	fwd.cur = *cur
	fwd.prev = *prev
	return fwd.err
}

func (fwd *forwarderStub) state() (int, telemetry.Snapshot) {
	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	return fwd.calls, fwd.cur
}
