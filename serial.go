package vxdash

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vx220/vxdash/telemetry"
	"github.com/vx220/vxdash/tlvframe"
	"go.bug.st/serial"
)

const serialReadSize = 64

// to allow testing
var serialOpen = func(cfg SerialConfig) (SerialPort, error) {
	port, err := serial.Open(cfg.Device, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", cfg.Device)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout.Duration); err != nil {
		_ = port.Close()
		return nil, errors.Wrapf(err, "unable to set read timeout on %s", cfg.Device)
	}
	return port, nil
}

// serialLink reads engine frames from the microcontroller UART.
type serialLink struct {
	cfg   SerialConfig
	store *telemetry.Store
	port  SerialPort
	now   func() time.Time

	framer tlvframe.Framer

	lastGood   *telemetry.EngineSample
	retainedAt time.Time
}

func newSerialLink(cfg SerialConfig, store *telemetry.Store) *serialLink {
	return &serialLink{
		cfg:   cfg,
		store: store,
		now:   time.Now,
	}
}

func (s *serialLink) Name() string {
	return "serial"
}

func (s *serialLink) Open() error {
	port, err := serialOpen(s.cfg)
	if err != nil {
		return err
	}
	s.port = port
	s.framer.Reset()
	log.WithField("device", s.cfg.Device).Info("serial link open")
	return nil
}

func (s *serialLink) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

func (s *serialLink) Start(ctx context.Context) error {
	buf := make([]byte, serialReadSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := s.port.Read(buf)
		for _, b := range buf[:n] {
			s.feed(b)
		}
		s.retain()
		if err != nil {
			return errors.Wrap(err, "serial read")
		}
	}
}

// feed pushes one byte through the framer and publishes any frame it
// completes.
func (s *serialLink) feed(b byte) {
	raw, ok := s.framer.Feed(b)
	if !ok {
		return
	}
	frame, err := tlvframe.Decode(raw)
	if err != nil {
		log.WithFields(log.Fields{"feed": s.Name(), "err": err}).Debug("discarding frame")
		return
	}
	sample := frame.Sample
	s.lastGood = &sample
	s.retainedAt = s.now()
	if !s.store.TryPublishEngine(sample) {
		log.WithField("feed", s.Name()).Debug("store busy, engine sample dropped")
	}
}

// retain republishes the last good sample once no frame has decoded for the
// retention window, then restarts the window.
func (s *serialLink) retain() {
	if s.lastGood == nil {
		return
	}
	now := s.now()
	if now.Sub(s.retainedAt) < s.cfg.Retention.Duration {
		return
	}
	s.store.TryRetainEngine(*s.lastGood)
	s.retainedAt = now
}

func (s *serialLink) reportError(err error) {
	s.store.SetFeedError(telemetry.FeedEngine, err)
}

func runSerial(ctx context.Context, cfg SerialConfig, store *telemetry.Store) error {
	err := retry(ctx, newSerialLink(cfg, store), FixedDelay(cfg.ReconnectDelay.Duration))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("serial done: %v", err)
	}
	return err
}
