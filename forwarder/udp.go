package forwarder

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vx220/vxdash/telemetry"
)

var maxTelemetrySize = binary.Size(Header{}) + binary.Size(Telemetry{})

// sendInterval caps the datagram rate.
const sendInterval = 100 * time.Millisecond

// UDPConfig addresses the pit receiver. An empty Server disables the
// forwarder.
type UDPConfig struct {
	Server string `toml:"server"`
	Port   int    `toml:"port"`
}

type UDPForwarder struct {
	Config *UDPConfig

	conn    net.Conn
	fwdChan chan *Telemetry
}

func NewUDPForwarder(config UDPConfig) (*UDPForwarder, error) {
	udp := &UDPForwarder{
		Config:  &config,
		fwdChan: make(chan *Telemetry, 1),
	}
	if err := udp.connect(); err != nil {
		return nil, err
	}
	return udp, nil
}

func (udp *UDPForwarder) Close() error {
	return udp.conn.Close()
}

func (udp *UDPForwarder) Forward(cur *telemetry.Snapshot, prev *telemetry.Snapshot) error {
	// flatten now, the snapshot is sent from another go-routine
	telem := FromSnapshot(cur)
	select {
	case udp.fwdChan <- &telem:
	default:
		// if channel is full, skip
	}
	return nil
}

func (udp *UDPForwarder) Start(ctx context.Context) error {
	limiter := time.NewTicker(sendInterval)
	defer limiter.Stop()
	for {
		select {
		case <-limiter.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case t := <-udp.fwdChan:
			if err := udp.forward(t); err != nil {
				log.WithField("err", err).Error("unable to forward telemetry to server")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (udp *UDPForwarder) forward(telem *Telemetry) error {
	buf := bytes.NewBuffer(make([]byte, 0, maxTelemetrySize))
	hdr := Header{
		Type: TypeTelemetry,
	}
	if err := binary.Write(buf, binary.LittleEndian, &hdr); err != nil {
		return errors.Wrap(err, "unable to write udp packet header")
	}
	if err := binary.Write(buf, binary.LittleEndian, telem); err != nil {
		return errors.Wrap(err, "unable to write telemetry udp packet")
	}
	_, err := udp.conn.Write(buf.Bytes())
	return err
}

func (udp *UDPForwarder) connect() error {
	writeBufSize := maxTelemetrySize * 2

	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d",
		udp.Config.Server,
		udp.Config.Port))
	if err != nil {
		return errors.Wrap(err, "unable to dial udp server")
	}
	udpConn := conn.(*net.UDPConn)
	if err = udpConn.SetWriteBuffer(writeBufSize); err != nil {
		_ = conn.Close()
		return errors.Wrapf(err, "unable to set OS write buffer to %v", writeBufSize)
	}

	udp.conn = conn
	return nil
}
