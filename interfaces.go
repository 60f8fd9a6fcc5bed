package vxdash

import (
	"github.com/vx220/vxdash/telemetry"
)

// SerialPort is the part of a serial device the engine link reads from.
// A read that times out returns 0 bytes and a nil error.
type SerialPort interface {
	Read(p []byte) (int, error)
	Close() error
}

// Forwarder receives every snapshot that differs from the previous one.
type Forwarder interface {
	Forward(cur *telemetry.Snapshot, prev *telemetry.Snapshot) error
}
