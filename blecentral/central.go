// Package blecentral is a narrow BLE central API: scan for advertisements,
// connect, discover one service/characteristic pair and subscribe to its
// notifications.
package blecentral

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNoAdapter              = errors.New("no bluetooth adapter")
	ErrUnknownPeripheral      = errors.New("peripheral not seen in a scan")
	ErrServiceNotFound        = errors.New("service not found")
	ErrCharacteristicNotFound = errors.New("characteristic not found")
)

// Advertisement is one peripheral seen during a scan window.
type Advertisement struct {
	Address   string
	LocalName string
	RSSI      int16
	SeenAt    time.Time
}

// Central is the host side radio.
type Central interface {
	// Enable powers up the adapter. It may be called again after a failure.
	Enable() error
	// Scan listens for window and returns each peripheral seen, in the order
	// first seen.
	Scan(ctx context.Context, window time.Duration) ([]Advertisement, error)
	// Connect opens a link to a peripheral returned by an earlier Scan.
	Connect(address string) (Peripheral, error)
}

// Peripheral is a connected device.
type Peripheral interface {
	DiscoverServices() ([]string, error)
	DiscoverCharacteristics(service string) ([]string, error)
	// Subscribe enables notifications; fn is called from the transport's
	// goroutine for every payload.
	Subscribe(service, characteristic string, fn func([]byte)) error
	// Done is closed once the link drops.
	Done() <-chan struct{}
	Disconnect() error
}

// SameUUID compares two textual UUIDs ignoring case.
func SameUUID(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// FindUUID returns the entry of list equal to want.
func FindUUID(list []string, want string) (string, bool) {
	for _, u := range list {
		if SameUUID(u, want) {
			return u, true
		}
	}
	return "", false
}
