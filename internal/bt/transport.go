// Package bt is the boundary between the driver and the BLE stack.
//
// A Transport performs central-role operations against one peripheral. The
// long-running ones (connect, discovery, subscribing) return immediately and
// report their result as an Event; writes are synchronous. Events are
// delivered in order on a single channel so the driver can serialize them
// with its own tick loop.
package bt

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected is returned for operations that need a link
	ErrNotConnected = errors.New("bt: not connected")
	// ErrDeviceNotFound is returned when the target does not show up in a scan
	ErrDeviceNotFound = errors.New("bt: device not found")
	// ErrUnknownCharacteristic is returned for characteristics not discovered on the device
	ErrUnknownCharacteristic = errors.New("bt: unknown characteristic")
)

type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventServicesDiscovered
	EventCharacteristicsDiscovered
	// EventNotificationsEnabled follows a successful EnableNotifications for every characteristic
	EventNotificationsEnabled
	EventNotification
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventServicesDiscovered:
		return "services-discovered"
	case EventCharacteristicsDiscovered:
		return "characteristics-discovered"
	case EventNotificationsEnabled:
		return "notifications-enabled"
	case EventNotification:
		return "notification"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is something the transport observed
type Event struct {
	Kind EventKind
	// UUIDs lists discovered services or characteristics
	UUIDs []string
	// Handle is the characteristic of a notification or write
	Handle string
	Data   []byte
	Err    error
	At     time.Time
}

// Target identifies the peripheral by address, name, or both
type Target struct {
	Address string
	Name    string
}

func (t Target) String() string {
	switch {
	case t.Address != "" && t.Name != "":
		return fmt.Sprintf("%s (%s)", t.Name, t.Address)
	case t.Address != "":
		return t.Address
	default:
		return t.Name
	}
}

// Transport is the central-role link to one peripheral
type Transport interface {
	Events() <-chan Event

	Connect()
	DiscoverServices()
	DiscoverCharacteristics(service string)
	EnableNotifications(service string, chars []string)

	// Write is synchronous and reports its result only through the returned
	// error. It never raises an event, so the goroutine draining Events may
	// call it while the channel is full.
	Write(service, char string, data []byte, withResponse bool) error
	Disconnect()
	Connected() bool

	// Close disconnects and stops event delivery
	Close() error
}
