package bt

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/safe_map"
)

// Verify Central implements Transport
var _ Transport = (*Central)(nil)

const eventBufferSize = 64

// Central is the tinygo-bluetooth Transport
type Central struct {
	adapter     *bluetooth.Adapter
	hub         *adapterHub
	unregister  func()
	logger      *log.Logger
	target      Target
	scanTimeout time.Duration

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	address  *bluetooth.Address
	device   *bluetooth.Device
	linkUp   atomic.Bool
	scanning atomic.Bool

	// serializes characteristic operations
	bleMu                sync.Mutex
	serviceByUuid        *safe_map.SafeMap[string, *bluetooth.DeviceService]
	characteristicByUuid *safe_map.SafeMap[string, *bluetooth.DeviceCharacteristic]
}

func NewCentral(adapter *bluetooth.Adapter, logger *log.Logger, target Target, scanTimeout time.Duration) *Central {
	if logger == nil {
		panic("Central: logger cannot be nil")
	}
	if adapter == nil {
		panic("Central: adapter cannot be nil")
	}
	if scanTimeout <= 0 {
		scanTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Central{
		adapter:              adapter,
		hub:                  hubFor(adapter),
		logger:               logger,
		target:               target,
		scanTimeout:          scanTimeout,
		events:               make(chan Event, eventBufferSize),
		ctx:                  ctx,
		cancel:               cancel,
		serviceByUuid:        safe_map.NewSafeMap[string, *bluetooth.DeviceService](),
		characteristicByUuid: safe_map.NewSafeMap[string, *bluetooth.DeviceCharacteristic](),
	}
}

// Enable powers the adapter and tracks link drops of the target
func (c *Central) Enable() error {
	c.unregister = c.hub.onConnect(func(device bluetooth.Device, connected bool) {
		if !c.isTarget(device.Address) {
			return
		}
		if connected {
			c.logger.Printf("Central: link up to %s", device.Address.String())
			return
		}
		c.logger.Printf("Central: link down from %s", device.Address.String())
		c.linkDown(nil)
	})
	return c.hub.enable()
}

func (c *Central) Events() <-chan Event {
	return c.events
}

func (c *Central) Connected() bool {
	return c.linkUp.Load()
}

// Connect resolves the target address with a short scan the first time, then
// opens the link. The result is reported as EventConnected or EventError.
func (c *Central) Connect() {
	c.goOp("connect", func() error {
		addr, err := c.resolve()
		if err != nil {
			return err
		}
		c.logger.Printf("Central: connecting to %s", addr.String())
		device, err := c.adapter.Connect(addr, bluetooth.ConnectionParams{})
		if err != nil {
			return fmt.Errorf("connect %s: %w", addr.String(), err)
		}

		c.mu.Lock()
		c.device = &device
		c.mu.Unlock()
		c.serviceByUuid.Clear()
		c.characteristicByUuid.Clear()
		c.linkUp.Store(true)

		c.emit(Event{Kind: EventConnected})
		return nil
	})
}

func (c *Central) DiscoverServices() {
	c.goOp("discover services", func() error {
		device := c.connectedDevice()
		if device == nil {
			return ErrNotConnected
		}

		c.bleMu.Lock()
		defer c.bleMu.Unlock()

		// Discover ALL services at once (nil = all); discovering one at a
		// time interrupts services already in use on some stacks
		services, err := device.DiscoverServices(nil)
		if err != nil {
			return fmt.Errorf("discover services: %w", err)
		}
		uuids := make([]string, 0, len(services))
		for i := range services {
			svc := &services[i]
			key := svc.UUID().String()
			c.serviceByUuid.Store(key, svc)
			uuids = append(uuids, key)
		}
		c.logger.Printf("Central: discovered %d services", len(uuids))
		c.emit(Event{Kind: EventServicesDiscovered, UUIDs: uuids})
		return nil
	})
}

func (c *Central) DiscoverCharacteristics(service string) {
	c.goOp("discover characteristics", func() error {
		svc, ok := c.serviceByUuid.Load(normalize(service))
		if !ok {
			return fmt.Errorf("service %s not discovered", service)
		}

		c.bleMu.Lock()
		defer c.bleMu.Unlock()

		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return fmt.Errorf("discover characteristics of %s: %w", service, err)
		}
		uuids := make([]string, 0, len(chars))
		for i := range chars {
			char := &chars[i]
			key := char.UUID().String()
			c.characteristicByUuid.Store(charKey(service, key), char)
			uuids = append(uuids, key)
		}
		c.logger.Printf("Central: discovered %d characteristics in %s", len(uuids), service)
		c.emit(Event{Kind: EventCharacteristicsDiscovered, UUIDs: uuids})
		return nil
	})
}

func (c *Central) EnableNotifications(service string, chars []string) {
	c.goOp("enable notifications", func() error {
		c.bleMu.Lock()
		defer c.bleMu.Unlock()

		for _, uuid := range chars {
			char, err := c.characteristic(service, uuid)
			if err != nil {
				return err
			}
			handle := uuid
			err = char.EnableNotifications(func(buf []byte) {
				data := make([]byte, len(buf))
				copy(data, buf)
				c.emit(Event{Kind: EventNotification, Handle: handle, Data: data})
			})
			if err != nil {
				return fmt.Errorf("enable notifications on %s: %w", uuid, err)
			}
			c.logger.Printf("Central: notifications enabled for %s", uuid)
		}
		c.emit(Event{Kind: EventNotificationsEnabled})
		return nil
	})
}

// Write sends one frame. A with-response write returns once the peripheral
// confirmed it.
func (c *Central) Write(service, uuid string, data []byte, withResponse bool) error {
	if !c.linkUp.Load() {
		return ErrNotConnected
	}

	c.bleMu.Lock()
	defer c.bleMu.Unlock()

	char, err := c.characteristic(service, uuid)
	if err != nil {
		return err
	}
	if withResponse {
		_, err = char.Write(data)
	} else {
		_, err = char.WriteWithoutResponse(data)
	}
	if err != nil {
		return fmt.Errorf("failed to write characteristic %s: %w", uuid, err)
	}
	return nil
}

func (c *Central) Disconnect() {
	device := c.connectedDevice()
	if device == nil {
		return
	}
	c.logger.Printf("Central: disconnecting from %s", device.Address.String())
	if err := device.Disconnect(); err != nil {
		c.logger.Printf("Central: disconnect error: %v", err)
	}
	c.linkDown(nil)
}

func (c *Central) Close() error {
	c.logger.Println("Central: shutting down")
	// nobody drains events past this point
	c.cancel()
	c.Disconnect()
	if c.scanning.Load() {
		if err := c.adapter.StopScan(); err != nil {
			c.logger.Printf("Central: error stopping scan: %v", err)
		}
	}
	c.wg.Wait()
	if c.unregister != nil {
		c.unregister()
	}
	c.logger.Println("Central: shutdown complete")
	return nil
}

// resolve finds the target address. This is a targeted scan for an already
// identified device, stopped on the first match or after scanTimeout.
func (c *Central) resolve() (bluetooth.Address, error) {
	c.mu.Lock()
	if c.address != nil {
		addr := *c.address
		c.mu.Unlock()
		return addr, nil
	}
	c.mu.Unlock()

	c.logger.Printf("Central: scanning for %s", c.target)
	var found *bluetooth.Address
	err := c.hub.scan(func() error {
		timer := time.AfterFunc(c.scanTimeout, func() {
			if err := c.adapter.StopScan(); err != nil {
				c.logger.Printf("Central: stop scan: %v", err)
			}
		})
		defer timer.Stop()

		c.scanning.Store(true)
		defer c.scanning.Store(false)
		return c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if c.ctx.Err() != nil || !c.matches(result) {
				return
			}
			addr := result.Address
			found = &addr
			c.logger.Printf("Central: found %s (%s) [RSSI: %d]", result.LocalName(), addr.String(), result.RSSI)
			if err := adapter.StopScan(); err != nil {
				c.logger.Printf("Central: stop scan: %v", err)
			}
		})
	})
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("scan: %w", err)
	}
	if found == nil {
		return bluetooth.Address{}, fmt.Errorf("%w: %s within %v", ErrDeviceNotFound, c.target, c.scanTimeout)
	}

	c.mu.Lock()
	c.address = found
	c.mu.Unlock()
	return *found, nil
}

func (c *Central) matches(result bluetooth.ScanResult) bool {
	if c.target.Address != "" {
		return strings.EqualFold(result.Address.String(), c.target.Address)
	}
	return c.target.Name != "" && strings.EqualFold(result.LocalName(), c.target.Name)
}

func (c *Central) isTarget(addr bluetooth.Address) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address != nil && c.address.String() == addr.String()
}

func (c *Central) connectedDevice() *bluetooth.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

func (c *Central) characteristic(service, uuid string) (*bluetooth.DeviceCharacteristic, error) {
	char, ok := c.characteristicByUuid.Load(charKey(service, uuid))
	if !ok {
		return nil, fmt.Errorf("%w: %s in service %s", ErrUnknownCharacteristic, uuid, service)
	}
	return char, nil
}

// linkDown reports a single EventDisconnected per link
func (c *Central) linkDown(err error) {
	if !c.linkUp.Swap(false) {
		return
	}
	c.mu.Lock()
	c.device = nil
	c.mu.Unlock()
	c.emit(Event{Kind: EventDisconnected, Err: err})
}

func (c *Central) goOp(name string, op func() error) {
	go_func_utils.SafeGoWG(c.logger, &c.wg, func() {
		if err := op(); err != nil {
			c.logger.Printf("Central: %s failed: %v", name, err)
			c.emit(Event{Kind: EventError, Err: err})
		}
	})
}

func (c *Central) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

func charKey(service, char string) string {
	return normalize(service) + "_" + normalize(char)
}

func normalize(uuid string) string {
	return strings.ToLower(uuid)
}
