// Package virtual republishes treadmill telemetry as a standard BLE Fitness
// Machine so training apps can read and steer the equipment.
package virtual

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/bt"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/ftms"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/treadmill"
)

// Verify Exporter implements treadmill.VirtualExporter
var _ treadmill.VirtualExporter = (*Exporter)(nil)

// DefaultPublishInterval is the notification cadence apps expect from FTMS
const DefaultPublishInterval = time.Second

var ErrAlreadyAttached = errors.New("virtual: exporter already attached")

type Exporter struct {
	adapter  *bluetooth.Adapter
	logger   *log.Logger
	name     string
	interval time.Duration

	mu          sync.Mutex
	mode        treadmill.ExportMode
	attached    bool
	data        bluetooth.Characteristic
	control     bluetooth.Characteristic
	lastPublish time.Time
	inFlight    atomic.Bool
	writeFailed atomic.Bool
}

func NewExporter(adapter *bluetooth.Adapter, logger *log.Logger, name string, interval time.Duration) *Exporter {
	if logger == nil {
		panic("Exporter: logger cannot be nil")
	}
	if adapter == nil {
		panic("Exporter: adapter cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultPublishInterval
	}
	return &Exporter{
		adapter:  adapter,
		logger:   logger,
		name:     name,
		interval: interval,
	}
}

// Attach registers the Fitness Machine service and starts advertising it
func (e *Exporter) Attach(ctrl treadmill.Controller, mode treadmill.ExportMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.attached {
		return ErrAlreadyAttached
	}
	if err := bt.EnableAdapter(e.adapter); err != nil {
		return fmt.Errorf("enable adapter: %w", err)
	}

	dataChar, features := ftms.CharTreadmillData, ftms.TreadmillFeatures()
	if mode == treadmill.ModeBike {
		dataChar, features = ftms.CharIndoorBikeData, ftms.BikeFeatures()
	}
	handler := newControlHandler(e.logger, ctrl, mode)
	service := bluetooth.New16BitUUID(ftms.ServiceFitnessMachine)

	err := e.adapter.AddService(&bluetooth.Service{
		UUID: service,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				UUID:  bluetooth.New16BitUUID(ftms.CharFitnessMachineFeature),
				Value: features,
				Flags: bluetooth.CharacteristicReadPermission,
			},
			{
				Handle: &e.data,
				UUID:   bluetooth.New16BitUUID(dataChar),
				Value:  Encode(mode, ctrl.Status()),
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
			},
			{
				Handle: &e.control,
				UUID:   bluetooth.New16BitUUID(ftms.CharControlPoint),
				Flags:  bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicIndicatePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					resp := handler.handle(append([]byte(nil), value...))
					if resp == nil {
						return
					}
					// answer outside the stack's write callback
					go_func_utils.SafeGo(e.logger, func() {
						if _, err := e.control.Write(resp); err != nil {
							e.logger.Printf("Exporter: control point response: %v", err)
						}
					})
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("add fitness machine service: %w", err)
	}

	adv := e.adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    e.name,
		ServiceUUIDs: []bluetooth.UUID{service},
	}); err != nil {
		return fmt.Errorf("configure advertisement: %w", err)
	}
	if err := adv.Start(); err != nil {
		return fmt.Errorf("start advertisement: %w", err)
	}

	e.mode = mode
	e.attached = true
	e.logger.Printf("Exporter: advertising %q as a virtual %s", e.name, mode)
	return nil
}

// Publish notifies subscribers at most once per interval. The write runs off
// the caller's goroutine and a tick is skipped while one is still in flight.
func (e *Exporter) Publish(s treadmill.Status) {
	e.mu.Lock()
	if !e.attached || s.At.Sub(e.lastPublish) < e.interval || !e.inFlight.CompareAndSwap(false, true) {
		e.mu.Unlock()
		return
	}
	e.lastPublish = s.At
	payload := Encode(e.mode, s)
	e.mu.Unlock()

	go_func_utils.SafeGo(e.logger, func() {
		defer e.inFlight.Store(false)
		if _, err := e.data.Write(payload); err != nil {
			if !e.writeFailed.Swap(true) {
				e.logger.Printf("Exporter: notify failed: %v", err)
			}
			return
		}
		e.writeFailed.Store(false)
	})
}
