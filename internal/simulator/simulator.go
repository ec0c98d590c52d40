// Package simulator provides equipment that answers like a real treadmill.
// Each profile has a bt.Peripheral implementation that acknowledges every
// write and pushes telemetry at a fixed cadence while a central is attached.
package simulator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/bt"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/protocol"
)

// DefaultTelemetryInterval is how often a simulated treadmill reports
const DefaultTelemetryInterval = 500 * time.Millisecond

// State is the simulated belt
type State struct {
	SpeedKmh   float64  `json:"speedKmh"`
	InclinePct float64  `json:"inclinePct"`
	Running    bool     `json:"running"`
	Attached   bool     `json:"attached"`
	Writes     int      `json:"writes"`
	Commands   []string `json:"commands"`
}

// Equipment is a simulated treadmill behind a bt.MockTransport
type Equipment interface {
	bt.Peripheral
	Profile() protocol.Profile
	State() State
	SetSpeed(kmh float64)
	SetIncline(pct float64)
	// SetSilent stops acknowledgments, for exercising request timeouts
	SetSilent(silent bool)
}

// New returns simulated equipment for the profile
func New(logger *log.Logger, profile protocol.Profile, interval time.Duration) Equipment {
	switch p := profile.(type) {
	case *protocol.EncryptedText:
		return NewKingsmith(logger, p, interval)
	case *protocol.FramedBinary:
		return NewBowflex(logger, p, interval)
	default:
		panic("simulator: unsupported profile " + profile.Name())
	}
}

// base carries what both simulated models share
type base struct {
	logger   *log.Logger
	name     string
	interval time.Duration
	report   func()

	mu       sync.Mutex
	notify   func(char string, data []byte)
	speed    float64
	incline  float64
	running  bool
	silent   bool
	writes   int
	commands []string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func newBase(logger *log.Logger, name string, interval time.Duration) base {
	if logger == nil {
		panic("Simulator: logger cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultTelemetryInterval
	}
	return base{logger: logger, name: name, interval: interval}
}

func (b *base) Attach(notify func(char string, data []byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notify = notify
	if b.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.logger.Printf("Simulator [%s]: central attached", b.name)

	go_func_utils.SafeGoWG(b.logger, &b.wg, func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if b.report != nil {
					b.report()
				}
			}
		}
	})
}

func (b *base) Detach() {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.notify = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		b.wg.Wait()
		b.logger.Printf("Simulator [%s]: central detached", b.name)
	}
}

func (b *base) send(char string, data []byte) {
	b.mu.Lock()
	notify := b.notify
	b.mu.Unlock()
	if notify != nil {
		notify(char, data)
	}
}

// ack answers a write unless the equipment was silenced
func (b *base) ack(char string, data []byte) {
	b.mu.Lock()
	silent := b.silent
	b.mu.Unlock()
	if !silent {
		b.send(char, data)
	}
}

func (b *base) recordCommand(cmd string) {
	b.mu.Lock()
	b.writes++
	b.commands = append(b.commands, cmd)
	if len(b.commands) > 100 {
		b.commands = b.commands[len(b.commands)-100:]
	}
	b.mu.Unlock()
}

func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return State{
		SpeedKmh:   b.speed,
		InclinePct: b.incline,
		Running:    b.running,
		Attached:   b.notify != nil,
		Writes:     b.writes,
		Commands:   append([]string(nil), b.commands...),
	}
}

func (b *base) SetSpeed(kmh float64) {
	b.mu.Lock()
	b.speed = kmh
	b.running = kmh > 0
	b.mu.Unlock()
}

func (b *base) SetIncline(pct float64) {
	b.mu.Lock()
	b.incline = pct
	b.mu.Unlock()
}

func (b *base) SetSilent(silent bool) {
	b.mu.Lock()
	b.silent = silent
	b.mu.Unlock()
}

func (b *base) belt() (speed, incline float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speed, b.incline
}
