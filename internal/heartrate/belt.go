// Package heartrate reads a standard BLE heart rate belt so its readings can
// replace the ones reported by the equipment.
package heartrate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/bt"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/ftms"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/go_func_utils"
)

const (
	// DefaultStaleAfter is how long a reading stays current without a new one
	DefaultStaleAfter = 5 * time.Second
	defaultReconnect  = 2 * time.Second
)

var ErrNoHeartRateService = errors.New("heartrate: device has no heart rate measurement")

type Options struct {
	StaleAfter        time.Duration
	ReconnectInterval time.Duration
	Now               func() time.Time
}

// Belt keeps a link to one heart rate sensor and tracks its latest reading
type Belt struct {
	logger    *log.Logger
	transport bt.Transport
	opts      Options
	limiter   *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	bpm    uint8
	seenAt time.Time
	ready  bool
}

func NewBelt(logger *log.Logger, transport bt.Transport, opts Options) *Belt {
	if logger == nil {
		panic("Belt: logger cannot be nil")
	}
	if transport == nil {
		panic("Belt: transport cannot be nil")
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = defaultReconnect
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Belt{
		logger:    logger,
		transport: transport,
		opts:      opts,
		limiter:   rate.NewLimiter(rate.Every(opts.ReconnectInterval), 1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start connects and keeps reconnecting until Close
func (b *Belt) Start() {
	go_func_utils.SafeGoWG(b.logger, &b.wg, b.run)
}

func (b *Belt) Close() error {
	b.cancel()
	err := b.transport.Close()
	b.wg.Wait()
	b.logger.Println("Belt: closed")
	return err
}

// HeartRate returns the latest reading while it is current
func (b *Belt) HeartRate() (uint8, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seenAt.IsZero() || b.opts.Now().Sub(b.seenAt) > b.opts.StaleAfter {
		return 0, false
	}
	return b.bpm, true
}

// Ready reports whether measurements are subscribed
func (b *Belt) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

func (b *Belt) run() {
	b.connect()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ev := <-b.transport.Events():
			b.handle(ev)
		}
	}
}

func (b *Belt) handle(ev bt.Event) {
	switch ev.Kind {
	case bt.EventConnected:
		b.logger.Println("Belt: connected, discovering services")
		b.transport.DiscoverServices()
	case bt.EventServicesDiscovered:
		if !contains(ev.UUIDs, ftms.ServiceUUIDHeartRate) {
			b.fail(fmt.Errorf("%w: service %s missing", ErrNoHeartRateService, ftms.ServiceUUIDHeartRate))
			return
		}
		b.transport.DiscoverCharacteristics(ftms.ServiceUUIDHeartRate)
	case bt.EventCharacteristicsDiscovered:
		if !contains(ev.UUIDs, ftms.CharUUIDHeartRateMeasurement) {
			b.fail(fmt.Errorf("%w: characteristic %s missing", ErrNoHeartRateService, ftms.CharUUIDHeartRateMeasurement))
			return
		}
		b.transport.EnableNotifications(ftms.ServiceUUIDHeartRate, []string{ftms.CharUUIDHeartRateMeasurement})
	case bt.EventNotificationsEnabled:
		b.mu.Lock()
		b.ready = true
		b.mu.Unlock()
		b.logger.Println("Belt: receiving heart rate")
	case bt.EventNotification:
		if !strings.EqualFold(ev.Handle, ftms.CharUUIDHeartRateMeasurement) {
			return
		}
		bpm, err := ftms.ParseHeartRate(ev.Data)
		if err != nil {
			b.logger.Printf("Belt: %v", err)
			return
		}
		if bpm > 255 {
			bpm = 255
		}
		b.mu.Lock()
		b.bpm = uint8(bpm)
		b.seenAt = b.opts.Now()
		b.mu.Unlock()
	case bt.EventDisconnected:
		b.logger.Println("Belt: disconnected")
		b.linkLost()
	case bt.EventError:
		b.fail(ev.Err)
	}
}

func (b *Belt) fail(err error) {
	b.logger.Printf("Belt: %v", err)
	if b.transport.Connected() {
		// the disconnect event schedules the retry
		b.transport.Disconnect()
		return
	}
	b.linkLost()
}

func (b *Belt) linkLost() {
	b.mu.Lock()
	b.ready = false
	b.mu.Unlock()

	delay := b.limiter.Reserve().Delay()
	go_func_utils.SafeGoWG(b.logger, &b.wg, func() {
		select {
		case <-time.After(delay):
			b.connect()
		case <-b.ctx.Done():
		}
	})
}

func (b *Belt) connect() {
	if b.ctx.Err() != nil {
		return
	}
	b.transport.Connect()
}

func contains(uuids []string, want string) bool {
	for _, u := range uuids {
		if strings.EqualFold(u, want) {
			return true
		}
	}
	return false
}
