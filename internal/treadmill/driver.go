// Package treadmill drives one piece of BLE treadmill equipment.
//
// A Driver owns a single loop goroutine. Transport events, ticks, request
// timeouts and reconnect timers are all handled there, so the lifecycle,
// coordinator, decoder and metrics are never touched concurrently. Control
// calls from other goroutines only record pending requests; queries read a
// status copy published by the loop.
package treadmill

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/bt"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/coordinator"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/lifecycle"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/metrics"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/protocol"
)

// Verify Driver implements Controller
var _ Controller = (*Driver)(nil)

type Driver struct {
	logger    *log.Logger
	transport bt.Transport
	profile   protocol.Profile
	opts      Options
	events    *Events

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	posted    chan func()
	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once

	// loop-owned
	lc             *lifecycle.Lifecycle
	coord          *coordinator.Coordinator
	decoder        protocol.Decoder
	tracker        *metrics.Tracker
	limiter        *rate.Limiter
	reconnectTimer *time.Timer
	sessionID      string

	handshake        []protocol.Command
	handshakeStep    int
	handshakeStalled bool

	targetSpeed   float64
	targetIncline float64
	fan           int
	lastStart     time.Time
	lastStop      time.Time

	tickCount    int
	refreshEvery int
	exporterDone bool
	exporterLive bool

	pendingMu sync.Mutex
	pending   PendingCommand

	statusMu sync.RWMutex
	status   Status
}

// NewDriver builds a driver for the equipment behind transport. Nothing
// happens until Start.
func NewDriver(logger *log.Logger, transport bt.Transport, profile protocol.Profile, opts Options) *Driver {
	if logger == nil {
		panic("Driver: logger cannot be nil")
	}
	if transport == nil {
		panic("Driver: transport cannot be nil")
	}
	if profile == nil {
		panic("Driver: profile cannot be nil")
	}
	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	d := &Driver{
		logger:    logger,
		transport: transport,
		profile:   profile,
		opts:      opts,
		events:    newEvents(),
		ctx:       ctx,
		cancel:    cancel,
		posted:    make(chan func(), postBufferSize),
		lc:        lifecycle.NewWithClock(lifecycle.RequirementsFor(profile), opts.Now),
		decoder:   profile.NewDecoder(),
		limiter:   rate.NewLimiter(rate.Every(opts.ReconnectInterval), opts.ReconnectBurst),
		sessionID: "-",
	}
	d.coord = coordinator.NewCoordinator(logger, transportSink{transport: transport, profile: profile}, opts.RequestTimeout, d.post)
	d.tracker = metrics.NewTracker(metrics.Config{
		WeightKg: opts.WeightKg,
		MaxGap:   opts.MaxIntegrationGap,
		Power:    opts.Power,
	})
	d.tracker.SetLastSpeed(opts.InitSpeed)
	d.tracker.SetLastIncline(opts.InitIncline)

	d.refreshEvery = int(displayRefreshPeriod / d.tickInterval())
	if d.refreshEvery < 1 {
		d.refreshEvery = 1
	}
	d.publishStatus()
	return d
}

func (d *Driver) Events() *Events { return d.events }

func (d *Driver) Profile() protocol.Profile { return d.profile }

// Start launches the loop and the first connection attempt
func (d *Driver) Start() {
	d.startOnce.Do(func() {
		d.started.Store(true)
		d.logger.Printf("Driver: starting %s driver (tick %v)", d.profile.Name(), d.tickInterval())
		go_func_utils.SafeGoWG(d.logger, &d.wg, d.run)
		d.post(func() { d.apply(d.lc.Start()) })
	})
}

// Close disconnects, resolves any outstanding request as cancelled and
// stops the loop. The transport itself is left to its owner.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		if d.started.Load() {
			done := make(chan struct{})
			d.post(func() {
				d.apply(d.lc.Close())
				close(done)
			})
			select {
			case <-done:
			case <-time.After(closeTimeout):
				d.logger.Printf("Driver: timed out waiting for the loop to close the session")
			}
		}
		d.cancel()
		d.wg.Wait()
		if d.reconnectTimer != nil {
			d.reconnectTimer.Stop()
		}
		d.coord.CancelAll()
		d.logger.Printf("Driver: closed")
	})
	return nil
}

func (d *Driver) run() {
	ticker := time.NewTicker(d.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case ev, ok := <-d.transport.Events():
			if !ok {
				d.logger.Printf("Driver: transport event stream closed")
				return
			}
			d.handleEvent(ev)
		case f := <-d.posted:
			f()
		case <-ticker.C:
			d.tick()
		}
	}
}

// post runs f on the loop. It is dropped once the driver is closed.
func (d *Driver) post(f func()) {
	select {
	case d.posted <- f:
	case <-d.ctx.Done():
	}
}

func (d *Driver) tickInterval() time.Duration {
	if d.opts.TickInterval > 0 {
		return d.opts.TickInterval
	}
	return d.profile.TickInterval()
}

func (d *Driver) handleEvent(ev bt.Event) {
	switch ev.Kind {
	case bt.EventConnected:
		d.apply(d.lc.OnConnected())
	case bt.EventServicesDiscovered:
		d.apply(d.lc.OnServicesDiscovered(ev.UUIDs))
	case bt.EventCharacteristicsDiscovered:
		d.apply(d.lc.OnCharacteristicsDiscovered(ev.UUIDs))
	case bt.EventNotificationsEnabled:
		d.apply(d.lc.OnNotificationsEnabled())
	case bt.EventNotification:
		d.onNotification(ev)
	case bt.EventDisconnected:
		if d.lc.State() == lifecycle.Connecting {
			// trailing drop of the previous link
			d.logger.Printf("Driver: session %s ignoring disconnect while connecting", d.lc.SessionID())
			return
		}
		d.apply(d.lc.OnDisconnected(ev.Err))
	case bt.EventError:
		d.apply(d.lc.OnError(ev.Err))
	}
}

func (d *Driver) apply(actions []lifecycle.Action) {
	for _, a := range actions {
		switch a.Kind {
		case lifecycle.ActionConnect:
			d.sessionID = d.lc.SessionID()
			d.logger.Printf("Driver: session %s connecting to %s", d.sessionID, d.profile.Name())
			d.transport.Connect()
		case lifecycle.ActionDiscoverServices:
			d.transport.DiscoverServices()
		case lifecycle.ActionDiscoverCharacteristics:
			d.transport.DiscoverCharacteristics(d.profile.ServiceUUID())
		case lifecycle.ActionEnableNotifications:
			d.transport.EnableNotifications(d.profile.ServiceUUID(), d.profile.NotifyCharUUIDs())
		case lifecycle.ActionStartHandshake:
			d.startHandshake()
		case lifecycle.ActionEmitReady:
			d.debugf("session %s connected and discovered", d.sessionID)
			d.publishStatus()
			d.events.ConnectedAndDiscovered.Notify(d.sessionID)
		case lifecycle.ActionReportError:
			d.reportError(a.Err)
		case lifecycle.ActionDisconnect:
			d.transport.Disconnect()
		case lifecycle.ActionTeardown:
			d.teardown(a.Err)
		case lifecycle.ActionScheduleReconnect:
			d.scheduleReconnect()
		}
	}
	d.publishStatus()
}

func (d *Driver) teardown(cause error) {
	n := d.coord.CancelAll()
	d.decoder.Reset()
	d.handshake = nil
	d.handshakeStep = 0
	d.handshakeStalled = false
	d.tracker.Reconnected()
	d.tickCount = 0

	if cause != nil {
		d.logger.Printf("Driver: session %s torn down (%d requests cancelled): %v", d.sessionID, n, cause)
	} else {
		d.logger.Printf("Driver: session %s torn down (%d requests cancelled)", d.sessionID, n)
	}
	id := d.sessionID
	d.sessionID = "-"
	d.publishStatus()
	d.events.Disconnected.Notify(id)
}

func (d *Driver) scheduleReconnect() {
	if d.lc.Closed() {
		return
	}
	delay := d.limiter.Reserve().Delay()
	if delay > 0 {
		d.debugf("reconnecting in %v", delay.Round(time.Millisecond))
	}
	if d.reconnectTimer != nil {
		d.reconnectTimer.Stop()
	}
	d.reconnectTimer = time.AfterFunc(delay, func() {
		d.post(func() { d.apply(d.lc.OnReconnectDue()) })
	})
}

func (d *Driver) startHandshake() {
	d.handshake = d.profile.Handshake(d.opts.Now())
	d.handshakeStep = 0
	d.handshakeStalled = false
	d.logger.Printf("Driver: session %s handshake of %d steps", d.sessionID, len(d.handshake))
	d.sendHandshakeStep()
}

// sendHandshakeStep sends the current step; its completion sends the next.
// A step that times out is passed over; one that could not be written
// stalls the handshake until the next tick.
func (d *Driver) sendHandshakeStep() {
	for d.handshakeStep < len(d.handshake) {
		cmd := d.handshake[d.handshakeStep]
		frames, err := d.profile.Encode(cmd)
		if err != nil {
			d.logger.Printf("Driver: skipping handshake step %s: %v", cmd, err)
			d.handshakeStep++
			continue
		}

		session := d.sessionID
		d.coord.Send("handshake "+cmd.String(), frames, func(o coordinator.Outcome) {
			if d.sessionID != session || d.lc.State() != lifecycle.Handshaking {
				return
			}
			switch o {
			case coordinator.Acknowledged, coordinator.TimedOut:
				if o == coordinator.TimedOut {
					d.debugf("handshake step %s timed out", cmd)
				}
				d.handshakeStep++
				d.sendHandshakeStep()
			default:
				d.handshakeStalled = true
				d.debugf("handshake step %s: %s", cmd, o)
			}
		})
		return
	}
	d.apply(d.lc.OnHandshakeComplete())
}

func (d *Driver) onNotification(ev bt.Event) {
	if d.lc.State() == lifecycle.Disconnected {
		return
	}
	at := ev.At
	if at.IsZero() {
		at = d.opts.Now()
	}
	res := d.decoder.Feed(ev.Handle, ev.Data, at)
	if res.Err != nil && !errors.Is(res.Err, protocol.ErrForeignCharacteristic) {
		d.logger.Printf("Driver: session %s discarded notification on %s: %v", d.sessionID, ev.Handle, res.Err)
	}
	// samples before Ready are handshake replies, not telemetry
	if res.Sample != nil && d.lc.Ready() {
		d.applySample(*res.Sample)
	}
	if res.Complete {
		d.coord.Resolve()
	}
}

func (d *Driver) applySample(s protocol.Sample) {
	ch := d.tracker.Update(s)
	d.publishStatus()
	if ch.SpeedChanged {
		d.debugf("current speed: %v", s.Speed)
		d.events.SpeedChanged.Notify(s.Speed)
	}
	if ch.InclineChanged {
		d.debugf("current incline: %v", s.Incline)
		d.events.InclineChanged.Notify(InclineChange{Old: ch.OldIncline, New: s.Incline})
	}
	if ch.DistanceChanged {
		d.events.DistanceUpdated.Notify(d.tracker.Distance())
	}
}

// send encodes and queues cmd. It returns nil when the profile cannot
// express it.
func (d *Driver) send(cmd protocol.Command) *coordinator.Request {
	frames, err := d.profile.Encode(cmd)
	if err != nil {
		if errors.Is(err, protocol.ErrUnsupportedCommand) {
			d.debugf("%s is not supported by %s", cmd, d.profile.Name())
		} else {
			d.logger.Printf("Driver: encoding %s: %v", cmd, err)
		}
		return nil
	}
	d.debugf("writing %s", cmd)
	return d.coord.Send(cmd.String(), frames, func(o coordinator.Outcome) {
		if !o.Delivered() && o != coordinator.Cancelled {
			d.debugf("%s: %s", cmd, o)
		}
	})
}

func (d *Driver) debugf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.logger.Printf("Driver: %s", msg)
	d.events.Debug.Notify(msg)
}

func (d *Driver) reportError(err error) {
	if err == nil {
		return
	}
	d.logger.Printf("Driver: session %s error: %v", d.sessionID, err)
	d.events.Errors.Notify(err)
}

// transportSink writes frames to the profile's write characteristic
type transportSink struct {
	transport bt.Transport
	profile   protocol.Profile
}

func (s transportSink) Connected() bool {
	return s.transport.Connected()
}

func (s transportSink) WriteFrames(frames [][]byte) error {
	for i, f := range frames {
		if err := s.transport.Write(s.profile.ServiceUUID(), s.profile.WriteCharUUID(), f, s.profile.WriteWithResponse()); err != nil {
			return fmt.Errorf("frame %d of %d: %w", i+1, len(frames), err)
		}
	}
	return nil
}
