package treadmill

import (
	"time"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/coordinator"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/metrics"
)

// Accepted target ranges. Requests outside them are dropped.
const (
	MinSpeed   = 0.0
	MaxSpeed   = 22.0
	MinIncline = 0.0
	MaxIncline = 15.0
)

const (
	// speed assumed when the belt is started from a full stop
	defaultStartSpeed = 0.5

	autoPauseGrace = 10 * time.Second
	autoStartGrace = 25 * time.Second

	defaultReconnectInterval = time.Second
	defaultReconnectBurst    = 3

	displayRefreshPeriod = time.Second
	closeTimeout         = 2 * time.Second
	postBufferSize       = 64
)

// Options configures a Driver. The zero value is usable.
type Options struct {
	WeightKg float64
	// TickInterval overrides the profile cadence when positive
	TickInterval      time.Duration
	RequestTimeout    time.Duration
	MaxIntegrationGap time.Duration

	// Reconnect attempts are limited to Burst immediate tries, then one per Interval
	ReconnectInterval time.Duration
	ReconnectBurst    int

	// Seed values for the last non-idle speed and incline
	InitSpeed   float64
	InitIncline float64

	VirtualDevice bool
	ForceBike     bool

	Exporter  VirtualExporter
	HeartRate HeartRateSource
	Display   Display
	Power     metrics.PowerEstimator

	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = coordinator.DefaultTimeout
	}
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = defaultReconnectInterval
	}
	if o.ReconnectBurst <= 0 {
		o.ReconnectBurst = defaultReconnectBurst
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
