// Package metrics derives distance, calories and moving time from decoded
// telemetry samples.
package metrics

import (
	"time"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/protocol"
)

const (
	DefaultWeightKg = 75.0
	DefaultMaxGap   = 5 * time.Second
)

type Config struct {
	WeightKg float64
	// MaxGap caps the elapsed time integrated between two samples
	MaxGap time.Duration
	Power  PowerEstimator
}

// Change reports what one sample changed
type Change struct {
	SpeedChanged    bool
	InclineChanged  bool
	OldIncline      float64
	DistanceChanged bool
}

// Snapshot is a copy of the tracker state
type Snapshot struct {
	Speed       float64 // km/h
	Incline     float64 // percent
	HeartRate   uint8
	Distance    float64 // km since last Reset
	Odometer    float64 // km since construction
	Calories    float64 // kcal
	Watts       float64
	MovingTime  time.Duration
	LastSpeed   float64
	LastIncline float64
}

// Tracker holds the metrics state of one driver. It is not safe for
// concurrent use.
type Tracker struct {
	cfg Config

	speed     float64
	incline   float64
	heartRate uint8

	lastSpeed   float64
	lastIncline float64

	distance   float64
	odometer   float64
	calories   float64
	watts      float64
	movingTime time.Duration

	seen   bool
	lastAt time.Time
}

func NewTracker(cfg Config) *Tracker {
	if cfg.WeightKg <= 0 {
		cfg.WeightKg = DefaultWeightKg
	}
	if cfg.MaxGap <= 0 {
		cfg.MaxGap = DefaultMaxGap
	}
	if cfg.Power == nil {
		cfg.Power = DefaultPower
	}
	return &Tracker{cfg: cfg}
}

// Update replaces speed and incline with the sample's values and integrates
// distance and calories over the time since the previous sample.
func (t *Tracker) Update(s protocol.Sample) Change {
	var c Change

	if s.Speed != t.speed {
		c.SpeedChanged = true
	}
	t.speed = s.Speed
	if s.HasIncline {
		if s.Incline != t.incline {
			c.InclineChanged = true
			c.OldIncline = t.incline
		}
		t.incline = s.Incline
	}
	if s.HeartRate > 0 {
		t.heartRate = s.HeartRate
	}
	if t.speed > 0 {
		t.lastSpeed = t.speed
		// profiles without incline telemetry keep the seeded value
		if s.HasIncline {
			t.lastIncline = t.incline
		}
	}

	if !t.seen {
		t.seen = true
		t.lastAt = s.At
		return c
	}

	elapsed := s.At.Sub(t.lastAt)
	t.lastAt = s.At
	if elapsed <= 0 {
		return c
	}
	if elapsed > t.cfg.MaxGap {
		elapsed = t.cfg.MaxGap
	}
	ms := float64(elapsed) / float64(time.Millisecond)

	delta := (t.speed / 3600.0) * (ms / 1000.0)
	if delta > 0 {
		t.distance += delta
		t.odometer += delta
		c.DistanceChanged = true
	}

	if w := t.cfg.Power.Watts(t.speed, t.incline, t.cfg.WeightKg); w != 0 {
		t.calories += ((0.048*w + 1.19) * t.cfg.WeightKg * 3.5 / 200.0) / (60000.0 / ms)
	}
	if t.speed > 0 {
		t.movingTime += elapsed
	}
	return c
}

// Refresh recomputes the power estimate; called once per tick
func (t *Tracker) Refresh() {
	t.watts = t.cfg.Power.Watts(t.speed, t.incline, t.cfg.WeightKg)
}

// Reconnected makes the next sample start a new integration interval
func (t *Tracker) Reconnected() {
	t.seen = false
}

// Reset zeroes distance, calories and moving time; the odometer is kept
func (t *Tracker) Reset() {
	t.distance = 0
	t.calories = 0
	t.movingTime = 0
	t.seen = false
}

func (t *Tracker) SetHeartRate(bpm uint8) { t.heartRate = bpm }

func (t *Tracker) SetLastSpeed(v float64) { t.lastSpeed = v }

func (t *Tracker) SetLastIncline(v float64) { t.lastIncline = v }

func (t *Tracker) Speed() float64       { return t.speed }
func (t *Tracker) Incline() float64     { return t.incline }
func (t *Tracker) HeartRate() uint8     { return t.heartRate }
func (t *Tracker) Distance() float64    { return t.distance }
func (t *Tracker) Odometer() float64    { return t.odometer }
func (t *Tracker) Calories() float64    { return t.calories }
func (t *Tracker) LastSpeed() float64   { return t.lastSpeed }
func (t *Tracker) LastIncline() float64 { return t.lastIncline }
func (t *Tracker) WeightKg() float64    { return t.cfg.WeightKg }

func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Speed:       t.speed,
		Incline:     t.incline,
		HeartRate:   t.heartRate,
		Distance:    t.distance,
		Odometer:    t.odometer,
		Calories:    t.calories,
		Watts:       t.watts,
		MovingTime:  t.movingTime,
		LastSpeed:   t.lastSpeed,
		LastIncline: t.lastIncline,
	}
}
