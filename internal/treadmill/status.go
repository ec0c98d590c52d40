package treadmill

import (
	"time"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/lifecycle"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/metrics"
)

// Status is a point-in-time copy of the driver state, safe to share
type Status struct {
	metrics.Snapshot

	Profile   string
	SessionID string
	State     lifecycle.State

	TargetSpeed   float64
	TargetIncline float64
	Fan           int

	LastStart time.Time
	LastStop  time.Time
	At        time.Time
}

// Ready reports whether the equipment accepts commands
func (s Status) Ready() bool {
	return s.State == lifecycle.Ready
}
