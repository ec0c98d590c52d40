package console

import (
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/treadmill"
)

const (
	speedStep   = 0.5
	inclineStep = 0.5
)

// Control is the part of the driver the console steers
type Control interface {
	SetTargetSpeed(kmh float64)
	SetTargetIncline(pct float64)
	RequestStart()
	RequestStop()
	ChangeFanSpeed(delta int)
	ResetMetrics()
}

// Verify Driver satisfies Control
var _ Control = (*treadmill.Driver)(nil)

// keyMap turns key presses into control calls. It remembers what it asked
// for so repeated presses add up before telemetry catches up.
type keyMap struct {
	ctrl Control
	quit func()

	speed   float64
	incline float64
}

// sync adopts the targets from a fresh status
func (k *keyMap) sync(s treadmill.Status) {
	k.speed = s.TargetSpeed
	if k.speed == 0 {
		k.speed = s.Speed
	}
	k.incline = s.TargetIncline
	if k.incline == 0 {
		k.incline = s.Incline
	}
}

// handle returns true when the key was consumed
func (k *keyMap) handle(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyUp:
		k.bumpSpeed(speedStep)
	case tcell.KeyDown:
		k.bumpSpeed(-speedStep)
	case tcell.KeyRight:
		k.bumpIncline(inclineStep)
	case tcell.KeyLeft:
		k.bumpIncline(-inclineStep)
	case tcell.KeyEscape:
		k.quit()
	case tcell.KeyRune:
		return k.handleRune(ev.Rune())
	default:
		return false
	}
	return true
}

func (k *keyMap) handleRune(r rune) bool {
	switch {
	case r == '+' || r == '=':
		k.bumpSpeed(speedStep)
	case r == '-':
		k.bumpSpeed(-speedStep)
	case r == ']':
		k.bumpIncline(inclineStep)
	case r == '[':
		k.bumpIncline(-inclineStep)
	case r >= '1' && r <= '9':
		k.speed = float64(r - '0')
		k.ctrl.SetTargetSpeed(k.speed)
	case r == 's':
		k.ctrl.RequestStart()
	case r == 'p' || r == ' ':
		k.ctrl.RequestStop()
	case r == 'f':
		k.ctrl.ChangeFanSpeed(1)
	case r == 'F':
		k.ctrl.ChangeFanSpeed(-1)
	case r == 'r':
		k.ctrl.ResetMetrics()
	case r == 'q':
		k.quit()
	default:
		return false
	}
	return true
}

func (k *keyMap) bumpSpeed(delta float64) {
	k.speed = clamp(k.speed+delta, treadmill.MinSpeed, treadmill.MaxSpeed)
	k.ctrl.SetTargetSpeed(k.speed)
}

func (k *keyMap) bumpIncline(delta float64) {
	k.incline = clamp(k.incline+delta, treadmill.MinIncline, treadmill.MaxIncline)
	k.ctrl.SetTargetIncline(k.incline)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, math.Round(v*10)/10))
}
