package console

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/lifecycle"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/metrics"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/treadmill"
)

type recordingControl struct {
	speeds   []float64
	inclines []float64
	fan      []int
	starts   int
	stops    int
	resets   int
}

func (r *recordingControl) SetTargetSpeed(kmh float64)   { r.speeds = append(r.speeds, kmh) }
func (r *recordingControl) SetTargetIncline(pct float64) { r.inclines = append(r.inclines, pct) }
func (r *recordingControl) RequestStart()                { r.starts++ }
func (r *recordingControl) RequestStop()                 { r.stops++ }
func (r *recordingControl) ChangeFanSpeed(delta int)     { r.fan = append(r.fan, delta) }
func (r *recordingControl) ResetMetrics()                { r.resets++ }

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func key(k tcell.Key) *tcell.EventKey {
	return tcell.NewEventKey(k, 0, tcell.ModNone)
}

func TestKeyMap_SpeedStepsAccumulate(t *testing.T) {
	ctrl := &recordingControl{}
	k := &keyMap{ctrl: ctrl, quit: func() {}}
	k.sync(treadmill.Status{Snapshot: metrics.Snapshot{Speed: 3}})

	assert.True(t, k.handle(key(tcell.KeyUp)))
	assert.True(t, k.handle(runeKey('+')))
	assert.True(t, k.handle(key(tcell.KeyDown)))
	assert.Equal(t, []float64{3.5, 4, 3.5}, ctrl.speeds)
}

func TestKeyMap_ClampsToRange(t *testing.T) {
	ctrl := &recordingControl{}
	k := &keyMap{ctrl: ctrl, quit: func() {}}
	k.sync(treadmill.Status{TargetSpeed: treadmill.MaxSpeed})

	k.handle(key(tcell.KeyUp))
	k.handle(key(tcell.KeyLeft))
	assert.Equal(t, []float64{treadmill.MaxSpeed}, ctrl.speeds)
	assert.Equal(t, []float64{0}, ctrl.inclines)
}

func TestKeyMap_TargetWinsOverTelemetry(t *testing.T) {
	ctrl := &recordingControl{}
	k := &keyMap{ctrl: ctrl, quit: func() {}}
	k.sync(treadmill.Status{
		Snapshot:      metrics.Snapshot{Speed: 2, Incline: 1},
		TargetSpeed:   6,
		TargetIncline: 4,
	})

	k.handle(runeKey(']'))
	k.handle(runeKey('-'))
	assert.Equal(t, []float64{4.5}, ctrl.inclines)
	assert.Equal(t, []float64{5.5}, ctrl.speeds)
}

func TestKeyMap_Commands(t *testing.T) {
	ctrl := &recordingControl{}
	quits := 0
	k := &keyMap{ctrl: ctrl, quit: func() { quits++ }}

	for _, r := range "7spfFr q" {
		assert.True(t, k.handle(runeKey(r)), "rune %q", r)
	}
	assert.True(t, k.handle(key(tcell.KeyEscape)))

	assert.Equal(t, []float64{7}, ctrl.speeds)
	assert.Equal(t, 1, ctrl.starts)
	assert.Equal(t, 2, ctrl.stops)
	assert.Equal(t, []int{1, -1}, ctrl.fan)
	assert.Equal(t, 1, ctrl.resets)
	assert.Equal(t, 2, quits)
}

func TestKeyMap_UnboundKeysPassThrough(t *testing.T) {
	k := &keyMap{ctrl: &recordingControl{}, quit: func() {}}
	assert.False(t, k.handle(runeKey('z')))
	assert.False(t, k.handle(key(tcell.KeyTab)))
}

func TestFormat(t *testing.T) {
	s := treadmill.Status{
		Snapshot: metrics.Snapshot{
			Speed:      5.5,
			HeartRate:  131,
			Distance:   1.25,
			MovingTime: time.Hour + 2*time.Minute + 3*time.Second,
		},
		Profile:   "kingsmith-r2",
		State:     lifecycle.Ready,
		SessionID: "01J0000000000000000000000",
	}

	metricsText := formatMetrics(s)
	assert.Contains(t, metricsText, "5.5 km/h")
	assert.Contains(t, metricsText, "131 bpm")
	assert.Contains(t, metricsText, "1.25 km")
	assert.Contains(t, metricsText, "1:02:03")
	assert.NotContains(t, metricsText, "target")

	statusText := formatStatus(s)
	assert.Contains(t, statusText, "kingsmith-r2")
	assert.True(t, strings.Contains(statusText, "[green]"))
	assert.NotContains(t, statusText, "Fan")
}
