package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/protocol"
)

func sampleAt(base time.Time, offset time.Duration, speed float64) protocol.Sample {
	return protocol.Sample{Speed: speed, At: base.Add(offset)}
}

func TestTracker_DistanceIntegration(t *testing.T) {
	tr := NewTracker(Config{})
	base := time.Now()

	speeds := []float64{0, 10, 0, 15}
	for i, s := range speeds {
		tr.Update(sampleAt(base, time.Duration(i)*time.Second, s))
	}

	assert.InDelta(t, 10.0/3600+0+15.0/3600, tr.Distance(), 1e-9)
	assert.InDelta(t, 0.00694, tr.Distance(), 1e-5)
	assert.Equal(t, tr.Distance(), tr.Odometer())
	assert.Equal(t, 2*time.Second, tr.Snapshot().MovingTime)
}

func TestTracker_FirstSampleNotIntegrated(t *testing.T) {
	tr := NewTracker(Config{})
	c := tr.Update(sampleAt(time.Now(), 0, 12))
	assert.True(t, c.SpeedChanged)
	assert.False(t, c.DistanceChanged)
	assert.Zero(t, tr.Distance())
	assert.Zero(t, tr.Calories())
}

func TestTracker_ReconnectSuppressesIntegration(t *testing.T) {
	tr := NewTracker(Config{})
	base := time.Now()
	tr.Update(sampleAt(base, 0, 10))
	tr.Update(sampleAt(base, time.Second, 10))
	before := tr.Distance()

	tr.Reconnected()
	tr.Update(sampleAt(base, 3*time.Second, 10))
	assert.Equal(t, before, tr.Distance())

	tr.Update(sampleAt(base, 4*time.Second, 10))
	assert.InDelta(t, before+10.0/3600, tr.Distance(), 1e-9)
}

func TestTracker_GapIsCapped(t *testing.T) {
	tr := NewTracker(Config{MaxGap: 2 * time.Second})
	base := time.Now()
	tr.Update(sampleAt(base, 0, 36))
	tr.Update(sampleAt(base, time.Minute, 36))

	assert.InDelta(t, 36.0/3600*2, tr.Distance(), 1e-9)
}

func TestTracker_ChangeEvents(t *testing.T) {
	tr := NewTracker(Config{})
	base := time.Now()

	c := tr.Update(protocol.Sample{Speed: 5, Incline: 2, HasIncline: true, At: base})
	assert.True(t, c.SpeedChanged)
	assert.True(t, c.InclineChanged)
	assert.Equal(t, 0.0, c.OldIncline)

	c = tr.Update(protocol.Sample{Speed: 5, Incline: 2, HasIncline: true, At: base.Add(time.Second)})
	assert.False(t, c.SpeedChanged)
	assert.False(t, c.InclineChanged)

	c = tr.Update(protocol.Sample{Speed: 5, Incline: 3, HasIncline: true, At: base.Add(2 * time.Second)})
	assert.True(t, c.InclineChanged)
	assert.Equal(t, 2.0, c.OldIncline)

	// samples without incline keep the previous value
	c = tr.Update(protocol.Sample{Speed: 5, At: base.Add(3 * time.Second)})
	assert.False(t, c.InclineChanged)
	assert.Equal(t, 3.0, tr.Incline())
}

func TestTracker_LastValuesOnlyWhileMoving(t *testing.T) {
	tr := NewTracker(Config{})
	base := time.Now()

	tr.Update(protocol.Sample{Speed: 6, Incline: 4, HasIncline: true, At: base})
	tr.Update(protocol.Sample{Speed: 0, Incline: 0, HasIncline: true, At: base.Add(time.Second)})

	assert.Equal(t, 6.0, tr.LastSpeed())
	assert.Equal(t, 4.0, tr.LastIncline())
	assert.Equal(t, 0.0, tr.Speed())
}

func TestTracker_SeededInclineSurvivesSamplesWithoutIncline(t *testing.T) {
	tr := NewTracker(Config{})
	tr.SetLastIncline(4)
	base := time.Now()

	tr.Update(protocol.Sample{Speed: 6, At: base})
	tr.Update(protocol.Sample{Speed: 7, At: base.Add(time.Second)})

	assert.Equal(t, 7.0, tr.LastSpeed())
	assert.Equal(t, 4.0, tr.LastIncline())
	assert.Equal(t, 0.0, tr.Incline())
}

func TestTracker_Calories(t *testing.T) {
	const watts = 100.0
	tr := NewTracker(Config{WeightKg: 80, Power: PowerFunc(func(speed, _, _ float64) float64 {
		if speed == 0 {
			return 0
		}
		return watts
	})})
	base := time.Now()

	tr.Update(sampleAt(base, 0, 8))
	tr.Update(sampleAt(base, 1500*time.Millisecond, 8))
	expected := ((0.048*watts + 1.19) * 80 * 3.5 / 200) / (60000.0 / 1500.0)
	assert.InDelta(t, expected, tr.Calories(), 1e-9)

	// no power, no calories
	tr.Update(sampleAt(base, 2500*time.Millisecond, 0))
	assert.InDelta(t, expected, tr.Calories(), 1e-9)
}

func TestTracker_ResetKeepsOdometer(t *testing.T) {
	tr := NewTracker(Config{})
	base := time.Now()
	tr.Update(sampleAt(base, 0, 10))
	tr.Update(sampleAt(base, time.Second, 10))

	tr.Reset()
	assert.Zero(t, tr.Distance())
	assert.Zero(t, tr.Calories())
	assert.InDelta(t, 10.0/3600, tr.Odometer(), 1e-9)
}

func TestTracker_Refresh(t *testing.T) {
	tr := NewTracker(Config{})
	tr.Update(sampleAt(time.Now(), 0, 8))
	tr.Refresh()
	assert.Greater(t, tr.Snapshot().Watts, 0.0)
	assert.Equal(t, DefaultWeightKg, tr.WeightKg())
}

func TestACSMPower(t *testing.T) {
	assert.Zero(t, ACSMPower(0, 5, 75))
	assert.Zero(t, ACSMPower(5, 5, 0))

	flat := ACSMPower(5, 0, 75)
	hill := ACSMPower(5, 10, 75)
	assert.Greater(t, flat, 0.0)
	assert.Greater(t, hill, flat)
	assert.Greater(t, ACSMPower(10, 0, 75), ACSMPower(5, 0, 75))
}
