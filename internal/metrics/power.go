package metrics

// PowerEstimator estimates mechanical output of the user
type PowerEstimator interface {
	Watts(speedKmh, inclinePct, weightKg float64) float64
}

// PowerFunc adapts a function to PowerEstimator
type PowerFunc func(speedKmh, inclinePct, weightKg float64) float64

func (f PowerFunc) Watts(speedKmh, inclinePct, weightKg float64) float64 {
	return f(speedKmh, inclinePct, weightKg)
}

const (
	// below this speed the walking equation applies
	walkRunThresholdKmh = 6.4
	// net mechanical efficiency of locomotion
	efficiency = 0.25
	// watts per (ml O2 / min), from 5 kcal per litre of O2
	wattsPerMlO2 = 5.0 * 4184.0 / 1000.0 / 60.0
)

// ACSMPower estimates output from the ACSM walking and running equations.
// Returns 0 when the belt is not moving.
func ACSMPower(speedKmh, inclinePct, weightKg float64) float64 {
	if speedKmh <= 0 || weightKg <= 0 {
		return 0
	}
	mPerMin := speedKmh * 1000 / 60
	grade := inclinePct / 100
	if grade < 0 {
		grade = 0
	}

	var vo2 float64 // ml/kg/min above rest
	if speedKmh < walkRunThresholdKmh {
		vo2 = 0.1*mPerMin + 1.8*mPerMin*grade
	} else {
		vo2 = 0.2*mPerMin + 0.9*mPerMin*grade
	}
	return vo2 * weightKg * wattsPerMlO2 * efficiency
}

// DefaultPower is the estimator used when none is configured
var DefaultPower PowerEstimator = PowerFunc(ACSMPower)
