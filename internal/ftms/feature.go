package ftms

// Fitness Machine Feature bits (first field)
const (
	featureTotalDistance    = 1 << 2
	featureInclination      = 1 << 3
	featureExpendedEnergy   = 1 << 9
	featureHeartRate        = 1 << 10
	featureElapsedTime      = 1 << 12
	featurePowerMeasurement = 1 << 14
)

// Target setting feature bits (second field)
const (
	targetSpeed       = 1 << 0
	targetInclination = 1 << 1
	targetSimulation  = 1 << 13
)

// TreadmillFeatures is the Fitness Machine Feature value of a treadmill
// that takes speed and incline targets
func TreadmillFeatures() []byte {
	buf := make([]byte, 0, 8)
	buf = putUint32(buf, featureTotalDistance|featureInclination|featureExpendedEnergy|featureHeartRate|featureElapsedTime)
	return putUint32(buf, targetSpeed|targetInclination)
}

// BikeFeatures is the Fitness Machine Feature value of a bike that takes
// simulation grades
func BikeFeatures() []byte {
	buf := make([]byte, 0, 8)
	buf = putUint32(buf, featureTotalDistance|featureExpendedEnergy|featureHeartRate|featureElapsedTime|featurePowerMeasurement)
	return putUint32(buf, targetInclination|targetSimulation)
}

func putUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
