package virtual

import (
	"math"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/ftms"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/treadmill"
)

// Encode renders a driver status as the data characteristic value of mode
func Encode(mode treadmill.ExportMode, s treadmill.Status) []byte {
	meters := uint32(math.Round(s.Distance * 1000))
	kcal := uint16(math.Min(math.Round(s.Calories), math.MaxUint16))

	if mode == treadmill.ModeBike {
		return ftms.EncodeIndoorBikeData(ftms.IndoorBikeData{
			SpeedKmh:            s.Speed,
			TotalDistanceMeters: meters,
			PowerWatts:          int16(math.Min(math.Round(s.Watts), math.MaxInt16)),
			TotalEnergyKcal:     kcal,
			HeartRateBpm:        s.HeartRate,
			Elapsed:             s.MovingTime,
		})
	}
	return ftms.EncodeTreadmillData(ftms.TreadmillData{
		SpeedKmh:            s.Speed,
		InclinePct:          s.Incline,
		TotalDistanceMeters: meters,
		TotalEnergyKcal:     kcal,
		HeartRateBpm:        s.HeartRate,
		Elapsed:             s.MovingTime,
	})
}
