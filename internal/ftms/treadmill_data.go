package ftms

import (
	"fmt"
	"time"
)

// Treadmill Data flag bit positions
const (
	tdFlagMoreData          = 1 << 0 // Bit 0: 0 = Instantaneous Speed present
	tdFlagAverageSpeed      = 1 << 1
	tdFlagTotalDistance     = 1 << 2
	tdFlagInclination       = 1 << 3 // Inclination and Ramp Angle Setting
	tdFlagElevationGain     = 1 << 4
	tdFlagInstantaneousPace = 1 << 5
	tdFlagAveragePace       = 1 << 6
	tdFlagExpendedEnergy    = 1 << 7
	tdFlagHeartRate         = 1 << 8
	tdFlagMetabolic         = 1 << 9
	tdFlagElapsedTime       = 1 << 10
)

// TreadmillData is the subset of the Treadmill Data characteristic the
// bridge publishes
type TreadmillData struct {
	SpeedKmh            float64
	InclinePct          float64
	TotalDistanceMeters uint32
	TotalEnergyKcal     uint16
	HeartRateBpm        uint8
	Elapsed             time.Duration
}

// EncodeTreadmillData builds a Treadmill Data notification. Heart rate is
// omitted when zero.
func EncodeTreadmillData(d TreadmillData) []byte {
	flags := uint16(tdFlagTotalDistance | tdFlagInclination | tdFlagExpendedEnergy | tdFlagElapsedTime)
	if d.HeartRateBpm > 0 {
		flags |= tdFlagHeartRate
	}

	buf := make([]byte, 0, 20)
	buf = putUint16(buf, flags)
	buf = putUint16(buf, clampUint16(d.SpeedKmh*100))
	buf = putUint24(buf, d.TotalDistanceMeters&0xffffff)
	buf = putUint16(buf, uint16(clampInt16(d.InclinePct*10)))
	buf = putUint16(buf, 0) // ramp angle
	buf = putUint16(buf, d.TotalEnergyKcal)
	buf = putUint16(buf, 0xffff) // energy per hour: not available
	buf = append(buf, 0xff)      // energy per minute: not available
	if d.HeartRateBpm > 0 {
		buf = append(buf, d.HeartRateBpm)
	}
	buf = putUint16(buf, clampUint16(d.Elapsed.Seconds()))
	return buf
}

// ParseTreadmillData reads the fields EncodeTreadmillData writes and skips
// the other optional ones
func ParseTreadmillData(buf []byte) (TreadmillData, error) {
	var d TreadmillData
	if len(buf) < 2 {
		return d, fmt.Errorf("treadmill data too short: %d bytes", len(buf))
	}
	flags := readUint16(buf, 0)
	offset := 2

	need := func(n int, field string) error {
		if offset+n > len(buf) {
			return fmt.Errorf("buffer too short for %s at offset %d", field, offset)
		}
		return nil
	}

	if flags&tdFlagMoreData == 0 {
		if err := need(2, "instantaneous speed"); err != nil {
			return d, err
		}
		d.SpeedKmh = float64(readUint16(buf, offset)) * 0.01
		offset += 2
	}
	if flags&tdFlagAverageSpeed != 0 {
		if err := need(2, "average speed"); err != nil {
			return d, err
		}
		offset += 2
	}
	if flags&tdFlagTotalDistance != 0 {
		if err := need(3, "total distance"); err != nil {
			return d, err
		}
		d.TotalDistanceMeters = uint32(buf[offset]) | uint32(buf[offset+1])<<8 | uint32(buf[offset+2])<<16
		offset += 3
	}
	if flags&tdFlagInclination != 0 {
		if err := need(4, "inclination"); err != nil {
			return d, err
		}
		d.InclinePct = float64(int16(readUint16(buf, offset))) * 0.1
		offset += 4
	}
	if flags&tdFlagElevationGain != 0 {
		if err := need(4, "elevation gain"); err != nil {
			return d, err
		}
		offset += 4
	}
	if flags&tdFlagInstantaneousPace != 0 {
		if err := need(1, "instantaneous pace"); err != nil {
			return d, err
		}
		offset++
	}
	if flags&tdFlagAveragePace != 0 {
		if err := need(1, "average pace"); err != nil {
			return d, err
		}
		offset++
	}
	if flags&tdFlagExpendedEnergy != 0 {
		if err := need(5, "expended energy"); err != nil {
			return d, err
		}
		d.TotalEnergyKcal = readUint16(buf, offset)
		offset += 5
	}
	if flags&tdFlagHeartRate != 0 {
		if err := need(1, "heart rate"); err != nil {
			return d, err
		}
		d.HeartRateBpm = buf[offset]
		offset++
	}
	if flags&tdFlagMetabolic != 0 {
		if err := need(1, "metabolic equivalent"); err != nil {
			return d, err
		}
		offset++
	}
	if flags&tdFlagElapsedTime != 0 {
		if err := need(2, "elapsed time"); err != nil {
			return d, err
		}
		d.Elapsed = time.Duration(readUint16(buf, offset)) * time.Second
	}
	return d, nil
}
