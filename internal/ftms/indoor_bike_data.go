package ftms

import (
	"fmt"
	"time"
)

// Indoor Bike Data flag bit positions (FTMS 1.0)
const (
	ibdFlagMoreData             = 1 << 0  // Bit 0: 0 = Instantaneous Speed present, 1 = not present
	ibdFlagAverageSpeed         = 1 << 1  // Bit 1: Average Speed present
	ibdFlagInstantaneousCadence = 1 << 2  // Bit 2: Instantaneous Cadence present
	ibdFlagAverageCadence       = 1 << 3  // Bit 3: Average Cadence present
	ibdFlagTotalDistance        = 1 << 4  // Bit 4: Total Distance present
	ibdFlagResistanceLevel      = 1 << 5  // Bit 5: Resistance Level present
	ibdFlagInstantaneousPower   = 1 << 6  // Bit 6: Instantaneous Power present
	ibdFlagAveragePower         = 1 << 7  // Bit 7: Average Power present
	ibdFlagExpendedEnergy       = 1 << 8  // Bit 8: Expended Energy present
	ibdFlagHeartRate            = 1 << 9  // Bit 9: Heart Rate present
	ibdFlagMetabolicEquivalent  = 1 << 10 // Bit 10: Metabolic Equivalent present
	ibdFlagElapsedTime          = 1 << 11 // Bit 11: Elapsed Time present
)

// IndoorBikeData is what the bridge publishes when it poses as a bike
type IndoorBikeData struct {
	SpeedKmh            float64
	TotalDistanceMeters uint32
	PowerWatts          int16
	TotalEnergyKcal     uint16
	HeartRateBpm        uint8
	Elapsed             time.Duration
}

func EncodeIndoorBikeData(d IndoorBikeData) []byte {
	flags := uint16(ibdFlagTotalDistance | ibdFlagInstantaneousPower | ibdFlagExpendedEnergy | ibdFlagElapsedTime)
	if d.HeartRateBpm > 0 {
		flags |= ibdFlagHeartRate
	}

	buf := make([]byte, 0, 20)
	buf = putUint16(buf, flags)
	buf = putUint16(buf, clampUint16(d.SpeedKmh*100))
	buf = putUint24(buf, d.TotalDistanceMeters&0xffffff)
	buf = putUint16(buf, uint16(d.PowerWatts))
	buf = putUint16(buf, d.TotalEnergyKcal)
	buf = putUint16(buf, 0xffff)
	buf = append(buf, 0xff)
	if d.HeartRateBpm > 0 {
		buf = append(buf, d.HeartRateBpm)
	}
	buf = putUint16(buf, clampUint16(d.Elapsed.Seconds()))
	return buf
}

// ParseIndoorBikeData parses an Indoor Bike Data notification, skipping the
// fields IndoorBikeData does not carry
func ParseIndoorBikeData(buf []byte) (IndoorBikeData, error) {
	var d IndoorBikeData
	if len(buf) < 2 {
		return d, fmt.Errorf("indoor bike data too short: %d bytes", len(buf))
	}

	// Flags are first 2 bytes (little-endian UINT16)
	flags := readUint16(buf, 0)
	offset := 2

	fields := []struct {
		present bool
		size    int
		name    string
		read    func(at int)
	}{
		// Bit 0 (More Data) is inverted: 0 means Instantaneous Speed IS present
		{flags&ibdFlagMoreData == 0, 2, "instantaneous speed", func(at int) {
			d.SpeedKmh = float64(readUint16(buf, at)) * 0.01
		}},
		{flags&ibdFlagAverageSpeed != 0, 2, "average speed", nil},
		{flags&ibdFlagInstantaneousCadence != 0, 2, "instantaneous cadence", nil},
		{flags&ibdFlagAverageCadence != 0, 2, "average cadence", nil},
		{flags&ibdFlagTotalDistance != 0, 3, "total distance", func(at int) {
			d.TotalDistanceMeters = uint32(buf[at]) | uint32(buf[at+1])<<8 | uint32(buf[at+2])<<16
		}},
		{flags&ibdFlagResistanceLevel != 0, 2, "resistance level", nil},
		{flags&ibdFlagInstantaneousPower != 0, 2, "instantaneous power", func(at int) {
			d.PowerWatts = int16(readUint16(buf, at))
		}},
		{flags&ibdFlagAveragePower != 0, 2, "average power", nil},
		{flags&ibdFlagExpendedEnergy != 0, 5, "expended energy", func(at int) {
			d.TotalEnergyKcal = readUint16(buf, at)
		}},
		{flags&ibdFlagHeartRate != 0, 1, "heart rate", func(at int) {
			d.HeartRateBpm = buf[at]
		}},
		{flags&ibdFlagMetabolicEquivalent != 0, 1, "metabolic equivalent", nil},
		{flags&ibdFlagElapsedTime != 0, 2, "elapsed time", func(at int) {
			d.Elapsed = time.Duration(readUint16(buf, at)) * time.Second
		}},
	}

	for _, f := range fields {
		if !f.present {
			continue
		}
		if offset+f.size > len(buf) {
			return IndoorBikeData{}, fmt.Errorf("buffer too short for %s at offset %d", f.name, offset)
		}
		if f.read != nil {
			f.read(offset)
		}
		offset += f.size
	}
	return d, nil
}
