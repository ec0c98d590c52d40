package ftms

import "fmt"

// ParseHeartRate parses a heart rate measurement characteristic value
// See: https://www.bluetooth.com/specifications/specs/heart-rate-service-1-0/
func ParseHeartRate(buf []byte) (uint16, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("heart rate data too short: %d bytes", len(buf))
	}

	flags := buf[0]
	// Bit 0: 0 = UINT8, 1 = UINT16
	if flags&0x01 != 0 {
		if len(buf) < 3 {
			return 0, fmt.Errorf("heart rate UINT16 data too short: %d bytes", len(buf))
		}
		return readUint16(buf, 1), nil
	}
	return uint16(buf[1]), nil
}
