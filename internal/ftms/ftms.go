// Package ftms encodes and decodes the standard fitness GATT payloads the
// bridge republishes: FTMS Treadmill Data, Indoor Bike Data and the Fitness
// Machine Control Point, plus the Heart Rate Measurement read from belts.
// See: https://www.bluetooth.com/specifications/specs/fitness-machine-service-1-0/
package ftms

import "fmt"

// Assigned numbers
const (
	ServiceFitnessMachine uint16 = 0x1826
	ServiceHeartRate      uint16 = 0x180d

	CharFitnessMachineFeature uint16 = 0x2acc
	CharTreadmillData         uint16 = 0x2acd
	CharIndoorBikeData        uint16 = 0x2ad2
	CharControlPoint          uint16 = 0x2ad9
	CharMachineStatus         uint16 = 0x2ada
	CharHeartRateMeasurement  uint16 = 0x2a37
)

// UUID strings as the transport reports them
var (
	ServiceUUIDHeartRate         = UUID16(ServiceHeartRate)
	CharUUIDHeartRateMeasurement = UUID16(CharHeartRateMeasurement)
)

// Control point op codes
const (
	OpCodeRequestControl          byte = 0x00
	OpCodeReset                   byte = 0x01
	OpCodeSetTargetSpeed          byte = 0x02
	OpCodeSetTargetInclination    byte = 0x03
	OpCodeSetTargetResistance     byte = 0x04
	OpCodeSetTargetPower          byte = 0x05
	OpCodeSetTargetHeartRate      byte = 0x06
	OpCodeStartOrResume           byte = 0x07
	OpCodeStopOrPause             byte = 0x08
	OpCodeSetIndoorBikeSimulation byte = 0x11
	OpCodeResponseCode            byte = 0x80
)

// Control point result codes
const (
	ResultSuccess             byte = 0x01
	ResultOpCodeNotSupported  byte = 0x02
	ResultInvalidParameter    byte = 0x03
	ResultOperationFailed     byte = 0x04
	ResultControlNotPermitted byte = 0x05
)

// UUID16 expands a 16-bit assigned number to its full Bluetooth base UUID.
// Equipment profiles use it for their vendor identifiers too.
func UUID16(v uint16) string {
	return fmt.Sprintf("0000%04x-0000-1000-8000-00805f9b34fb", v)
}

func putUint16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

func putUint24(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16))
}

func readUint16(buf []byte, offset int) uint16 {
	return uint16(buf[offset]) | uint16(buf[offset+1])<<8
}

// clampUint16 rounds v and limits it to the uint16 range
func clampUint16(v float64) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= 0xffff:
		return 0xffff
	default:
		return uint16(v + 0.5)
	}
}

func clampInt16(v float64) int16 {
	switch {
	case v <= -0x8000:
		return -0x8000
	case v >= 0x7fff:
		return 0x7fff
	case v < 0:
		return int16(v - 0.5)
	default:
		return int16(v + 0.5)
	}
}
