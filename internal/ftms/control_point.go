package ftms

import (
	"errors"
	"fmt"
)

// ErrMalformedControl is returned for control point writes too short for their op code
var ErrMalformedControl = errors.New("ftms: malformed control point write")

// ControlRequest is a decoded control point write
type ControlRequest struct {
	OpCode byte
	// SpeedKmh for OpCodeSetTargetSpeed
	SpeedKmh float64
	// InclinePct for OpCodeSetTargetInclination
	InclinePct float64
	// GradePct for OpCodeSetIndoorBikeSimulation
	GradePct float64
	// Stop distinguishes stop (true) from pause for OpCodeStopOrPause
	Stop bool
}

// ParseControlPoint decodes a write to the Fitness Machine Control Point
func ParseControlPoint(data []byte) (ControlRequest, error) {
	if len(data) == 0 {
		return ControlRequest{}, fmt.Errorf("%w: empty", ErrMalformedControl)
	}
	req := ControlRequest{OpCode: data[0]}
	need := func(n int) error {
		if len(data) < n {
			return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrMalformedControl, OpCodeName(req.OpCode), n, len(data))
		}
		return nil
	}

	switch req.OpCode {
	case OpCodeSetTargetSpeed:
		// UINT16, 0.01 km/h
		if err := need(3); err != nil {
			return req, err
		}
		req.SpeedKmh = float64(readUint16(data, 1)) * 0.01
	case OpCodeSetTargetInclination:
		// SINT16, 0.1 %
		if err := need(3); err != nil {
			return req, err
		}
		req.InclinePct = float64(int16(readUint16(data, 1))) * 0.1
	case OpCodeSetIndoorBikeSimulation:
		// wind SINT16, grade SINT16 0.01 %, crr UINT8, cw UINT8
		if err := need(5); err != nil {
			return req, err
		}
		req.GradePct = float64(int16(readUint16(data, 3))) * 0.01
	case OpCodeStopOrPause:
		req.Stop = len(data) < 2 || data[1] == 0x01
	}
	return req, nil
}

// Response builds the control point indication answering op code
func Response(opCode, result byte) []byte {
	return []byte{OpCodeResponseCode, opCode, result}
}

func OpCodeName(op byte) string {
	switch op {
	case OpCodeRequestControl:
		return "Request Control"
	case OpCodeReset:
		return "Reset"
	case OpCodeSetTargetSpeed:
		return "Set Target Speed"
	case OpCodeSetTargetInclination:
		return "Set Target Inclination"
	case OpCodeSetTargetResistance:
		return "Set Target Resistance"
	case OpCodeSetTargetPower:
		return "Set Target Power"
	case OpCodeSetTargetHeartRate:
		return "Set Target Heart Rate"
	case OpCodeStartOrResume:
		return "Start/Resume"
	case OpCodeStopOrPause:
		return "Stop/Pause"
	case OpCodeSetIndoorBikeSimulation:
		return "Set Indoor Bike Simulation"
	default:
		return fmt.Sprintf("OpCode 0x%02X", op)
	}
}

func ResultName(result byte) string {
	switch result {
	case ResultSuccess:
		return "Success"
	case ResultOpCodeNotSupported:
		return "Op Code Not Supported"
	case ResultInvalidParameter:
		return "Invalid Parameter"
	case ResultOperationFailed:
		return "Operation Failed"
	case ResultControlNotPermitted:
		return "Control Not Permitted"
	default:
		return fmt.Sprintf("Result 0x%02X", result)
	}
}
