package virtual

import (
	"log"
	"sync"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/ftms"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/treadmill"
)

// controlHandler answers Fitness Machine Control Point writes by steering
// the driver. An app must request control before anything else is accepted.
type controlHandler struct {
	logger *log.Logger
	ctrl   treadmill.Controller
	mode   treadmill.ExportMode

	mu         sync.Mutex
	controlled bool
}

func newControlHandler(logger *log.Logger, ctrl treadmill.Controller, mode treadmill.ExportMode) *controlHandler {
	return &controlHandler{logger: logger, ctrl: ctrl, mode: mode}
}

// handle returns the indication to send back, nil for an empty write
func (h *controlHandler) handle(value []byte) []byte {
	if len(value) == 0 {
		return nil
	}
	req, err := ftms.ParseControlPoint(value)
	if err != nil {
		h.logger.Printf("Exporter: %v", err)
		return ftms.Response(value[0], ftms.ResultInvalidParameter)
	}
	result := h.apply(req)
	h.logger.Printf("Exporter: control point %s -> %s", ftms.OpCodeName(req.OpCode), ftms.ResultName(result))
	return ftms.Response(req.OpCode, result)
}

func (h *controlHandler) apply(req ftms.ControlRequest) byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	if req.OpCode == ftms.OpCodeRequestControl {
		h.controlled = true
		return ftms.ResultSuccess
	}
	if !h.controlled {
		return ftms.ResultControlNotPermitted
	}

	switch req.OpCode {
	case ftms.OpCodeReset:
		h.controlled = false
	case ftms.OpCodeSetTargetSpeed:
		if h.mode == treadmill.ModeBike {
			return ftms.ResultOpCodeNotSupported
		}
		h.ctrl.SetTargetSpeed(req.SpeedKmh)
	case ftms.OpCodeSetTargetInclination:
		if h.mode == treadmill.ModeBike {
			h.ctrl.ChangeInclinationRequested(req.InclinePct, req.InclinePct)
		} else {
			h.ctrl.SetTargetIncline(req.InclinePct)
		}
	case ftms.OpCodeSetIndoorBikeSimulation:
		if h.mode != treadmill.ModeBike {
			return ftms.ResultOpCodeNotSupported
		}
		h.ctrl.ChangeInclinationRequested(req.GradePct, req.GradePct)
	case ftms.OpCodeStartOrResume:
		h.ctrl.RequestStart()
	case ftms.OpCodeStopOrPause:
		h.ctrl.RequestStop()
	default:
		return ftms.ResultOpCodeNotSupported
	}
	return ftms.ResultSuccess
}
