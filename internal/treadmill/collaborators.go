package treadmill

import "fmt"

// ExportMode selects the fitness profile a virtual device republishes
type ExportMode int

const (
	ModeTreadmill ExportMode = iota
	ModeBike
)

func (m ExportMode) String() string {
	switch m {
	case ModeTreadmill:
		return "treadmill"
	case ModeBike:
		return "bike"
	default:
		return fmt.Sprintf("ExportMode(%d)", int(m))
	}
}

// Controller is the control surface handed to collaborators that steer the
// equipment, such as a virtual device receiving commands from an app.
type Controller interface {
	SetTargetSpeed(kmh float64)
	SetTargetIncline(pct float64)
	ChangeInclinationRequested(grade, percentage float64)
	RequestStart()
	RequestStop()
	Status() Status
}

// VirtualExporter republishes telemetry under a standard fitness profile.
// Attach is called once, from the driver loop, after the first Ready tick.
// Publish is called on every later tick and must not block.
type VirtualExporter interface {
	Attach(ctrl Controller, mode ExportMode) error
	Publish(status Status)
}

// HeartRateSource supplies heart rate from outside the equipment
type HeartRateSource interface {
	// HeartRate returns the latest reading and whether it is current
	HeartRate() (bpm uint8, ok bool)
}

// Display renders driver status. Refresh is called about once per second
// from the driver loop and must not block.
type Display interface {
	Refresh(status Status)
}
