package treadmill

import (
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/lifecycle"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/protocol"
)

// tick is the periodic step of the loop. Before Ready it only re-drives a
// stalled handshake.
func (d *Driver) tick() {
	switch d.lc.State() {
	case lifecycle.Ready:
	case lifecycle.Handshaking:
		if d.handshakeStalled && !d.coord.Busy() {
			d.handshakeStalled = false
			d.debugf("retrying handshake step %d of %d", d.handshakeStep+1, len(d.handshake))
			d.sendHandshakeStep()
		}
		return
	default:
		return
	}

	if d.opts.HeartRate != nil {
		if bpm, ok := d.opts.HeartRate.HeartRate(); ok {
			d.tracker.SetHeartRate(bpm)
		}
	}
	d.tracker.Refresh()
	d.attachExporter()

	cmd := d.takePending()
	d.processSpeedIncline(cmd)
	d.processStartStop(cmd)
	d.processFan(cmd)

	status := d.publishStatus()
	if d.exporterLive {
		d.opts.Exporter.Publish(status)
	}

	d.tickCount++
	if d.tickCount >= d.refreshEvery {
		d.tickCount = 0
		if d.opts.Display != nil {
			d.opts.Display.Refresh(status)
		}
		d.events.Status.Notify(status)
	}
}

func (d *Driver) validSpeed(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if *v < MinSpeed || *v > MaxSpeed {
		d.debugf("ignoring speed %v outside [%v, %v]", *v, MinSpeed, MaxSpeed)
		return 0, false
	}
	return *v, true
}

func (d *Driver) validIncline(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	// the equipment step is applied before the range check
	q := d.profile.QuantizeIncline(*v)
	if q < MinIncline || q > MaxIncline {
		d.debugf("ignoring incline %v outside [%v, %v]", *v, MinIncline, MaxIncline)
		return 0, false
	}
	return q, true
}

// processSpeedIncline writes targets that differ from the reported values.
// Profiles with a combined command get one write for both.
func (d *Driver) processSpeedIncline(cmd PendingCommand) {
	speed, speedOK := d.validSpeed(cmd.Speed)
	incline, inclineOK := d.validIncline(cmd.Incline)
	if speedOK {
		d.targetSpeed = speed
	}
	if inclineOK {
		d.targetIncline = incline
	}

	changeSpeed := speedOK && speed != d.tracker.Speed()
	changeIncline := inclineOK && incline != d.tracker.Incline()

	if d.profile.CombinesSpeedIncline() {
		if !changeSpeed && !changeIncline {
			return
		}
		if !speedOK {
			speed = d.tracker.Speed()
		}
		if !inclineOK {
			incline = d.tracker.Incline()
		}
		d.send(protocol.SetSpeedIncline(speed, incline))
		return
	}

	if changeSpeed {
		d.send(protocol.SetSpeed(speed))
	}
	if changeIncline {
		d.send(protocol.SetIncline(incline))
	}
}

func (d *Driver) processStartStop(cmd PendingCommand) {
	if cmd.Start {
		d.debugf("starting")
		if d.tracker.LastSpeed() == 0 {
			d.tracker.SetLastSpeed(defaultStartSpeed)
		}
		d.send(protocol.Start())
		d.lastStart = d.opts.Now()
		d.events.TapeStarted.Notify(struct{}{})
	}
	if cmd.Stop {
		d.debugf("stopping")
		d.send(protocol.Stop())
		d.lastStop = d.opts.Now()
		d.events.TapeStopped.Notify(struct{}{})
	}
}

func (d *Driver) processFan(cmd PendingCommand) {
	if cmd.Fan == nil {
		return
	}
	level := cmd.Fan.Value
	if cmd.Fan.Relative {
		level += d.fan
	}
	if level < 0 {
		level = 0
	}
	d.debugf("changing fan speed to %d", level)
	if d.send(protocol.SetFan(level)) != nil {
		d.fan = level
	}
}

func (d *Driver) attachExporter() {
	if d.exporterDone || !d.opts.VirtualDevice {
		return
	}
	d.exporterDone = true
	if d.opts.Exporter == nil {
		d.logger.Printf("Driver: virtual device enabled but no exporter configured")
		return
	}

	mode := ModeTreadmill
	if d.opts.ForceBike {
		mode = ModeBike
	}
	d.debugf("creating virtual %s", mode)
	if err := d.opts.Exporter.Attach(d, mode); err != nil {
		d.reportError(err)
		return
	}
	d.exporterLive = true
}
