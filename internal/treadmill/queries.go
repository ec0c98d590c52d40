package treadmill

import "time"

// publishStatus copies the loop state for other goroutines
func (d *Driver) publishStatus() Status {
	s := Status{
		Snapshot:      d.tracker.Snapshot(),
		Profile:       d.profile.Name(),
		SessionID:     d.sessionID,
		State:         d.lc.State(),
		TargetSpeed:   d.targetSpeed,
		TargetIncline: d.targetIncline,
		Fan:           d.fan,
		LastStart:     d.lastStart,
		LastStop:      d.lastStop,
		At:            d.opts.Now(),
	}
	d.statusMu.Lock()
	d.status = s
	d.statusMu.Unlock()
	return s
}

// Status returns the latest published status
func (d *Driver) Status() Status {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.status
}

// Connected reports whether the link to the equipment is up
func (d *Driver) Connected() bool {
	return d.transport.Connected()
}

// Ready reports whether the handshake completed on the current link
func (d *Driver) Ready() bool {
	return d.Status().Ready()
}

func (d *Driver) CurrentSpeed() float64   { return d.Status().Speed }
func (d *Driver) CurrentIncline() float64 { return d.Status().Incline }
func (d *Driver) HeartRate() uint8        { return d.Status().HeartRate }
func (d *Driver) Distance() float64       { return d.Status().Distance }
func (d *Driver) Calories() float64       { return d.Status().Calories }
func (d *Driver) Odometer() float64       { return d.Status().Odometer }
func (d *Driver) TargetSpeed() float64    { return d.Status().TargetSpeed }
func (d *Driver) TargetIncline() float64  { return d.Status().TargetIncline }
func (d *Driver) FanSpeed() int           { return d.Status().Fan }
func (d *Driver) LastSpeed() float64      { return d.Status().LastSpeed }
func (d *Driver) LastIncline() float64    { return d.Status().LastIncline }

// AutoPauseWhenSpeedIsZero reports whether a zero speed may pause the
// workout; it is false shortly after a start while the belt spins up
func (d *Driver) AutoPauseWhenSpeedIsZero() bool {
	s := d.Status()
	return s.LastStart.IsZero() || d.opts.Now().Sub(s.LastStart) >= autoPauseGrace
}

// AutoStartWhenSpeedIsGreaterThanZero reports whether a moving belt may
// resume the workout; it is false shortly after a stop and while one is pending
func (d *Driver) AutoStartWhenSpeedIsGreaterThanZero() bool {
	if d.stopPending() {
		return false
	}
	s := d.Status()
	return s.LastStop.IsZero() || d.opts.Now().Sub(s.LastStop) >= autoStartGrace
}

// SetLastSpeed overrides the speed a restarted belt resumes at
func (d *Driver) SetLastSpeed(kmh float64) {
	d.onLoop(func() { d.tracker.SetLastSpeed(kmh) })
}

// SetLastIncline overrides the incline a restarted belt resumes at
func (d *Driver) SetLastIncline(pct float64) {
	d.onLoop(func() { d.tracker.SetLastIncline(pct) })
}

// ResetMetrics clears distance, calories and moving time; the odometer is kept
func (d *Driver) ResetMetrics() {
	d.onLoop(func() { d.tracker.Reset() })
}

// onLoop runs f on the loop and waits for it, or runs it in place when the
// loop is not running
func (d *Driver) onLoop(f func()) {
	if !d.started.Load() || d.ctx.Err() != nil {
		f()
		d.publishStatus()
		return
	}
	done := make(chan struct{})
	d.post(func() {
		f()
		d.publishStatus()
		close(done)
	})
	select {
	case <-done:
	case <-d.ctx.Done():
	case <-time.After(closeTimeout):
	}
}
