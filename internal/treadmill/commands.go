package treadmill

// FanChange is an absolute fan level or, when Relative, a step from the current one
type FanChange struct {
	Value    int
	Relative bool
}

// PendingCommand holds the requests collected between two ticks. A nil
// pointer means nothing was requested; zero is a legitimate target.
type PendingCommand struct {
	Speed   *float64
	Incline *float64
	Start   bool
	Stop    bool
	Fan     *FanChange
}

func (p PendingCommand) Empty() bool {
	return p.Speed == nil && p.Incline == nil && !p.Start && !p.Stop && p.Fan == nil
}

// merge overlays the requests set in o; later values win
func (p *PendingCommand) merge(o PendingCommand) {
	if o.Speed != nil {
		v := *o.Speed
		p.Speed = &v
	}
	if o.Incline != nil {
		v := *o.Incline
		p.Incline = &v
	}
	if o.Start {
		p.Start = true
	}
	if o.Stop {
		p.Stop = true
	}
	if o.Fan != nil {
		if o.Fan.Relative && p.Fan != nil {
			p.Fan = &FanChange{Value: p.Fan.Value + o.Fan.Value, Relative: p.Fan.Relative}
		} else {
			f := *o.Fan
			p.Fan = &f
		}
	}
}

// Submit queues a whole command for the next tick at once, so coalesced
// targets are guaranteed to land in the same tick
func (d *Driver) Submit(cmd PendingCommand) {
	d.pendingMu.Lock()
	d.pending.merge(cmd)
	d.pendingMu.Unlock()
}

func (d *Driver) SetTargetSpeed(kmh float64) {
	d.Submit(PendingCommand{Speed: &kmh})
}

func (d *Driver) SetTargetIncline(pct float64) {
	d.Submit(PendingCommand{Incline: &pct})
}

// ChangeInclinationRequested takes incline requests in bike terms; negative
// grades are flattened since the deck cannot decline
func (d *Driver) ChangeInclinationRequested(grade, percentage float64) {
	if percentage < 0 {
		percentage = 0
	}
	d.logger.Printf("Driver: inclination requested: grade %.1f, percentage %.1f", grade, percentage)
	d.SetTargetIncline(percentage)
}

func (d *Driver) RequestStart() {
	d.Submit(PendingCommand{Start: true})
}

func (d *Driver) RequestStop() {
	d.Submit(PendingCommand{Stop: true})
}

// SetFanSpeed requests an absolute fan level
func (d *Driver) SetFanSpeed(level int) {
	d.Submit(PendingCommand{Fan: &FanChange{Value: level}})
}

// ChangeFanSpeed requests a fan step, typically +1 or -1
func (d *Driver) ChangeFanSpeed(delta int) {
	d.Submit(PendingCommand{Fan: &FanChange{Value: delta, Relative: true}})
}

// takePending hands the collected requests to the tick and clears them
func (d *Driver) takePending() PendingCommand {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	cmd := d.pending
	d.pending = PendingCommand{}
	return cmd
}

func (d *Driver) stopPending() bool {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	return d.pending.Stop
}
