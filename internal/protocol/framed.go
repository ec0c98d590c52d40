package protocol

import (
	"fmt"
	"time"
)

// FramedFrameLength is the size of every inbound telemetry frame
const FramedFrameLength = 20

// Bowflex T216 GATT identities
const (
	BowflexServiceUUID = "edff9e80-cad7-11e5-ab63-0002a5d5c51b"
	BowflexWriteUUID   = "1717b3c0-9803-11e3-90e1-0002a5d5c51b"
	BowflexNotify1UUID = "35ddd0a0-9803-11e3-9a8b-0002a5d5c51b"
	BowflexNotify2UUID = "6be8f580-9803-11e3-ab03-0002a5d5c51b"
	BowflexNotify3UUID = "a46a4a80-9803-11e3-8f3c-0002a5d5c51b"
	BowflexNotify4UUID = "b8066ec0-9803-11e3-8346-0002a5d5c51b"
	BowflexNotify5UUID = "d57cda20-9803-11e3-8426-0002a5d5c51b"
)

type frameTemplate struct {
	seq     byte
	payload []byte
}

// FramedBinary is a profile whose frames are [length, seq, checksum, payload...]
// and whose telemetry arrives as fixed length frames on a single characteristic.
type FramedBinary struct {
	name      string
	service   string
	write     string
	notify    []string
	telemetry string
	interval  time.Duration
	init      []frameTemplate
	start     frameTemplate
	stop      frameTemplate
}

// NewBowflexT216 returns the FramedBinary profile of the Bowflex T216
func NewBowflexT216() *FramedBinary {
	return &FramedBinary{
		name:    "Bowflex T216",
		service: BowflexServiceUUID,
		write:   BowflexWriteUUID,
		notify: []string{
			BowflexNotify1UUID,
			BowflexNotify2UUID,
			BowflexNotify3UUID,
			BowflexNotify4UUID,
			BowflexNotify5UUID,
		},
		telemetry: BowflexNotify3UUID,
		interval:  defaultTickInterval,
		init: []frameTemplate{
			{seq: 0x01, payload: []byte{0x00, 0x17}},
			{seq: 0x02, payload: []byte{0x00, 0x15}},
			{seq: 0x03, payload: []byte{0x00, 0x17}},
			{seq: 0x04, payload: []byte{0x00, 0x1f, 0x05, 0x00}},
			{seq: 0x05, payload: []byte{0x00, 0x17}},
		},
		start: frameTemplate{seq: 0x06, payload: []byte{0x00, 0x1f, 0x05, 0x00}},
		stop:  frameTemplate{seq: 0x08, payload: []byte{0x00, 0x19, 0x28, 0x01, 0x32, 0x00, 0x00}},
	}
}

func (p *FramedBinary) Kind() Kind                  { return KindFramedBinary }
func (p *FramedBinary) Name() string                { return p.name }
func (p *FramedBinary) ServiceUUID() string         { return p.service }
func (p *FramedBinary) WriteCharUUID() string       { return p.write }
func (p *FramedBinary) WriteWithResponse() bool     { return true }
func (p *FramedBinary) TickInterval() time.Duration { return p.interval }
func (p *FramedBinary) CombinesSpeedIncline() bool  { return false }

// TelemetryCharUUID is the only notify characteristic carrying telemetry
func (p *FramedBinary) TelemetryCharUUID() string { return p.telemetry }

func (p *FramedBinary) NotifyCharUUIDs() []string {
	out := make([]string, len(p.notify))
	copy(out, p.notify)
	return out
}

// QuantizeIncline returns the value unchanged; the equipment takes whole targets
func (p *FramedBinary) QuantizeIncline(incline float64) float64 { return incline }

func (p *FramedBinary) Handshake(time.Time) []Command {
	cmds := make([]Command, 0, len(p.init))
	for i, t := range p.init {
		cmds = append(cmds, Command{
			Kind:    CommandRaw,
			Seq:     t.seq,
			Payload: t.payload,
			Label:   fmt.Sprintf("init %d", i+1),
		})
	}
	return cmds
}

func (p *FramedBinary) Encode(cmd Command) ([][]byte, error) {
	switch cmd.Kind {
	case CommandRaw:
		return [][]byte{BuildFrame(cmd.Seq, cmd.Payload)}, nil
	case CommandStart:
		return [][]byte{BuildFrame(p.start.seq, p.start.payload)}, nil
	case CommandStop:
		return [][]byte{BuildFrame(p.stop.seq, p.stop.payload)}, nil
	default:
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedCommand, cmd.Kind, p.name)
	}
}

func (p *FramedBinary) NewDecoder() Decoder {
	return &framedDecoder{telemetry: p.telemetry}
}

// BuildFrame assembles [length, seq, checksum, payload...]. The checksum makes
// the byte sum of the whole frame zero modulo 256.
func BuildFrame(seq byte, payload []byte) []byte {
	length := byte(3 + len(payload))
	frame := make([]byte, 0, length)
	frame = append(frame, length, seq, frameChecksum(length, seq, payload))
	return append(frame, payload...)
}

func frameChecksum(length, seq byte, payload []byte) byte {
	sum := int(length) + int(seq)
	for _, b := range payload {
		sum += int(b)
	}
	return byte((0x100 - sum&0xff) & 0xff)
}

// VerifyFrame checks the frame checksum. Only frames that carry their own
// length in the first byte are checksummed.
func VerifyFrame(frame []byte) error {
	if len(frame) < 3 {
		return fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(frame))
	}
	if int(frame[0]) != len(frame) {
		return nil
	}
	var sum byte
	for _, b := range frame {
		sum += b
	}
	if sum != 0 {
		return fmt.Errorf("%w: got 0x%02x want 0x%02x", ErrChecksum, frame[2], frameChecksum(frame[0], frame[1], frame[3:]))
	}
	return nil
}

type framedDecoder struct {
	telemetry string
}

func (d *framedDecoder) Reset() {}

// Feed acknowledges every notification. Only well formed frames from the
// telemetry characteristic produce a sample.
func (d *framedDecoder) Feed(handle string, data []byte, at time.Time) Result {
	res := Result{Complete: true}

	if !SameUUID(handle, d.telemetry) {
		res.Err = fmt.Errorf("%w: %s", ErrForeignCharacteristic, handle)
		return res
	}
	if len(data) != FramedFrameLength {
		res.Err = fmt.Errorf("%w: telemetry frame of %d bytes, want %d", ErrMalformedFrame, len(data), FramedFrameLength)
		return res
	}
	if err := VerifyFrame(data); err != nil {
		res.Err = err
		return res
	}

	raw := uint16(data[7])<<8 | uint16(data[9])
	res.Sample = &Sample{
		Speed:      float64(raw) / 100.0,
		Incline:    float64(data[4]),
		HasIncline: true,
		At:         at,
	}
	return res
}

// TelemetryFrame builds a checksummed 20 byte telemetry frame as the
// equipment emits it. Speed is km/h, rounded to hundredths.
func TelemetryFrame(seq byte, speed float64, incline byte) []byte {
	raw := uint16(speed*100 + 0.5)
	frame := make([]byte, FramedFrameLength)
	frame[0] = FramedFrameLength
	frame[1] = seq
	frame[4] = incline
	frame[7] = byte(raw >> 8)
	frame[9] = byte(raw)
	frame[2] = frameChecksum(frame[0], frame[1], frame[3:])
	return frame
}
