package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/ftms"
)

const (
	// TextTerminator ends every EncryptedText frame
	TextTerminator byte = 0x0d
	// TextChunkSize is the largest single write the equipment accepts
	TextChunkSize = 16

	propsToken   = "props"
	speedProp    = "CurrentSpeed"
	inclineStep  = 0.5
	maxTextFrame = 4096
)

// Kingsmith R2 GATT identities
var (
	KingsmithServiceUUID = ftms.UUID16(0x1234)
	KingsmithWriteUUID   = ftms.UUID16(0xfed7)
	KingsmithNotifyUUID  = ftms.UUID16(0xfed8)
)

// property values that are strings on the wire and never parsed as numbers
var textProps = map[string]bool{
	"mcu_version": true,
	"goal":        true,
}

// EncryptedText is a profile exchanging enciphered text commands
type EncryptedText struct {
	name      string
	service   string
	write     string
	notify    string
	interval  time.Duration
	chunkSize int
}

// NewKingsmithR2 returns the EncryptedText profile of the Kingsmith R2.
// A zero pollInterval keeps the default tick cadence.
func NewKingsmithR2(pollInterval time.Duration) *EncryptedText {
	if pollInterval <= 0 {
		pollInterval = defaultTickInterval
	}
	return &EncryptedText{
		name:      "Kingsmith R2",
		service:   KingsmithServiceUUID,
		write:     KingsmithWriteUUID,
		notify:    KingsmithNotifyUUID,
		interval:  pollInterval,
		chunkSize: TextChunkSize,
	}
}

func (p *EncryptedText) Kind() Kind                  { return KindEncryptedText }
func (p *EncryptedText) Name() string                { return p.name }
func (p *EncryptedText) ServiceUUID() string         { return p.service }
func (p *EncryptedText) WriteCharUUID() string       { return p.write }
func (p *EncryptedText) NotifyCharUUIDs() []string   { return []string{p.notify} }
func (p *EncryptedText) WriteWithResponse() bool     { return false }
func (p *EncryptedText) TickInterval() time.Duration { return p.interval }
func (p *EncryptedText) CombinesSpeedIncline() bool  { return true }

// QuantizeIncline rounds to the nearest half percent
func (p *EncryptedText) QuantizeIncline(incline float64) float64 {
	steps := incline / inclineStep
	if steps < 0 {
		return float64(int(steps-0.5)) * inclineStep
	}
	return float64(int(steps+0.5)) * inclineStep
}

func (p *EncryptedText) Handshake(now time.Time) []Command {
	texts := []string{
		"",
		"shake",
		"net",
		"get_dn",
		"get_pk",
		"time_posix " + strconv.FormatInt(now.Unix(), 10),
		"version",
		"servers getProp 1 2 7 12 23 24 31",
	}
	cmds := make([]Command, 0, len(texts))
	for _, t := range texts {
		cmds = append(cmds, Command{Kind: CommandRaw, Text: t, Label: strconv.Quote(t)})
	}
	return cmds
}

// Encode writes speed targets as a CurrentSpeed property. The equipment has no
// incline actuator, so combined targets only carry the speed.
func (p *EncryptedText) Encode(cmd Command) ([][]byte, error) {
	var text string
	switch cmd.Kind {
	case CommandRaw:
		text = cmd.Text
	case CommandSetSpeed, CommandSetSpeedIncline:
		text = propsToken + " " + speedProp + " " + formatNumber(cmd.Speed)
	default:
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedCommand, cmd.Kind, p.name)
	}
	return EncodeText(text, p.chunkSize), nil
}

func (p *EncryptedText) NewDecoder() Decoder {
	return &textDecoder{
		notify: p.notify,
		props:  make(map[string]float64),
	}
}

type textDecoder struct {
	notify string
	buf    []byte
	props  map[string]float64
}

func (d *textDecoder) Reset() {
	d.buf = d.buf[:0]
	d.props = make(map[string]float64)
}

// Prop returns the last numeric value seen for a property
func (d *textDecoder) Prop(key string) (float64, bool) {
	v, ok := d.props[key]
	return v, ok
}

// Feed buffers chunks until a terminator arrives. Every completed frame
// acknowledges the request in flight; props frames also yield a sample.
func (d *textDecoder) Feed(handle string, data []byte, at time.Time) Result {
	var res Result

	if !SameUUID(handle, d.notify) {
		res.Err = fmt.Errorf("%w: %s", ErrForeignCharacteristic, handle)
		return res
	}

	d.buf = append(d.buf, data...)
	end := bytes.LastIndexByte(d.buf, TextTerminator)
	if end < 0 {
		if len(d.buf) > maxTextFrame {
			res.Err = fmt.Errorf("%w: %d bytes without terminator", ErrMalformedFrame, len(d.buf))
			d.buf = d.buf[:0]
		}
		return res
	}

	frames := bytes.Split(d.buf[:end], []byte{TextTerminator})
	rest := append([]byte(nil), d.buf[end+1:]...)
	defer func() { d.buf = rest }()
	res.Complete = true

	for _, frame := range frames {
		text, err := DecodeText(frame)
		if err != nil {
			res.Err = err
			continue
		}
		updated, err := d.mergeProps(text)
		if err != nil {
			res.Err = err
		}
		if updated {
			res.Sample = &Sample{Speed: d.props[speedProp], At: at}
		}
	}
	return res
}

// mergeProps parses "props k1 v1 k2 v2 ..." into the persistent property map.
// It reports whether text was a props frame.
func (d *textDecoder) mergeProps(text string) (bool, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || fields[0] != propsToken {
		return false, nil
	}

	var firstErr error
	for i := 1; i+1 < len(fields); i += 2 {
		key, value := fields[i], fields[i+1]
		if textProps[key] {
			continue
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: property %s value %q", ErrMalformedFrame, key, value)
			}
			continue
		}
		d.props[key] = v
	}
	return true, firstErr
}
