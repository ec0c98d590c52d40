package protocol

import (
	"fmt"
	"strconv"
)

// CommandKind is the tag of a Command
type CommandKind int

const (
	// CommandRaw carries a profile specific handshake step (Text or Seq/Payload)
	CommandRaw CommandKind = iota
	CommandSetSpeed
	CommandSetIncline
	CommandSetSpeedIncline
	CommandStart
	CommandStop
	CommandSetFan
)

func (k CommandKind) String() string {
	switch k {
	case CommandRaw:
		return "raw"
	case CommandSetSpeed:
		return "speed"
	case CommandSetIncline:
		return "incline"
	case CommandSetSpeedIncline:
		return "speed+incline"
	case CommandStart:
		return "start"
	case CommandStop:
		return "stop"
	case CommandSetFan:
		return "fan"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is a tagged value describing one request to the equipment.
// Only the fields relevant to Kind are read by Encode.
type Command struct {
	Kind    CommandKind
	Speed   float64
	Incline float64
	Fan     int

	// EncryptedText raw command
	Text string
	// FramedBinary raw frame
	Seq     byte
	Payload []byte

	// Label is used in log lines only
	Label string
}

func (c Command) String() string {
	if c.Label != "" {
		return c.Label
	}
	switch c.Kind {
	case CommandSetSpeed:
		return "speed " + formatNumber(c.Speed)
	case CommandSetIncline:
		return "incline " + formatNumber(c.Incline)
	case CommandSetSpeedIncline:
		return "speed " + formatNumber(c.Speed) + " incline " + formatNumber(c.Incline)
	case CommandSetFan:
		return "fan " + strconv.Itoa(c.Fan)
	default:
		return c.Kind.String()
	}
}

// SetSpeed builds a target speed command (km/h)
func SetSpeed(speed float64) Command {
	return Command{Kind: CommandSetSpeed, Speed: speed}
}

// SetIncline builds a target incline command (percent)
func SetIncline(incline float64) Command {
	return Command{Kind: CommandSetIncline, Incline: incline}
}

// SetSpeedIncline builds a combined target command
func SetSpeedIncline(speed, incline float64) Command {
	return Command{Kind: CommandSetSpeedIncline, Speed: speed, Incline: incline}
}

// Start builds a belt start command
func Start() Command {
	return Command{Kind: CommandStart}
}

// Stop builds a belt stop command
func Stop() Command {
	return Command{Kind: CommandStop}
}

// SetFan builds an absolute fan speed command
func SetFan(level int) Command {
	return Command{Kind: CommandSetFan, Fan: level}
}

// formatNumber renders a float the way the equipment expects: shortest form, no exponent
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
