// Package protocol turns treadmill commands into wire frames and turns
// notification bytes back into telemetry samples.
//
// Two incompatible equipment families live behind the Profile interface:
// FramedBinary (fixed-length frames with a checksum byte) and EncryptedText
// (space separated text commands, base64 encoded, run through a substitution
// table and split into fixed-size chunks). A Profile is immutable; all
// per-connection state (reassembly buffers, property maps) lives in the
// Decoder returned by NewDecoder, so sessions never share codec state.
package protocol

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies the wire format family of a profile
type Kind int

const (
	KindFramedBinary Kind = iota
	KindEncryptedText
)

func (k Kind) String() string {
	switch k {
	case KindFramedBinary:
		return "FramedBinary"
	case KindEncryptedText:
		return "EncryptedText"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sample is one decoded telemetry snapshot. It is never mutated after Feed returns it.
type Sample struct {
	Speed      float64 // km/h
	Incline    float64 // percent
	HasIncline bool    // false when the equipment does not report incline
	HeartRate  uint8   // bpm, 0 when not reported
	At         time.Time
}

// Result is what a Decoder produces for one chunk of notification bytes.
//
// Complete reports that a whole frame was consumed; the driver uses it to
// resolve the request in flight. Err describes malformed or foreign input and
// is meant for logging only: a Result with Err set is still a normal outcome.
type Result struct {
	Sample   *Sample
	Complete bool
	Err      error
}

// Decoder reassembles and decodes notifications for a single session.
// Decoders are not safe for concurrent use.
type Decoder interface {
	Feed(handle string, data []byte, at time.Time) Result
	Reset()
}

// Profile describes one equipment model: its BLE identities, its handshake
// and its codec.
type Profile interface {
	Kind() Kind
	Name() string

	ServiceUUID() string
	WriteCharUUID() string
	NotifyCharUUIDs() []string
	// WriteWithResponse selects the GATT write type used for every frame
	WriteWithResponse() bool

	// TickInterval is the cadence of the driver tick loop for this equipment
	TickInterval() time.Duration

	// Handshake returns the ordered initialization commands sent after
	// notifications are enabled. Each one waits for an acknowledgment.
	Handshake(now time.Time) []Command

	// Encode converts a command into one or more transport frames.
	// ErrUnsupportedCommand is returned for commands the equipment does not accept.
	Encode(cmd Command) ([][]byte, error)

	NewDecoder() Decoder

	// QuantizeIncline rounds an incline target to the step the equipment accepts
	QuantizeIncline(incline float64) float64
	// CombinesSpeedIncline reports whether speed and incline travel in one write
	CombinesSpeedIncline() bool
}

// Profile names accepted by ProfileByName
const (
	ProfileKingsmithR2  = "kingsmith-r2"
	ProfileBowflexT216  = "bowflex-t216"
	aliasEncryptedText  = "encrypted-text"
	aliasFramedBinary   = "framed-binary"
	defaultTickInterval = 500 * time.Millisecond
)

// ProfileByName returns the profile registered under name. pollInterval only
// applies to profiles whose tick cadence is configurable; zero keeps the default.
func ProfileByName(name string, pollInterval time.Duration) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProfileKingsmithR2, aliasEncryptedText:
		return NewKingsmithR2(pollInterval), nil
	case ProfileBowflexT216, aliasFramedBinary:
		return NewBowflexT216(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
}

// SameUUID compares two UUID strings ignoring case
func SameUUID(a, b string) bool {
	return strings.EqualFold(a, b)
}
