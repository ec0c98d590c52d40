package simulator

import (
	"bytes"
	"fmt"
	"log"
	"time"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/protocol"
)

// walking pace the belt settles on after a start frame
const bowflexStartSpeed = 3.2

// Bowflex simulates the FramedBinary equipment
type Bowflex struct {
	base
	profile *protocol.FramedBinary
	seq     byte
	start   []byte
	stop    []byte
}

func NewBowflex(logger *log.Logger, profile *protocol.FramedBinary, interval time.Duration) *Bowflex {
	b := &Bowflex{base: newBase(logger, "Bowflex", interval), profile: profile}
	b.start, _ = firstFrame(profile.Encode(protocol.Start()))
	b.stop, _ = firstFrame(profile.Encode(protocol.Stop()))
	b.report = b.reportTelemetry
	return b
}

func firstFrame(frames [][]byte, err error) ([]byte, error) {
	if err != nil || len(frames) == 0 {
		return nil, err
	}
	return frames[0], nil
}

func (b *Bowflex) Profile() protocol.Profile { return b.profile }

func (b *Bowflex) Services() []string {
	return []string{"00001800-0000-1000-8000-00805f9b34fb", b.profile.ServiceUUID()}
}

func (b *Bowflex) Characteristics(service string) []string {
	if !protocol.SameUUID(service, b.profile.ServiceUUID()) {
		return nil
	}
	return append([]string{b.profile.WriteCharUUID()}, b.profile.NotifyCharUUIDs()...)
}

// OnWrite acknowledges every frame on the first notify characteristic
func (b *Bowflex) OnWrite(char string, data []byte) {
	if !protocol.SameUUID(char, b.profile.WriteCharUUID()) {
		return
	}
	if err := protocol.VerifyFrame(data); err != nil {
		b.logger.Printf("Simulator [Bowflex]: bad frame % x: %v", data, err)
		return
	}

	switch {
	case bytes.Equal(data, b.start):
		b.recordCommand("start")
		if speed, _ := b.belt(); speed == 0 {
			b.SetSpeed(bowflexStartSpeed)
		}
	case bytes.Equal(data, b.stop):
		b.recordCommand("stop")
		b.SetSpeed(0)
	default:
		b.recordCommand(fmt.Sprintf("frame seq %d", data[1]))
	}
	b.ack(b.profile.NotifyCharUUIDs()[0], protocol.BuildFrame(data[1], []byte{0x00, 0x01}))
}

func (b *Bowflex) reportTelemetry() {
	speed, incline := b.belt()
	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.mu.Unlock()
	b.send(b.profile.TelemetryCharUUID(), protocol.TelemetryFrame(seq, speed, byte(incline)))
}
