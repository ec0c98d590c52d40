package simulator

import (
	"bytes"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/protocol"
)

// Kingsmith simulates the EncryptedText equipment
type Kingsmith struct {
	base
	profile *protocol.EncryptedText
	inbound []byte
	steps   int
}

func NewKingsmith(logger *log.Logger, profile *protocol.EncryptedText, interval time.Duration) *Kingsmith {
	k := &Kingsmith{base: newBase(logger, "Kingsmith", interval), profile: profile}
	k.report = k.reportProps
	return k
}

func (k *Kingsmith) Profile() protocol.Profile { return k.profile }

func (k *Kingsmith) Services() []string {
	return []string{"00001800-0000-1000-8000-00805f9b34fb", k.profile.ServiceUUID()}
}

func (k *Kingsmith) Characteristics(service string) []string {
	if !protocol.SameUUID(service, k.profile.ServiceUUID()) {
		return nil
	}
	return append([]string{k.profile.WriteCharUUID()}, k.profile.NotifyCharUUIDs()...)
}

// OnWrite reassembles command chunks and answers each complete command
func (k *Kingsmith) OnWrite(char string, data []byte) {
	if !protocol.SameUUID(char, k.profile.WriteCharUUID()) {
		return
	}

	k.mu.Lock()
	k.inbound = append(k.inbound, data...)
	var frames [][]byte
	for {
		end := bytes.IndexByte(k.inbound, protocol.TextTerminator)
		if end < 0 {
			break
		}
		frames = append(frames, append([]byte(nil), k.inbound[:end+1]...))
		k.inbound = append([]byte(nil), k.inbound[end+1:]...)
	}
	k.mu.Unlock()

	for _, frame := range frames {
		text, err := protocol.DecodeText(frame)
		if err != nil {
			k.logger.Printf("Simulator [Kingsmith]: bad command: %v", err)
			continue
		}
		k.recordCommand(text)
		k.ack(k.profile.NotifyCharUUIDs()[0], k.frame(k.reply(text)))
	}
}

func (k *Kingsmith) reply(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "format error"
	}
	switch fields[0] {
	case "props":
		for i := 1; i+1 < len(fields); i += 2 {
			if fields[i] != "CurrentSpeed" {
				continue
			}
			if v, err := strconv.ParseFloat(fields[i+1], 64); err == nil {
				k.SetSpeed(v)
			}
		}
		return k.propsLine()
	case "servers":
		return k.propsLine()
	case "shake":
		return "shake ok"
	case "version":
		return "props mcu_version 1.2.3"
	default:
		return fields[0] + " ok"
	}
}

func (k *Kingsmith) propsLine() string {
	speed, _ := k.belt()
	k.mu.Lock()
	steps := k.steps
	k.mu.Unlock()
	return fmt.Sprintf("props CurrentSpeed %s Steps %d goal 0 mcu_version 1.2.3",
		strconv.FormatFloat(speed, 'f', -1, 64), steps)
}

func (k *Kingsmith) reportProps() {
	speed, _ := k.belt()
	k.mu.Lock()
	if speed > 0 {
		k.steps += 2
	}
	k.mu.Unlock()
	k.send(k.profile.NotifyCharUUIDs()[0], k.frame(k.propsLine()))
}

// frame encodes text as one notification; the equipment may also split it
func (k *Kingsmith) frame(text string) []byte {
	return bytes.Join(protocol.EncodeText(text, 0), nil)
}
