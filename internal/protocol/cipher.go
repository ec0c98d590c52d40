package protocol

import (
	"encoding/base64"
	"fmt"
)

// Substitution tables applied to the base64 form of every text frame.
// Position i of cipherAlphabet replaces position i of plainAlphabet.
const (
	plainAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/="
	cipherAlphabet = "NgKHa43x27lMqv=pQ+zEd9U8bX6P1yJr5OtkuFjCYBDT/cSoAinZLW0VIfsGmRhwe"
)

var (
	encipherTable [256]int16
	decipherTable [256]int16
)

func init() {
	if len(plainAlphabet) != len(cipherAlphabet) {
		panic("protocol: cipher alphabets differ in length")
	}
	for i := range encipherTable {
		encipherTable[i] = -1
		decipherTable[i] = -1
	}
	for i := 0; i < len(plainAlphabet); i++ {
		p, c := plainAlphabet[i], cipherAlphabet[i]
		if decipherTable[c] != -1 {
			panic(fmt.Sprintf("protocol: cipher byte %q used twice", c))
		}
		encipherTable[p] = int16(c)
		decipherTable[c] = int16(p)
	}
}

// Encipher substitutes every byte of a base64 string. Bytes outside the
// base64 alphabet are copied unchanged.
func Encipher(b64 []byte) []byte {
	out := make([]byte, len(b64))
	for i, b := range b64 {
		if v := encipherTable[b]; v >= 0 {
			out[i] = byte(v)
		} else {
			out[i] = b
		}
	}
	return out
}

// Decipher reverses Encipher. Terminator bytes are skipped.
func Decipher(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if b == TextTerminator {
			continue
		}
		v := decipherTable[b]
		if v < 0 {
			return nil, fmt.Errorf("%w: byte 0x%02x outside cipher alphabet", ErrMalformedFrame, b)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

// EncodeText produces the terminated, enciphered frame for a plaintext command
// split into writes of at most chunkSize bytes.
func EncodeText(text string, chunkSize int) [][]byte {
	b64 := base64.StdEncoding.EncodeToString([]byte(text))
	frame := append(Encipher([]byte(b64)), TextTerminator)
	return Chunk(frame, chunkSize)
}

// DecodeText recovers the plaintext of one frame (terminator optional)
func DecodeText(frame []byte) (string, error) {
	b64, err := Decipher(frame)
	if err != nil {
		return "", err
	}
	plain, err := base64.StdEncoding.DecodeString(string(b64))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return string(plain), nil
}
