package protocol

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipher_IsBijection(t *testing.T) {
	seen := make(map[byte]bool)
	for i := 0; i < len(cipherAlphabet); i++ {
		c := cipherAlphabet[i]
		assert.False(t, seen[c], "duplicate cipher byte %q", c)
		seen[c] = true
		assert.True(t, strings.IndexByte(plainAlphabet, c) >= 0, "cipher byte %q outside base64 alphabet", c)
	}
	assert.Equal(t, len(plainAlphabet), len(seen))
	assert.Equal(t, -1, strings.IndexByte(cipherAlphabet, TextTerminator))
}

func TestEncodeText_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"shake",
		"props CurrentSpeed 4.5",
		"servers getProp 1 2 7 12 23 24 31",
		"~!@#$%^&*()_+`-={}[]|:;<>?,./ 0123456789",
	}
	for _, in := range inputs {
		chunks := EncodeText(in, TextChunkSize)
		require.NotEmpty(t, chunks)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), TextChunkSize)
		}
		joined := bytes.Join(chunks, nil)
		assert.Equal(t, TextTerminator, joined[len(joined)-1])

		out, err := DecodeText(joined)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestDecodeText_RejectsForeignBytes(t *testing.T) {
	_, err := DecodeText([]byte{0x01, 0x02, TextTerminator})
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestEncryptedText_Encode(t *testing.T) {
	p := NewKingsmithR2(0)

	frames, err := p.Encode(SetSpeedIncline(3.5, 1))
	require.NoError(t, err)
	text, err := DecodeText(bytes.Join(frames, nil))
	require.NoError(t, err)
	assert.Equal(t, "props CurrentSpeed 3.5", text)

	frames, err = p.Encode(SetSpeed(4))
	require.NoError(t, err)
	text, err = DecodeText(bytes.Join(frames, nil))
	require.NoError(t, err)
	assert.Equal(t, "props CurrentSpeed 4", text)

	for _, cmd := range []Command{Start(), Stop(), SetFan(2), SetIncline(3)} {
		_, err := p.Encode(cmd)
		assert.ErrorIs(t, err, ErrUnsupportedCommand, cmd.String())
	}
}

func TestEncryptedText_Handshake(t *testing.T) {
	p := NewKingsmithR2(0)
	now := time.Unix(1700000000, 0)

	var texts []string
	for _, cmd := range p.Handshake(now) {
		assert.Equal(t, CommandRaw, cmd.Kind)
		texts = append(texts, cmd.Text)
	}
	assert.Equal(t, []string{
		"", "shake", "net", "get_dn", "get_pk",
		"time_posix 1700000000", "version",
		"servers getProp 1 2 7 12 23 24 31",
	}, texts)
}

func TestTextDecoder_ReassemblesChunks(t *testing.T) {
	p := NewKingsmithR2(0)
	dec := p.NewDecoder()
	now := time.Now()

	chunks := EncodeText("props CurrentSpeed 3.5 mcu_version 1.2.3 goal abc Steps 100", TextChunkSize)
	require.Greater(t, len(chunks), 2)

	for _, c := range chunks[:len(chunks)-1] {
		res := dec.Feed(KingsmithNotifyUUID, c, now)
		assert.False(t, res.Complete)
		assert.Nil(t, res.Sample)
		assert.NoError(t, res.Err)
	}

	res := dec.Feed(KingsmithNotifyUUID, chunks[len(chunks)-1], now)
	require.NoError(t, res.Err)
	assert.True(t, res.Complete)
	require.NotNil(t, res.Sample)
	assert.Equal(t, 3.5, res.Sample.Speed)
	assert.False(t, res.Sample.HasIncline)

	steps, ok := dec.(*textDecoder).Prop("Steps")
	assert.True(t, ok)
	assert.Equal(t, 100.0, steps)
	_, ok = dec.(*textDecoder).Prop("mcu_version")
	assert.False(t, ok)
}

func TestTextDecoder_PropsPersist(t *testing.T) {
	dec := NewKingsmithR2(0).NewDecoder()
	now := time.Now()

	feedAll := func(text string) Result {
		var res Result
		for _, c := range EncodeText(text, TextChunkSize) {
			res = dec.Feed(KingsmithNotifyUUID, c, now)
		}
		return res
	}

	res := feedAll("props CurrentSpeed 2.5")
	require.NotNil(t, res.Sample)
	assert.Equal(t, 2.5, res.Sample.Speed)

	res = feedAll("props BurnCalories 17")
	require.NotNil(t, res.Sample)
	assert.Equal(t, 2.5, res.Sample.Speed)

	// a dangling key is ignored
	res = feedAll("props CurrentSpeed")
	require.NotNil(t, res.Sample)
	assert.Equal(t, 2.5, res.Sample.Speed)

	// non-numeric values are skipped without dropping the frame
	res = feedAll("props CurrentSpeed fast Steps 3")
	require.NotNil(t, res.Sample)
	assert.ErrorIs(t, res.Err, ErrMalformedFrame)
	assert.Equal(t, 2.5, res.Sample.Speed)

	// replies that are not props still acknowledge
	res = feedAll("ok")
	assert.True(t, res.Complete)
	assert.Nil(t, res.Sample)

	dec.Reset()
	res = feedAll("props Steps 1")
	require.NotNil(t, res.Sample)
	assert.Equal(t, 0.0, res.Sample.Speed)
}

func TestTextDecoder_TwoFramesInOneChunk(t *testing.T) {
	dec := NewKingsmithR2(0).NewDecoder()

	data := append(bytes.Join(EncodeText("props CurrentSpeed 1", 64), nil), bytes.Join(EncodeText("props CurrentSpeed 2", 64), nil)...)
	res := dec.Feed(KingsmithNotifyUUID, data, time.Now())
	require.NotNil(t, res.Sample)
	assert.Equal(t, 2.0, res.Sample.Speed)
}

func TestTextDecoder_IgnoresOtherCharacteristics(t *testing.T) {
	dec := NewKingsmithR2(0).NewDecoder()
	res := dec.Feed(KingsmithWriteUUID, EncodeText("props CurrentSpeed 1", TextChunkSize)[0], time.Now())
	assert.ErrorIs(t, res.Err, ErrForeignCharacteristic)
	assert.False(t, res.Complete)
}

func TestEncryptedText_QuantizeIncline(t *testing.T) {
	p := NewKingsmithR2(0)
	assert.Equal(t, 2.5, p.QuantizeIncline(2.3))
	assert.Equal(t, 2.0, p.QuantizeIncline(2.2))
	assert.Equal(t, 2.5, p.QuantizeIncline(2.25))
	assert.Equal(t, 0.0, p.QuantizeIncline(0.1))
}

func TestProfileByName(t *testing.T) {
	p, err := ProfileByName("Kingsmith-R2", 200*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, KindEncryptedText, p.Kind())
	assert.Equal(t, 200*time.Millisecond, p.TickInterval())

	p, err = ProfileByName("framed-binary", 0)
	require.NoError(t, err)
	assert.Equal(t, KindFramedBinary, p.Kind())

	_, err = ProfileByName("rower", 0)
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, Chunk(nil, 4))
	assert.Equal(t, [][]byte{{1, 2, 3}}, Chunk([]byte{1, 2, 3}, 4))
	assert.Equal(t, [][]byte{{1, 2}, {3, 4}, {5}}, Chunk([]byte{1, 2, 3, 4, 5}, 2))
}

func TestKingsmith_UUIDs(t *testing.T) {
	assert.Equal(t, "00001234-0000-1000-8000-00805f9b34fb", KingsmithServiceUUID)
	assert.Equal(t, "0000fed7-0000-1000-8000-00805f9b34fb", KingsmithWriteUUID)
	assert.Equal(t, "0000fed8-0000-1000-8000-00805f9b34fb", KingsmithNotifyUUID)
}
