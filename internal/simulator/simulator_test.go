package simulator

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/bt"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/protocol"
)

type notification struct {
	char string
	data []byte
}

type capture struct {
	mu  sync.Mutex
	got []notification
}

func (c *capture) notify(char string, data []byte) {
	c.mu.Lock()
	c.got = append(c.got, notification{char, append([]byte(nil), data...)})
	c.mu.Unlock()
}

func (c *capture) all() []notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notification(nil), c.got...)
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestKingsmith_SpeedCommandIsAppliedAndAcknowledged(t *testing.T) {
	profile := protocol.NewKingsmithR2(0)
	k := NewKingsmith(testLogger(), profile, time.Hour)
	c := &capture{}
	k.Attach(c.notify)
	defer k.Detach()

	frames, err := profile.Encode(protocol.SetSpeed(4.5))
	require.NoError(t, err)
	require.Greater(t, len(frames), 1, "command should span several writes")
	for _, f := range frames {
		k.OnWrite(profile.WriteCharUUID(), f)
	}

	assert.Equal(t, 4.5, k.State().SpeedKmh)
	assert.True(t, k.State().Running)

	got := c.all()
	require.Len(t, got, 1)
	dec := profile.NewDecoder()
	res := dec.Feed(got[0].char, got[0].data, time.Now())
	require.NoError(t, res.Err)
	assert.True(t, res.Complete)
	require.NotNil(t, res.Sample)
	assert.Equal(t, 4.5, res.Sample.Speed)
}

func TestKingsmith_EmptyHandshakeCommandStillAnswers(t *testing.T) {
	profile := protocol.NewKingsmithR2(0)
	k := NewKingsmith(testLogger(), profile, time.Hour)
	c := &capture{}
	k.Attach(c.notify)
	defer k.Detach()

	for _, f := range protocol.EncodeText("", protocol.TextChunkSize) {
		k.OnWrite(profile.WriteCharUUID(), f)
	}
	assert.Len(t, c.all(), 1)
	assert.Equal(t, []string{""}, k.State().Commands)
}

func TestKingsmith_SilentDropsAcks(t *testing.T) {
	profile := protocol.NewKingsmithR2(0)
	k := NewKingsmith(testLogger(), profile, time.Hour)
	c := &capture{}
	k.Attach(c.notify)
	defer k.Detach()

	k.SetSilent(true)
	for _, f := range protocol.EncodeText("shake", protocol.TextChunkSize) {
		k.OnWrite(profile.WriteCharUUID(), f)
	}
	assert.Empty(t, c.all())
	assert.Equal(t, 1, k.State().Writes)
}

func TestKingsmith_PeriodicTelemetry(t *testing.T) {
	profile := protocol.NewKingsmithR2(0)
	k := NewKingsmith(testLogger(), profile, 10*time.Millisecond)
	k.SetSpeed(6)
	c := &capture{}
	k.Attach(c.notify)

	assert.Eventually(t, func() bool { return len(c.all()) >= 2 }, time.Second, 5*time.Millisecond)
	k.Detach()

	n := len(c.all())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, len(c.all()), "no telemetry after detach")
}

func TestBowflex_StartStopAndTelemetry(t *testing.T) {
	profile := protocol.NewBowflexT216()
	b := NewBowflex(testLogger(), profile, 10*time.Millisecond)
	c := &capture{}
	b.Attach(c.notify)
	defer b.Detach()

	start, err := profile.Encode(protocol.Start())
	require.NoError(t, err)
	b.OnWrite(profile.WriteCharUUID(), start[0])
	assert.Equal(t, bowflexStartSpeed, b.State().SpeedKmh)

	acks := c.all()
	require.NotEmpty(t, acks)
	assert.Equal(t, profile.NotifyCharUUIDs()[0], acks[0].char)

	dec := profile.NewDecoder()
	var sample *protocol.Sample
	require.Eventually(t, func() bool {
		for _, n := range c.all() {
			if res := dec.Feed(n.char, n.data, time.Now()); res.Sample != nil {
				sample = res.Sample
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	assert.InDelta(t, bowflexStartSpeed, sample.Speed, 0.001)

	stop, err := profile.Encode(protocol.Stop())
	require.NoError(t, err)
	b.OnWrite(profile.WriteCharUUID(), stop[0])
	assert.Zero(t, b.State().SpeedKmh)
	assert.Equal(t, []string{"start", "stop"}, b.State().Commands)
}

func TestBowflex_RejectsCorruptFrames(t *testing.T) {
	profile := protocol.NewBowflexT216()
	b := NewBowflex(testLogger(), profile, time.Hour)
	c := &capture{}
	b.Attach(c.notify)
	defer b.Detach()

	frame := protocol.BuildFrame(3, []byte{0x01, 0x02})
	frame[2]++
	b.OnWrite(profile.WriteCharUUID(), frame)
	assert.Empty(t, c.all())
	assert.Zero(t, b.State().Writes)
}

func TestNew_PicksModelForProfile(t *testing.T) {
	assert.IsType(t, &Kingsmith{}, New(testLogger(), protocol.NewKingsmithR2(0), 0))
	assert.IsType(t, &Bowflex{}, New(testLogger(), protocol.NewBowflexT216(), 0))
}

func TestControlPanel_SetAndGetState(t *testing.T) {
	profile := protocol.NewBowflexT216()
	eq := NewBowflex(testLogger(), profile, time.Hour)
	tr := bt.NewMockTransport(testLogger(), eq)
	defer tr.Close()

	srv := httptest.NewServer(NewControlPanel(testLogger(), eq, tr, 0).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/set?speedKmh=7.5&inclinePct=3", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	var state PanelState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, 7.5, state.SpeedKmh)
	assert.Equal(t, 3.0, state.InclinePct)
	assert.Equal(t, profile.Name(), state.Profile)
	assert.False(t, state.Connected)
}

func TestControlPanel_RejectsBadInput(t *testing.T) {
	eq := NewKingsmith(testLogger(), protocol.NewKingsmithR2(0), time.Hour)
	srv := httptest.NewServer(NewControlPanel(testLogger(), eq, nil, 0).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/set?speedKmh=fast", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/set")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/drop-link", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
