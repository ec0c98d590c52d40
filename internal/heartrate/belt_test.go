package heartrate

import (
	"bytes"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/bt"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/ftms"
)

type fakeBelt struct {
	mu       sync.Mutex
	notify   func(char string, data []byte)
	services []string
}

func (f *fakeBelt) Services() []string {
	if f.services != nil {
		return f.services
	}
	return []string{ftms.UUID16(0x1800), ftms.ServiceUUIDHeartRate}
}

func (f *fakeBelt) Characteristics(service string) []string {
	if service != ftms.ServiceUUIDHeartRate {
		return nil
	}
	return []string{ftms.CharUUIDHeartRateMeasurement, ftms.UUID16(0x2a38)}
}

func (f *fakeBelt) Attach(notify func(char string, data []byte)) {
	f.mu.Lock()
	f.notify = notify
	f.mu.Unlock()
}

func (f *fakeBelt) Detach() {
	f.mu.Lock()
	f.notify = nil
	f.mu.Unlock()
}

func (f *fakeBelt) OnWrite(string, []byte) {}

func (f *fakeBelt) measure(data ...byte) {
	f.mu.Lock()
	notify := f.notify
	f.mu.Unlock()
	if notify != nil {
		notify(ftms.CharUUIDHeartRateMeasurement, data)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBelt(t *testing.T, peripheral *fakeBelt) (*Belt, *bt.MockTransport, *clock, *syncBuffer) {
	t.Helper()
	logs := &syncBuffer{}
	logger := log.New(logs, "", 0)
	mock := bt.NewMockTransport(logger, peripheral)
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	belt := NewBelt(logger, mock, Options{
		StaleAfter:        3 * time.Second,
		ReconnectInterval: 10 * time.Millisecond,
		Now:               clk.Now,
	})
	t.Cleanup(func() { _ = belt.Close() })
	return belt, mock, clk, logs
}

func TestBelt_ReadsMeasurements(t *testing.T) {
	peripheral := &fakeBelt{}
	belt, _, clk, _ := newTestBelt(t, peripheral)

	_, ok := belt.HeartRate()
	assert.False(t, ok)

	belt.Start()
	require.Eventually(t, belt.Ready, time.Second, 5*time.Millisecond)

	peripheral.measure(0x00, 72)
	require.Eventually(t, func() bool {
		bpm, ok := belt.HeartRate()
		return ok && bpm == 72
	}, time.Second, 5*time.Millisecond)

	// UINT16 format
	peripheral.measure(0x01, 0x9a, 0x00)
	require.Eventually(t, func() bool {
		bpm, _ := belt.HeartRate()
		return bpm == 154
	}, time.Second, 5*time.Millisecond)

	clk.Advance(4 * time.Second)
	_, ok = belt.HeartRate()
	assert.False(t, ok)
}

func TestBelt_IgnoresMalformedMeasurement(t *testing.T) {
	peripheral := &fakeBelt{}
	belt, _, _, logs := newTestBelt(t, peripheral)
	belt.Start()
	require.Eventually(t, belt.Ready, time.Second, 5*time.Millisecond)

	peripheral.measure(0x00)
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(logs.String()), []byte("heart rate data too short"))
	}, time.Second, 5*time.Millisecond)
	_, ok := belt.HeartRate()
	assert.False(t, ok)
}

func TestBelt_ReconnectsAfterDrop(t *testing.T) {
	peripheral := &fakeBelt{}
	belt, mock, _, _ := newTestBelt(t, peripheral)
	belt.Start()
	require.Eventually(t, belt.Ready, time.Second, 5*time.Millisecond)

	mock.DropLink()
	require.Eventually(t, func() bool {
		return mock.ConnectCount() >= 2 && belt.Ready()
	}, time.Second, 5*time.Millisecond)
}

func TestBelt_RetriesFailedConnect(t *testing.T) {
	peripheral := &fakeBelt{}
	belt, mock, _, _ := newTestBelt(t, peripheral)
	mock.FailNextConnect(errors.New("page timeout"))
	belt.Start()

	require.Eventually(t, belt.Ready, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, mock.ConnectCount(), 2)
}

func TestBelt_MissingServiceKeepsRetrying(t *testing.T) {
	peripheral := &fakeBelt{services: []string{ftms.UUID16(0x1800)}}
	belt, mock, _, logs := newTestBelt(t, peripheral)
	belt.Start()

	require.Eventually(t, func() bool { return mock.ConnectCount() >= 3 }, time.Second, 5*time.Millisecond)
	assert.False(t, belt.Ready())
	assert.Contains(t, logs.String(), "no heart rate measurement")
}
