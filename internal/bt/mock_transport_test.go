package bt

import (
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoPeripheral struct {
	mu     sync.Mutex
	notify func(string, []byte)
}

func (p *echoPeripheral) Services() []string { return []string{"svc"} }

func (p *echoPeripheral) Characteristics(service string) []string {
	if service == "svc" {
		return []string{"write", "notify"}
	}
	return nil
}

func (p *echoPeripheral) Attach(notify func(string, []byte)) {
	p.mu.Lock()
	p.notify = notify
	p.mu.Unlock()
}

func (p *echoPeripheral) Detach() {
	p.mu.Lock()
	p.notify = nil
	p.mu.Unlock()
}

func (p *echoPeripheral) OnWrite(char string, data []byte) {
	p.mu.Lock()
	notify := p.notify
	p.mu.Unlock()
	if notify != nil {
		notify("notify", data)
	}
}

func nextEvent(t *testing.T, tr Transport) Event {
	t.Helper()
	select {
	case ev := <-tr.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for transport event")
		return Event{}
	}
}

func newMock(t *testing.T) *MockTransport {
	m := NewMockTransport(log.New(io.Discard, "", 0), &echoPeripheral{})
	t.Cleanup(func() { m.Close() })
	return m
}

func TestMockTransport_ConnectAndDiscover(t *testing.T) {
	m := newMock(t)

	m.Connect()
	assert.Equal(t, EventConnected, nextEvent(t, m).Kind)
	assert.True(t, m.Connected())

	m.DiscoverServices()
	ev := nextEvent(t, m)
	assert.Equal(t, EventServicesDiscovered, ev.Kind)
	assert.Equal(t, []string{"svc"}, ev.UUIDs)

	m.DiscoverCharacteristics("svc")
	ev = nextEvent(t, m)
	assert.Equal(t, EventCharacteristicsDiscovered, ev.Kind)
	assert.Equal(t, []string{"write", "notify"}, ev.UUIDs)

	m.EnableNotifications("svc", []string{"notify"})
	assert.Equal(t, EventNotificationsEnabled, nextEvent(t, m).Kind)
}

func TestMockTransport_WriteEchoesThroughPeripheral(t *testing.T) {
	m := newMock(t)
	m.Connect()
	nextEvent(t, m)

	// no subscription yet, the echo is dropped
	require.NoError(t, m.Write("svc", "write", []byte{1}, false))

	m.EnableNotifications("svc", []string{"notify"})
	nextEvent(t, m)

	require.NoError(t, m.Write("svc", "write", []byte{2}, true))
	ev := nextEvent(t, m)
	assert.Equal(t, EventNotification, ev.Kind)
	assert.Equal(t, "notify", ev.Handle)
	assert.Equal(t, []byte{2}, ev.Data)

	writes := m.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, "02", writes[1].DataHex)
	assert.True(t, writes[1].WithResponse)
}

func TestMockTransport_NotConnected(t *testing.T) {
	m := newMock(t)
	assert.ErrorIs(t, m.Write("svc", "write", []byte{1}, true), ErrNotConnected)

	m.DiscoverServices()
	ev := nextEvent(t, m)
	assert.Equal(t, EventError, ev.Kind)
	assert.ErrorIs(t, ev.Err, ErrNotConnected)
}

func TestMockTransport_FailNextConnect(t *testing.T) {
	m := newMock(t)
	boom := errors.New("out of range")
	m.FailNextConnect(boom)

	m.Connect()
	ev := nextEvent(t, m)
	assert.Equal(t, EventError, ev.Kind)
	assert.ErrorIs(t, ev.Err, boom)

	m.Connect()
	assert.Equal(t, EventConnected, nextEvent(t, m).Kind)
	assert.Equal(t, 2, m.ConnectCount())
}

func TestMockTransport_DropLinkOnce(t *testing.T) {
	m := newMock(t)
	m.Connect()
	nextEvent(t, m)

	m.DropLink()
	m.Disconnect()
	assert.Equal(t, EventDisconnected, nextEvent(t, m).Kind)

	select {
	case ev := <-m.Events():
		t.Errorf("Unexpected event after disconnect: %v", ev.Kind)
	case <-time.After(20 * time.Millisecond):
	}
	assert.False(t, m.Connected())
}

func TestMockTransport_OverrideServices(t *testing.T) {
	m := newMock(t)
	m.OverrideServices([]string{"other"}, map[string][]string{"OTHER": {"x"}})
	m.Connect()
	nextEvent(t, m)

	m.DiscoverServices()
	assert.Equal(t, []string{"other"}, nextEvent(t, m).UUIDs)
	m.DiscoverCharacteristics("other")
	assert.Equal(t, []string{"x"}, nextEvent(t, m).UUIDs)
}

func TestTarget_String(t *testing.T) {
	assert.Equal(t, "KS-R2 (AA:BB)", Target{Address: "AA:BB", Name: "KS-R2"}.String())
	assert.Equal(t, "AA:BB", Target{Address: "AA:BB"}.String())
	assert.Equal(t, "KS-R2", Target{Name: "KS-R2"}.String())
}

func TestMockTransport_WriteDoesNotWaitOnFullEvents(t *testing.T) {
	m := NewMockTransport(log.New(io.Discard, "", 0), nil)
	t.Cleanup(func() { m.Close() })
	m.BlockWhenFull(true)

	m.Connect()
	m.EnableNotifications("svc", []string{"notify"})

	// notifications arriving faster than the consumer drains them
	go func() {
		for i := 0; i < 2*eventBufferSize; i++ {
			m.Notify("notify", []byte{byte(i)})
		}
	}()
	require.Eventually(t, func() bool {
		return len(m.Events()) == cap(m.Events())
	}, time.Second, 5*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- m.Write("svc", "write", []byte{1}, true) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Write blocked on a full event channel")
	}

	assert.Equal(t, EventConnected, nextEvent(t, m).Kind)
	assert.Equal(t, EventNotificationsEnabled, nextEvent(t, m).Kind)
	ev := nextEvent(t, m)
	assert.Equal(t, EventNotification, ev.Kind)
	assert.Equal(t, []byte{0}, ev.Data)
	assert.Len(t, m.Writes(), 1)
}
