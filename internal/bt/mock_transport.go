package bt

import (
	"context"
	"encoding/hex"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/go_func_utils"
)

// Verify MockTransport implements Transport
var _ Transport = (*MockTransport)(nil)

// Peripheral is the equipment behind a MockTransport
type Peripheral interface {
	Services() []string
	Characteristics(service string) []string
	// Attach is called on connect; notify pushes a notification to the central
	Attach(notify func(char string, data []byte))
	Detach()
	OnWrite(char string, data []byte)
}

// WrittenValue records a value written to a characteristic
type WrittenValue struct {
	Timestamp          time.Time `json:"timestamp"`
	CharacteristicUUID string    `json:"characteristicUuid"`
	Data               []byte    `json:"data"`
	DataHex            string    `json:"dataHex"`
	WithResponse       bool      `json:"withResponse"`
}

// MockTransport is an in-memory Transport for tests and simulation.
// Events are delivered in order from a single goroutine.
type MockTransport struct {
	logger     *log.Logger
	peripheral Peripheral

	events chan Event
	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	queue          []Event
	connected      bool
	notifying      map[string]bool
	writes         []WrittenValue
	connects       int
	failConnect    error
	failWrite      error
	holdConnect    bool
	blockWhenFull  bool
	services       []string
	chars          map[string][]string
}

func NewMockTransport(logger *log.Logger, peripheral Peripheral) *MockTransport {
	if logger == nil {
		panic("MockTransport: logger cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &MockTransport{
		logger:     logger,
		peripheral: peripheral,
		events:     make(chan Event, eventBufferSize),
		wake:       make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		notifying:  make(map[string]bool),
	}
	go_func_utils.SafeGoWG(logger, &m.wg, m.pump)
	return m
}

func (m *MockTransport) Events() <-chan Event {
	return m.events
}

func (m *MockTransport) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// FailNextConnect makes the next Connect report err
func (m *MockTransport) FailNextConnect(err error) {
	m.mu.Lock()
	m.failConnect = err
	m.mu.Unlock()
}

// FailNextWrite makes the next Write return err
func (m *MockTransport) FailNextWrite(err error) {
	m.mu.Lock()
	m.failWrite = err
	m.mu.Unlock()
}

// HoldConnect makes connect attempts never complete while hold is set
func (m *MockTransport) HoldConnect(hold bool) {
	m.mu.Lock()
	m.holdConnect = hold
	m.mu.Unlock()
}

// BlockWhenFull makes emits go straight to the events channel and block
// while it is full, the way Central delivers. Off by default, where events
// queue without bound.
func (m *MockTransport) BlockWhenFull(block bool) {
	m.mu.Lock()
	m.blockWhenFull = block
	m.mu.Unlock()
}

// OverrideServices replaces what discovery reports, nil restores the peripheral's
func (m *MockTransport) OverrideServices(services []string, characteristics map[string][]string) {
	m.mu.Lock()
	m.services = services
	m.chars = characteristics
	m.mu.Unlock()
}

// ConnectCount returns the number of Connect calls
func (m *MockTransport) ConnectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects
}

func (m *MockTransport) Connect() {
	m.mu.Lock()
	m.connects++
	if err := m.failConnect; err != nil {
		m.failConnect = nil
		m.mu.Unlock()
		m.logger.Printf("MockTransport: connect failed: %v", err)
		m.emit(Event{Kind: EventError, Err: err})
		return
	}
	if m.holdConnect {
		m.mu.Unlock()
		return
	}
	m.connected = true
	m.notifying = make(map[string]bool)
	m.mu.Unlock()

	m.logger.Printf("MockTransport: connected")
	if m.peripheral != nil {
		m.peripheral.Attach(m.Notify)
	}
	m.emit(Event{Kind: EventConnected})
}

func (m *MockTransport) DiscoverServices() {
	if !m.Connected() {
		m.emit(Event{Kind: EventError, Err: ErrNotConnected})
		return
	}
	m.emit(Event{Kind: EventServicesDiscovered, UUIDs: m.serviceList()})
}

func (m *MockTransport) DiscoverCharacteristics(service string) {
	if !m.Connected() {
		m.emit(Event{Kind: EventError, Err: ErrNotConnected})
		return
	}
	m.emit(Event{Kind: EventCharacteristicsDiscovered, UUIDs: m.characteristicList(service)})
}

func (m *MockTransport) EnableNotifications(service string, chars []string) {
	if !m.Connected() {
		m.emit(Event{Kind: EventError, Err: ErrNotConnected})
		return
	}
	m.mu.Lock()
	for _, c := range chars {
		m.notifying[normalize(c)] = true
	}
	m.mu.Unlock()
	m.emit(Event{Kind: EventNotificationsEnabled})
}

func (m *MockTransport) Write(service, char string, data []byte, withResponse bool) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	if err := m.failWrite; err != nil {
		m.failWrite = nil
		m.mu.Unlock()
		return err
	}
	buf := append([]byte(nil), data...)
	m.writes = append(m.writes, WrittenValue{
		Timestamp:          time.Now(),
		CharacteristicUUID: char,
		Data:               buf,
		DataHex:            hex.EncodeToString(buf),
		WithResponse:       withResponse,
	})
	m.mu.Unlock()

	if m.peripheral != nil {
		m.peripheral.OnWrite(char, buf)
	}
	return nil
}

// Notify pushes a notification as if the peripheral sent it. It is dropped
// when the link is down or notifications for char are not enabled.
func (m *MockTransport) Notify(char string, data []byte) {
	m.mu.Lock()
	ok := m.connected && m.notifying[normalize(char)]
	m.mu.Unlock()
	if !ok {
		return
	}
	m.emit(Event{Kind: EventNotification, Handle: char, Data: append([]byte(nil), data...)})
}

// DropLink simulates the peripheral going away
func (m *MockTransport) DropLink() {
	m.linkDown()
}

func (m *MockTransport) Disconnect() {
	m.linkDown()
}

func (m *MockTransport) Close() error {
	// nobody drains events past this point
	m.cancel()
	m.linkDown()
	m.wg.Wait()
	return nil
}

// Writes returns a copy of every recorded write
func (m *MockTransport) Writes() []WrittenValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WrittenValue, len(m.writes))
	copy(out, m.writes)
	return out
}

// ClearWrites forgets the recorded writes
func (m *MockTransport) ClearWrites() {
	m.mu.Lock()
	m.writes = nil
	m.mu.Unlock()
}

func (m *MockTransport) linkDown() {
	m.mu.Lock()
	was := m.connected
	m.connected = false
	m.notifying = make(map[string]bool)
	m.mu.Unlock()
	if !was {
		return
	}
	if m.peripheral != nil {
		m.peripheral.Detach()
	}
	m.logger.Printf("MockTransport: disconnected")
	m.emit(Event{Kind: EventDisconnected})
}

func (m *MockTransport) serviceList() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.services != nil {
		return append([]string(nil), m.services...)
	}
	if m.peripheral == nil {
		return nil
	}
	return m.peripheral.Services()
}

func (m *MockTransport) characteristicList(service string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chars != nil {
		for k, v := range m.chars {
			if strings.EqualFold(k, service) {
				return append([]string(nil), v...)
			}
		}
		return nil
	}
	if m.peripheral == nil {
		return nil
	}
	return m.peripheral.Characteristics(service)
}

func (m *MockTransport) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	m.mu.Lock()
	if m.blockWhenFull {
		m.mu.Unlock()
		select {
		case m.events <- ev:
		case <-m.ctx.Done():
		}
		return
	}
	m.queue = append(m.queue, ev)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// pump forwards queued events in order without ever blocking emit
func (m *MockTransport) pump() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			select {
			case <-m.wake:
				continue
			case <-m.ctx.Done():
				return
			}
		}
		ev := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.events <- ev:
		case <-m.ctx.Done():
			return
		}
	}
}
