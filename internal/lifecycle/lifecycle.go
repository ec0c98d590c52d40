// Package lifecycle is the connection state machine of one piece of equipment.
//
// Lifecycle does no I/O. Each transport event has its own transition method
// that updates the state and returns the actions the caller must perform, in
// order. It is not safe for concurrent use; the driver calls it from its
// session loop only.
package lifecycle

import (
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/protocol"
)

// Requirements is the GATT layout a profile needs
type Requirements struct {
	Service string
	Write   string
	Notify  []string
}

// RequirementsFor extracts the GATT layout of a profile
func RequirementsFor(p protocol.Profile) Requirements {
	return Requirements{
		Service: p.ServiceUUID(),
		Write:   p.WriteCharUUID(),
		Notify:  p.NotifyCharUUIDs(),
	}
}

// Session is the state of one physical connection. A new one is created on
// every connect attempt and dropped on disconnect.
type Session struct {
	ID            string
	StartedAt     time.Time
	Service       string
	WriteChar     string
	NotifyChars   []string
	HandshakeDone bool
}

type Lifecycle struct {
	req     Requirements
	state   State
	session *Session
	closed  bool

	now     func() time.Time
	entropy *ulid.MonotonicEntropy
}

func New(req Requirements) *Lifecycle {
	return NewWithClock(req, time.Now)
}

func NewWithClock(req Requirements, now func() time.Time) *Lifecycle {
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{
		req:     req,
		state:   Disconnected,
		now:     now,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(now().UnixNano())), 0),
	}
}

func (l *Lifecycle) State() State { return l.state }

func (l *Lifecycle) Ready() bool { return l.state == Ready }

// Closed reports whether Close was called; no further connects happen
func (l *Lifecycle) Closed() bool { return l.closed }

// Session returns the current session, nil while disconnected
func (l *Lifecycle) Session() *Session { return l.session }

// SessionID returns the current session id or "-"
func (l *Lifecycle) SessionID() string {
	if l.session == nil {
		return "-"
	}
	return l.session.ID
}

// Start begins a connection attempt from Disconnected
func (l *Lifecycle) Start() []Action {
	if l.closed || l.state != Disconnected {
		return nil
	}
	now := l.now()
	l.session = &Session{
		ID:        ulid.MustNew(ulid.Timestamp(now), l.entropy).String(),
		StartedAt: now,
	}
	l.state = Connecting
	return []Action{{Kind: ActionConnect}}
}

// OnReconnectDue is called when the reconnect delay has elapsed
func (l *Lifecycle) OnReconnectDue() []Action {
	return l.Start()
}

func (l *Lifecycle) OnConnected() []Action {
	if l.state != Connecting {
		return nil
	}
	l.state = ServicesDiscovering
	return []Action{{Kind: ActionDiscoverServices}}
}

// OnServicesDiscovered selects the control service among the discovered ones
func (l *Lifecycle) OnServicesDiscovered(services []string) []Action {
	if l.state != ServicesDiscovering {
		return nil
	}
	if !containsUUID(services, l.req.Service) {
		return l.OnError(&ConfigurationError{Stage: l.state, Missing: []string{"service " + l.req.Service}})
	}
	l.session.Service = l.req.Service
	l.state = CharacteristicsBinding
	return []Action{{Kind: ActionDiscoverCharacteristics}}
}

// OnCharacteristicsDiscovered validates the write and every notify characteristic
func (l *Lifecycle) OnCharacteristicsDiscovered(chars []string) []Action {
	if l.state != CharacteristicsBinding {
		return nil
	}
	var missing []string
	if !containsUUID(chars, l.req.Write) {
		missing = append(missing, "write "+l.req.Write)
	}
	for _, n := range l.req.Notify {
		if !containsUUID(chars, n) {
			missing = append(missing, "notify "+n)
		}
	}
	if len(missing) > 0 {
		return l.OnError(&ConfigurationError{Stage: l.state, Missing: missing})
	}
	l.session.WriteChar = l.req.Write
	l.session.NotifyChars = append([]string(nil), l.req.Notify...)
	return []Action{{Kind: ActionEnableNotifications}}
}

// OnNotificationsEnabled is called once every notify subscription is acknowledged
func (l *Lifecycle) OnNotificationsEnabled() []Action {
	if l.state != CharacteristicsBinding || l.session.WriteChar == "" {
		return nil
	}
	l.state = Handshaking
	return []Action{{Kind: ActionStartHandshake}}
}

func (l *Lifecycle) OnHandshakeComplete() []Action {
	if l.state != Handshaking {
		return nil
	}
	l.session.HandshakeDone = true
	l.state = Ready
	return []Action{{Kind: ActionEmitReady}}
}

// OnDisconnected handles a link drop reported by the transport
func (l *Lifecycle) OnDisconnected(err error) []Action {
	if l.state == Disconnected {
		return nil
	}
	l.reset()
	actions := []Action{{Kind: ActionTeardown, Err: err}}
	if !l.closed {
		actions = append(actions, Action{Kind: ActionScheduleReconnect})
	}
	return actions
}

// OnError handles a failed transport step (connect, discovery, subscribe)
func (l *Lifecycle) OnError(err error) []Action {
	if l.state == Disconnected {
		return nil
	}
	l.reset()
	actions := []Action{
		{Kind: ActionReportError, Err: err},
		{Kind: ActionDisconnect},
		{Kind: ActionTeardown, Err: err},
	}
	if !l.closed {
		actions = append(actions, Action{Kind: ActionScheduleReconnect})
	}
	return actions
}

// Close stops the lifecycle for good
func (l *Lifecycle) Close() []Action {
	l.closed = true
	if l.state == Disconnected {
		return nil
	}
	l.reset()
	return []Action{{Kind: ActionDisconnect}, {Kind: ActionTeardown}}
}

func (l *Lifecycle) reset() {
	l.state = Disconnected
	l.session = nil
}

func containsUUID(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
