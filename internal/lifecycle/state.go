package lifecycle

import "fmt"

// State of one device connection
type State int

const (
	Disconnected State = iota
	Connecting
	ServicesDiscovering
	CharacteristicsBinding
	Handshaking
	Ready
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case ServicesDiscovering:
		return "ServicesDiscovering"
	case CharacteristicsBinding:
		return "CharacteristicsBinding"
	case Handshaking:
		return "Handshaking"
	case Ready:
		return "Ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ActionKind is a side effect requested by a transition
type ActionKind int

const (
	ActionConnect ActionKind = iota
	ActionDiscoverServices
	ActionDiscoverCharacteristics
	ActionEnableNotifications
	ActionStartHandshake
	ActionEmitReady
	// ActionReportError surfaces Action.Err to the controlling application
	ActionReportError
	// ActionDisconnect asks the transport to drop the link
	ActionDisconnect
	// ActionTeardown cancels in-flight requests and releases session state
	ActionTeardown
	ActionScheduleReconnect
)

func (k ActionKind) String() string {
	switch k {
	case ActionConnect:
		return "connect"
	case ActionDiscoverServices:
		return "discover-services"
	case ActionDiscoverCharacteristics:
		return "discover-characteristics"
	case ActionEnableNotifications:
		return "enable-notifications"
	case ActionStartHandshake:
		return "start-handshake"
	case ActionEmitReady:
		return "emit-ready"
	case ActionReportError:
		return "report-error"
	case ActionDisconnect:
		return "disconnect"
	case ActionTeardown:
		return "teardown"
	case ActionScheduleReconnect:
		return "schedule-reconnect"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Action is returned by transitions for the driver to carry out in order
type Action struct {
	Kind ActionKind
	Err  error
}

func (a Action) String() string {
	if a.Err != nil {
		return a.Kind.String() + ": " + a.Err.Error()
	}
	return a.Kind.String()
}

// Kinds lists the kinds of actions, mostly for tests and logging
func Kinds(actions []Action) []ActionKind {
	out := make([]ActionKind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind)
	}
	return out
}
