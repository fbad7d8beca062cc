package clipboard

import (
	"sync"

	"github.com/breeze-rmm/rdpgfx/internal/logging"
)

var stateLog = logging.L("clipboard.state")

// OwnerState is one of the four states the clipboard channel's state
// machine occupies (spec.md §5).
type OwnerState int

const (
	Idle OwnerState = iota
	LocalOwned
	RemoteOwned
	Transferring
)

func (s OwnerState) String() string {
	switch s {
	case Idle:
		return "idle"
	case LocalOwned:
		return "local_owned"
	case RemoteOwned:
		return "remote_owned"
	case Transferring:
		return "transferring"
	default:
		return "unknown"
	}
}

// Event is one input to the state machine.
type Event int

const (
	EventLocalOwnershipChanged Event = iota // OS clipboard owner changed, formats advertised locally
	EventLocalOwnershipCleared              // OS clipboard owner changed, no formats (e.g. owner exited)
	EventRemoteFormatList                   // viewer advertised a format list (delayed rendering: no payload yet)
	EventPasteRequested                     // local paste triggered a format-data request to the viewer
	EventTransferComplete                   // the requested payload finished arriving
	EventTransferFailed                     // the requested payload failed or timed out
)

// transitions enumerates the only state changes the machine allows.
// Anything not listed is rejected with ErrInvalidTransition, which keeps
// the machine from ever observing a transition the spec didn't anticipate.
var transitions = map[OwnerState]map[Event]OwnerState{
	Idle: {
		EventLocalOwnershipChanged: LocalOwned,
		EventLocalOwnershipCleared: Idle,
		EventRemoteFormatList:      RemoteOwned,
	},
	LocalOwned: {
		EventLocalOwnershipChanged: LocalOwned, // re-advertise, still local
		EventLocalOwnershipCleared: Idle,
		EventRemoteFormatList:      RemoteOwned,
	},
	RemoteOwned: {
		EventLocalOwnershipChanged: LocalOwned,
		EventLocalOwnershipCleared: Idle,
		EventRemoteFormatList:      RemoteOwned, // refreshed advertisement
		EventPasteRequested:        Transferring,
	},
	Transferring: {
		EventTransferComplete: RemoteOwned,
		EventTransferFailed:   RemoteOwned,
		// A fresh advertisement mid-transfer supersedes the in-flight one;
		// the caller is responsible for cancelling the stale pull.
		EventRemoteFormatList: RemoteOwned,
	},
}

// Machine is the clipboard channel's owner-state automaton. It holds no
// content itself — Engine pairs it with the negotiated format list and the
// loop-prevention guard.
type Machine struct {
	mu    sync.Mutex
	state OwnerState
}

func NewMachine() *Machine {
	return &Machine{state: Idle}
}

func (m *Machine) State() OwnerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fire applies ev, returning the new state or ErrInvalidTransition if ev is
// not valid from the current state.
func (m *Machine) Fire(ev Event) (OwnerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := transitions[m.state][ev]
	if !ok {
		return m.state, ErrInvalidTransition
	}
	if next != m.state {
		stateLog.Debug("clipboard state transition", "from", m.state, "to", next)
	}
	m.state = next
	return next, nil
}
