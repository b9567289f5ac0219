package station

import "fmt"

// State is the lifecycle state of the station.
type State int

const (
	StateInitialised    State = iota // started, not registered
	StateActivated                   // registered at the hub, not yet available to clients
	StateOnline                      // registered and available to clients
	StateAuthenticating              // access code issued, waiting for the client to redeem it
	StatePreGame                     // client attached
	StateGamePlaying
	StatePostGame
	StateDeactivated
)

var stateNames = [...]string{
	StateInitialised:    "Initialised",
	StateActivated:      "Activated",
	StateOnline:         "Online",
	StateAuthenticating: "Authenticating",
	StatePreGame:        "PreGame",
	StateGamePlaying:    "GamePlaying",
	StatePostGame:       "PostGame",
	StateDeactivated:    "Deactivated",
}

// States lists every lifecycle state in declaration order.
func States() []State {
	all := make([]State, len(stateNames))
	for i := range stateNames {
		all[i] = State(i)
	}
	return all
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name, which is also what the hub receives.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	parsed, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState returns the state with the given name.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownState, name)
}

// clientConnected reports whether the hub keeps a heartbeat session for this state.
func (s State) clientConnected() bool {
	switch s {
	case StateOnline, StateAuthenticating, StatePreGame, StateGamePlaying, StatePostGame:
		return true
	}
	return false
}
