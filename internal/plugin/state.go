package plugin

// State represents the lifecycle state of a plugin.
type State int

// Plugin states.
const (
	// StateUnregistered - Plugin is not registered.
	StateUnregistered State = iota

	// StateActive - Plugin handlers are registered.
	StateActive

	// StateError - Plugin registration failed.
	StateError
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
