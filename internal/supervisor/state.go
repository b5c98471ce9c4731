// Package supervisor manages the lifecycle of individual neuron processes.
package supervisor

// State is the lifecycle position of a supervised neuron.
type State int

const (
	// StateCreated is the initial state, before the first spawn attempt.
	StateCreated State = iota

	// StateStarting means the neuron process is being spawned.
	StateStarting

	// StateRunning means the neuron process is up.
	StateRunning

	// StateBackoff means the neuron exited and the supervisor is waiting
	// out the restart delay.
	StateBackoff

	// StateStopped means the supervisor gave up or was shut down; the
	// neuron will not be restarted.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateBackoff:
		return "backoff"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsActive reports whether the supervisor still intends to run the
// neuron: it is up, coming up, or waiting to restart.
func (s State) IsActive() bool {
	return s == StateStarting || s == StateRunning || s == StateBackoff
}

// IsTerminal reports whether the state is final.
func (s State) IsTerminal() bool {
	return s == StateStopped
}
