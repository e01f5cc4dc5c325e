// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package plugin

// State is a plugin's lifecycle state.
type State uint8

// Lifecycle states.
const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateStarting
	StateRunning
	StatePausing
	StatePaused
	StateUnpausing
	StateEnding
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StatePausing:
		return "pausing"
	case StatePaused:
		return "paused"
	case StateUnpausing:
		return "unpausing"
	case StateEnding:
		return "ending"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON status output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var transitions = map[State][]State{
	StateUnloaded:  {StateLoading},
	StateLoading:   {StateLoaded, StateFailed},
	StateLoaded:    {StateStarting, StateFailed},
	StateStarting:  {StateRunning, StateFailed},
	StateRunning:   {StatePausing, StateEnding},
	StatePausing:   {StatePaused},
	StatePaused:    {StateUnpausing, StateEnding},
	StateUnpausing: {StateRunning},
	StateEnding:    {StateUnloaded},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Active reports whether a plugin in state s has been loaded and not yet torn down.
func (s State) Active() bool {
	switch s {
	case StateLoaded, StateStarting, StateRunning, StatePausing, StatePaused, StateUnpausing, StateEnding:
		return true
	default:
		return false
	}
}
