// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package wizard

import "strings"

// Result is returned by a hook implementation to steer the hook chain.
type Result uint8

// Hook results, in order of precedence for reporting.
const (
	// Continue proceeds with the original action.
	Continue Result = iota
	// Changed means the listener overrode the hook arguments.
	Changed
	// Handled means the original action must not be performed.
	// Remaining listeners are still notified.
	Handled
	// Stop ends the chain immediately. Overrides recorded so far are
	// discarded and the original action is performed unmodified.
	Stop
)

// String returns the lowercase name of the result.
func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case Changed:
		return "changed"
	case Handled:
		return "handled"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Valid reports whether r is one of the defined results.
func (r Result) Valid() bool {
	return r <= Stop
}

// ParseResult converts a result name (case-insensitive) to a Result.
func ParseResult(s string) (Result, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "continue":
		return Continue, true
	case "changed":
		return Changed, true
	case "handled":
		return Handled, true
	case "stop":
		return Stop, true
	default:
		return Continue, false
	}
}
