// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package plugin

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// LoadReport summarizes one load batch.
type LoadReport struct {
	ID        ulid.ULID     `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	// Order is the resolved order the batch was attempted in.
	Order []string `json:"order"`
	// Loaded lists the plugins that reached Running, in load order.
	Loaded   []string  `json:"loaded"`
	Failures []Failure `json:"failures"`
}

func newLoadReport(now time.Time) *LoadReport {
	return &LoadReport{
		ID:        ulid.Make(),
		StartedAt: now,
	}
}

// OK reports whether every plugin in the batch loaded.
func (r *LoadReport) OK() bool {
	return len(r.Failures) == 0
}

// Failure returns the failure recorded for name, if any.
func (r *LoadReport) Failure(name string) (Failure, bool) {
	for _, f := range r.Failures {
		if f.Plugin == name {
			return f, true
		}
	}
	return Failure{}, false
}

// Text renders the report for terminals and logs.
func (r *LoadReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "load %s: %d loaded, %d failed in %s\n",
		r.ID, len(r.Loaded), len(r.Failures), r.Duration.Round(time.Microsecond))
	for i, name := range r.Loaded {
		fmt.Fprintf(&b, "  %2d. %s\n", i+1, name)
	}
	if len(r.Failures) > 0 {
		b.WriteString("failures:\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "  %s [%s]: %v\n", f.Plugin, f.Code(), f.Err)
		}
	}
	return b.String()
}

// MarshalJSON includes the failure code and message.
func (f Failure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	//nolint:wrapcheck // plain encoding of a flat struct
	return json.Marshal(struct {
		Plugin string `json:"plugin"`
		Code   string `json:"code,omitempty"`
		Error  string `json:"error"`
	}{f.Plugin, f.Code(), msg})
}
