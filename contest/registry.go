package contest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownContest is returned when no contest is registered under an id.
var ErrUnknownContest = errors.New("unknown contest")

// Factory builds a configured contest.
type Factory func(opts Options) (Contest, error)

// Descriptor names a registered contest.
type Descriptor struct {
	ID          string
	DisplayName string
	New         Factory
}

var registry = []Descriptor{
	{ID: cwtID, DisplayName: "CWT", New: newCWT},
	{ID: cqwwID, DisplayName: "CQ World Wide DX", New: newCQWW},
	{ID: cqwpxID, DisplayName: "CQ WPX", New: newCQWPX},
	{ID: arrlDXID, DisplayName: "ARRL DX CW", New: newARRLDX},
	{ID: sweepstakesID, DisplayName: "ARRL Sweepstakes", New: newSweepstakes},
	{ID: sprintID, DisplayName: "North American Sprint", New: newSprint},
}

// Registry returns the registered contests in display order.
func Registry() []Descriptor {
	out := make([]Descriptor, len(registry))
	copy(out, registry)
	return out
}

// IDs returns the registered contest ids.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for _, d := range registry {
		ids = append(ids, d.ID)
	}
	return ids
}

// Known reports whether id names a registered contest.
func Known(id string) bool {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, d := range registry {
		if d.ID == id {
			return true
		}
	}
	return false
}

// New builds the contest registered under id.
func New(id string, opts Options) (Contest, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, d := range registry {
		if d.ID == id {
			c, err := d.New(opts)
			if err != nil {
				return nil, fmt.Errorf("contest: build %s: %w", id, err)
			}
			return c, nil
		}
	}
	return nil, fmt.Errorf("contest: %q: %w", id, ErrUnknownContest)
}
