// Package pileup keeps the persistent queue of simulated stations that answer
// the operator's CQ: who is listening, who is calling right now, who gave up
// and who has been worked.
package pileup

import (
	"time"

	"qsotrainer/contest"
)

// CallerID identifies a caller for the lifetime of the process.
type CallerID uint32

// Lifecycle is where a caller is in its life on the frequency.
type Lifecycle int

const (
	Waiting Lifecycle = iota
	Calling
	GaveUp
	Worked
)

func (l Lifecycle) String() string {
	switch l {
	case Waiting:
		return "waiting"
	case Calling:
		return "calling"
	case GaveUp:
		return "gave up"
	case Worked:
		return "worked"
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (l Lifecycle) Terminal() bool {
	return l == GaveUp || l == Worked
}

// CallerParams is the identity and signal of one station.
type CallerParams struct {
	ID        CallerID
	Callsign  string
	Exchange  contest.Exchange
	WPM       int
	OffsetHz  float64
	Amplitude float64
}

// Caller is a station record in the pool.
type Caller struct {
	Params        CallerParams
	Patience      int
	Attempts      int
	Lifecycle     Lifecycle
	ReactionDelay time.Duration
	ReadyAt       time.Time
}

// ReadyToCall reports whether the caller is waiting and its retry delay has passed.
func (c *Caller) ReadyToCall(now time.Time) bool {
	return c.Lifecycle == Waiting && !now.Before(c.ReadyAt)
}

// callProbability is the chance a ready caller answers a given CQ. More
// patient callers are more eager.
func (c *Caller) callProbability() float64 {
	p := 0.5 + float64(c.Patience-1)*0.1
	if p > 1 {
		return 1
	}
	return p
}
