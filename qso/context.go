package qso

import (
	"time"

	"qsotrainer/pileup"
)

// Context is the mutable state of the contact in progress. It is owned by the
// engine loop and never shared.
type Context struct {
	Progress Progress

	engaged *pileup.CallerParams
	active  []pileup.CallerParams

	CorrectionInProgress bool
	CorrectionAttempts   int
	ExpectingRepeat      bool

	// AwaitingOurExchange: the exact callsign went out alone and our exchange
	// has not; the caller stays quiet until it comes.
	AwaitingOurExchange bool
	// CallerExchangeSentOnce suppresses the caller's random AGN after it has
	// already sent its exchange once.
	CallerExchangeSentOnce bool

	UsedRepeatCall     bool
	UsedRepeatExchange bool
	UsedCallOnly       bool

	waitUntil time.Time
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{}
}

// Reset clears everything for a fresh CQ or idle.
func (c *Context) Reset() {
	*c = Context{}
}

// SetCallers replaces the active set. A lone caller is engaged immediately.
func (c *Context) SetCallers(callers []pileup.CallerParams) {
	c.active = append(c.active[:0], callers...)
	if len(callers) == 1 {
		c.Engage(callers[0])
		return
	}
	c.engaged = nil
}

// Engage makes p the caller being worked. Switching to a different caller
// starts a new contact: the ledger and correction state are cleared.
func (c *Context) Engage(p pileup.CallerParams) {
	if c.engaged != nil && c.engaged.ID == p.ID {
		return
	}
	c.Progress.Reset()
	c.CorrectionInProgress = false
	c.CorrectionAttempts = 0
	c.ExpectingRepeat = false
	c.AwaitingOurExchange = false
	c.CallerExchangeSentOnce = false
	c.UsedRepeatCall = false
	c.UsedRepeatExchange = false
	c.UsedCallOnly = false
	engaged := p
	c.engaged = &engaged
}

// Narrow drops every active caller except p and engages it.
func (c *Context) Narrow(p pileup.CallerParams) {
	c.active = append(c.active[:0], p)
	c.Engage(p)
}

// Retire removes a logged caller from the contact. It stops being engaged
// and leaves the active set, so nothing can reopen the contact with it.
func (c *Context) Retire(id pileup.CallerID) {
	if c.engaged != nil && c.engaged.ID == id {
		c.engaged = nil
	}
	kept := c.active[:0]
	for _, p := range c.active {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	c.active = kept
}

// Engaged returns the caller being worked.
func (c *Context) Engaged() (pileup.CallerParams, bool) {
	if c.engaged == nil {
		return pileup.CallerParams{}, false
	}
	return *c.engaged, true
}

// Active returns the callers currently on frequency.
func (c *Context) Active() []pileup.CallerParams {
	return c.active
}

// HasCallers reports whether anyone is engaged or calling.
func (c *Context) HasCallers() bool {
	return c.engaged != nil || len(c.active) > 0
}

// BeginCorrection starts (or continues) a callsign correction and charges an
// attempt.
func (c *Context) BeginCorrection() {
	c.CorrectionInProgress = true
	c.CorrectionAttempts++
}

// EndCorrection leaves correction mode. The attempt count stays until the
// contact ends.
func (c *Context) EndCorrection() {
	c.CorrectionInProgress = false
}

// SetWait arms the timed wait.
func (c *Context) SetWait(deadline time.Time) {
	c.waitUntil = deadline
}

// ClearWait disarms the timed wait.
func (c *Context) ClearWait() {
	c.waitUntil = time.Time{}
}

// WaitDeadline returns the armed deadline, or false when none is set.
func (c *Context) WaitDeadline() (time.Time, bool) {
	return c.waitUntil, !c.waitUntil.IsZero()
}

// WaitElapsed reports whether an armed wait has run out at now.
func (c *Context) WaitElapsed(now time.Time) bool {
	return !c.waitUntil.IsZero() && !now.Before(c.waitUntil)
}
