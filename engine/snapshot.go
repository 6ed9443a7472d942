package engine

import (
	"time"

	"qsotrainer/pileup"
	"qsotrainer/qso"
	"qsotrainer/stats"
)

// Snapshot is an immutable view of the controller for readers on other
// goroutines.
type Snapshot struct {
	At       time.Time
	Contest  string
	State    qso.State
	Status   string
	Tone     qso.Tone
	Progress qso.Progress

	Engaged            string
	Active             []string
	CorrectionActive   bool
	CorrectionAttempts int

	UserWPM    int
	Serial     int
	LastSent   string
	LastHeard  string
	Score      stats.Score
	LastResult *stats.QSORecord
	Pool       pileup.Counts
}

// Snapshot captures the controller's current view.
func (c *Controller) Snapshot() Snapshot {
	status, tone := c.Status()
	s := Snapshot{
		At:                 c.clock.Now(),
		Contest:            c.contest.DisplayName(),
		State:              c.state,
		Status:             status,
		Tone:               tone,
		Progress:           c.ctx.Progress,
		CorrectionActive:   c.ctx.CorrectionInProgress,
		CorrectionAttempts: c.ctx.CorrectionAttempts,
		UserWPM:            c.settings.UserWPM,
		Serial:             c.serial,
		LastSent:           c.lastSent,
		LastHeard:          c.lastHeard,
		Score:              c.session.Score(),
		Pool:               c.pool.Counts(),
	}
	if p, ok := c.ctx.Engaged(); ok {
		s.Engaged = p.Callsign
	}
	for _, p := range c.ctx.Active() {
		s.Active = append(s.Active, p.Callsign)
	}
	if c.lastResult != nil {
		rec := *c.lastResult
		s.LastResult = &rec
	}
	return s
}
