package stats

import (
	"sync"
	"time"
)

// Session collects every contact logged since start or the last Clear. It is
// written by the engine loop and read by the UI and exporters.
type Session struct {
	mu    sync.RWMutex
	qsos  []QSORecord
	score Score
}

// NewSession starts an empty session at now.
func NewSession(now time.Time) *Session {
	return &Session{score: Score{Started: now}}
}

// RecordQSO appends a contact and updates the score.
func (s *Session) RecordQSO(rec QSORecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qsos = append(s.qsos, rec)
	s.score.add(rec)
}

// Records returns a copy of the logged contacts in order.
func (s *Session) Records() []QSORecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]QSORecord, len(s.qsos))
	copy(out, s.qsos)
	return out
}

// Len is the number of logged contacts.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.qsos)
}

// Score returns a copy of the running score.
func (s *Session) Score() Score {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.score
}

// Clear forgets every contact and restarts the score at now.
func (s *Session) Clear(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qsos = nil
	s.score = Score{Started: now}
}

// Analyze computes the session analysis.
func (s *Session) Analyze() Analysis {
	return Analyze(s.Records())
}

// Score is the running contest score.
type Score struct {
	QSOs    int
	Points  int
	Started time.Time
	Last    time.Time
}

func (s *Score) add(rec QSORecord) {
	s.QSOs++
	s.Points += rec.Points
	s.Last = rec.Time
}

// HourlyRate projects the QSO count over elapsed time to an hourly rate.
// Sessions shorter than a minute report 0.
func (s Score) HourlyRate(now time.Time) float64 {
	elapsed := now.Sub(s.Started)
	if elapsed < time.Minute || s.QSOs == 0 {
		return 0
	}
	return float64(s.QSOs) / elapsed.Hours()
}
