// Package stats scores the operator's session (accuracy, speed, streaks) and
// counts engine activity for the status panes.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Tracker counts engine activity: actions by kind, caller responses by kind,
// and a handful of recovery counters.
type Tracker struct {
	// counters live in sync.Map + atomic.Uint64 so the engine loop never waits
	// on a UI reader
	actions     sync.Map // string -> *atomic.Uint64
	responses   sync.Map // string -> *atomic.Uint64
	start       atomic.Int64
	rejected    atomic.Uint64
	interrupted atomic.Uint64
	staleEvents atomic.Uint64
	corrections atomic.Uint64
	tailEnders  atomic.Uint64
	unanswered  atomic.Uint64
}

// NewTracker creates a tracker started now.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

// IncrementAction counts an operator action by name (cq, call, log, f5...).
func (t *Tracker) IncrementAction(kind string) {
	incrementCounter(&t.actions, kind)
}

// IncrementResponse counts a caller response by name.
func (t *Tracker) IncrementResponse(kind string) {
	incrementCounter(&t.responses, kind)
}

// IncrementRejected counts actions that did not apply in the current state.
func (t *Tracker) IncrementRejected() { t.rejected.Add(1) }

// IncrementInterrupted counts user transmissions cut short.
func (t *Tracker) IncrementInterrupted() { t.interrupted.Add(1) }

// IncrementStaleEvents counts notifications for abandoned transmissions.
func (t *Tracker) IncrementStaleEvents() { t.staleEvents.Add(1) }

// IncrementCorrections counts callsign corrections sent by callers.
func (t *Tracker) IncrementCorrections() { t.corrections.Add(1) }

// IncrementTailEnders counts tail-enders that jumped in.
func (t *Tracker) IncrementTailEnders() { t.tailEnders.Add(1) }

// IncrementUnanswered counts CQs nobody answered.
func (t *Tracker) IncrementUnanswered() { t.unanswered.Add(1) }

func (t *Tracker) Rejected() uint64    { return t.rejected.Load() }
func (t *Tracker) Interrupted() uint64 { return t.interrupted.Load() }
func (t *Tracker) StaleEvents() uint64 { return t.staleEvents.Load() }
func (t *Tracker) Corrections() uint64 { return t.corrections.Load() }
func (t *Tracker) TailEnders() uint64  { return t.tailEnders.Load() }
func (t *Tracker) Unanswered() uint64  { return t.unanswered.Load() }

// ActionCounts returns a copy of the per-action counts.
func (t *Tracker) ActionCounts() map[string]uint64 {
	return copyCounts(&t.actions)
}

// ResponseCounts returns a copy of the per-response counts.
func (t *Tracker) ResponseCounts() map[string]uint64 {
	return copyCounts(&t.responses)
}

// Uptime returns how long the tracker has been running.
func (t *Tracker) Uptime() time.Duration {
	return time.Since(time.Unix(0, t.start.Load()))
}

// Reset clears every counter.
func (t *Tracker) Reset() {
	for _, m := range []*sync.Map{&t.actions, &t.responses} {
		m.Range(func(key, _ any) bool {
			m.Delete(key)
			return true
		})
	}
	t.rejected.Store(0)
	t.interrupted.Store(0)
	t.staleEvents.Store(0)
	t.corrections.Store(0)
	t.tailEnders.Store(0)
	t.unanswered.Store(0)
	t.start.Store(time.Now().UnixNano())
}

// SnapshotLines returns human-readable counters ready for console display.
func (t *Tracker) SnapshotLines() []string {
	return []string{
		formatCounts("Actions", &t.actions),
		formatCounts("Responses", &t.responses),
		fmt.Sprintf("Recovery: rejected=%s interrupted=%s stale=%s corrections=%s tail-enders=%s unanswered=%s",
			humanize.Comma(int64(t.Rejected())),
			humanize.Comma(int64(t.Interrupted())),
			humanize.Comma(int64(t.StaleEvents())),
			humanize.Comma(int64(t.Corrections())),
			humanize.Comma(int64(t.TailEnders())),
			humanize.Comma(int64(t.Unanswered()))),
	}
}

func copyCounts(m *sync.Map) map[string]uint64 {
	counts := make(map[string]uint64)
	m.Range(func(key, value any) bool {
		counts[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return counts
}

func formatCounts(label string, m *sync.Map) string {
	counts := copyCounts(m)
	if len(counts) == 0 {
		return label + ": (none)"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(label)
	b.WriteString(": ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%s", k, humanize.Comma(int64(counts[k])))
	}
	return b.String()
}

func incrementCounter(m *sync.Map, key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	if value, ok := m.Load(key); ok {
		value.(*atomic.Uint64).Add(1)
		return
	}
	counter := &atomic.Uint64{}
	actual, loaded := m.LoadOrStore(key, counter)
	if loaded {
		actual.(*atomic.Uint64).Add(1)
		return
	}
	counter.Add(1)
}
