package pileup

import (
	"log"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"qsotrainer/contest"
)

// Source hands out new candidate stations.
type Source interface {
	NextCandidate(serial int) (string, contest.Exchange, bool)
}

// CountryMatcher reports whether two callsigns share a DXCC entity.
type CountryMatcher interface {
	SameCountry(a, b string) bool
}

// Rand is the randomness the pool draws from. Production wires a seeded
// math/rand/v2 generator; tests script the values.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Settings tunes how the pool behaves.
type Settings struct {
	MaxSimultaneous        int
	StationProbability     float64
	WPMMin, WPMMax         int
	FrequencySpreadHz      float64
	AmplitudeMin           float64
	AmplitudeMax           float64
	MinPatience            int
	MaxPatience            int
	RetryDelayMin          time.Duration
	RetryDelayMax          time.Duration
	SameCountryFilter      bool
	SameCountryProbability float64
	UserCallsign           string
}

// DefaultSettings returns the stock pileup tuning.
func DefaultSettings() Settings {
	return Settings{
		MaxSimultaneous:        2,
		StationProbability:     0.7,
		WPMMin:                 28,
		WPMMax:                 36,
		FrequencySpreadHz:      400,
		AmplitudeMin:           0.4,
		AmplitudeMax:           1.0,
		MinPatience:            2,
		MaxPatience:            5,
		RetryDelayMin:          200 * time.Millisecond,
		RetryDelayMax:          1200 * time.Millisecond,
		SameCountryProbability: 0.1,
	}
}

const (
	replenishInterval = 500 * time.Millisecond
	queueFactor       = 2.5
	maxDrawRetries    = 10
	reactionMin       = 100 * time.Millisecond
	reactionSpan      = 700
	jitterSpanMs      = 100
)

// Counts is a tally of records by lifecycle. GaveUp and Worked include
// records already pruned from the live queue.
type Counts struct {
	Waiting int
	Calling int
	GaveUp  int
	Worked  int
	Created int
}

// Pool owns every caller record. It is not safe for concurrent use; the engine
// loop is its only owner.
type Pool struct {
	source   Source
	settings Settings
	rng      Rand
	matcher  CountryMatcher

	queue         []*Caller
	nextID        CallerID
	serial        int
	lastReplenish time.Time

	created    int
	prunedGave int
	prunedWork int

	// readers outside the loop only need counts
	published atomic.Pointer[Counts]
}

// New builds an empty pool.
func New(source Source, settings Settings, rng Rand) *Pool {
	p := &Pool{source: source, settings: settings, rng: rng, serial: 1}
	p.publish()
	return p
}

// SetCountryMatcher enables the same-country filter backend.
func (p *Pool) SetCountryMatcher(m CountryMatcher) {
	p.matcher = m
}

// UpdateSettings applies new tuning; existing records keep their patience.
func (p *Pool) UpdateSettings(s Settings) {
	p.settings = s
}

// UpdateSource swaps the candidate source. Callers from the old contest
// leave the frequency: every live record gives up and is pruned, so the
// tallies still account for each record created.
func (p *Pool) UpdateSource(src Source) {
	p.source = src
	for _, c := range p.queue {
		if !c.Lifecycle.Terminal() {
			c.Lifecycle = GaveUp
		}
	}
	p.Prune()
	p.publish()
}

func (p *Pool) targetSize() int {
	return int(math.Ceil(float64(p.settings.MaxSimultaneous) * queueFactor))
}

func (p *Pool) live() int {
	n := 0
	for _, c := range p.queue {
		if !c.Lifecycle.Terminal() {
			n++
		}
	}
	return n
}

// Replenish simulates stations tuning in: at most every 500 ms it tops the
// live queue up toward its target, each addition gated by the station
// probability. Returns the number of callers added.
func (p *Pool) Replenish(now time.Time) int {
	if !p.lastReplenish.IsZero() && now.Sub(p.lastReplenish) < replenishInterval {
		return 0
	}
	p.lastReplenish = now
	p.Prune()

	added := 0
	for p.live() < p.targetSize() {
		if p.rng.Float64() > p.settings.StationProbability {
			break
		}
		c, ok := p.newCaller(now)
		if !ok {
			break
		}
		p.queue = append(p.queue, c)
		added++
	}
	if added > 0 {
		p.publish()
	}
	return added
}

func (p *Pool) draw() (string, contest.Exchange, bool) {
	for i := 0; i < maxDrawRetries; i++ {
		call, ex, ok := p.source.NextCandidate(p.serial)
		if !ok {
			return "", contest.Exchange{}, false
		}
		p.serial++
		if p.rejectSameCountry(call) {
			continue
		}
		return call, ex, true
	}
	return "", contest.Exchange{}, false
}

func (p *Pool) rejectSameCountry(call string) bool {
	if !p.settings.SameCountryFilter || p.matcher == nil || p.settings.UserCallsign == "" {
		return false
	}
	if !p.matcher.SameCountry(p.settings.UserCallsign, call) {
		return false
	}
	return p.rng.Float64() > p.settings.SameCountryProbability
}

func (p *Pool) newCaller(now time.Time) (*Caller, bool) {
	call, ex, ok := p.draw()
	if !ok {
		return nil, false
	}
	s := p.settings
	p.nextID++
	p.created++
	return &Caller{
		Params: CallerParams{
			ID:        p.nextID,
			Callsign:  call,
			Exchange:  ex,
			WPM:       s.WPMMin + p.intn(s.WPMMax-s.WPMMin+1),
			OffsetHz:  (p.rng.Float64()*2 - 1) * s.FrequencySpreadHz,
			Amplitude: s.AmplitudeMin + p.rng.Float64()*(s.AmplitudeMax-s.AmplitudeMin),
		},
		Patience:      s.MinPatience + p.intn(s.MaxPatience-s.MinPatience+1),
		Lifecycle:     Waiting,
		ReactionDelay: reactionMin + time.Duration(p.intn(reactionSpan))*time.Millisecond,
		ReadyAt:       now,
	}, true
}

func (p *Pool) intn(n int) int {
	if n <= 1 {
		return 0
	}
	return p.rng.IntN(n)
}

// Add inserts a fully formed record, assigning it an id. Used to seed a pool
// with known stations.
func (p *Pool) Add(c Caller) CallerID {
	p.nextID++
	p.created++
	c.Params.ID = p.nextID
	p.queue = append(p.queue, &c)
	p.publish()
	return c.Params.ID
}

// SelectRespondersToCQ picks up to n ready callers to answer a CQ. Candidates
// are ordered by reaction delay plus a per-round jitter; each then calls with
// its own probability. Chosen records move to Calling.
func (p *Pool) SelectRespondersToCQ(now time.Time, n int) []CallerParams {
	type ranked struct {
		c   *Caller
		key time.Duration
	}
	var ready []ranked
	for _, c := range p.queue {
		if c.ReadyToCall(now) {
			jitter := time.Duration(p.intn(jitterSpanMs)) * time.Millisecond
			ready = append(ready, ranked{c: c, key: c.ReactionDelay + jitter})
		}
	}
	sort.SliceStable(ready, func(i, j int) bool { return ready[i].key < ready[j].key })

	var out []CallerParams
	for _, r := range ready {
		if len(out) >= n {
			break
		}
		if p.rng.Float64() >= r.c.callProbability() {
			continue
		}
		r.c.Lifecycle = Calling
		out = append(out, r.c.Params)
	}
	if len(out) > 0 {
		p.publish()
	}
	return out
}

// OnCQRestart charges every Calling record one attempt. Records out of
// patience give up; the rest wait a random retry delay before they may call
// again.
func (p *Pool) OnCQRestart(now time.Time) {
	p.ReleaseCalling(now)
}

// ReleaseCalling applies the restart rule to every Calling record. The engine
// also uses it when a contact ends with other stations still calling.
func (p *Pool) ReleaseCalling(now time.Time) {
	changed := false
	for _, c := range p.queue {
		if c.Lifecycle != Calling {
			continue
		}
		changed = true
		c.Attempts++
		if c.Attempts >= c.Patience {
			c.Lifecycle = GaveUp
			log.Printf("Pileup: %s gave up after %d attempts", c.Params.Callsign, c.Attempts)
			continue
		}
		c.Lifecycle = Waiting
		c.ReadyAt = now.Add(p.retryDelay())
	}
	if changed {
		p.publish()
	}
}

func (p *Pool) retryDelay() time.Duration {
	lo, hi := p.settings.RetryDelayMin, p.settings.RetryDelayMax
	if hi <= lo {
		return lo
	}
	span := int((hi - lo) / time.Millisecond)
	return lo + time.Duration(p.intn(span+1))*time.Millisecond
}

// OnQSOComplete marks the caller worked.
func (p *Pool) OnQSOComplete(id CallerID) {
	for _, c := range p.queue {
		if c.Params.ID == id && !c.Lifecycle.Terminal() {
			c.Lifecycle = Worked
			p.publish()
			return
		}
	}
}

// TrySpawnTailEnder gives one ready Waiting caller the chance to call right
// after a contact ends. Returns false when the dice say nobody jumps in.
func (p *Pool) TrySpawnTailEnder(now time.Time) (CallerParams, bool) {
	if p.rng.Float64() > p.settings.StationProbability {
		return CallerParams{}, false
	}
	for _, c := range p.queue {
		if c.ReadyToCall(now) {
			c.Lifecycle = Calling
			p.publish()
			return c.Params, true
		}
	}
	return CallerParams{}, false
}

// Prune removes terminal records from the live queue after tallying them.
func (p *Pool) Prune() {
	kept := p.queue[:0]
	for _, c := range p.queue {
		switch c.Lifecycle {
		case GaveUp:
			p.prunedGave++
		case Worked:
			p.prunedWork++
		default:
			kept = append(kept, c)
		}
	}
	clear(p.queue[len(kept):])
	p.queue = kept
}

// Caller returns a copy of the record with id.
func (p *Pool) Caller(id CallerID) (Caller, bool) {
	for _, c := range p.queue {
		if c.Params.ID == id {
			return *c, true
		}
	}
	return Caller{}, false
}

// Callers returns copies of every record still in the queue.
func (p *Pool) Callers() []Caller {
	out := make([]Caller, 0, len(p.queue))
	for _, c := range p.queue {
		out = append(out, *c)
	}
	return out
}

// Counts tallies records by lifecycle.
func (p *Pool) Counts() Counts {
	n := Counts{GaveUp: p.prunedGave, Worked: p.prunedWork, Created: p.created}
	for _, c := range p.queue {
		switch c.Lifecycle {
		case Waiting:
			n.Waiting++
		case Calling:
			n.Calling++
		case GaveUp:
			n.GaveUp++
		case Worked:
			n.Worked++
		}
	}
	return n
}

// PublishedCounts is safe to call from any goroutine.
func (p *Pool) PublishedCounts() Counts {
	if c := p.published.Load(); c != nil {
		return *c
	}
	return Counts{}
}

func (p *Pool) publish() {
	c := p.Counts()
	p.published.Store(&c)
}
