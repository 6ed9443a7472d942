package pileup

import (
	"math/rand/v2"
	"testing"
	"time"

	"qsotrainer/contest"
)

type scriptRand struct {
	floats []float64
	ints   []int
}

func (r *scriptRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptRand) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

type listSource struct {
	calls []string
	next  int
}

func (s *listSource) NextCandidate(serial int) (string, contest.Exchange, bool) {
	if len(s.calls) == 0 {
		return "", contest.Exchange{}, false
	}
	call := s.calls[s.next%len(s.calls)]
	s.next++
	return call, contest.NewExchange("5NN", "05"), true
}

type allSame struct{}

func (allSame) SameCountry(string, string) bool { return true }

func testSettings() Settings {
	return Settings{
		MaxSimultaneous:        2,
		StationProbability:     1,
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
		UserCallsign:           "N9UNX",
	}
}

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestReplenishFillsToTarget(t *testing.T) {
	p := New(&listSource{calls: []string{"W1AW", "K3LR", "N1MM"}}, testSettings(), &scriptRand{})
	if added := p.Replenish(t0); added != 5 {
		t.Fatalf("expected ceil(2*2.5)=5 callers, got %d", added)
	}
	if added := p.Replenish(t0.Add(100 * time.Millisecond)); added != 0 {
		t.Fatalf("replenish inside the interval added %d", added)
	}
	for _, c := range p.Callers() {
		if c.Patience < 2 || c.Patience > 5 {
			t.Fatalf("patience %d outside 2..5", c.Patience)
		}
		if c.ReactionDelay < 100*time.Millisecond || c.ReactionDelay >= 800*time.Millisecond {
			t.Fatalf("reaction delay %v outside range", c.ReactionDelay)
		}
	}
}

func TestReplenishStopsOnProbability(t *testing.T) {
	s := testSettings()
	s.StationProbability = 0.5
	p := New(&listSource{calls: []string{"W1AW"}}, s, &scriptRand{floats: []float64{0.1, 0, 0, 0.9}})
	if added := p.Replenish(t0); added != 1 {
		t.Fatalf("expected one caller before the gate failed, got %d", added)
	}
}

func TestSameCountryFilterRejects(t *testing.T) {
	s := testSettings()
	s.SameCountryFilter = true
	s.SameCountryProbability = 0
	src := &listSource{calls: []string{"W1AW"}}
	rng := &scriptRand{floats: []float64{0, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}}
	p := New(src, s, rng)
	p.SetCountryMatcher(allSame{})
	if added := p.Replenish(t0); added != 0 {
		t.Fatalf("expected same-country candidates to be rejected, got %d", added)
	}
	if src.next != maxDrawRetries {
		t.Fatalf("expected %d draws, got %d", maxDrawRetries, src.next)
	}
}

func TestSelectOrdersByReaction(t *testing.T) {
	p := New(&listSource{}, testSettings(), &scriptRand{})
	slow := p.Add(Caller{Params: CallerParams{Callsign: "K3LR"}, Patience: 5, ReactionDelay: 700 * time.Millisecond})
	fast := p.Add(Caller{Params: CallerParams{Callsign: "W1AW"}, Patience: 5, ReactionDelay: 150 * time.Millisecond})
	got := p.SelectRespondersToCQ(t0, 1)
	if len(got) != 1 || got[0].ID != fast {
		t.Fatalf("expected fastest caller first, got %+v", got)
	}
	c, _ := p.Caller(slow)
	if c.Lifecycle != Waiting {
		t.Fatalf("unselected caller moved to %s", c.Lifecycle)
	}
}

func TestSelectSkipsNotReady(t *testing.T) {
	p := New(&listSource{}, testSettings(), &scriptRand{})
	p.Add(Caller{Params: CallerParams{Callsign: "W1AW"}, Patience: 5, ReadyAt: t0.Add(time.Second)})
	if got := p.SelectRespondersToCQ(t0, 2); len(got) != 0 {
		t.Fatalf("caller inside its retry delay answered: %+v", got)
	}
	if got := p.SelectRespondersToCQ(t0.Add(time.Second), 2); len(got) != 1 {
		t.Fatalf("caller past its retry delay did not answer")
	}
}

// Patience 2: two restarts exhaust it and the caller is never selected again.
func TestPatienceExhaustion(t *testing.T) {
	p := New(&listSource{}, testSettings(), &scriptRand{})
	id := p.Add(Caller{Params: CallerParams{Callsign: "W1AW"}, Patience: 2})
	now := t0
	for round := 1; round <= 2; round++ {
		got := p.SelectRespondersToCQ(now, 2)
		if len(got) != 1 {
			t.Fatalf("round %d: expected caller to answer", round)
		}
		p.OnCQRestart(now)
		now = now.Add(2 * time.Second)
	}
	c, _ := p.Caller(id)
	if c.Lifecycle != GaveUp || c.Attempts != 2 {
		t.Fatalf("expected gave up after 2 attempts, got %s/%d", c.Lifecycle, c.Attempts)
	}
	for i := 0; i < 5; i++ {
		if got := p.SelectRespondersToCQ(now, 2); len(got) != 0 {
			t.Fatalf("gave-up caller selected again")
		}
		now = now.Add(2 * time.Second)
	}
}

// Three callers with patience 2, 3 and 5 all answer two CQs that are each
// abandoned. Only the least patient one gives up; the others wait out a new
// retry delay after every restart.
func TestPileupRestartTwiceWithMixedPatience(t *testing.T) {
	s := testSettings()
	// IntN draws: three jitters per select, then one retry delay for each
	// caller that is still patient.
	rng := &scriptRand{ints: []int{
		0, 0, 0, 50, 100, 300,
		0, 0, 0, 400, 800,
	}}
	p := New(&listSource{}, s, rng)
	ids := []CallerID{
		p.Add(Caller{Params: CallerParams{Callsign: "W1AW"}, Patience: 2, ReactionDelay: 100 * time.Millisecond}),
		p.Add(Caller{Params: CallerParams{Callsign: "K3LR"}, Patience: 3, ReactionDelay: 200 * time.Millisecond}),
		p.Add(Caller{Params: CallerParams{Callsign: "N1MM"}, Patience: 5, ReactionDelay: 300 * time.Millisecond}),
	}

	first := t0
	if got := p.SelectRespondersToCQ(first, 3); len(got) != 3 {
		t.Fatalf("first CQ: expected all three to call, got %d", len(got))
	}
	p.OnCQRestart(first)

	for i, id := range ids {
		c, _ := p.Caller(id)
		if c.Lifecycle != Waiting || c.Attempts != 1 {
			t.Fatalf("after first restart caller %d is %s/%d", i, c.Lifecycle, c.Attempts)
		}
	}
	w1aw, _ := p.Caller(ids[0])
	if want := first.Add(250 * time.Millisecond); !w1aw.ReadyAt.Equal(want) {
		t.Fatalf("W1AW ReadyAt = %v, want %v", w1aw.ReadyAt, want)
	}
	k3lr, _ := p.Caller(ids[1])
	n1mm, _ := p.Caller(ids[2])
	if want := first.Add(300 * time.Millisecond); !k3lr.ReadyAt.Equal(want) {
		t.Fatalf("K3LR ReadyAt = %v, want %v", k3lr.ReadyAt, want)
	}
	if want := first.Add(500 * time.Millisecond); !n1mm.ReadyAt.Equal(want) {
		t.Fatalf("N1MM ReadyAt = %v, want %v", n1mm.ReadyAt, want)
	}
	firstReady := []time.Time{{}, k3lr.ReadyAt, n1mm.ReadyAt}

	second := first.Add(2 * time.Second)
	if got := p.SelectRespondersToCQ(second, 3); len(got) != 3 {
		t.Fatalf("second CQ: expected all three to call, got %d", len(got))
	}
	p.OnCQRestart(second)

	gave, _ := p.Caller(ids[0])
	if gave.Lifecycle != GaveUp || gave.Attempts != 2 {
		t.Fatalf("patience-2 caller: got %s/%d, want gave up/2", gave.Lifecycle, gave.Attempts)
	}
	wantReady := []time.Time{{}, second.Add(600 * time.Millisecond), second.Add(time.Second)}
	for i := 1; i < 3; i++ {
		c, _ := p.Caller(ids[i])
		if c.Lifecycle != Waiting || c.Attempts != 2 {
			t.Fatalf("caller %d: got %s/%d, want waiting/2", i, c.Lifecycle, c.Attempts)
		}
		if !c.ReadyAt.Equal(wantReady[i]) {
			t.Fatalf("caller %d ReadyAt = %v, want %v", i, c.ReadyAt, wantReady[i])
		}
		if !c.ReadyAt.After(firstReady[i]) {
			t.Fatalf("caller %d ReadyAt did not move forward", i)
		}
	}
	if n := p.Counts(); n.Waiting != 2 || n.GaveUp != 1 || n.Created != 3 {
		t.Fatalf("counts = %+v", n)
	}
}

func TestUpdateSourceRetiresOldCallers(t *testing.T) {
	p := New(&listSource{}, testSettings(), &scriptRand{})
	p.Add(Caller{Params: CallerParams{Callsign: "W1AW"}, Patience: 3})
	p.Add(Caller{Params: CallerParams{Callsign: "K3LR"}, Patience: 3})
	worked := p.Add(Caller{Params: CallerParams{Callsign: "N1MM"}, Patience: 3})
	p.SelectRespondersToCQ(t0, 1)
	p.OnQSOComplete(worked)

	p.UpdateSource(&listSource{calls: []string{"DL1A"}})

	if got := p.Callers(); len(got) != 0 {
		t.Fatalf("old contest callers still queued: %+v", got)
	}
	n := p.Counts()
	if n.Waiting+n.Calling+n.GaveUp+n.Worked != n.Created {
		t.Fatalf("counts do not add up after contest switch: %+v", n)
	}
	if n.GaveUp != 2 || n.Worked != 1 {
		t.Fatalf("counts = %+v", n)
	}
	if pub := p.PublishedCounts(); pub != n {
		t.Fatalf("published counts %+v differ from %+v", pub, n)
	}
}

func TestRestartSetsRetryDelay(t *testing.T) {
	p := New(&listSource{}, testSettings(), &scriptRand{ints: []int{0, 500}})
	id := p.Add(Caller{Params: CallerParams{Callsign: "W1AW"}, Patience: 5})
	p.SelectRespondersToCQ(t0, 1)
	p.OnCQRestart(t0)
	c, _ := p.Caller(id)
	if c.Lifecycle != Waiting || c.Attempts != 1 {
		t.Fatalf("expected waiting with one attempt, got %s/%d", c.Lifecycle, c.Attempts)
	}
	if want := t0.Add(700 * time.Millisecond); !c.ReadyAt.Equal(want) {
		t.Fatalf("ReadyAt = %v, want %v", c.ReadyAt, want)
	}
}

func TestQSOCompleteAndTailEnder(t *testing.T) {
	p := New(&listSource{}, testSettings(), &scriptRand{})
	worked := p.Add(Caller{Params: CallerParams{Callsign: "W1AW"}, Patience: 3})
	tail := p.Add(Caller{Params: CallerParams{Callsign: "K3LR"}, Patience: 3})
	p.SelectRespondersToCQ(t0, 1)
	p.OnQSOComplete(worked)
	got, ok := p.TrySpawnTailEnder(t0)
	if !ok || got.ID != tail {
		t.Fatalf("expected K3LR as tail-ender, got %+v %v", got, ok)
	}
	n := p.Counts()
	if n.Worked != 1 || n.Calling != 1 {
		t.Fatalf("counts = %+v", n)
	}
	p.Prune()
	if _, ok := p.Caller(worked); ok {
		t.Fatalf("worked caller still in queue after prune")
	}
	if n := p.Counts(); n.Worked != 1 || n.Created != 2 {
		t.Fatalf("pruned tallies lost: %+v", n)
	}
}

func TestTailEnderGate(t *testing.T) {
	s := testSettings()
	s.StationProbability = 0.3
	p := New(&listSource{}, s, &scriptRand{floats: []float64{0.9}})
	p.Add(Caller{Params: CallerParams{Callsign: "K3LR"}, Patience: 3})
	if _, ok := p.TrySpawnTailEnder(t0); ok {
		t.Fatalf("tail-ender spawned despite failed probability gate")
	}
}

// A caller with patience p answers any single CQ with probability
// 0.5 + (p-1)*0.1.
func TestCallProbabilityConverges(t *testing.T) {
	for _, tc := range []struct {
		patience int
		want     float64
	}{
		{2, 0.6},
		{3, 0.7},
		{4, 0.8},
		{5, 0.9},
	} {
		p := New(&listSource{}, testSettings(), rand.New(rand.NewPCG(7, uint64(tc.patience))))
		p.Add(Caller{Params: CallerParams{Callsign: "W1AW"}, Patience: tc.patience})
		const rounds = 20000
		answered := 0
		for i := 0; i < rounds; i++ {
			if len(p.SelectRespondersToCQ(t0, 1)) == 1 {
				answered++
				p.queue[0].Lifecycle = Waiting
			}
		}
		freq := float64(answered) / rounds
		if freq < tc.want-0.02 || freq > tc.want+0.02 {
			t.Fatalf("patience %d: answer frequency %.3f not near %.1f", tc.patience, freq, tc.want)
		}
	}
}

// Every record ends in at most one terminal state, never leaves it, and
// never exceeds its patience while live.
func TestLifecycleProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	p := New(&listSource{calls: []string{"W1AW", "K3LR", "N1MM", "DL1A", "G4AMJ"}}, testSettings(), rng)
	terminal := map[CallerID]Lifecycle{}
	now := t0
	for step := 0; step < 3000; step++ {
		now = now.Add(time.Duration(100+rng.IntN(600)) * time.Millisecond)
		switch rng.IntN(4) {
		case 0:
			p.Replenish(now)
		case 1:
			p.SelectRespondersToCQ(now, 2)
		case 2:
			p.OnCQRestart(now)
		case 3:
			for _, c := range p.Callers() {
				if c.Lifecycle == Calling {
					p.OnQSOComplete(c.Params.ID)
					break
				}
			}
		}
		for _, c := range p.Callers() {
			if prev, seen := terminal[c.Params.ID]; seen && prev != c.Lifecycle {
				t.Fatalf("caller %d left terminal state %s for %s", c.Params.ID, prev, c.Lifecycle)
			}
			if c.Lifecycle.Terminal() {
				terminal[c.Params.ID] = c.Lifecycle
				continue
			}
			if c.Attempts > c.Patience {
				t.Fatalf("caller %d has %d attempts with patience %d", c.Params.ID, c.Attempts, c.Patience)
			}
		}
		n := p.Counts()
		if n.Waiting+n.Calling+n.GaveUp+n.Worked != n.Created {
			t.Fatalf("counts do not add up: %+v", n)
		}
	}
}
