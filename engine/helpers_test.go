package engine

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"qsotrainer/contest"
	"qsotrainer/pileup"
	"qsotrainer/playback"
	"qsotrainer/qso"
)

var t0 = time.Date(2026, 2, 7, 18, 0, 0, 0, time.UTC)

// scriptRand hands out scripted values, then zeros.
type scriptRand struct {
	floats []float64
}

func (r *scriptRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptRand) IntN(int) int { return 0 }

type userCmd struct {
	tx       playback.TxID
	text     string
	segments []playback.Segment
}

type callerCmd struct {
	tx    playback.TxID
	audio playback.CallerAudio
}

type fakePlayer struct {
	user    []userCmd
	callers []callerCmd
	stops   int
}

func (p *fakePlayer) PlayMessage(tx playback.TxID, content string, wpm int) {
	p.user = append(p.user, userCmd{tx: tx, text: content})
}

func (p *fakePlayer) PlaySegmented(tx playback.TxID, segments []playback.Segment, wpm int) {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = s.Content
	}
	p.user = append(p.user, userCmd{tx: tx, text: strings.Join(parts, " "), segments: segments})
}

func (p *fakePlayer) StartCallerAudio(tx playback.TxID, audio playback.CallerAudio) {
	p.callers = append(p.callers, callerCmd{tx: tx, audio: audio})
}

func (p *fakePlayer) StopAll() { p.stops++ }

func (p *fakePlayer) lastUser(t *testing.T) userCmd {
	t.Helper()
	if len(p.user) == 0 {
		t.Fatalf("no user transmission issued")
	}
	return p.user[len(p.user)-1]
}

func (p *fakePlayer) lastCaller(t *testing.T, id pileup.CallerID) callerCmd {
	t.Helper()
	for i := len(p.callers) - 1; i >= 0; i-- {
		if p.callers[i].audio.Caller == id {
			return p.callers[i]
		}
	}
	t.Fatalf("no caller audio for %d", id)
	return callerCmd{}
}

// fakeContest sends "5NN <serial>" and scores exact copies.
type fakeContest struct{}

func (fakeContest) ID() string                              { return "test" }
func (fakeContest) DisplayName() string                     { return "Test" }
func (fakeContest) ExchangeFields() []contest.ExchangeField { return nil }
func (fakeContest) CQMessage() string                       { return "CQ TEST" }
func (fakeContest) GenerateExchange(string, int) contest.Exchange {
	return contest.NewExchange("5NN", "05")
}
func (fakeContest) FormatExchange(ex contest.Exchange) string { return ex.String() }
func (fakeContest) UserExchange(serial int) []string {
	return []string{"5NN", fmt.Sprintf("%03d", serial)}
}
func (fakeContest) NextCandidate(int) (string, contest.Exchange, bool) {
	return "", contest.Exchange{}, false
}
func (fakeContest) Validate(expectedCall string, expected contest.Exchange, receivedCall string, received []string) contest.Validation {
	v := contest.Validation{
		CallsignCorrect: expectedCall == receivedCall,
		ExchangeCorrect: strings.Join(expected.Fields, " ") == strings.Join(received, " "),
	}
	if v.CallsignCorrect && v.ExchangeCorrect {
		v.Points = 1
	}
	return v
}

type harness struct {
	t      *testing.T
	clock  *ManualClock
	player *fakePlayer
	pool   *pileup.Pool
	rng    *scriptRand
	ctrl   *Controller
}

func testSettings() Settings {
	s := DefaultSettings()
	s.AGNRequestProbability = 0
	return s
}

func poolSettings() pileup.Settings {
	return pileup.Settings{
		MaxSimultaneous: 2,
		WPMMin:          28,
		WPMMax:          36,
		MinPatience:     2,
		MaxPatience:     5,
		RetryDelayMin:   200 * time.Millisecond,
		RetryDelayMax:   1200 * time.Millisecond,
	}
}

func newHarness(t *testing.T, settings Settings, calls ...string) *harness {
	t.Helper()
	clock := NewManualClock(t0)
	player := &fakePlayer{}
	pool := pileup.New(fakeContest{}, poolSettings(), &scriptRand{})
	for i, call := range calls {
		pool.Add(pileup.Caller{
			Params: pileup.CallerParams{
				Callsign: call,
				Exchange: contest.NewExchange("5NN", "05"),
				WPM:      30,
			},
			Patience:      5,
			ReactionDelay: time.Duration(100*(i+1)) * time.Millisecond,
			ReadyAt:       t0,
		})
	}
	rng := &scriptRand{}
	ctrl := NewController(settings, fakeContest{}, pool, player, clock, rng)
	return &harness{t: t, clock: clock, player: player, pool: pool, rng: rng, ctrl: ctrl}
}

func (h *harness) do(a Action) {
	h.t.Helper()
	if err := h.ctrl.Handle(a); err != nil {
		h.t.Fatalf("%s rejected in %s: %v", a.Kind, h.ctrl.State(), err)
	}
}

func (h *harness) expectState(want qso.State) {
	h.t.Helper()
	if got := h.ctrl.State(); got != want {
		h.t.Fatalf("state = %s, want %s", got, want)
	}
}

func (h *harness) advance(d time.Duration) {
	h.ctrl.Tick(h.clock.Advance(d))
}

// finishUser completes every segment of the last user transmission and then
// the message itself.
func (h *harness) finishUser() {
	h.t.Helper()
	cmd := h.player.lastUser(h.t)
	for _, seg := range cmd.segments {
		h.ctrl.HandleEvent(Event{Kind: EventSegmentComplete, Tx: cmd.tx, Segment: seg.Kind})
	}
	h.ctrl.HandleEvent(Event{Kind: EventMessageComplete, Tx: cmd.tx})
}

func (h *harness) finishCaller(id pileup.CallerID) {
	h.t.Helper()
	cmd := h.player.lastCaller(h.t, id)
	h.ctrl.HandleEvent(Event{Kind: EventCallerAudioComplete, Tx: cmd.tx, Caller: id})
}

// callUntilAnswered sends CQ, lets it finish and waits out the post-CQ delay.
func (h *harness) callUntilAnswered() {
	h.t.Helper()
	h.do(StartCQ())
	h.expectState(qso.State{Phase: qso.PhaseCallingCQ})
	h.finishUser()
	h.expectState(qso.State{Phase: qso.PhaseWaitingForCallers})
	h.advance(300 * time.Millisecond)
	h.expectState(qso.State{Phase: qso.PhaseStationsCalling})
}

func (h *harness) engaged() pileup.CallerParams {
	h.t.Helper()
	p, ok := h.ctrl.Context().Engaged()
	if !ok {
		h.t.Fatalf("no engaged caller")
	}
	return p
}
