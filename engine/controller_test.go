package engine

import (
	"errors"
	"testing"
	"time"

	"qsotrainer/pileup"
	"qsotrainer/qso"
	"qsotrainer/stats"
)

var (
	stationsCalling = qso.State{Phase: qso.PhaseStationsCalling}
	waitingStation  = qso.State{Phase: qso.PhaseWaitingForStation}
	sendingExchange = qso.StationTransmitting(qso.StationTxSendingExchange)
)

func TestHappyPathLogsContact(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC")
	h.callUntilAnswered()
	if got := h.player.lastCaller(t, 1).audio.Message; got != "W1ABC" {
		t.Fatalf("caller sent %q", got)
	}
	if cq := h.player.user[0].text; cq != "CQ TEST N9UNX" {
		t.Fatalf("cq text = %q", cq)
	}

	h.do(SubmitCallsign("w1abc"))
	h.expectState(qso.UserTransmitting(qso.UserTxExchange))
	if got := h.player.lastUser(t).text; got != "W1ABC 5NN 001" {
		t.Fatalf("combined send = %q", got)
	}
	h.finishUser()
	h.expectState(waitingStation)

	h.advance(200 * time.Millisecond)
	h.expectState(waitingStation)
	h.advance(50 * time.Millisecond)
	h.expectState(sendingExchange)
	if got := h.player.lastCaller(t, 1).audio.Message; got != "5NN 05" {
		t.Fatalf("caller exchange = %q", got)
	}

	h.do(SubmitExchange("W1ABC", []string{"5nn", "05"}))
	h.expectState(qso.State{Phase: qso.PhaseQSOComplete})
	want := qso.Progress{SentTheirCall: true, SentOurExchange: true, ReceivedTheirCall: true, ReceivedTheirExchange: true}
	if got := h.ctrl.Context().Progress; got != want {
		t.Fatalf("ledger = %+v, want %+v", got, want)
	}
	rec := h.ctrl.LastResult()
	if rec == nil || !rec.Perfect() || rec.Points != 1 || rec.Serial != 1 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if h.ctrl.Serial() != 2 {
		t.Fatalf("serial = %d", h.ctrl.Serial())
	}
	if got := h.player.lastUser(t).text; got != "TU N9UNX" {
		t.Fatalf("tu text = %q", got)
	}

	h.finishUser()
	h.expectState(qso.Idle)
	if counts := h.pool.Counts(); counts.Worked != 1 {
		t.Fatalf("caller not worked: %+v", counts)
	}
	if h.ctrl.Session().Len() != 1 {
		t.Fatalf("session has %d contacts", h.ctrl.Session().Len())
	}
}

// Once a contact is logged the caller is worked; repeat and resend keys
// pressed during TU must not reopen it or log it twice.
func TestLoggedContactCannotBeReopened(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC")
	h.callUntilAnswered()
	h.do(SubmitCallsign("W1ABC"))
	h.finishUser()
	h.advance(250 * time.Millisecond)
	h.do(SubmitExchange("W1ABC", []string{"5NN", "05"}))
	h.expectState(qso.State{Phase: qso.PhaseQSOComplete})
	sent := len(h.player.user)

	if _, ok := h.ctrl.Context().Engaged(); ok {
		t.Fatalf("worked caller still engaged after logging")
	}
	for _, a := range []Action{RequestRepeat(), SendOurExchangeOnly("W1ABC"), SendTheirCallOnly("W1ABC")} {
		if err := h.ctrl.Handle(a); !errors.Is(err, ErrNoCaller) {
			t.Fatalf("%s after logging: err = %v, want %v", a.Kind, err, ErrNoCaller)
		}
		h.expectState(qso.State{Phase: qso.PhaseQSOComplete})
	}
	if err := h.ctrl.Handle(SubmitExchange("W1ABC", []string{"5NN", "05"})); err == nil {
		t.Fatalf("second exchange accepted after logging")
	}
	if len(h.player.user) != sent {
		t.Fatalf("rejected actions transmitted: %+v", h.player.user[sent:])
	}

	h.finishUser()
	h.expectState(qso.Idle)
	if n := h.ctrl.Session().Len(); n != 1 {
		t.Fatalf("session has %d contacts, want 1", n)
	}
	if h.ctrl.Serial() != 2 {
		t.Fatalf("serial = %d, want 2", h.ctrl.Serial())
	}
	if n := h.pool.Counts(); n.Worked != 1 {
		t.Fatalf("counts = %+v", n)
	}
}

func TestInterruptionThenExchangeOnly(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC")
	h.callUntilAnswered()
	h.do(SubmitCallsign("W1ABC"))

	combined := h.player.lastUser(t)
	h.ctrl.HandleEvent(Event{Kind: EventSegmentComplete, Tx: combined.tx, Segment: qso.SegmentTheirCall})
	h.do(Stop())
	h.expectState(stationsCalling)

	p := h.ctrl.Context().Progress
	if !p.SentTheirCall || p.SentOurExchange {
		t.Fatalf("after interruption ledger = %+v", p)
	}

	// The player reports the cut and a late completion; both are stale.
	h.ctrl.HandleEvent(Event{Kind: EventTransmissionInterrupted, Tx: combined.tx})
	h.ctrl.HandleEvent(Event{Kind: EventSegmentComplete, Tx: combined.tx, Segment: qso.SegmentOurExchange})
	h.ctrl.HandleEvent(Event{Kind: EventMessageComplete, Tx: combined.tx})
	if h.ctrl.Context().Progress.SentOurExchange {
		t.Fatalf("stale segment completion updated the ledger")
	}
	if got := h.ctrl.Tracker().StaleEvents(); got != 3 {
		t.Fatalf("stale events = %d, want 3", got)
	}
	h.expectState(stationsCalling)

	h.do(SendOurExchangeOnly(""))
	h.expectState(qso.UserTransmitting(qso.UserTxExchangeOnly))
	if got := h.player.lastUser(t).text; got != "5NN 001" {
		t.Fatalf("exchange only = %q", got)
	}
	h.finishUser()
	h.expectState(waitingStation)

	ctx := h.ctrl.Context()
	if r := qso.Resolve(ctx.Progress, qso.FlagsFrom(ctx, 2)); r != qso.ResponseSendExchange {
		t.Fatalf("resolver = %s, want exchange", r)
	}
	h.advance(250 * time.Millisecond)
	h.expectState(sendingExchange)
}

func TestInterruptedSegmentsStayUnsent(t *testing.T) {
	for completed := 0; completed <= 2; completed++ {
		h := newHarness(t, testSettings(), "W1ABC")
		h.callUntilAnswered()
		h.do(SubmitCallsign("W1ABC"))
		cmd := h.player.lastUser(t)
		for _, seg := range cmd.segments[:completed] {
			h.ctrl.HandleEvent(Event{Kind: EventSegmentComplete, Tx: cmd.tx, Segment: seg.Kind})
		}
		h.ctrl.HandleEvent(Event{Kind: EventTransmissionInterrupted, Tx: cmd.tx})
		for _, seg := range cmd.segments[completed:] {
			h.ctrl.HandleEvent(Event{Kind: EventSegmentComplete, Tx: cmd.tx, Segment: seg.Kind})
		}

		p := h.ctrl.Context().Progress
		if p.SentTheirCall != (completed >= 1) || p.SentOurExchange != (completed >= 2) {
			t.Fatalf("completed=%d: ledger %+v", completed, p)
		}
		h.expectState(stationsCalling)
		if h.ctrl.Tracker().Interrupted() != 1 {
			t.Fatalf("completed=%d: interrupted=%d", completed, h.ctrl.Tracker().Interrupted())
		}
	}
}

// Sending his call then the exchange after an interruption must leave the
// contact where an uninterrupted combined send would.
func TestSplitSendMatchesCombinedSend(t *testing.T) {
	direct := newHarness(t, testSettings(), "W1ABC")
	direct.callUntilAnswered()
	direct.do(SubmitCallsign("W1ABC"))
	direct.finishUser()

	split := newHarness(t, testSettings(), "W1ABC")
	split.callUntilAnswered()
	split.do(SubmitCallsign("W1ABC"))
	split.do(Stop())
	split.do(SendTheirCallOnly("W1ABC"))
	if !split.ctrl.Context().AwaitingOurExchange {
		t.Fatalf("exact call alone should wait for our exchange")
	}
	split.finishUser()
	split.advance(250 * time.Millisecond)
	split.expectState(stationsCalling)
	split.do(SendOurExchangeOnly(""))
	split.finishUser()

	dc, sc := direct.ctrl.Context(), split.ctrl.Context()
	if dc.Progress != sc.Progress {
		t.Fatalf("ledgers differ: direct %+v split %+v", dc.Progress, sc.Progress)
	}
	dr := qso.Resolve(dc.Progress, qso.FlagsFrom(dc, 2))
	sr := qso.Resolve(sc.Progress, qso.FlagsFrom(sc, 2))
	if dr != sr || dr != qso.ResponseSendExchange {
		t.Fatalf("resolver outcomes differ: direct %s split %s", dr, sr)
	}
	direct.advance(250 * time.Millisecond)
	split.advance(250 * time.Millisecond)
	direct.expectState(sendingExchange)
	split.expectState(sendingExchange)
}

func TestBustedCallCorrected(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC")
	h.callUntilAnswered()

	// correct branch, then the single-form correction
	h.rng.floats = []float64{0.1, 0.1}
	h.do(SubmitCallsign("W1ABX"))
	ctx := h.ctrl.Context()
	if !ctx.CorrectionInProgress || ctx.CorrectionAttempts != 1 {
		t.Fatalf("correction not started: %+v", ctx)
	}
	if got := h.player.lastUser(t).text; got != "W1ABX 5NN 001" {
		t.Fatalf("sent %q", got)
	}
	h.finishUser()
	h.advance(250 * time.Millisecond)
	h.expectState(qso.StationTransmitting(qso.StationTxCorrection))
	if got := h.player.lastCaller(t, 1).audio.Message; got != "W1ABC" {
		t.Fatalf("correction message = %q", got)
	}
	h.finishCaller(1)
	h.expectState(stationsCalling)
	if status, _ := h.ctrl.Status(); status != "Fix callsign and press Enter" {
		t.Fatalf("status = %q", status)
	}

	h.do(SubmitCallsign("W1ABC"))
	if ctx.CorrectionInProgress || ctx.CorrectionAttempts != 1 {
		t.Fatalf("after fix: in progress=%v attempts=%d", ctx.CorrectionInProgress, ctx.CorrectionAttempts)
	}
	h.finishUser()
	h.advance(250 * time.Millisecond)
	h.expectState(sendingExchange)
}

func TestDoubledCorrection(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC")
	h.callUntilAnswered()
	h.rng.floats = []float64{0.1, 0.9}
	h.do(SubmitCallsign("W1ABX"))
	h.finishUser()
	h.advance(250 * time.Millisecond)
	if got := h.player.lastCaller(t, 1).audio.Message; got != "W1ABC W1ABC" {
		t.Fatalf("correction message = %q", got)
	}
}

func TestCorrectionCapForcesProgress(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC")
	h.callUntilAnswered()
	for attempt := 1; attempt <= 2; attempt++ {
		h.do(SubmitCallsign("W1ABX"))
		if got := h.ctrl.Context().CorrectionAttempts; got != attempt {
			t.Fatalf("attempt %d: counter %d", attempt, got)
		}
		h.finishUser()
		h.advance(250 * time.Millisecond)
		h.expectState(qso.StationTransmitting(qso.StationTxCorrection))
		h.finishCaller(1)
	}
	h.do(SubmitCallsign("W1ABX"))
	if h.ctrl.Context().CorrectionInProgress {
		t.Fatalf("correction continued past the cap")
	}
	h.finishUser()
	h.advance(250 * time.Millisecond)
	h.expectState(sendingExchange)

	h.do(SubmitExchange("", []string{"5NN", "05"}))
	rec := h.ctrl.LastResult()
	if rec.CallsignCorrect || rec.EnteredCall != "W1ABX" || rec.Points != 0 {
		t.Fatalf("busted call not recorded: %+v", rec)
	}
}

func TestNoCorrectionWhenDiceSayNo(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC")
	h.callUntilAnswered()
	h.rng.floats = []float64{0.95}
	h.do(SubmitCallsign("W1ABX"))
	if h.ctrl.Context().CorrectionInProgress {
		t.Fatalf("correction started")
	}
	h.finishUser()
	h.advance(250 * time.Millisecond)
	h.expectState(sendingExchange)
}

func TestRepeatRequestBeforeExchange(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC")
	h.callUntilAnswered()
	h.do(RequestRepeat())
	h.expectState(qso.UserTransmitting(qso.UserTxRepeat))
	if got := h.player.lastUser(t).text; got != "?" {
		t.Fatalf("agn text = %q", got)
	}
	ctx := h.ctrl.Context()
	if !ctx.ExpectingRepeat || !ctx.UsedRepeatCall {
		t.Fatalf("repeat flags not set: %+v", ctx)
	}
	h.finishUser()
	h.advance(250 * time.Millisecond)
	h.expectState(qso.StationTransmitting(qso.StationTxRepeating))
	if ctx.ExpectingRepeat {
		t.Fatalf("repeat flag not consumed")
	}
	h.finishCaller(1)
	h.expectState(stationsCalling)
}

func TestRepeatRequestForExchange(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC")
	h.callUntilAnswered()
	h.do(SubmitCallsign("W1ABC"))
	h.finishUser()
	h.advance(250 * time.Millisecond)
	h.expectState(sendingExchange)

	h.do(RequestRepeat())
	if !h.ctrl.Context().UsedRepeatExchange || h.ctrl.Context().ExpectingRepeat {
		t.Fatalf("exchange repeat flags wrong: %+v", h.ctrl.Context())
	}
	h.finishUser()
	h.advance(250 * time.Millisecond)
	h.expectState(sendingExchange)
	h.do(SubmitExchange("W1ABC", []string{"5NN", "05"}))
	if rec := h.ctrl.LastResult(); !rec.UsedRepeatExch || rec.Perfect() {
		t.Fatalf("repeat usage not recorded: %+v", rec)
	}
}

func TestCallerAsksAgainWithoutExchange(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC")
	h.callUntilAnswered()
	h.do(SendTheirCallOnly("W1ABC"))
	h.finishUser()
	h.advance(250 * time.Millisecond)
	h.expectState(stationsCalling)

	// Without the wait the table answers: call heard, exchange not.
	h.do(SendTheirCallOnly("W1ABC"))
	h.ctrl.Context().AwaitingOurExchange = false
	h.finishUser()
	h.rng.floats = []float64{0.1}
	h.advance(250 * time.Millisecond)
	h.expectState(qso.StationTransmitting(qso.StationTxRequestingAgn))
	if got := h.player.lastCaller(t, 1).audio.Message; got != "AGN" {
		t.Fatalf("caller sent %q", got)
	}
}

func TestRandomCallerAGN(t *testing.T) {
	s := testSettings()
	s.AGNRequestProbability = 0.1
	h := newHarness(t, s, "W1ABC")
	h.callUntilAnswered()
	h.do(SubmitCallsign("W1ABC"))
	h.finishUser()
	h.rng.floats = []float64{0.05, 0.9}
	h.advance(250 * time.Millisecond)
	h.expectState(qso.StationTransmitting(qso.StationTxRequestingAgn))
	if got := h.player.lastCaller(t, 1).audio.Message; got != "?" {
		t.Fatalf("caller sent %q", got)
	}
	h.finishCaller(1)
	h.expectState(stationsCalling)

	h.do(SendOurExchangeOnly(""))
	h.finishUser()
	h.rng.floats = []float64{0.5}
	h.advance(250 * time.Millisecond)
	h.expectState(sendingExchange)

	// Once the exchange went out the caller never asks again.
	h.do(RequestRepeat())
	h.finishUser()
	h.rng.floats = []float64{0.0}
	h.advance(250 * time.Millisecond)
	h.expectState(sendingExchange)
}

func TestPileupNarrowedByHisCall(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC", "K3LR")
	h.callUntilAnswered()
	if got := len(h.ctrl.Context().Active()); got != 2 {
		t.Fatalf("expected 2 callers, got %d", got)
	}
	if _, ok := h.ctrl.Context().Engaged(); ok {
		t.Fatalf("nobody should be engaged in a pileup")
	}
	h.do(SendTheirCallOnly("K3L"))
	if got := h.engaged().Callsign; got != "K3LR" {
		t.Fatalf("engaged %s", got)
	}
	if got := len(h.ctrl.Context().Active()); got != 1 {
		t.Fatalf("pileup not narrowed: %d active", got)
	}
	if !h.ctrl.Context().ExpectingRepeat {
		t.Fatalf("partial call should ask for a repeat")
	}
	h.finishUser()
	h.advance(250 * time.Millisecond)
	h.expectState(qso.StationTransmitting(qso.StationTxRepeating))
	if got := h.player.lastCaller(t, 2).audio.Message; got != "K3LR" {
		t.Fatalf("caller repeated %q", got)
	}
}

func TestSubmitFallsBackToFirstCaller(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC", "K3LR")
	h.callUntilAnswered()
	h.rng.floats = []float64{0.95}
	h.do(SubmitCallsign("ZZ9ZZZ"))
	if got := h.engaged().Callsign; got != "W1ABC" {
		t.Fatalf("fallback engaged %s", got)
	}
}

func TestNobodyEngagedEveryoneResends(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC", "K3LR")
	h.callUntilAnswered()
	before := len(h.player.callers)
	h.do(RequestRepeat())
	h.finishUser()
	h.advance(250 * time.Millisecond)
	h.expectState(stationsCalling)
	if got := len(h.player.callers) - before; got != 2 {
		t.Fatalf("expected both callers to resend, got %d", got)
	}
}

func TestRestartChargesCallers(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC", "K3LR")
	h.callUntilAnswered()
	h.do(Restart())
	h.expectState(qso.State{Phase: qso.PhaseCallingCQ})
	if h.ctrl.Context().HasCallers() {
		t.Fatalf("context not cleared on restart")
	}
	for _, c := range h.pool.Callers() {
		if c.Attempts != 1 || c.Lifecycle != pileup.Waiting {
			t.Fatalf("caller %s: attempts=%d lifecycle=%s", c.Params.Callsign, c.Attempts, c.Lifecycle)
		}
		if !c.ReadyAt.After(h.clock.Now()) {
			t.Fatalf("caller %s has no retry delay", c.Params.Callsign)
		}
	}
}

func TestTailEnderFollowsContact(t *testing.T) {
	s := testSettings()
	s.MaxSimultaneous = 1
	h := newHarness(t, s, "W1ABC", "K3LR")
	h.callUntilAnswered()
	h.do(SubmitCallsign("W1ABC"))
	h.finishUser()
	h.advance(250 * time.Millisecond)
	h.do(SubmitExchange("W1ABC", []string{"5NN", "05"}))
	h.finishUser()
	h.expectState(qso.State{Phase: qso.PhaseWaitingForTailEnder})
	if got := h.engaged().Callsign; got != "K3LR" {
		t.Fatalf("tail-ender %s", got)
	}
	if h.ctrl.Context().Progress != (qso.Progress{}) {
		t.Fatalf("ledger not reset for the tail-ender")
	}
	h.advance(100 * time.Millisecond)
	h.expectState(stationsCalling)
	if got := h.player.lastCaller(t, 2).audio.Message; got != "K3LR" {
		t.Fatalf("tail-ender sent %q", got)
	}
	if h.ctrl.Tracker().TailEnders() != 1 {
		t.Fatalf("tail-ender not counted")
	}
}

func TestNoAnswerReturnsToIdle(t *testing.T) {
	h := newHarness(t, testSettings())
	h.do(StartCQ())
	h.finishUser()
	for i := 0; i < 40 && !h.ctrl.State().Is(qso.PhaseIdle); i++ {
		h.advance(100 * time.Millisecond)
	}
	h.expectState(qso.Idle)
	if status, _ := h.ctrl.Status(); status != "No answer" {
		t.Fatalf("status = %q", status)
	}
	if h.ctrl.Tracker().Unanswered() != 1 {
		t.Fatalf("unanswered = %d", h.ctrl.Tracker().Unanswered())
	}
	if elapsed := h.clock.Now().Sub(t0); elapsed < 3*time.Second {
		t.Fatalf("gave up after %v", elapsed)
	}
}

func TestRejectedActions(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC")
	cases := []struct {
		action Action
		want   error
	}{
		{SubmitExchange("W1ABC", []string{"5NN"}), ErrWrongState},
		{SubmitCallsign("W1ABC"), ErrWrongState},
		{SubmitCallsign("  "), ErrEmptyCallsign},
		{SendTheirCallOnly("W1ABC"), ErrNoCaller},
		{SendOurExchangeOnly(""), ErrNoCaller},
		{RequestRepeat(), ErrNoCaller},
		{SendThankYou(), ErrWrongState},
		{Action{Kind: ActionKind(99)}, ErrUnknownAction},
	}
	for _, tc := range cases {
		err := h.ctrl.Handle(tc.action)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.action.Kind, err, tc.want)
		}
		h.expectState(qso.Idle)
	}
	if len(h.player.user) != 0 {
		t.Fatalf("rejected actions transmitted: %+v", h.player.user)
	}
	if got := h.ctrl.Tracker().Rejected(); got != uint64(len(cases)) {
		t.Fatalf("rejected = %d", got)
	}
	if status, tone := h.ctrl.Status(); status == "" || tone != qso.ToneAttention {
		t.Fatalf("status = %q tone=%d", status, tone)
	}
}

func TestStopSettles(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC")
	h.do(StartCQ())
	h.do(Stop())
	h.expectState(qso.Idle)

	h.callUntilAnswered()
	h.do(SubmitCallsign("W1ABC"))
	h.finishUser()
	h.advance(250 * time.Millisecond)
	h.expectState(sendingExchange)
	h.do(Stop())
	h.expectState(stationsCalling)
	if !h.ctrl.Context().Progress.SentOurExchange {
		t.Fatalf("stop must keep the ledger")
	}

	h.do(SendThankYou())
	h.do(Stop())
	h.expectState(qso.Idle)
	for _, c := range h.pool.Callers() {
		if c.Lifecycle == pileup.Calling {
			t.Fatalf("caller %s still calling while idle", c.Params.Callsign)
		}
	}
}

func TestStaleCallerAudio(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC")
	h.callUntilAnswered()
	h.do(SubmitCallsign("W1ABC"))
	h.finishUser()
	h.advance(250 * time.Millisecond)
	old := h.player.lastCaller(t, 1)
	h.do(RequestRepeat())
	h.ctrl.HandleEvent(Event{Kind: EventCallerAudioComplete, Tx: old.tx, Caller: 1})
	h.expectState(qso.UserTransmitting(qso.UserTxRepeat))
	if h.ctrl.Tracker().StaleEvents() != 1 {
		t.Fatalf("stale caller event not counted")
	}
}

func TestAdjustWPMClamps(t *testing.T) {
	h := newHarness(t, testSettings())
	h.do(AdjustWPM(100))
	if got := h.ctrl.Settings().UserWPM; got != MaxUserWPM {
		t.Fatalf("wpm = %d", got)
	}
	h.do(AdjustWPM(-100))
	if got := h.ctrl.Settings().UserWPM; got != MinUserWPM {
		t.Fatalf("wpm = %d", got)
	}
}

func TestObserversSeeLoggedContact(t *testing.T) {
	h := newHarness(t, testSettings(), "W1ABC")
	var seen []string
	h.ctrl.AddObserver(QSOObserverFunc(func(rec stats.QSORecord) { seen = append(seen, rec.ExpectedCall) }))
	h.callUntilAnswered()
	h.do(SubmitCallsign("W1ABC"))
	h.finishUser()
	h.advance(250 * time.Millisecond)
	h.do(SubmitExchange("W1ABC", []string{"5NN", "05"}))
	if len(seen) != 1 || seen[0] != "W1ABC" {
		t.Fatalf("observer saw %v", seen)
	}
}
