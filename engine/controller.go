// Package engine runs the contact state machine: it turns operator actions
// and playback notifications into transmissions, ledger updates and caller
// pool bookkeeping. A Controller is single-owner; Loop gives it a goroutine.
package engine

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"qsotrainer/callsign"
	"qsotrainer/contest"
	"qsotrainer/internal/ratelimit"
	"qsotrainer/pileup"
	"qsotrainer/playback"
	"qsotrainer/qso"
	"qsotrainer/stats"
	"qsotrainer/strutil"
)

// Rand is the randomness behind caller behavior. Production wires a seeded
// math/rand/v2 generator.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Rejection reasons. Handle wraps them with detail.
var (
	ErrWrongState    = errors.New("not now")
	ErrNoCaller      = errors.New("no station to work")
	ErrEmptyCallsign = errors.New("enter a callsign first")
	ErrUnknownAction = errors.New("unknown action")
)

const logInterval = 5 * time.Second

type userTx struct {
	id   playback.TxID
	kind qso.UserTx
}

func (u userTx) active() bool { return u.id != 0 }

// Controller is the contact state machine. It is not safe for concurrent use.
type Controller struct {
	settings Settings
	contest  contest.Contest
	pool     *pileup.Pool
	player   playback.Player
	clock    Clock
	rng      Rand
	tracker  *stats.Tracker
	session  *stats.Session

	state    qso.State
	ctx      *qso.Context
	user     userTx
	callerTx map[pileup.CallerID]playback.TxID
	nextTx   playback.TxID
	cqDoneAt time.Time

	serial      int
	enteredCall string
	notice      string
	lastSent    string
	lastHeard   string
	lastResult  *stats.QSORecord
	observers   []QSOObserver

	rejectLog *ratelimit.Counter
	staleLog  *ratelimit.Counter
}

// NewController wires a controller in the Idle state.
func NewController(settings Settings, c contest.Contest, pool *pileup.Pool, player playback.Player, clock Clock, rng Rand) *Controller {
	if clock == nil {
		clock = SystemClock
	}
	settings.UserWPM = clampWPM(settings.UserWPM)
	return &Controller{
		settings:  settings,
		contest:   c,
		pool:      pool,
		player:    player,
		clock:     clock,
		rng:       rng,
		tracker:   stats.NewTracker(),
		session:   stats.NewSession(clock.Now()),
		state:     qso.Idle,
		ctx:       qso.NewContext(),
		callerTx:  make(map[pileup.CallerID]playback.TxID),
		serial:    1,
		rejectLog: ratelimit.NewCounterWithClock(logInterval, clock.Now),
		staleLog:  ratelimit.NewCounterWithClock(logInterval, clock.Now),
	}
}

// AddObserver registers o for every logged contact.
func (c *Controller) AddObserver(o QSOObserver) {
	if o != nil {
		c.observers = append(c.observers, o)
	}
}

func (c *Controller) State() qso.State             { return c.state }
func (c *Controller) Context() *qso.Context        { return c.ctx }
func (c *Controller) Contest() contest.Contest     { return c.contest }
func (c *Controller) Pool() *pileup.Pool           { return c.pool }
func (c *Controller) Tracker() *stats.Tracker      { return c.tracker }
func (c *Controller) Session() *stats.Session      { return c.session }
func (c *Controller) Settings() Settings           { return c.settings }
func (c *Controller) Serial() int                  { return c.serial }
func (c *Controller) LastResult() *stats.QSORecord { return c.lastResult }

// Status is the operator prompt: the last rejection notice if one is
// pending, otherwise the text for the current state.
func (c *Controller) Status() (string, qso.Tone) {
	if c.notice != "" {
		return c.notice, qso.ToneAttention
	}
	return qso.StatusText(c.state, c.ctx)
}

// SwitchContest abandons the current contact and draws callers from a new
// contest from now on. Serial numbering restarts.
func (c *Controller) SwitchContest(next contest.Contest) {
	if next == nil {
		return
	}
	c.stopTransmissions()
	c.goIdle(c.clock.Now())
	c.contest = next
	c.pool.UpdateSource(next)
	c.serial = 1
	log.Printf("Engine: contest switched to %s", next.DisplayName())
}

// ResetSession clears the score and the logged contacts.
func (c *Controller) ResetSession() {
	c.session.Clear(c.clock.Now())
	c.lastResult = nil
	c.serial = 1
}

// Handle applies one operator action. Inapplicable actions change nothing
// but the status notice and return the reason.
func (c *Controller) Handle(a Action) error {
	c.tracker.IncrementAction(a.Kind.String())
	var err error
	switch a.Kind {
	case ActionStartCQ, ActionRestart:
		c.startCQ()
	case ActionSubmitCallsign:
		err = c.submitCallsign(a.Call)
	case ActionSubmitExchange:
		err = c.submitExchange(a.Call, a.Fields)
	case ActionSendTheirCallOnly:
		err = c.sendTheirCallOnly(a.Call)
	case ActionSendOurExchangeOnly:
		err = c.sendOurExchangeOnly(a.Call)
	case ActionRequestRepeat:
		err = c.requestRepeat()
	case ActionSendThankYou:
		err = c.sendThankYou()
	case ActionStop:
		c.stop()
	case ActionAdjustWPM:
		c.settings.UserWPM = clampWPM(c.settings.UserWPM + a.Delta)
	default:
		err = fmt.Errorf("%w %d", ErrUnknownAction, int(a.Kind))
	}
	if err != nil {
		c.reject(a.Kind, err)
	}
	return err
}

func (c *Controller) reject(kind ActionKind, err error) {
	c.tracker.IncrementRejected()
	c.notice = capitalize(err.Error())
	if total, ok := c.rejectLog.Inc(); ok {
		log.Printf("Engine: %s ignored in %s: %v (%d rejected so far)", kind, c.state, err, total)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func (c *Controller) wrongState() error {
	return fmt.Errorf("%w: %s", ErrWrongState, c.state)
}

func (c *Controller) setState(s qso.State) {
	c.state = s
	c.notice = ""
}

func (c *Controller) newTx() playback.TxID {
	c.nextTx++
	return c.nextTx
}

// beginUser claims the single user-transmission slot. Anything still on the
// air is stopped first and its unfinished segment counts as not sent.
func (c *Controller) beginUser(kind qso.UserTx) playback.TxID {
	if c.user.active() {
		c.stopTransmissions()
	}
	c.user = userTx{id: c.newTx(), kind: kind}
	return c.user.id
}

func (c *Controller) playMessage(kind qso.UserTx, text string) {
	tx := c.beginUser(kind)
	c.lastSent = text
	c.player.PlayMessage(tx, text, c.settings.UserWPM)
}

func (c *Controller) playSegments(kind qso.UserTx, segs ...playback.Segment) {
	tx := c.beginUser(kind)
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.Content
	}
	c.lastSent = strings.Join(parts, " ")
	c.player.PlaySegmented(tx, segs, c.settings.UserWPM)
}

func (c *Controller) startCallerAudio(p pileup.CallerParams, message string) {
	tx := c.newTx()
	c.callerTx[p.ID] = tx
	c.lastHeard = message
	c.player.StartCallerAudio(tx, playback.CallerAudio{
		Caller:    p.ID,
		Message:   message,
		WPM:       p.WPM,
		OffsetHz:  p.OffsetHz,
		Amplitude: p.Amplitude,
	})
}

// stopTransmissions silences everything. The controller forgets the
// in-flight transmissions before the player reports them, so their late
// notifications are stale.
func (c *Controller) stopTransmissions() {
	if c.user.active() {
		c.tracker.IncrementInterrupted()
	}
	c.player.StopAll()
	c.user = userTx{}
	clear(c.callerTx)
}

func (c *Controller) userExchange() string {
	return strings.Join(c.contest.UserExchange(c.serial), " ")
}

func (c *Controller) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return c.rng.Float64() < p
}

func (c *Controller) agnWord() string {
	if c.chance(0.5) {
		return "AGN"
	}
	return "?"
}

// matchCaller finds the active caller the typed call is addressed to.
func (c *Controller) matchCaller(call string) (pileup.CallerParams, bool) {
	active := c.ctx.Active()
	calls := make([]string, len(active))
	for i, p := range active {
		calls[i] = p.Callsign
	}
	if i, ok := callsign.BestMatch(call, calls); ok {
		return active[i], true
	}
	return pileup.CallerParams{}, false
}

// selectCaller engages p, dropping the rest of a pileup.
func (c *Controller) selectCaller(p pileup.CallerParams) {
	if len(c.ctx.Active()) > 1 {
		c.ctx.Narrow(p)
		return
	}
	c.ctx.Engage(p)
}

func (c *Controller) startCQ() {
	now := c.clock.Now()
	c.stopTransmissions()
	c.pool.OnCQRestart(now)
	c.pool.Prune()
	c.ctx.Reset()
	c.enteredCall = ""
	msg := strings.TrimSpace(c.contest.CQMessage() + " " + c.settings.UserCallsign)
	c.playMessage(qso.UserTxCQ, msg)
	c.setState(qso.State{Phase: qso.PhaseCallingCQ})
}

func (c *Controller) submitCallsign(call string) error {
	call = callsign.Normalize(call)
	if call == "" {
		return ErrEmptyCallsign
	}
	if !c.state.Is(qso.PhaseStationsCalling) {
		return c.wrongState()
	}
	active := c.ctx.Active()
	if len(active) == 0 {
		return ErrNoCaller
	}
	caller, ok := c.matchCaller(call)
	if !ok {
		caller = active[0]
	}
	c.ctx.Engage(caller)
	c.ctx.Progress.MarkReceived(qso.FieldTheirCall)
	c.enteredCall = call

	switch {
	case call == caller.Callsign:
		c.ctx.EndCorrection()
	case c.ctx.CorrectionAttempts < c.settings.MaxCorrectionAttempts && c.chance(c.settings.CorrectionProbability):
		c.ctx.BeginCorrection()
		c.tracker.IncrementCorrections()
	default:
		c.ctx.EndCorrection()
	}

	c.ctx.AwaitingOurExchange = false
	c.playSegments(qso.UserTxExchange,
		playback.Segment{Kind: qso.SegmentTheirCall, Content: call},
		playback.Segment{Kind: qso.SegmentOurExchange, Content: c.userExchange()},
	)
	c.setState(qso.UserTransmitting(qso.UserTxExchange))
	return nil
}

func (c *Controller) submitExchange(call string, fields []string) error {
	if c.state != qso.StationTransmitting(qso.StationTxSendingExchange) {
		return c.wrongState()
	}
	engaged, ok := c.ctx.Engaged()
	if !ok {
		return ErrNoCaller
	}
	if rec, ok := c.pool.Caller(engaged.ID); !ok || rec.Lifecycle.Terminal() {
		return ErrNoCaller
	}
	fields = strutil.NormalizeFields(fields)
	if len(fields) > 0 {
		c.ctx.Progress.MarkReceived(qso.FieldTheirExchange)
	}
	entered := callsign.Normalize(call)
	if entered == "" {
		entered = c.enteredCall
	}

	now := c.clock.Now()
	v := c.contest.Validate(engaged.Callsign, engaged.Exchange, entered, fields)
	rec := stats.QSORecord{
		Time:             now,
		Contest:          c.contest.ID(),
		Serial:           c.serial,
		ExpectedCall:     engaged.Callsign,
		EnteredCall:      entered,
		CallsignCorrect:  v.CallsignCorrect,
		ExpectedExchange: c.contest.FormatExchange(engaged.Exchange),
		EnteredExchange:  strings.Join(fields, " "),
		ExchangeCorrect:  v.ExchangeCorrect,
		StationWPM:       engaged.WPM,
		Points:           v.Points,
		UsedRepeatCall:   c.ctx.UsedRepeatCall,
		UsedRepeatExch:   c.ctx.UsedRepeatExchange,
		UsedCallOnly:     c.ctx.UsedCallOnly,
	}
	c.session.RecordQSO(rec)
	for _, o := range c.observers {
		o.RecordQSO(rec)
	}
	c.lastResult = &rec
	c.pool.OnQSOComplete(engaged.ID)
	c.ctx.Retire(engaged.ID)
	c.serial++
	c.ctx.EndCorrection()

	c.playMessage(qso.UserTxThankYou, "TU "+c.settings.UserCallsign)
	c.setState(qso.State{Phase: qso.PhaseQSOComplete})
	return nil
}

func (c *Controller) sendTheirCallOnly(call string) error {
	call = callsign.Normalize(call)
	if call == "" {
		return ErrEmptyCallsign
	}
	if !c.ctx.HasCallers() {
		return ErrNoCaller
	}
	c.stopTransmissions()
	if p, ok := c.matchCaller(call); ok {
		c.selectCaller(p)
	}
	engaged, has := c.ctx.Engaged()
	exact := has && call == engaged.Callsign
	c.enteredCall = call
	c.ctx.UsedCallOnly = true
	c.ctx.AwaitingOurExchange = exact && !c.ctx.Progress.SentOurExchange
	c.ctx.ExpectingRepeat = !exact

	c.playSegments(qso.UserTxCallOnly, playback.Segment{Kind: qso.SegmentTheirCall, Content: call})
	c.setState(qso.UserTransmitting(qso.UserTxCallOnly))
	return nil
}

func (c *Controller) sendOurExchangeOnly(call string) error {
	if !c.ctx.HasCallers() {
		return ErrNoCaller
	}
	c.stopTransmissions()
	if call = callsign.Normalize(call); call != "" {
		if p, ok := c.matchCaller(call); ok {
			c.selectCaller(p)
		}
	}
	c.ctx.AwaitingOurExchange = false
	c.playSegments(qso.UserTxExchangeOnly, playback.Segment{Kind: qso.SegmentOurExchange, Content: c.userExchange()})
	c.setState(qso.UserTransmitting(qso.UserTxExchangeOnly))
	return nil
}

func (c *Controller) requestRepeat() error {
	if !c.ctx.HasCallers() {
		return ErrNoCaller
	}
	c.stopTransmissions()
	if c.ctx.Progress.CallerCanSendExchange() {
		c.ctx.UsedRepeatExchange = true
	} else {
		c.ctx.ExpectingRepeat = true
		c.ctx.UsedRepeatCall = true
	}
	c.playMessage(qso.UserTxRepeat, c.settings.AGNMessage)
	c.setState(qso.UserTransmitting(qso.UserTxRepeat))
	return nil
}

func (c *Controller) sendThankYou() error {
	switch c.state.Phase {
	case qso.PhaseIdle, qso.PhaseCallingCQ, qso.PhaseWaitingForCallers:
		return c.wrongState()
	}
	c.stopTransmissions()
	c.playMessage(qso.UserTxThankYou, "TU "+c.settings.UserCallsign)
	c.setState(qso.UserTransmitting(qso.UserTxThankYou))
	return nil
}

// stop is the escape key: silence, then settle into the state that matches
// what is left on the air. The context is kept so recovery actions work.
func (c *Controller) stop() {
	inflight := c.user
	c.stopTransmissions()
	c.settle(inflight)
}

func (c *Controller) settle(inflight userTx) {
	now := c.clock.Now()
	switch {
	case c.state.Is(qso.PhaseCallingCQ):
		c.goIdle(now)
	case c.state.Is(qso.PhaseQSOComplete), inflight.active() && inflight.kind == qso.UserTxThankYou:
		c.goIdle(now)
	case c.state.Is(qso.PhaseUserTransmitting):
		if c.ctx.HasCallers() {
			c.setState(qso.State{Phase: qso.PhaseStationsCalling})
		} else {
			c.goIdle(now)
		}
	case c.state.Is(qso.PhaseStationTransmitting):
		c.setState(qso.State{Phase: qso.PhaseStationsCalling})
	}
}

func (c *Controller) goIdle(now time.Time) {
	c.pool.ReleaseCalling(now)
	c.pool.Prune()
	c.ctx.Reset()
	c.enteredCall = ""
	c.setState(qso.Idle)
}

// HandleEvent applies one playback notification. Notifications for a
// transmission that is no longer in flight are dropped.
func (c *Controller) HandleEvent(ev Event) {
	switch ev.Kind {
	case EventSegmentComplete:
		if !c.currentUser(ev.Tx) {
			c.stale(ev)
			return
		}
		c.ctx.Progress.MarkSegmentComplete(ev.Segment)
	case EventMessageComplete:
		if !c.currentUser(ev.Tx) {
			c.stale(ev)
			return
		}
		kind := c.user.kind
		c.user = userTx{}
		c.userDone(kind)
	case EventTransmissionInterrupted:
		if !c.currentUser(ev.Tx) {
			c.stale(ev)
			return
		}
		inflight := c.user
		c.user = userTx{}
		c.tracker.IncrementInterrupted()
		c.settle(inflight)
	case EventCallerAudioComplete:
		tx, ok := c.callerTx[ev.Caller]
		if !ok || tx != ev.Tx {
			c.stale(ev)
			return
		}
		delete(c.callerTx, ev.Caller)
		c.callerDone(ev.Caller)
	}
}

func (c *Controller) currentUser(tx playback.TxID) bool {
	return c.user.active() && c.user.id == tx
}

func (c *Controller) stale(ev Event) {
	c.tracker.IncrementStaleEvents()
	if total, ok := c.staleLog.Inc(); ok {
		log.Printf("Engine: dropped stale %s for tx %d (%d stale so far)", ev.Kind, ev.Tx, total)
	}
}

func (c *Controller) userDone(kind qso.UserTx) {
	now := c.clock.Now()
	switch kind {
	case qso.UserTxCQ:
		c.cqDoneAt = now
		c.ctx.SetWait(now.Add(c.settings.Timing.PostCQDelay))
		c.setState(qso.State{Phase: qso.PhaseWaitingForCallers})
	case qso.UserTxExchange, qso.UserTxCallOnly, qso.UserTxExchangeOnly, qso.UserTxRepeat:
		c.ctx.SetWait(now.Add(c.settings.Timing.ResponseDelay))
		c.setState(qso.State{Phase: qso.PhaseWaitingForStation})
	case qso.UserTxThankYou:
		c.finishContact(now)
	}
}

func (c *Controller) callerDone(id pileup.CallerID) {
	if !c.state.Is(qso.PhaseStationTransmitting) || c.state.Station == qso.StationTxSendingExchange {
		return
	}
	if engaged, ok := c.ctx.Engaged(); !ok || engaged.ID != id {
		return
	}
	c.setState(qso.State{Phase: qso.PhaseStationsCalling})
}

// Tick runs the timed transitions due at now.
func (c *Controller) Tick(now time.Time) {
	switch c.state.Phase {
	case qso.PhaseWaitingForCallers:
		if c.ctx.WaitElapsed(now) {
			c.collectResponders(now)
		}
	case qso.PhaseWaitingForStation:
		if c.ctx.WaitElapsed(now) {
			c.ctx.ClearWait()
			c.respond()
		}
	case qso.PhaseWaitingForTailEnder:
		if c.ctx.WaitElapsed(now) {
			c.ctx.ClearWait()
			for _, p := range c.ctx.Active() {
				c.startCallerAudio(p, p.Callsign)
			}
			c.setState(qso.State{Phase: qso.PhaseStationsCalling})
		}
	}
}

func (c *Controller) collectResponders(now time.Time) {
	c.pool.Replenish(now)
	callers := c.pool.SelectRespondersToCQ(now, c.settings.MaxSimultaneous)
	if len(callers) == 0 {
		if now.Sub(c.cqDoneAt) >= c.settings.Timing.CQSilenceWindow {
			c.tracker.IncrementUnanswered()
			c.goIdle(now)
			c.notice = "No answer"
			return
		}
		c.ctx.SetWait(now.Add(c.settings.Timing.CQPollInterval))
		return
	}
	c.ctx.ClearWait()
	c.ctx.SetCallers(callers)
	for _, p := range callers {
		c.startCallerAudio(p, p.Callsign)
	}
	c.setState(qso.State{Phase: qso.PhaseStationsCalling})
}

// respond is the caller's reaction once our transmission has ended.
func (c *Controller) respond() {
	engaged, ok := c.ctx.Engaged()
	if !ok {
		for _, p := range c.ctx.Active() {
			c.startCallerAudio(p, p.Callsign)
		}
		c.tracker.IncrementResponse("resend")
		c.setState(qso.State{Phase: qso.PhaseStationsCalling})
		return
	}

	resp := qso.Resolve(c.ctx.Progress, qso.FlagsFrom(c.ctx, c.settings.MaxCorrectionAttempts))
	c.tracker.IncrementResponse(resp.String())
	switch resp {
	case qso.ResponseRepeatCall:
		c.ctx.ExpectingRepeat = false
		c.startCallerAudio(engaged, engaged.Callsign)
		c.setState(qso.StationTransmitting(qso.StationTxRepeating))
	case qso.ResponseCorrection:
		single := c.chance(c.settings.SingleProbability)
		c.startCallerAudio(engaged, qso.CorrectionMessage(engaged.Callsign, single))
		c.setState(qso.StationTransmitting(qso.StationTxCorrection))
	case qso.ResponseWait:
		c.setState(qso.State{Phase: qso.PhaseStationsCalling})
	case qso.ResponseConfused:
		msg := engaged.Callsign
		if c.chance(0.5) {
			msg = "?"
		}
		c.startCallerAudio(engaged, msg)
		c.setState(qso.StationTransmitting(qso.StationTxConfused))
	case qso.ResponseRequestAgn:
		c.startCallerAudio(engaged, c.agnWord())
		c.setState(qso.StationTransmitting(qso.StationTxRequestingAgn))
	case qso.ResponseSendExchange:
		if !c.ctx.CallerExchangeSentOnce && c.chance(c.settings.AGNRequestProbability) {
			c.startCallerAudio(engaged, c.agnWord())
			c.setState(qso.StationTransmitting(qso.StationTxRequestingAgn))
			return
		}
		c.ctx.CallerExchangeSentOnce = true
		c.startCallerAudio(engaged, c.contest.FormatExchange(engaged.Exchange))
		c.setState(qso.StationTransmitting(qso.StationTxSendingExchange))
	}
}

// finishContact runs after TU: release whoever is still calling, then give a
// tail-ender the chance to jump in.
func (c *Controller) finishContact(now time.Time) {
	c.pool.ReleaseCalling(now)
	c.pool.Prune()
	c.pool.Replenish(now)
	p, ok := c.pool.TrySpawnTailEnder(now)
	if !ok {
		c.goIdle(now)
		return
	}
	c.tracker.IncrementTailEnders()
	c.ctx.Reset()
	c.enteredCall = ""
	c.ctx.SetCallers([]pileup.CallerParams{p})
	c.ctx.SetWait(now.Add(c.settings.Timing.TailEnderDelay))
	c.setState(qso.State{Phase: qso.PhaseWaitingForTailEnder})
}
