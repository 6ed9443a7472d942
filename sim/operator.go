package sim

import (
	"math/rand/v2"
	"strings"
	"time"

	"qsotrainer/engine"
	"qsotrainer/qso"
)

const bustAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// operator answers like a steady contester: it waits for the frequency to
// clear, types what it heard, fixes calls the station corrects and resends
// the exchange when asked.
type operator struct {
	rng      *rand.Rand
	bustRate float64
	reaction time.Duration
	readyAt  time.Time
}

func newOperator(rng *rand.Rand, bustRate float64, reaction time.Duration) *operator {
	return &operator{rng: rng, bustRate: bustRate, reaction: reaction}
}

func (o *operator) next(now time.Time, snap engine.Snapshot, busy bool) (engine.Action, bool) {
	if now.Before(o.readyAt) {
		return engine.Action{}, false
	}
	a, ok := o.decide(snap, busy)
	if ok {
		o.readyAt = now.Add(o.reaction)
	}
	return a, ok
}

func (o *operator) decide(snap engine.Snapshot, busy bool) (engine.Action, bool) {
	if snap.State.Is(qso.PhaseIdle) {
		return engine.StartCQ(), true
	}
	if busy {
		return engine.Action{}, false
	}
	switch {
	case snap.State.Is(qso.PhaseStationsCalling):
		return o.answer(snap)
	case snap.State == qso.StationTransmitting(qso.StationTxSendingExchange):
		return engine.SubmitExchange("", strings.Fields(snap.LastHeard)), true
	}
	return engine.Action{}, false
}

func (o *operator) answer(snap engine.Snapshot) (engine.Action, bool) {
	heard := strings.Fields(snap.LastHeard)
	switch {
	case snap.CorrectionActive && len(heard) > 0:
		return engine.SubmitCallsign(heard[0]), true
	case snap.Engaged != "" && snap.Progress.ReceivedTheirCall && snap.Progress.SentTheirCall:
		return engine.SendOurExchangeOnly(""), true
	case snap.Engaged != "":
		return engine.SubmitCallsign(o.copyCall(snap.Engaged)), true
	case len(snap.Active) > 0:
		return engine.SubmitCallsign(o.copyCall(snap.Active[0])), true
	}
	return engine.Action{}, false
}

// copyCall returns call, or with bustRate a copy with one character wrong.
func (o *operator) copyCall(call string) string {
	if call == "" || o.bustRate <= 0 || o.rng.Float64() >= o.bustRate {
		return call
	}
	b := []byte(call)
	i := o.rng.IntN(len(b))
	for {
		r := bustAlphabet[o.rng.IntN(len(bustAlphabet))]
		if r != b[i] {
			b[i] = r
			return string(b)
		}
	}
}
