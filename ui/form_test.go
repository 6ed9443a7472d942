package ui

import (
	"reflect"
	"testing"

	"github.com/gdamore/tcell/v2"

	"qsotrainer/engine"
	"qsotrainer/qso"
)

func callingSnapshot() engine.Snapshot {
	return engine.Snapshot{State: qso.State{Phase: qso.PhaseStationsCalling}, Serial: 1}
}

func TestEntryFormKeyMap(t *testing.T) {
	cases := []struct {
		name string
		key  tcell.Key
		call string
		want engine.Action
	}{
		{"cq", tcell.KeyF1, "W1AW", engine.Restart()},
		{"exchange only", tcell.KeyF2, "w1aw ", engine.SendOurExchangeOnly("W1AW")},
		{"tu", tcell.KeyF3, "", engine.SendThankYou()},
		{"his call", tcell.KeyF5, "k5zd", engine.SendTheirCallOnly("K5ZD")},
		{"agn", tcell.KeyF8, "", engine.RequestRepeat()},
		{"stop", tcell.KeyEsc, "", engine.Stop()},
		{"faster", tcell.KeyUp, "", engine.AdjustWPM(1)},
		{"slower", tcell.KeyDown, "", engine.AdjustWPM(-1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &entryForm{call: tc.call}
			got, submit, handled := f.handleKey(tc.key, engine.Snapshot{})
			if !submit || !handled {
				t.Fatalf("expected submit, got submit=%v handled=%v", submit, handled)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestEntryFormF1ClearsEntry(t *testing.T) {
	f := &entryForm{call: "W1AW", exch: "JOE 12", field: fieldExchange}
	f.handleKey(tcell.KeyF1, engine.Snapshot{})
	if f.call != "" || f.exch != "" || f.field != fieldCall {
		t.Fatalf("expected wiped form, got %+v", f)
	}
}

func TestEntryFormWipeAndTab(t *testing.T) {
	f := &entryForm{call: "W1AW", exch: "JOE"}
	if _, submit, handled := f.handleKey(tcell.KeyTab, engine.Snapshot{}); submit || !handled {
		t.Fatalf("tab should be handled without an action")
	}
	if f.field != fieldExchange {
		t.Fatalf("expected exchange field after tab")
	}
	f.handleKey(tcell.KeyBacktab, engine.Snapshot{})
	if f.field != fieldCall {
		t.Fatalf("expected call field after second tab")
	}
	f.field = fieldExchange
	if _, submit, _ := f.handleKey(tcell.KeyF12, engine.Snapshot{}); submit {
		t.Fatalf("wipe must not submit")
	}
	if f.call != "" || f.exch != "" || f.field != fieldCall {
		t.Fatalf("expected wiped form, got %+v", f)
	}
	if _, _, handled := f.handleKey(tcell.KeyPgUp, engine.Snapshot{}); handled {
		t.Fatalf("page up is not an entry key")
	}
}

func TestEntryFormEnter(t *testing.T) {
	f := &entryForm{}
	if a, _, _ := f.handleKey(tcell.KeyEnter, engine.Snapshot{}); a.Kind != engine.ActionStartCQ {
		t.Fatalf("empty callsign should call CQ, got %s", a.Kind)
	}

	f.call = " w1aw"
	a, _, _ := f.handleKey(tcell.KeyEnter, engine.Snapshot{})
	if !reflect.DeepEqual(a, engine.SubmitCallsign("W1AW")) || f.field != fieldCall {
		t.Fatalf("outside a pileup the cursor stays put: %+v field=%d", a, f.field)
	}
	f.handleKey(tcell.KeyEnter, callingSnapshot())
	if f.field != fieldExchange {
		t.Fatalf("expected cursor in exchange after sending the call")
	}

	f.exch = "joe  12 "
	a, _, _ = f.handleKey(tcell.KeyEnter, callingSnapshot())
	if !reflect.DeepEqual(a, engine.SubmitExchange("W1AW", []string{"JOE", "12"})) {
		t.Fatalf("unexpected exchange action %+v", a)
	}
}

func TestEntryFormObserveClearsAfterLoggedContact(t *testing.T) {
	f := &entryForm{call: "W1AW", exch: "JOE 12", field: fieldExchange}
	if f.observe(engine.Snapshot{Serial: 3}) {
		t.Fatalf("first snapshot only records the serial")
	}
	if f.observe(engine.Snapshot{Serial: 3}) || f.call == "" {
		t.Fatalf("unchanged serial must keep the entry")
	}
	if !f.observe(engine.Snapshot{Serial: 4}) {
		t.Fatalf("expected wipe on new serial")
	}
	if f.call != "" || f.exch != "" || f.field != fieldCall {
		t.Fatalf("expected wiped form, got %+v", f)
	}
}
