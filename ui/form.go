package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"

	"qsotrainer/engine"
	"qsotrainer/qso"
)

type entryField int

const (
	fieldCall entryField = iota
	fieldExchange
)

// entryForm is the operator's callsign/exchange entry and the key map that
// turns it into engine actions. It holds no tview state so the bindings can
// be exercised without a terminal.
type entryForm struct {
	call  string
	exch  string
	field entryField

	lastSerial int
}

func (f *entryForm) wipe() {
	f.call = ""
	f.exch = ""
	f.field = fieldCall
}

func (f *entryForm) callText() string {
	return strings.ToUpper(strings.TrimSpace(f.call))
}

func (f *entryForm) exchangeFields() []string {
	return strings.Fields(strings.ToUpper(f.exch))
}

// handleKey maps one key to at most one action. handled reports whether the
// key belongs to the form, even when it produces no action.
func (f *entryForm) handleKey(key tcell.Key, snap engine.Snapshot) (a engine.Action, submit bool, handled bool) {
	switch key {
	case tcell.KeyF1:
		f.wipe()
		return engine.Restart(), true, true
	case tcell.KeyF2:
		return engine.SendOurExchangeOnly(f.callText()), true, true
	case tcell.KeyF3:
		return engine.SendThankYou(), true, true
	case tcell.KeyF5:
		return engine.SendTheirCallOnly(f.callText()), true, true
	case tcell.KeyF8:
		return engine.RequestRepeat(), true, true
	case tcell.KeyF12:
		f.wipe()
		return engine.Action{}, false, true
	case tcell.KeyEsc:
		return engine.Stop(), true, true
	case tcell.KeyTab, tcell.KeyBacktab:
		if f.field == fieldCall {
			f.field = fieldExchange
		} else {
			f.field = fieldCall
		}
		return engine.Action{}, false, true
	case tcell.KeyUp:
		return engine.AdjustWPM(1), true, true
	case tcell.KeyDown:
		return engine.AdjustWPM(-1), true, true
	case tcell.KeyEnter:
		return f.enter(snap)
	}
	return engine.Action{}, false, false
}

func (f *entryForm) enter(snap engine.Snapshot) (engine.Action, bool, bool) {
	call := f.callText()
	if f.field == fieldExchange {
		return engine.SubmitExchange(call, f.exchangeFields()), true, true
	}
	if call == "" {
		f.wipe()
		return engine.StartCQ(), true, true
	}
	if snap.State.Is(qso.PhaseStationsCalling) {
		f.field = fieldExchange
	}
	return engine.SubmitCallsign(call), true, true
}

// observe folds a new snapshot into the form. A logged contact clears the
// entry for the next one.
func (f *entryForm) observe(snap engine.Snapshot) bool {
	if f.lastSerial == 0 {
		f.lastSerial = snap.Serial
		return false
	}
	if snap.Serial == f.lastSerial {
		return false
	}
	f.lastSerial = snap.Serial
	f.wipe()
	return true
}
