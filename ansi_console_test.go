package main

import (
	"bytes"
	"strings"
	"testing"

	"qsotrainer/engine"
	"qsotrainer/qso"
	"qsotrainer/stats"
)

func TestApplyANSIMarkup(t *testing.T) {
	if got := applyANSIMarkup("[red]X[-]", true); got != "\x1b[31mX\x1b[0m\x1b[0m" {
		t.Fatalf("color markup mismatch: %q", got)
	}
	if got := applyANSIMarkup("[red]X[-]", false); got != "X" {
		t.Fatalf("strip mismatch: %q", got)
	}
	if got := applyANSIMarkup("plain", true); got != "plain" {
		t.Fatalf("plain line changed: %q", got)
	}
}

func TestANSIConsolePrintsStateChangesOnly(t *testing.T) {
	var out bytes.Buffer
	c := newANSIConsole(&out, false)

	calling := engine.Snapshot{State: qso.State{Phase: qso.PhaseStationsCalling}, Status: "Station calling - enter callsign", Active: []string{"W1AW", "K5ZD"}}
	c.SetSnapshot(calling)
	c.SetSnapshot(calling)
	c.SetSnapshot(engine.Snapshot{State: qso.State{Phase: qso.PhaseStationsCalling}, Status: "Fix callsign and press Enter", Engaged: "W1AW"})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out.String())
	}
	if !strings.HasSuffix(lines[0], "Station calling - enter callsign  W1AW K5ZD") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "Fix callsign and press Enter  W1AW") {
		t.Fatalf("unexpected second line %q", lines[1])
	}
}

func TestANSIConsoleQSOAndSystemWriter(t *testing.T) {
	var out bytes.Buffer
	c := newANSIConsole(&out, false)
	c.AppendQSO(stats.QSORecord{Serial: 3, ExpectedCall: "N1MM", EnteredCall: "N1MN", ExpectedExchange: "TOM 3",
		EnteredExchange: "TOM 3", ExchangeCorrect: true, StationWPM: 28})
	c.SystemWriter().Write([]byte("QSO log: [green]open[-]\npartial"))

	want := "QSO 003 N1MN (N1MM) TOM 3 28 WPM 0 pt\nQSO log: open\n"
	if out.String() != want {
		t.Fatalf("unexpected output %q", out.String())
	}
	c.quit()
	c.quit()
	select {
	case <-c.Done():
	default:
		t.Fatalf("expected Done to be closed")
	}
}
