package ui

import (
	"strings"
	"testing"
	"time"

	"qsotrainer/engine"
	"qsotrainer/qso"
	"qsotrainer/stats"
)

func TestBuildViewEngaged(t *testing.T) {
	start := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	snap := engine.Snapshot{
		At:                 start.Add(30 * time.Minute),
		Contest:            "CWops CWT",
		Status:             "Fix callsign and press Enter",
		Tone:               qso.ToneAttention,
		Progress:           qso.Progress{SentTheirCall: true},
		Engaged:            "W1AW",
		CorrectionActive:   true,
		CorrectionAttempts: 2,
		UserWPM:            32,
		Serial:             12,
		LastSent:           "W1AX OP 1",
		Score:              stats.Score{QSOs: 1100, Points: 1100, Started: start},
	}
	v := buildView(snap)
	plain := stripTags(v.header)
	for _, want := range []string{"CWops CWT", "32 WPM", "NR 012", "QSOs 1,100", "Rate 2,200/h"} {
		if !strings.Contains(plain, want) {
			t.Fatalf("header %q missing %q", plain, want)
		}
	}
	if v.status != "[orange]Fix callsign and press Enter[-]" {
		t.Fatalf("unexpected status %q", v.status)
	}
	if !strings.Contains(stripTags(v.callers), "Working W1AW  correction 2") || !strings.Contains(v.callers, "TX: W1AX OP 1") {
		t.Fatalf("unexpected callers %q", v.callers)
	}
	if !strings.HasPrefix(v.progress, "[green]his call[-]  [gray]my exch[-]") {
		t.Fatalf("unexpected progress %q", v.progress)
	}
	if v.last != "" {
		t.Fatalf("expected no last result, got %q", v.last)
	}
}

func TestBuildViewPileupAndLastResult(t *testing.T) {
	rec := stats.QSORecord{
		Serial: 7, ExpectedCall: "K5ZD", EnteredCall: "K5ZB", ExpectedExchange: "RANDY 5",
		EnteredExchange: "RANDY 5", ExchangeCorrect: true, StationWPM: 30,
	}
	v := buildView(engine.Snapshot{Active: []string{"K5ZD", "N1MM"}, LastResult: &rec})
	if !strings.HasPrefix(v.callers, "K5ZD  N1MM\n") {
		t.Fatalf("unexpected callers %q", v.callers)
	}
	if got := stripTags(v.last); got != "Last: 007 K5ZB (K5ZD) RANDY 5 30 WPM 0 pt" {
		t.Fatalf("unexpected last result %q", got)
	}
	if !strings.Contains(v.last, "[red]K5ZB[-]") {
		t.Fatalf("busted call should be red: %q", v.last)
	}
	if empty := buildView(engine.Snapshot{}); !strings.Contains(empty.callers, "no callers") {
		t.Fatalf("unexpected idle callers %q", empty.callers)
	}
}
